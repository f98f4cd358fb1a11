// Package live abstracts how a view keeps its data fresh. The feed rides a
// push subscription; notifications poll on an interval. Call sites only
// see Start and Stop and never need to know which strategy backs a view.
package live

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shokuba/honne/internal/store"
	"github.com/shokuba/honne/pkg/logging"
)

// Source keeps one view's data fresh between Start and Stop.
type Source interface {
	Start(ctx context.Context) error
	Stop()
}

// Push feeds change events from a gateway subscription into an apply
// callback. Events stop flowing after Stop or context cancellation;
// nothing is applied past teardown.
type Push struct {
	gw         store.Gateway
	collection string
	apply      func(store.Event)
	logger     *zap.Logger

	mu     sync.Mutex
	sub    store.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPush creates a push source for one collection.
func NewPush(gw store.Gateway, collection string, apply func(store.Event)) *Push {
	return &Push{
		gw:         gw,
		collection: collection,
		apply:      apply,
		logger:     logging.WithComponent("live"),
	}
}

// Start implements Source.
func (p *Push) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	sub, err := p.gw.Subscribe(ctx, p.collection)
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.sub = sub
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				// Re-check before every state write: a view torn down
				// mid-flight must not be mutated.
				if ctx.Err() != nil {
					return
				}
				p.apply(ev)
			}
		}
	}()

	p.logger.Debug("Push source started", zap.String("collection", p.collection))
	return nil
}

// Stop implements Source. It unsubscribes and waits for the event loop to
// drain so no apply callback runs after return.
func (p *Push) Stop() {
	p.mu.Lock()
	sub, cancel, done := p.sub, p.cancel, p.done
	p.sub, p.cancel, p.done = nil, nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
	}
	if done != nil {
		<-done
	}
}

// Poll invokes a refresh callback on a fixed interval. The refresh error
// is logged, not fatal: a missed poll leaves stale data that the next
// tick corrects.
type Poll struct {
	interval time.Duration
	refresh  func(ctx context.Context) error
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoll creates a poll source with the given cadence.
func NewPoll(interval time.Duration, refresh func(ctx context.Context) error) *Poll {
	return &Poll{
		interval: interval,
		refresh:  refresh,
		logger:   logging.WithComponent("live"),
	}
}

// Start implements Source.
func (p *Poll) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.refresh(ctx); err != nil && ctx.Err() == nil {
					p.logger.Warn("Periodic refresh failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Stop implements Source.
func (p *Poll) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
