package live

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shokuba/honne/internal/store"
)

func TestPushDeliversEvents(t *testing.T) {
	gw := store.NewMemory()

	var mu sync.Mutex
	var ops []store.ChangeOp
	received := make(chan struct{}, 8)

	p := NewPush(gw, store.Posts, func(ev store.Event) {
		mu.Lock()
		ops = append(ops, ev.Op)
		mu.Unlock()
		received <- struct{}{}
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if err := gw.Emit(store.Posts, store.ChangeInsert, map[string]interface{}{"id": "a"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if err := gw.Emit(store.Posts, store.ChangeDelete, map[string]interface{}{"id": "a"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ops) != 2 || ops[0] != store.ChangeInsert || ops[1] != store.ChangeDelete {
		t.Errorf("got ops %v, want [insert delete]", ops)
	}
}

func TestPushStopHaltsDelivery(t *testing.T) {
	gw := store.NewMemory()

	var applied atomic.Int64
	p := NewPush(gw, store.Posts, func(store.Event) {
		applied.Add(1)
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.Stop()
	after := applied.Load()

	if err := gw.Emit(store.Posts, store.ChangeInsert, map[string]interface{}{"id": "late"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if got := applied.Load(); got != after {
		t.Errorf("events applied after Stop: %d vs %d", got, after)
	}
	// Stop again is safe.
	p.Stop()
}

func TestPushStartSubscribeFailure(t *testing.T) {
	gw := failingGateway{}
	p := NewPush(gw, store.Posts, func(store.Event) {
		t.Error("apply called with no subscription")
	})
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded against a gateway that cannot subscribe")
	}
	p.Stop()
}

func TestPollRefreshesOnInterval(t *testing.T) {
	var calls atomic.Int64
	p := NewPoll(10*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d refreshes within a second", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	p.Stop()
	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != after {
		t.Errorf("refresh ran after Stop: %d vs %d", got, after)
	}
}

// failingGateway satisfies store.Gateway and refuses subscriptions.
type failingGateway struct{}

func (failingGateway) Query(ctx context.Context, collection string, q store.Query, dest interface{}) error {
	return nil
}

func (failingGateway) Count(ctx context.Context, collection string, filters []store.Filter) (int64, error) {
	return 0, nil
}

func (failingGateway) Insert(ctx context.Context, collection string, row interface{}) error {
	return nil
}

func (failingGateway) Update(ctx context.Context, collection string, filters []store.Filter, patch map[string]interface{}) error {
	return nil
}

func (failingGateway) Delete(ctx context.Context, collection string, filters []store.Filter) error {
	return nil
}

func (failingGateway) Subscribe(ctx context.Context, collection string) (store.Subscription, error) {
	return nil, store.ErrSubscribeUnavailable
}
