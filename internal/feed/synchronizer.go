// Package feed owns the live post feed: one authoritative read, a change
// subscription reconciled into an entity cache, and the post creation
// path.
package feed

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/shokuba/honne/internal/live"
	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/internal/reconcile"
	"github.com/shokuba/honne/internal/store"
	"github.com/shokuba/honne/pkg/logging"
)

// Synchronizer keeps an ordered-by-recency post list consistent across the
// initial read, realtime change events and manual refetches, optionally
// restricted to one category.
type Synchronizer struct {
	gw     store.Gateway
	cache  *reconcile.Cache[models.Post]
	logger *zap.Logger

	mu       sync.Mutex
	category models.Category // empty means all categories
	src      *live.Push
	loadErr  error
	liveOn   bool
}

// NewSynchronizer creates a synchronizer for the given category filter;
// an empty category follows every post.
func NewSynchronizer(gw store.Gateway, category models.Category) *Synchronizer {
	return &Synchronizer{
		gw:       gw,
		cache:    reconcile.NewCache(func(p models.Post) string { return p.ID }),
		category: category,
		logger:   logging.WithComponent("feed"),
	}
}

// Start performs the authoritative baseline read and opens the change
// subscription. A failed read surfaces as an error with an empty cache. A
// failed subscription only degrades the feed to read-only: the read result
// stands and Live reports false.
func (s *Synchronizer) Start(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	s.startLive(ctx)
	return nil
}

// Refetch re-runs the full read. On failure previously loaded posts are
// kept: stale-but-present beats empty.
func (s *Synchronizer) Refetch(ctx context.Context) error {
	return s.load(ctx)
}

// SetCategory switches the active filter. The filter governs both the
// query and the subscription, so the switch re-reads and re-subscribes
// rather than re-filtering stale rows client-side.
func (s *Synchronizer) SetCategory(ctx context.Context, category models.Category) error {
	s.mu.Lock()
	if s.category == category {
		s.mu.Unlock()
		return nil
	}
	src := s.src
	s.src = nil
	s.category = category
	s.mu.Unlock()

	if src != nil {
		src.Stop()
	}
	s.cache.Clear()

	err := s.load(ctx)
	s.startLive(ctx)
	return err
}

// Posts returns the current ordered snapshot.
func (s *Synchronizer) Posts() []models.Post {
	return s.cache.Snapshot()
}

// Err returns the error state of the most recent full read.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Live reports whether change events are flowing.
func (s *Synchronizer) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveOn
}

// Stop tears the synchronizer down; no state is written afterwards.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	src := s.src
	s.src = nil
	s.liveOn = false
	s.mu.Unlock()

	if src != nil {
		src.Stop()
	}
}

func (s *Synchronizer) load(ctx context.Context) error {
	s.mu.Lock()
	category := s.category
	s.mu.Unlock()

	q := store.Query{OrderBy: "created_at", Desc: true}
	if category != "" {
		q.Filters = []store.Filter{store.Eq("category", category)}
	}

	var posts []models.Post
	if err := s.gw.Query(ctx, store.Posts, q, &posts); err != nil {
		s.logger.Error("Failed to load posts", zap.Error(err))
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		return err
	}

	s.cache.Replace(posts)
	s.mu.Lock()
	s.loadErr = nil
	s.mu.Unlock()

	s.logger.Debug("Feed baseline loaded",
		zap.Int("posts", len(posts)),
		zap.String("category", string(category)))
	return nil
}

func (s *Synchronizer) startLive(ctx context.Context) {
	src := live.NewPush(s.gw, store.Posts, s.Apply)
	if err := src.Start(ctx); err != nil {
		// Read-only degradation: the feed stays usable without pushes.
		s.logger.Warn("Live updates unavailable", zap.Error(err))
		s.mu.Lock()
		s.liveOn = false
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.src = src
	s.liveOn = true
	s.mu.Unlock()
}

// Apply reconciles one change event into the cache. Application is
// idempotent and order-tolerant: replaying an event leaves the cache
// unchanged.
func (s *Synchronizer) Apply(ev store.Event) {
	var post models.Post
	if err := json.Unmarshal(ev.Row, &post); err != nil {
		s.logger.Warn("Dropping undecodable feed event", zap.Error(err))
		return
	}

	switch ev.Op {
	case store.ChangeInsert:
		if !s.matches(post) {
			return
		}
		s.cache.Upsert(post)
	case store.ChangeUpdate:
		// In-place replacement only; updates never re-sort the feed.
		s.cache.Update(post)
	case store.ChangeDelete:
		s.cache.Remove(post.ID)
	}
}

func (s *Synchronizer) matches(post models.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category == "" || post.Category == s.category
}
