// Package notify merges personal notifications with the computed trending
// view and derives the badge count. Unlike the feed, this view is
// poll-based: it re-fetches on a fixed interval instead of riding a change
// subscription.
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shokuba/honne/internal/identity"
	"github.com/shokuba/honne/internal/live"
	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/internal/store"
	"github.com/shokuba/honne/pkg/config"
	"github.com/shokuba/honne/pkg/logging"
)

// Aggregator produces the merged notification list for authenticated
// viewers, the trending-post list for everyone, and one badge count whose
// meaning depends on identity: unread personal notifications when signed
// in, trending posts in window for guests.
type Aggregator struct {
	gw     store.Gateway
	id     identity.Identity
	cfg    config.FeedConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	personal []models.Notification
	trending []models.Post
	poll     *live.Poll
}

// NewAggregator creates an aggregator with the given trending thresholds
// and poll cadence.
func NewAggregator(gw store.Gateway, id identity.Identity, cfg config.FeedConfig) *Aggregator {
	return &Aggregator{
		gw:     gw,
		id:     id,
		cfg:    cfg,
		logger: logging.WithComponent("notify"),
		now:    time.Now,
	}
}

// Start performs the first refresh and begins the periodic re-fetch.
func (a *Aggregator) Start(ctx context.Context) error {
	if err := a.Refresh(ctx); err != nil {
		return err
	}
	a.poll = live.NewPoll(a.cfg.PollInterval, a.Refresh)
	return a.poll.Start(ctx)
}

// Stop halts the periodic refresh.
func (a *Aggregator) Stop() {
	if a.poll != nil {
		a.poll.Stop()
		a.poll = nil
	}
}

// Refresh re-fetches the trending view and, for authenticated viewers, the
// personal notification rows. Guests get an empty personal list by
// construction: no query is issued for them.
func (a *Aggregator) Refresh(ctx context.Context) error {
	trending, err := a.fetchTrending(ctx)
	if err != nil {
		return err
	}

	var personal []models.Notification
	if a.id.Authenticated() {
		personal, err = a.fetchPersonal(ctx)
		if err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.trending = trending
	a.personal = personal
	a.mu.Unlock()

	a.logger.Debug("Notifications refreshed",
		zap.Int("trending", len(trending)),
		zap.Int("personal", len(personal)))
	return nil
}

func (a *Aggregator) fetchTrending(ctx context.Context) ([]models.Post, error) {
	since := a.now().UTC().Add(-a.cfg.TrendingWindow)
	var posts []models.Post
	q := store.Query{
		Filters: []store.Filter{
			store.Gte("likes_count", a.cfg.TrendingThreshold),
			store.Gte("created_at", since),
		},
		OrderBy: "likes_count",
		Desc:    true,
		Limit:   a.cfg.TrendingLimit,
	}
	if err := a.gw.Query(ctx, store.Posts, q, &posts); err != nil {
		return nil, fmt.Errorf("failed to fetch trending posts: %w", err)
	}
	return posts, nil
}

func (a *Aggregator) fetchPersonal(ctx context.Context) ([]models.Notification, error) {
	var rows []models.Notification
	q := store.Query{
		Filters: []store.Filter{store.Eq("user_id", a.id.CurrentUserID())},
		OrderBy: "created_at",
		Desc:    true,
	}
	if err := a.gw.Query(ctx, store.Notifications, q, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return rows, nil
}

// Trending returns the current trending posts, most liked first.
func (a *Aggregator) Trending() []models.Post {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Post(nil), a.trending...)
}

// Notifications returns the merged, sorted view: synthesized trending
// entries and personal rows ordered trending-first, then unread before
// read, then newest first.
func (a *Aggregator) Notifications() []models.Notification {
	a.mu.Lock()
	merged := make([]models.Notification, 0, len(a.trending)+len(a.personal))
	for _, p := range a.trending {
		merged = append(merged, models.Notification{
			ID:        "hot-" + p.ID,
			Kind:      models.NotifyKindHotPost,
			PostID:    p.ID,
			Message:   fmt.Sprintf("「%s」についての投稿が話題になっています", p.Category),
			CreatedAt: p.CreatedAt,
		})
	}
	merged = append(merged, a.personal...)
	a.mu.Unlock()

	sortNotifications(merged)
	return merged
}

// sortNotifications applies the three-key stable order of the merged view.
func sortNotifications(list []models.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		aHot := a.Kind == models.NotifyKindHotPost
		bHot := b.Kind == models.NotifyKindHotPost
		if aHot != bHot {
			return aHot
		}
		if a.IsRead != b.IsRead {
			return !a.IsRead
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Badge returns the single badge count. The two identities count different
// things: unread personal notifications when authenticated, trending posts
// in window for guests.
func (a *Aggregator) Badge() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.id.Authenticated() {
		return len(a.trending)
	}
	unread := 0
	for _, n := range a.personal {
		if !n.IsRead {
			unread++
		}
	}
	return unread
}

// MarkRead flags one notification as read, locally first. On remote
// failure the personal rows are re-fetched wholesale instead of undoing
// the local patch row by row.
func (a *Aggregator) MarkRead(ctx context.Context, notificationID string) error {
	if !a.id.Authenticated() {
		return identity.ErrRequired
	}

	a.mu.Lock()
	for i := range a.personal {
		if a.personal[i].ID == notificationID {
			a.personal[i].IsRead = true
			break
		}
	}
	a.mu.Unlock()

	err := a.gw.Update(ctx, store.Notifications,
		[]store.Filter{store.Eq("id", notificationID)},
		map[string]interface{}{"is_read": true})
	if err != nil {
		return a.resync(ctx, err)
	}
	return nil
}

// MarkAllRead flags every personal notification as read.
func (a *Aggregator) MarkAllRead(ctx context.Context) error {
	if !a.id.Authenticated() {
		return identity.ErrRequired
	}

	a.mu.Lock()
	for i := range a.personal {
		a.personal[i].IsRead = true
	}
	a.mu.Unlock()

	err := a.gw.Update(ctx, store.Notifications,
		[]store.Filter{store.Eq("user_id", a.id.CurrentUserID())},
		map[string]interface{}{"is_read": true})
	if err != nil {
		return a.resync(ctx, err)
	}
	return nil
}

// Delete removes one notification.
func (a *Aggregator) Delete(ctx context.Context, notificationID string) error {
	if !a.id.Authenticated() {
		return identity.ErrRequired
	}

	a.mu.Lock()
	for i := range a.personal {
		if a.personal[i].ID == notificationID {
			a.personal = append(a.personal[:i], a.personal[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	err := a.gw.Delete(ctx, store.Notifications,
		[]store.Filter{store.Eq("id", notificationID)})
	if err != nil {
		return a.resync(ctx, err)
	}
	return nil
}

// resync restores the personal rows from the store after a failed
// mutation. Mutations are rare enough that a wholesale re-fetch beats
// fine-grained rollback bookkeeping.
func (a *Aggregator) resync(ctx context.Context, cause error) error {
	a.logger.Warn("Notification mutation failed, resyncing", zap.Error(cause))
	if a.id.Authenticated() {
		if personal, err := a.fetchPersonal(ctx); err == nil {
			a.mu.Lock()
			a.personal = personal
			a.mu.Unlock()
		}
	}
	return cause
}
