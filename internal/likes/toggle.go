// Package likes implements the optimistic like toggle, generic over the
// post-like and comment-like relations.
package likes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shokuba/honne/internal/identity"
	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/internal/reconcile"
	"github.com/shokuba/honne/internal/store"
	"github.com/shokuba/honne/pkg/logging"
)

// Kind selects which like relation a toggle operates on.
type Kind int

// Like relation kinds
const (
	KindPost Kind = iota
	KindComment
)

// target describes where a kind's rows and counter live.
type target struct {
	likeCollection   string
	entityCollection string
	entityField      string
}

func (k Kind) target() target {
	if k == KindComment {
		return target{
			likeCollection:   store.CommentLikes,
			entityCollection: store.Comments,
			entityField:      "comment_id",
		}
	}
	return target{
		likeCollection:   store.PostLikes,
		entityCollection: store.Posts,
		entityField:      "post_id",
	}
}

// Toggle tracks one viewer's like state for one entity and flips it
// optimistically: the local (liked, count) pair changes first, the like
// row write follows, and a failed write restores the exact captured prior
// values. The user always sees a valid boolean, never an error state.
type Toggle struct {
	gw       store.Gateway
	id       identity.Identity
	kind     Kind
	entityID string
	logger   *zap.Logger

	mu    sync.Mutex
	liked bool
	count int
}

// NewToggle creates a toggle seeded with the entity's known like count.
func NewToggle(gw store.Gateway, id identity.Identity, kind Kind, entityID string, initialCount int) *Toggle {
	return &Toggle{
		gw:       gw,
		id:       id,
		kind:     kind,
		entityID: entityID,
		count:    initialCount,
		logger:   logging.WithComponent("likes"),
	}
}

// Load probes the like relation to learn whether the viewer already likes
// the entity. Guests skip the probe: they cannot have a like row.
func (t *Toggle) Load(ctx context.Context) error {
	if !t.id.Authenticated() {
		t.mu.Lock()
		t.liked = false
		t.mu.Unlock()
		return nil
	}

	tgt := t.kind.target()
	n, err := t.gw.Count(ctx, tgt.likeCollection, []store.Filter{
		store.Eq(tgt.entityField, t.entityID),
		store.Eq("user_id", t.id.CurrentUserID()),
	})
	if err != nil {
		return fmt.Errorf("failed to check like status: %w", err)
	}

	t.mu.Lock()
	t.liked = n > 0
	t.mu.Unlock()
	return nil
}

// State returns the current (liked, count) pair.
func (t *Toggle) State() (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liked, t.count
}

// Flip toggles the like and returns the resulting state. Without a
// resolved identity it refuses with identity.ErrRequired and changes
// nothing. A failed like-row write rolls the state back to the captured
// prior values; the follow-up counter write is best-effort and
// self-corrects on the next full read or change event.
func (t *Toggle) Flip(ctx context.Context) (bool, int, error) {
	if !t.id.Authenticated() {
		liked, count := t.State()
		return liked, count, identity.ErrRequired
	}

	tgt := t.kind.target()
	userID := t.id.CurrentUserID()

	type state struct {
		liked bool
		count int
	}

	err := reconcile.Optimistic(
		func() state {
			t.mu.Lock()
			defer t.mu.Unlock()
			return state{liked: t.liked, count: t.count}
		},
		func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.liked {
				t.liked = false
				t.count--
			} else {
				t.liked = true
				t.count++
			}
		},
		func() error {
			liked, _ := t.State()
			if liked {
				return t.insertLike(ctx, userID)
			}
			return t.gw.Delete(ctx, tgt.likeCollection, []store.Filter{
				store.Eq(tgt.entityField, t.entityID),
				store.Eq("user_id", userID),
			})
		},
		func(prior state) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.liked = prior.liked
			t.count = prior.count
		},
	)
	if err != nil {
		liked, count := t.State()
		return liked, count, fmt.Errorf("failed to toggle like: %w", err)
	}

	liked, count := t.State()

	// Second, dependent write: push the recomputed count to the entity's
	// authoritative counter. Not rolled back on failure.
	patch := map[string]interface{}{"likes_count": count}
	filters := []store.Filter{store.Eq("id", t.entityID)}
	if uerr := t.gw.Update(ctx, tgt.entityCollection, filters, patch); uerr != nil {
		t.logger.Warn("Failed to update like counter",
			zap.String("entity_id", t.entityID),
			zap.Error(uerr))
	}

	return liked, count, nil
}

func (t *Toggle) insertLike(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	if t.kind == KindComment {
		row := models.CommentLike{CommentID: t.entityID, UserID: userID, CreatedAt: now}
		return t.gw.Insert(ctx, store.CommentLikes, &row)
	}
	row := models.PostLike{PostID: t.entityID, UserID: userID, CreatedAt: now}
	return t.gw.Insert(ctx, store.PostLikes, &row)
}
