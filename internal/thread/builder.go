// Package thread fetches a post's flat comment list and reconstructs the
// two-level tree shown under a post: roots in creation order, each
// carrying its replies in creation order.
package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/shokuba/honne/internal/identity"
	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/internal/store"
	"github.com/shokuba/honne/pkg/logging"
)

// CommentMaxLen bounds a comment body.
const CommentMaxLen = 500

// ErrReplyToReply is returned when the target parent of a reply is itself
// a reply. Thread depth is capped at one reply level; this condition is
// kept distinct from generic validation failure.
var ErrReplyToReply = errors.New("cannot reply to a reply")

// ErrEmptyComment is returned for a blank or oversized comment body.
var ErrEmptyComment = errors.New("comment body is empty or too long")

// Builder owns the comment state for one post.
type Builder struct {
	gw       store.Gateway
	id       identity.Identity
	post     models.Post
	sanitize *bluemonday.Policy
	logger   *zap.Logger

	mu    sync.Mutex
	flat  []models.Comment
	total int64
}

// NewBuilder creates a builder for the given post. The post row supplies
// the author identifier and byline nickname used for name substitution.
func NewBuilder(gw store.Gateway, id identity.Identity, post models.Post) *Builder {
	return &Builder{
		gw:       gw,
		id:       id,
		post:     post,
		sanitize: bluemonday.UGCPolicy(),
		logger:   logging.WithComponent("thread"),
	}
}

// Refresh re-runs the full flat fetch, ordered by creation time ascending,
// with the total count alongside the rows.
func (b *Builder) Refresh(ctx context.Context) error {
	filters := []store.Filter{store.Eq("post_id", b.post.ID)}

	var comments []models.Comment
	q := store.Query{Filters: filters, OrderBy: "created_at"}
	if err := b.gw.Query(ctx, store.Comments, q, &comments); err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}
	total, err := b.gw.Count(ctx, store.Comments, filters)
	if err != nil {
		return fmt.Errorf("failed to count comments: %w", err)
	}

	b.mu.Lock()
	b.flat = comments
	b.total = total
	b.mu.Unlock()
	return nil
}

// Total returns the comment count reported by the last fetch.
func (b *Builder) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Thread returns the two-level tree built from the last fetch. Rows whose
// parent is absent from the root set still render at the top level;
// nothing is silently dropped even when the write path misbehaved.
func (b *Builder) Thread() []models.Comment {
	b.mu.Lock()
	flat := append([]models.Comment(nil), b.flat...)
	b.mu.Unlock()

	return BuildTree(flat)
}

// BuildTree arranges a flat, creation-ordered comment list into roots with
// attached replies, preserving fetch order on both levels.
func BuildTree(flat []models.Comment) []models.Comment {
	rootIndex := make(map[string]int)
	var roots []models.Comment

	for _, c := range flat {
		if c.ParentID == nil {
			c.Replies = nil
			rootIndex[c.ID] = len(roots)
			roots = append(roots, c)
		}
	}

	var orphans []models.Comment
	for _, c := range flat {
		if c.ParentID == nil {
			continue
		}
		if i, ok := rootIndex[*c.ParentID]; ok {
			roots[i].Replies = append(roots[i].Replies, c)
		} else {
			// Parent missing or itself a reply: render rather than drop.
			orphans = append(orphans, c)
		}
	}

	return append(roots, orphans...)
}

// DisplayName resolves the nickname shown for a comment. When the
// commenter is the post's author, the post's byline nickname wins over the
// commenter's current profile nickname, so the original poster stays
// recognizable within their own thread.
func DisplayName(c models.Comment, post models.Post) string {
	if post.AuthoredBy(c.UserID) {
		return post.Nickname
	}
	return c.Nickname
}

// CreateComment writes a new root comment and then re-runs the full fetch;
// tree reconstruction is cheap next to the network, so correctness wins
// over an incremental patch.
func (b *Builder) CreateComment(ctx context.Context, content string) (*models.Comment, error) {
	return b.create(ctx, nil, content)
}

// CreateReply writes a reply to the given parent comment. The parent's own
// parent_id must be nil: replying to a reply fails with ErrReplyToReply
// before any write happens.
func (b *Builder) CreateReply(ctx context.Context, parentID, content string) (*models.Comment, error) {
	parent, err := b.fetchComment(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsReply() {
		return nil, ErrReplyToReply
	}
	return b.create(ctx, &parent.ID, content)
}

func (b *Builder) create(ctx context.Context, parentID *string, content string) (*models.Comment, error) {
	content = strings.TrimSpace(b.sanitize.Sanitize(content))
	if content == "" || len([]rune(content)) > CommentMaxLen {
		return nil, ErrEmptyComment
	}
	if !b.id.Authenticated() {
		return nil, identity.ErrRequired
	}

	comment := models.Comment{
		PostID:   b.post.ID,
		UserID:   b.id.CurrentUserID(),
		ParentID: parentID,
		Nickname: b.id.CurrentNickname(),
		Content:  content,
	}
	if err := b.gw.Insert(ctx, store.Comments, &comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if err := b.Refresh(ctx); err != nil {
		// The write landed; the stale tree corrects on the next refresh.
		b.logger.Warn("Failed to refresh thread after create", zap.Error(err))
	}
	return &comment, nil
}

func (b *Builder) fetchComment(ctx context.Context, commentID string) (*models.Comment, error) {
	var comments []models.Comment
	q := store.Query{
		Filters: []store.Filter{store.Eq("id", commentID)},
		Limit:   1,
	}
	if err := b.gw.Query(ctx, store.Comments, q, &comments); err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, store.ErrNotFound
	}
	return &comments[0], nil
}

// CountComments returns only the comment count for a post, for list views
// that show a count without loading the thread.
func CountComments(ctx context.Context, gw store.Gateway, postID string) (int64, error) {
	return gw.Count(ctx, store.Comments, []store.Filter{store.Eq("post_id", postID)})
}
