package feed

import (
	"context"

	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/internal/store"
)

// FetchPost loads a single post. A missing post is store.ErrNotFound, kept
// distinct from transport failure so callers can show a targeted message.
func FetchPost(ctx context.Context, gw store.Gateway, postID string) (*models.Post, error) {
	var posts []models.Post
	q := store.Query{
		Filters: []store.Filter{store.Eq("id", postID)},
		Limit:   1,
	}
	if err := gw.Query(ctx, store.Posts, q, &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, store.ErrNotFound
	}
	return &posts[0], nil
}

// Search returns recent posts whose body contains the keyword.
func Search(ctx context.Context, gw store.Gateway, keyword string, limit int) ([]models.Post, error) {
	var posts []models.Post
	q := store.Query{
		Filters: []store.Filter{store.Contains("content", keyword)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	}
	if err := gw.Query(ctx, store.Posts, q, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}
