package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shokuba/honne/internal/models"
	"github.com/shokuba/honne/internal/store"
)

func seedPosts(t *testing.T, gw *store.Memory, posts ...models.Post) {
	t.Helper()
	for i := range posts {
		if err := gw.Insert(context.Background(), store.Posts, &posts[i]); err != nil {
			t.Fatalf("failed to seed post: %v", err)
		}
	}
}

func postEvent(t *testing.T, op store.ChangeOp, p models.Post) store.Event {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("failed to encode post: %v", err)
	}
	return store.Event{Op: op, Row: raw}
}

func TestSynchronizerBaselineOrder(t *testing.T) {
	gw := store.NewMemory()
	now := time.Now().UTC()
	seedPosts(t, gw,
		models.Post{ID: "old", Category: models.CategorySalary, CreatedAt: now.Add(-2 * time.Hour)},
		models.Post{ID: "new", Category: models.CategoryBonus, CreatedAt: now.Add(-time.Hour)},
	)

	s := NewSynchronizer(gw, "")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	posts := s.Posts()
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "new" || posts[1].ID != "old" {
		t.Errorf("got order [%s %s], want [new old]", posts[0].ID, posts[1].ID)
	}
}

func TestSynchronizerEventApplication(t *testing.T) {
	base := models.Post{ID: "p1", Category: models.CategorySalary, Content: "base"}

	tests := []struct {
		name    string
		events  []store.Event
		wantIDs []string
	}{
		{
			name: "insert prepends",
			events: []store.Event{
				postEvent(t, store.ChangeInsert, models.Post{ID: "p2", Category: models.CategoryBonus}),
			},
			wantIDs: []string{"p2", "p1"},
		},
		{
			name: "duplicate insert does not duplicate",
			events: []store.Event{
				postEvent(t, store.ChangeInsert, models.Post{ID: "p2", Category: models.CategoryBonus}),
				postEvent(t, store.ChangeInsert, models.Post{ID: "p2", Category: models.CategoryBonus}),
			},
			wantIDs: []string{"p2", "p1"},
		},
		{
			name: "echo of cached post replaces in place",
			events: []store.Event{
				postEvent(t, store.ChangeInsert, models.Post{ID: "p1", Category: models.CategorySalary, Content: "echo"}),
			},
			wantIDs: []string{"p1"},
		},
		{
			name: "update for unknown id is ignored",
			events: []store.Event{
				postEvent(t, store.ChangeUpdate, models.Post{ID: "ghost"}),
			},
			wantIDs: []string{"p1"},
		},
		{
			name: "delete removes, repeated delete is a no-op",
			events: []store.Event{
				postEvent(t, store.ChangeDelete, models.Post{ID: "p1"}),
				postEvent(t, store.ChangeDelete, models.Post{ID: "p1"}),
			},
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := store.NewMemory()
			seedPosts(t, gw, base)

			s := NewSynchronizer(gw, "")
			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer s.Stop()

			for _, ev := range tt.events {
				s.Apply(ev)
			}

			posts := s.Posts()
			if len(posts) != len(tt.wantIDs) {
				t.Fatalf("got %d posts, want %d", len(posts), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if posts[i].ID != id {
					t.Errorf("position %d: got %q, want %q", i, posts[i].ID, id)
				}
			}
		})
	}
}

func TestSynchronizerIdempotentReplay(t *testing.T) {
	gw := store.NewMemory()
	s := NewSynchronizer(gw, "")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	insert := postEvent(t, store.ChangeInsert, models.Post{ID: "p1", Category: models.CategoryMurmur, LikesCount: 1})
	update := postEvent(t, store.ChangeUpdate, models.Post{ID: "p1", Category: models.CategoryMurmur, LikesCount: 2})

	s.Apply(insert)
	s.Apply(update)
	once := s.Posts()

	s.Apply(insert)
	s.Apply(update)
	twice := s.Posts()

	if len(once) != len(twice) {
		t.Fatalf("replay changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID || once[i].LikesCount != twice[i].LikesCount {
			t.Errorf("replay changed state at %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestSynchronizerUpdateKeepsPosition(t *testing.T) {
	gw := store.NewMemory()
	now := time.Now().UTC()
	seedPosts(t, gw,
		models.Post{ID: "a", Category: models.CategorySalary, CreatedAt: now.Add(-1 * time.Hour)},
		models.Post{ID: "b", Category: models.CategorySalary, LikesCount: 1, CreatedAt: now.Add(-2 * time.Hour)},
		models.Post{ID: "c", Category: models.CategorySalary, CreatedAt: now.Add(-3 * time.Hour)},
	)

	s := NewSynchronizer(gw, "")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	s.Apply(postEvent(t, store.ChangeUpdate, models.Post{ID: "b", Category: models.CategorySalary, LikesCount: 42, CreatedAt: now}))

	posts := s.Posts()
	if posts[1].ID != "b" {
		t.Fatalf("update moved the row: got %q at position 1", posts[1].ID)
	}
	if posts[1].LikesCount != 42 {
		t.Errorf("got likes_count %d, want 42", posts[1].LikesCount)
	}
}

func TestSynchronizerCategorySwitch(t *testing.T) {
	gw := store.NewMemory()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedPosts(t, gw, models.Post{
			ID:        string(rune('a' + i)),
			Category:  models.CategorySalary,
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	seedPosts(t, gw, models.Post{ID: "career", Category: models.CategoryJobChange, CreatedAt: now})

	s := NewSynchronizer(gw, models.CategorySalary)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if got := len(s.Posts()); got != 5 {
		t.Fatalf("got %d posts before switch, want 5", got)
	}

	if err := s.SetCategory(context.Background(), models.CategoryJobChange); err != nil {
		t.Fatalf("SetCategory failed: %v", err)
	}

	posts := s.Posts()
	if len(posts) != 1 || posts[0].ID != "career" {
		t.Fatalf("got %d posts after switch, want only the career post", len(posts))
	}

	// A late-arriving insert for the old filter is dropped, not appended.
	s.Apply(postEvent(t, store.ChangeInsert, models.Post{ID: "late", Category: models.CategorySalary}))
	if got := len(s.Posts()); got != 1 {
		t.Errorf("late event for old category was applied: got %d posts, want 1", got)
	}
}

func TestSynchronizerFailedInitialRead(t *testing.T) {
	gw := store.NewMemory()
	readErr := errors.New("store unavailable")
	gw.FailNext("query", readErr)

	s := NewSynchronizer(gw, "")
	if err := s.Start(context.Background()); !errors.Is(err, readErr) {
		t.Fatalf("Start error = %v, want %v", err, readErr)
	}
	defer s.Stop()

	if got := len(s.Posts()); got != 0 {
		t.Errorf("got %d posts after failed read, want 0", got)
	}
	if !errors.Is(s.Err(), readErr) {
		t.Errorf("Err() = %v, want %v", s.Err(), readErr)
	}
}

func TestSynchronizerRefetchFailureKeepsCache(t *testing.T) {
	gw := store.NewMemory()
	seedPosts(t, gw, models.Post{ID: "p1", Category: models.CategoryMurmur})

	s := NewSynchronizer(gw, "")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	gw.FailNext("query", errors.New("transient"))
	if err := s.Refetch(context.Background()); err == nil {
		t.Fatal("Refetch succeeded, want error")
	}

	// Stale-but-present beats empty.
	if got := len(s.Posts()); got != 1 {
		t.Errorf("got %d posts after failed refetch, want 1", got)
	}
}
