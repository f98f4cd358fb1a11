package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type testRow struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes_count"`
	CreatedAt time.Time `json:"created_at"`
}

func insertRows(t *testing.T, m *Memory, collection string, rows ...testRow) {
	t.Helper()
	for i := range rows {
		if err := m.Insert(context.Background(), collection, &rows[i]); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
}

func TestMemoryQuery(t *testing.T) {
	now := time.Now().UTC()
	seed := []testRow{
		{ID: "a", Content: "給料の話", Likes: 3, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "b", Content: "残業の話", Likes: 25, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "c", Content: "転職と給料の話", Likes: 10, CreatedAt: now.Add(-time.Hour)},
	}

	tests := []struct {
		name    string
		q       Query
		wantIDs []string
	}{
		{
			name:    "no filters returns everything",
			q:       Query{},
			wantIDs: []string{"a", "b", "c"},
		},
		{
			name:    "eq filter",
			q:       Query{Filters: []Filter{Eq("id", "b")}},
			wantIDs: []string{"b"},
		},
		{
			name:    "gte on a number",
			q:       Query{Filters: []Filter{Gte("likes_count", 10)}},
			wantIDs: []string{"b", "c"},
		},
		{
			name:    "gte on a timestamp",
			q:       Query{Filters: []Filter{Gte("created_at", now.Add(-90 * time.Minute))}},
			wantIDs: []string{"c"},
		},
		{
			name:    "contains on content",
			q:       Query{Filters: []Filter{Contains("content", "給料")}},
			wantIDs: []string{"a", "c"},
		},
		{
			name:    "order by created_at descending",
			q:       Query{OrderBy: "created_at", Desc: true},
			wantIDs: []string{"c", "b", "a"},
		},
		{
			name:    "order with limit",
			q:       Query{OrderBy: "likes_count", Desc: true, Limit: 2},
			wantIDs: []string{"b", "c"},
		},
		{
			name:    "combined filters",
			q:       Query{Filters: []Filter{Gte("likes_count", 5), Contains("content", "話")}, OrderBy: "created_at"},
			wantIDs: []string{"b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemory()
			insertRows(t, m, Posts, seed...)

			var got []testRow
			if err := m.Query(context.Background(), Posts, tt.q, &got); err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("row %d: got %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryInsert(t *testing.T) {
	t.Run("assigns id and timestamp", func(t *testing.T) {
		m := NewMemory()
		row := testRow{Content: "採番のテスト"}
		if err := m.Insert(context.Background(), Posts, &row); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if row.ID == "" {
			t.Error("id not assigned")
		}
		if row.CreatedAt.IsZero() {
			t.Error("created_at not assigned")
		}
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		m := NewMemory()
		insertRows(t, m, Posts, testRow{ID: "a"})
		row := testRow{ID: "a"}
		if err := m.Insert(context.Background(), Posts, &row); !errors.Is(err, ErrConflict) {
			t.Fatalf("got %v, want ErrConflict", err)
		}
	})

	t.Run("like rows conflict on the composite key", func(t *testing.T) {
		m := NewMemory()
		type likeRow struct {
			PostID string `json:"post_id"`
			UserID string `json:"user_id"`
		}
		first := likeRow{PostID: "p1", UserID: "u1"}
		if err := m.Insert(context.Background(), PostLikes, &first); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		dup := likeRow{PostID: "p1", UserID: "u1"}
		if err := m.Insert(context.Background(), PostLikes, &dup); !errors.Is(err, ErrConflict) {
			t.Fatalf("got %v, want ErrConflict", err)
		}
		other := likeRow{PostID: "p1", UserID: "u2"}
		if err := m.Insert(context.Background(), PostLikes, &other); err != nil {
			t.Fatalf("second user refused: %v", err)
		}
	})
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update patches matching rows", func(t *testing.T) {
		m := NewMemory()
		insertRows(t, m, Posts, testRow{ID: "a", Likes: 1}, testRow{ID: "b", Likes: 1})

		patch := map[string]interface{}{"likes_count": 9}
		if err := m.Update(ctx, Posts, []Filter{Eq("id", "a")}, patch); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		var rows []testRow
		if err := m.Query(ctx, Posts, Query{OrderBy: "id"}, &rows); err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if rows[0].Likes != 9 || rows[1].Likes != 1 {
			t.Errorf("got likes [%d %d], want [9 1]", rows[0].Likes, rows[1].Likes)
		}
	})

	t.Run("delete removes matches, nothing matched is fine", func(t *testing.T) {
		m := NewMemory()
		insertRows(t, m, Posts, testRow{ID: "a"}, testRow{ID: "b"})

		if err := m.Delete(ctx, Posts, []Filter{Eq("id", "a")}); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := m.Delete(ctx, Posts, []Filter{Eq("id", "ghost")}); err != nil {
			t.Fatalf("no-match delete errored: %v", err)
		}

		n, err := m.Count(ctx, Posts, nil)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 1 {
			t.Errorf("got %d rows, want 1", n)
		}
	})
}

func TestMemorySubscribe(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.Subscribe(ctx, Posts)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	row := testRow{ID: "a", Content: "購読のテスト"}
	if err := m.Insert(ctx, Posts, &row); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := m.Update(ctx, Posts, []Filter{Eq("id", "a")}, map[string]interface{}{"likes_count": 1}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := m.Delete(ctx, Posts, []Filter{Eq("id", "a")}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	wantOps := []ChangeOp{ChangeInsert, ChangeUpdate, ChangeDelete}
	for i, want := range wantOps {
		select {
		case ev := <-sub.Events():
			if ev.Op != want {
				t.Errorf("event %d: got op %q, want %q", i, ev.Op, want)
			}
			var decoded testRow
			if err := json.Unmarshal(ev.Row, &decoded); err != nil {
				t.Fatalf("event %d: undecodable row: %v", i, err)
			}
			if decoded.ID != "a" {
				t.Errorf("event %d: got row id %q, want a", i, decoded.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestMemorySubscriptionClose(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.Subscribe(ctx, Posts)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	sub.Close()
	sub.Close() // repeated close is safe

	if _, ok := <-sub.Events(); ok {
		t.Error("events channel still open after Close")
	}

	// Writes after close must not publish to the closed channel.
	row := testRow{ID: "a"}
	if err := m.Insert(ctx, Posts, &row); err != nil {
		t.Fatalf("Insert after close failed: %v", err)
	}
}

func TestMemoryFailNext(t *testing.T) {
	m := NewMemory()
	cause := errors.New("store unavailable")

	m.FailNext("query", cause)
	var rows []testRow
	if err := m.Query(context.Background(), Posts, Query{}, &rows); !errors.Is(err, cause) {
		t.Fatalf("got %v, want the injected error", err)
	}
	// Consumed once.
	if err := m.Query(context.Background(), Posts, Query{}, &rows); err != nil {
		t.Fatalf("second query still failing: %v", err)
	}
}

func TestMemoryEmit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sub, err := m.Subscribe(ctx, Posts)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if err := m.Emit(Posts, ChangeInsert, testRow{ID: "ghost"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Op != ChangeInsert {
			t.Errorf("got op %q, want insert", ev.Op)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the emitted event")
	}

	// The emitted row was never stored.
	n, err := m.Count(ctx, Posts, nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Emit stored %d rows", n)
	}
}
