package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names used with the gateway.
const (
	Posts         = "posts"
	Comments      = "comments"
	PostLikes     = "post_likes"
	CommentLikes  = "comment_likes"
	Notifications = "notifications"
)

// Sentinel errors shared by all gateway implementations.
var (
	// ErrNotFound is returned when a single-row read matches nothing.
	ErrNotFound = errors.New("row not found")
	// ErrConflict is returned when an insert violates a uniqueness rule.
	ErrConflict = errors.New("row already exists")
	// ErrSubscribeUnavailable is returned when no change-event transport
	// is configured; callers degrade to read-only.
	ErrSubscribeUnavailable = errors.New("change subscription unavailable")
)

// FilterOp is a comparison operator usable in a Filter.
type FilterOp string

// Filter operators
const (
	OpEq       FilterOp = "eq"
	OpGte      FilterOp = "gte"
	OpContains FilterOp = "contains"
)

// Filter restricts a read, update or delete to matching rows.
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

// Eq builds an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Gte builds a greater-or-equal filter.
func Gte(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpGte, Value: value}
}

// Contains builds a substring-match filter.
func Contains(field string, value string) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

// Query describes a filtered, ordered, bounded read.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// ChangeOp identifies the kind of a change event.
type ChangeOp string

// Change operations
const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// Event is one change notification for a subscribed collection. Row holds
// the JSON encoding of the affected row (for deletes, at least its id).
type Event struct {
	Op  ChangeOp        `json:"op"`
	Row json.RawMessage `json:"row"`
}

// Subscription is a live change-event stream for one collection. Events is
// closed after Close returns; Close is idempotent.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Gateway is the remote store boundary: filtered reads, single-row writes
// and per-collection change subscriptions. Insert fills the canonical
// identifier and creation timestamp on the passed row.
type Gateway interface {
	Query(ctx context.Context, collection string, q Query, dest interface{}) error
	Count(ctx context.Context, collection string, filters []Filter) (int64, error)
	Insert(ctx context.Context, collection string, row interface{}) error
	Update(ctx context.Context, collection string, filters []Filter, patch map[string]interface{}) error
	Delete(ctx context.Context, collection string, filters []Filter) error
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}
