package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Gateway. It backs the test suite and the
// offline mode of the runner, where the app serves seeded demo data
// instead of a real database. Rows are kept as decoded JSON objects so
// the same filter semantics apply to every collection.
type Memory struct {
	mu          sync.Mutex
	collections map[string][]map[string]interface{}
	subs        map[string][]*memorySubscription
	failures    map[string]error
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]map[string]interface{}),
		subs:        make(map[string][]*memorySubscription),
		failures:    make(map[string]error),
	}
}

// FailNext arranges for the next call of the named operation ("query",
// "insert", "update" or "delete") to fail with err. Consumed once.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *Memory) takeFailure(op string) error {
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

// keyFields lists the identifying fields per collection; rows matching an
// existing row on all key fields are insert conflicts.
func keyFields(collection string) []string {
	switch collection {
	case PostLikes:
		return []string{"post_id", "user_id"}
	case CommentLikes:
		return []string{"comment_id", "user_id"}
	default:
		return []string{"id"}
	}
}

// Query implements Gateway.
func (m *Memory) Query(ctx context.Context, collection string, q Query, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("query"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := m.match(collection, q.Filters)
	if q.OrderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			less := compareValues(rows[i][q.OrderBy], rows[j][q.OrderBy]) < 0
			if q.Desc {
				return !less && compareValues(rows[i][q.OrderBy], rows[j][q.OrderBy]) != 0
			}
			return less
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Count implements Gateway.
func (m *Memory) Count(ctx context.Context, collection string, filters []Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("query"); err != nil {
		return 0, err
	}
	return int64(len(m.match(collection, filters))), nil
}

// Insert implements Gateway. Identifier and timestamp are assigned here
// when absent, mirroring the store-side defaults of the real backend, and
// written back onto the caller's row.
func (m *Memory) Insert(ctx context.Context, collection string, row interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("insert"); err != nil {
		return err
	}

	obj, err := toObject(row)
	if err != nil {
		return err
	}
	if hasField(collection, "id") {
		if id, _ := obj["id"].(string); id == "" {
			obj["id"] = uuid.NewString()
		}
	}
	if created, _ := obj["created_at"].(string); created == "" || strings.HasPrefix(created, "0001-01-01") {
		obj["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	for _, existing := range m.collections[collection] {
		if sameKey(obj, existing, keyFields(collection)) {
			return ErrConflict
		}
	}

	m.collections[collection] = append(m.collections[collection], obj)
	m.publish(collection, ChangeInsert, obj)

	// Reflect canonical values back onto the caller's row.
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, row)
}

// Update implements Gateway.
func (m *Memory) Update(ctx context.Context, collection string, filters []Filter, patch map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("update"); err != nil {
		return err
	}

	// Round-trip the patch through JSON so values compare like stored ones.
	normalized, err := toObject(patch)
	if err != nil {
		return err
	}

	for _, row := range m.match(collection, filters) {
		for k, v := range normalized {
			row[k] = v
		}
		m.publish(collection, ChangeUpdate, row)
	}
	return nil
}

// Delete implements Gateway. Deleting nothing is not an error.
func (m *Memory) Delete(ctx context.Context, collection string, filters []Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("delete"); err != nil {
		return err
	}

	kept := m.collections[collection][:0]
	for _, row := range m.collections[collection] {
		if rowMatches(row, filters) {
			m.publish(collection, ChangeDelete, row)
			continue
		}
		kept = append(kept, row)
	}
	m.collections[collection] = kept
	return nil
}

// Subscribe implements Gateway.
func (m *Memory) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &memorySubscription{
		owner:      m,
		collection: collection,
		events:     make(chan Event, 64),
	}
	m.subs[collection] = append(m.subs[collection], sub)
	return sub, nil
}

// Emit injects a change event as if it arrived from the remote store.
// Tests use it to replay event sequences, including duplicates.
func (m *Memory) Emit(collection string, op ChangeOp, row interface{}) error {
	obj, err := toObject(row)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publish(collection, op, obj)
	return nil
}

func (m *Memory) publish(collection string, op ChangeOp, row map[string]interface{}) {
	raw, err := json.Marshal(row)
	if err != nil {
		return
	}
	ev := Event{Op: op, Row: raw}
	for _, sub := range m.subs[collection] {
		select {
		case sub.events <- ev:
		default:
			// Slow consumer; it converges on its next full read.
		}
	}
}

func (m *Memory) match(collection string, filters []Filter) []map[string]interface{} {
	var out []map[string]interface{}
	for _, row := range m.collections[collection] {
		if rowMatches(row, filters) {
			out = append(out, row)
		}
	}
	return out
}

func (m *Memory) removeSub(sub *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[sub.collection]
	for i, s := range subs {
		if s == sub {
			m.subs[sub.collection] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func rowMatches(row map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		got, ok := row[f.Field]
		want := normalizeValue(f.Value)
		switch f.Op {
		case OpGte:
			if !ok || compareValues(got, want) < 0 {
				return false
			}
		case OpContains:
			s, _ := got.(string)
			sub, _ := want.(string)
			if !strings.Contains(s, sub) {
				return false
			}
		default:
			if compareValues(got, want) != 0 {
				return false
			}
		}
	}
	return true
}

// compareValues orders two decoded JSON values. Timestamps compare as
// times, numbers as floats, everything else by string form.
func compareValues(a, b interface{}) int {
	if ta, ok := parseTime(a); ok {
		if tb, ok := parseTime(b); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	sa, sb := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	return strings.Compare(sa, sb)
}

func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func normalizeValue(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func toObject(row interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func sameKey(a, b map[string]interface{}, fields []string) bool {
	for _, f := range fields {
		if compareValues(a[f], b[f]) != 0 {
			return false
		}
	}
	return true
}

func hasField(collection, field string) bool {
	for _, f := range keyFields(collection) {
		if f == field {
			return true
		}
	}
	return false
}

// memorySubscription is an in-process Subscription.
type memorySubscription struct {
	owner      *Memory
	collection string
	events     chan Event
	closeOnce  sync.Once
}

// Events implements Subscription.
func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

// Close implements Subscription.
func (s *memorySubscription) Close() {
	s.closeOnce.Do(func() {
		s.owner.removeSub(s)
		close(s.events)
	})
}
