package matching

import (
	"testing"
	"time"

	"github.com/arthur-debert/nanodm/types"
)

func TestMatcher(t *testing.T) {
	record := map[string]any{
		"_id":   "a1",
		"name":  "Ada",
		"age":   36.0,
		"tags":  []any{"math", "engines"},
		"addr":  map[string]any{"city": "London"},
		"admin": false,
	}

	tests := []struct {
		name  string
		query types.Query
		want  bool
	}{
		{"empty query", types.Query{}, true},
		{"equality", types.Query{"name": "Ada"}, true},
		{"equality mismatch", types.Query{"name": "Bob"}, false},
		{"int literal against float", types.Query{"age": 36}, true},
		{"missing field", types.Query{"missing": "x"}, false},
		{"array contains", types.Query{"tags": "math"}, true},
		{"array exact", types.Query{"tags": []any{"math", "engines"}}, true},
		{"dot path", types.Query{"addr.city": "London"}, true},
		{"array index path", types.Query{"tags.1": "engines"}, true},
		{"$gt", types.Query{"age": map[string]any{"$gt": 30}}, true},
		{"$gte and $lt", types.Query{"age": map[string]any{"$gte": 36, "$lt": 40}}, true},
		{"$lt fails", types.Query{"age": map[string]any{"$lt": 10}}, false},
		{"$gt across kinds", types.Query{"name": map[string]any{"$gt": 1}}, false},
		{"$ne", types.Query{"name": map[string]any{"$ne": "Bob"}}, true},
		{"$ne on missing field", types.Query{"missing": map[string]any{"$ne": 1}}, true},
		{"$in", types.Query{"_id": map[string]any{"$in": []any{"a1", "b2"}}}, true},
		{"$in typed slice", types.Query{"_id": map[string]any{"$in": []string{"z"}}}, false},
		{"$in against array", types.Query{"tags": map[string]any{"$in": []any{"engines"}}}, true},
		{"$nin", types.Query{"name": map[string]any{"$nin": []any{"Bob"}}}, true},
		{"$exists true", types.Query{"addr": map[string]any{"$exists": true}}, true},
		{"$exists false", types.Query{"missing": map[string]any{"$exists": false}}, true},
		{"$regex", types.Query{"name": map[string]any{"$regex": "^A"}}, true},
		{"$regex on array", types.Query{"tags": map[string]any{"$regex": "^eng"}}, true},
		{"$or", types.Query{"$or": []any{map[string]any{"name": "Bob"}, map[string]any{"age": 36}}}, true},
		{"$and", types.Query{"$and": []any{map[string]any{"name": "Ada"}, map[string]any{"admin": true}}}, false},
		{"$not", types.Query{"$not": map[string]any{"name": "Bob"}}, true},
		{"boolean equality", types.Query{"admin": false}, true},
	}

	m := NewMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(record, tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Match(%v) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestMatcherErrors(t *testing.T) {
	m := NewMatcher()
	record := map[string]any{"a": 1.0}

	for name, q := range map[string]types.Query{
		"unknown operator":     {"a": map[string]any{"$near": 1}},
		"unknown top level":    {"$where": "1"},
		"$in without array":    {"a": map[string]any{"$in": 1}},
		"$exists not boolean":  {"a": map[string]any{"$exists": "yes"}},
		"invalid regex":        {"a": map[string]any{"$regex": "("}},
		"$or without array":    {"$or": map[string]any{"a": 1}},
		"$or with non queries": {"$or": []any{1}},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Match(record, q); err == nil {
				t.Errorf("expected error for %v", q)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"numbers", 1, 2.5, -1},
		{"equal numbers", int64(3), 3.0, 0},
		{"strings", "b", "a", 1},
		{"null before number", nil, 0, -1},
		{"number before string", 5, "a", -1},
		{"dates", now, now.Add(time.Second), -1},
		{"bools", false, true, -1},
		{"arrays", []any{1, 2}, []any{1, 3}, -1},
		{"shorter array first", []any{1}, []any{1, 2}, -1},
		{"maps", map[string]any{"a": 1}, map[string]any{"a": 1}, 0},
		{"bytes", []byte{1}, []byte{2}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}

	t.Run("opaque values order consistently", func(t *testing.T) {
		type opaque struct{ n int }
		x, y := opaque{1}, opaque{2}
		if got := Compare(x, x); got != 0 {
			t.Errorf("Compare(x, x) = %d, want 0", got)
		}
		xy, yx := Compare(x, y), Compare(y, x)
		if xy == 0 || xy != -yx {
			t.Errorf("Compare(x, y) = %d, Compare(y, x) = %d", xy, yx)
		}
	})
}

func TestSortRecords(t *testing.T) {
	records := []types.Record{
		{"_id": "1", "group": "b", "n": 2.0},
		{"_id": "2", "group": "a", "n": 5.0},
		{"_id": "3", "group": "b", "n": 1.0},
		{"_id": "4", "group": "a", "n": 5.0},
	}

	SortRecords(records, []types.SortField{{Field: "group"}, {Field: "n", Descending: true}})

	var got []string
	for _, r := range records {
		got = append(got, r["_id"].(string))
	}
	want := []string{"2", "4", "1", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got order %v, want %v", got, want)
		}
	}
}
