package matching

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/types"
)

// Matcher evaluates queries against records. Compiled regular expressions
// are cached per matcher. A Matcher is safe for concurrent use.
type Matcher struct {
	mu      sync.Mutex
	regexps map[string]*regexp.Regexp
}

// NewMatcher creates a new query matcher
func NewMatcher() *Matcher {
	return &Matcher{regexps: make(map[string]*regexp.Regexp)}
}

// Match reports whether the record satisfies every condition of the query.
// An empty query matches everything.
func (m *Matcher) Match(record map[string]any, query types.Query) (bool, error) {
	for key, cond := range query {
		ok, err := m.matchKey(record, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) matchKey(record map[string]any, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or":
		subs, ok := validation.SliceValues(cond)
		if !ok {
			return false, fmt.Errorf("%s expects an array of queries", key)
		}
		for _, sub := range subs {
			q, ok := asMap(sub)
			if !ok {
				return false, fmt.Errorf("%s expects an array of queries, got %T", key, sub)
			}
			matched, err := m.Match(record, q)
			if err != nil {
				return false, err
			}
			if key == "$or" && matched {
				return true, nil
			}
			if key == "$and" && !matched {
				return false, nil
			}
		}
		return key == "$and", nil
	case "$not":
		q, ok := asMap(cond)
		if !ok {
			return false, fmt.Errorf("$not expects a query, got %T", cond)
		}
		matched, err := m.Match(record, q)
		return !matched, err
	}

	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("unknown top level operator %s", key)
	}

	value, exists := Lookup(record, key)
	if ops, ok := operatorDocument(cond); ok {
		for op, arg := range ops {
			matched, err := m.matchOperator(value, exists, op, arg)
			if err != nil || !matched {
				return false, err
			}
		}
		return true, nil
	}
	return exists && matchesEquality(value, cond), nil
}

// operatorDocument returns cond as a map when every key is an operator
func operatorDocument(cond any) (map[string]any, bool) {
	doc, ok := asMap(cond)
	if !ok || len(doc) == 0 {
		return nil, false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return doc, true
}

// matchesEquality compares a record value with a query literal. An array
// value matches a scalar literal when any element equals it.
func matchesEquality(value, literal any) bool {
	if Equal(value, literal) {
		return true
	}
	if validation.IsSlice(literal) {
		return false
	}
	if elems, ok := validation.SliceValues(value); ok {
		for _, e := range elems {
			if Equal(e, literal) {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) matchOperator(value any, exists bool, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return exists && matchesEquality(value, arg), nil
	case "$ne":
		return !exists || !matchesEquality(value, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false, nil
		}
		return anyElement(value, func(v any) bool { return compareOp(op, v, arg) }), nil
	case "$in", "$nin":
		candidates, ok := validation.SliceValues(arg)
		if !ok {
			return false, fmt.Errorf("%s expects an array, got %T", op, arg)
		}
		found := false
		if exists {
			for _, c := range candidates {
				if matchesEquality(value, c) {
					found = true
					break
				}
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			return false, fmt.Errorf("$exists expects a boolean, got %T", arg)
		}
		return exists == want, nil
	case "$regex":
		re, err := m.regexp(arg)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
		return anyElement(value, func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	}
	return false, fmt.Errorf("unknown operator %s", op)
}

func compareOp(op string, value, arg any) bool {
	if rank(value) != rank(arg) {
		return false
	}
	c := Compare(value, arg)
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

// anyElement applies fn to a scalar value, or to each element of an array value
func anyElement(value any, fn func(any) bool) bool {
	if elems, ok := validation.SliceValues(value); ok {
		for _, e := range elems {
			if fn(e) {
				return true
			}
		}
		return false
	}
	return fn(value)
}

func (m *Matcher) regexp(arg any) (*regexp.Regexp, error) {
	switch p := arg.(type) {
	case *regexp.Regexp:
		return p, nil
	case string:
		m.mu.Lock()
		defer m.mu.Unlock()
		if re, ok := m.regexps[p]; ok {
			return re, nil
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid $regex %q: %w", p, err)
		}
		m.regexps[p] = re
		return re, nil
	}
	return nil, fmt.Errorf("$regex expects a string pattern, got %T", arg)
}
