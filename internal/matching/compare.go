// Package matching evaluates queries against records and orders values for
// sorting. It understands both JSON-shaped values (float64, string, nested
// maps) and the richer Go values produced by the document mapper (any
// numeric kind, time.Time, []byte).
package matching

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/types"
)

// type ranks used to order values of different kinds
const (
	rankNull = iota
	rankNumber
	rankString
	rankObject
	rankArray
	rankBinary
	rankBool
	rankDate
	rankOther
)

func rank(v any) int {
	if validation.IsNil(v) {
		return rankNull
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	case time.Time:
		return rankDate
	case []byte:
		return rankBinary
	}
	if validation.IsNumber(v) {
		return rankNumber
	}
	if _, ok := asMap(v); ok {
		return rankObject
	}
	if validation.IsSlice(v) {
		return rankArray
	}
	return rankOther
}

// Compare orders two values, returning -1, 0 or 1. Values of different kinds
// are ordered by kind: null < numbers < strings < objects < arrays < binary <
// booleans < dates.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		fa, _ := validation.ToFloat(a)
		fb, _ := validation.ToFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case rankDate:
		return a.(time.Time).Compare(b.(time.Time))
	case rankBinary:
		return bytes.Compare(a.([]byte), b.([]byte))
	case rankArray:
		sa, _ := validation.SliceValues(a)
		sb, _ := validation.SliceValues(b)
		for i := 0; i < len(sa) && i < len(sb); i++ {
			if c := Compare(sa[i], sb[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(sa), len(sb))
	case rankObject:
		ma, _ := asMap(a)
		mb, _ := asMap(b)
		ka, kb := sortedKeys(ma), sortedKeys(mb)
		for i := 0; i < len(ka) && i < len(kb); i++ {
			if c := strings.Compare(ka[i], kb[i]); c != 0 {
				return c
			}
			if c := Compare(ma[ka[i]], mb[kb[i]]); c != 0 {
				return c
			}
		}
		return cmpInt(len(ka), len(kb))
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	return strings.Compare(fmt.Sprintf("%T%v", a, a), fmt.Sprintf("%T%v", b, b))
}

// Equal reports whether two values are equal under Compare
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.Record:
		return m, true
	case types.Query:
		return m, true
	}
	return nil, false
}

// Lookup resolves a dot separated path inside a record. Numeric path
// segments index into arrays.
func Lookup(doc map[string]any, path string) (any, bool) {
	if v, ok := doc[path]; ok {
		return v, true
	}

	var current any = doc
	for _, part := range strings.Split(path, ".") {
		if m, ok := asMap(current); ok {
			v, exists := m[part]
			if !exists {
				return nil, false
			}
			current = v
			continue
		}
		if s, ok := validation.SliceValues(current); ok {
			idx, isIndex := parseIndex(part)
			if !isIndex || idx >= len(s) {
				return nil, false
			}
			current = s[idx]
			continue
		}
		return nil, false
	}
	return current, true
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// SortRecords orders records in place by the given sort clauses. The sort is
// stable so records with equal keys keep their natural order.
func SortRecords(records []types.Record, clauses []types.SortField) {
	if len(clauses) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, clause := range clauses {
			vi, _ := Lookup(records[i], clause.Field)
			vj, _ := Lookup(records[j], clause.Field)
			c := Compare(vi, vj)
			if c == 0 {
				continue
			}
			if clause.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
