package docstore

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"notes-go/internal/notes"
)

var errClosed = errors.New("document store closed")

// matches reports whether fields satisfy every equality filter.
func matches(fields notes.Fields, filters []notes.Filter) bool {
	for _, f := range filters {
		if !equalValues(fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func equalValues(got, want any) bool {
	if want == nil {
		return got == nil
	}
	if got == nil {
		return false
	}
	if a, ok := number(got); ok {
		b, ok := number(want)
		return ok && a == b
	}
	if a, ok := got.(time.Time); ok {
		b, ok := want.(time.Time)
		return ok && a.Equal(b)
	}
	switch a := got.(type) {
	case string:
		b, ok := want.(string)
		return ok && a == b
	case bool:
		b, ok := want.(bool)
		return ok && a == b
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// rank orders values of different kinds: null, booleans, numbers,
// timestamps, strings, then everything else.
func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := number(v); ok {
		return 2
	}
	switch v.(type) {
	case bool:
		return 1
	case time.Time:
		return 3
	case string:
		return 4
	}
	return 5
}

func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case 2:
		x, _ := number(a)
		y, _ := number(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case 3:
		return a.(time.Time).Compare(b.(time.Time))
	case 4:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

// sortDocuments orders docs by the query's order clauses, then by ID.
func sortDocuments(docs []notes.Document, orders []notes.Order) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range orders {
			c := compareValues(docs[i].Fields[o.Field], docs[j].Fields[o.Field])
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return docs[i].ID < docs[j].ID
	})
}

// applyQuery filters, sorts and limits docs in place.
func applyQuery(docs []notes.Document, q notes.Query) []notes.Document {
	out := docs[:0]
	for _, d := range docs {
		if matches(d.Fields, q.Filters) {
			out = append(out, d)
		}
	}
	sortDocuments(out, q.OrderBy)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
