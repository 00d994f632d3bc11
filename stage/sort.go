package stage

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/ident"
)

type sortPair struct {
	field string
	dir   any
}

// SortKey is a single $sort term in a form the planner can hand to the
// executor for spec §4.7's post-sort step, independent of the SQL
// ORDER BY text TranslateSort also builds from the same parse.
type SortKey struct {
	Field      string
	Descending bool
}

// ParseSortKeys decodes a $sort payload into an ordered list of keys,
// applying the same order-preserving-array-required rule TranslateSort
// does (see its doc comment) so both the SQL ORDER BY clause and the
// executor's in-memory post-sort are built from one parse.
func ParseSortKeys(payload any) ([]SortKey, error) {
	pairs, err := sortSpecPairs(payload)
	if err != nil {
		return nil, err
	}
	out := make([]SortKey, 0, len(pairs))
	for _, p := range pairs {
		dir, ok := p.dir.(float64)
		if !ok || (dir != 1 && dir != -1) {
			return nil, document.NewMalformedStage("$sort direction must be 1 or -1")
		}
		out = append(out, SortKey{Field: p.field, Descending: dir == -1})
	}
	return out, nil
}

// TranslateSort implements $sort (spec §4.5): each {field: ±1} entry
// becomes an ORDER BY term; non-±1 directions raise MalformedStage.
//
// Sort key order is semantically significant — unlike $match/$project,
// reordering sort keys changes the result — and Go's map[string]any
// cannot recover the caller's original JSON key order. Rather than
// silently picking an arbitrary (if deterministic) order, a multi-key
// $sort payload must use the order-preserving array form: a JSON array
// of single-key objects, e.g. [{"a": 1}, {"b": -1}], since array
// element order survives generic JSON decoding even though object key
// order does not. A single-key object form is accepted directly, since
// there is no order to lose with only one key.
func TranslateSort(ctx *Context, payload any) (StageResult, error) {
	keys, err := ParseSortKeys(payload)
	if err != nil {
		return StageResult{}, err
	}
	orderBy := make([]string, 0, len(keys))
	for _, k := range keys {
		path, err := ident.ValidateFieldPath(k.Field)
		if err != nil {
			return StageResult{}, err
		}
		col := ctx.Caps.JSONExtract(expr.Column, strings.Split(string(path), "."))
		dirSQL := "ASC"
		if k.Descending {
			dirSQL = "DESC"
		}
		orderBy = append(orderBy, col+" "+dirSQL)
	}
	return StageResult{OrderBy: orderBy}, nil
}

func sortSpecPairs(payload any) ([]sortPair, error) {
	switch v := payload.(type) {
	case []any:
		out := make([]sortPair, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok || len(m) != 1 {
				return nil, document.NewMalformedStage("$sort array form requires single-key objects, e.g. [{\"a\": 1}]")
			}
			for k, d := range m {
				out = append(out, sortPair{field: k, dir: d})
			}
		}
		return out, nil
	case map[string]any:
		if len(v) > 1 {
			return nil, document.NewMalformedStage("$sort with more than one key requires the order-preserving array form, e.g. [{\"a\": 1}, {\"b\": -1}], since object key order is not guaranteed once decoded")
		}
		out := make([]sortPair, 0, 1)
		for k, d := range v {
			out = append(out, sortPair{field: k, dir: d})
		}
		return out, nil
	default:
		return nil, document.NewMalformedStage("$sort requires an object or an array of single-key objects")
	}
}
