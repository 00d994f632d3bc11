package filter

import (
	"sort"
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/ident"
	"github.com/dot-do/mondodb-sub011/search"
)

// Parse converts a raw JSON-decoded filter document into a Filter tree.
//
// Determinism note (invariant I4 / testable property P3): spec §4.4 says
// operators on one field emit in "the operator-object's iteration
// order", which assumes the source language preserves object key order.
// Go's map[string]any does not, and the translator's own determinism
// requirement is non-negotiable, so this package imposes a canonical
// order instead — every map with more than one relevant key (a
// multi-operator field condition, or a filter document with more than
// one top-level key) is walked in sorted key order. Output is therefore
// always byte-identical for the same input, just not necessarily in the
// caller's original key order.
func Parse(raw map[string]any) (Filter, error) {
	keys := sortedKeys(raw)
	if len(keys) == 0 {
		return And{Args: nil}, nil
	}
	args := make([]Filter, 0, len(keys))
	for _, k := range keys {
		f, err := parseKey(k, raw[k])
		if err != nil {
			return nil, err
		}
		args = append(args, f)
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return And{Args: args}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseKey(key string, val any) (Filter, error) {
	switch key {
	case "$and":
		args, err := parseFilterList(val)
		if err != nil {
			return nil, err
		}
		return And{Args: args}, nil
	case "$or":
		args, err := parseFilterList(val)
		if err != nil {
			return nil, err
		}
		return Or{Args: args}, nil
	case "$nor":
		args, err := parseFilterList(val)
		if err != nil {
			return nil, err
		}
		return Nor{Args: args}, nil
	case "$where":
		// $where evaluates an arbitrary predicate function against the
		// whole document; unlike $function it has no result-document
		// placeholder site to defer into, so there is no safe way to push
		// it into SQL or resolve it post-execution (see DESIGN.md).
		return nil, document.NewUnsupportedOperator("$where")
	case "$text":
		m, ok := val.(map[string]any)
		if !ok {
			return nil, document.NewMalformedStage("$text requires an object payload")
		}
		q, err := search.Parse(normalizeTextPayload(m))
		if err != nil {
			return nil, err
		}
		return TextFilter{Query: q}, nil
	case "$expr":
		inner, err := expr.Parse(val)
		if err != nil {
			return nil, err
		}
		return ExprFilter{Inner: inner}, nil
	default:
		return parseFieldCond(key, val)
	}
}

// normalizeTextPayload maps Mongo's $text shape ({$search: "...", ...})
// onto search.Parse's {text: "..."} shape.
func normalizeTextPayload(m map[string]any) map[string]any {
	if s, ok := m["$search"].(string); ok {
		return map[string]any{"text": s}
	}
	return m
}

func parseFilterList(val any) ([]Filter, error) {
	arr, ok := val.([]any)
	if !ok || len(arr) == 0 {
		return nil, document.NewMalformedStage("$and/$or/$nor requires a non-empty array")
	}
	out := make([]Filter, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, document.NewMalformedStage("$and/$or/$nor element must be a filter document")
		}
		f, err := Parse(m)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func parseFieldCond(key string, val any) (Filter, error) {
	path, err := ident.ValidateFieldPath(key)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(string(path), ".")

	m, isOpObject := val.(map[string]any)
	if !isOpObject || !isFieldOperatorObject(m) {
		return FieldCond{Path: path, Parts: parts, Ops: []FieldOp{OpEq{Value: val}}}, nil
	}

	ops, err := parseFieldOperators(m)
	if err != nil {
		return nil, err
	}
	return FieldCond{Path: path, Parts: parts, Ops: ops}, nil
}

// fieldOperatorKeys is the closed set of keys parseOneOperator actually
// understands. Used (rather than a bare "starts with $" test) to tell a
// genuine operator object apart from a logical sub-filter or a literal
// dollar-prefixed sub-document value.
var fieldOperatorKeys = map[string]bool{
	"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true, "$exists": true, "$type": true, "$regex": true,
	"$options": true, "$size": true, "$elemMatch": true, "$all": true, "$not": true,
}

// isFieldOperatorObject reports whether every key in m is a recognized
// field operator, as opposed to a field name, a logical operator
// ($and/$or/$nor), or another reserved key — the distinction that
// decides whether {$elemMatch: {...}} is matching scalar array elements
// directly or matching sub-documents field by field.
func isFieldOperatorObject(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !fieldOperatorKeys[k] {
			return false
		}
	}
	return true
}

// parseElementFilter parses the payload of $elemMatch: when every key is
// a recognized field operator, it applies those operators directly to
// the array element itself (the scalar-array form); otherwise it's a
// nested filter document matched against each element as a sub-document
// (the object-array form), including further logical operators.
func parseElementFilter(raw map[string]any) (Filter, error) {
	if isFieldOperatorObject(raw) {
		ops, err := parseFieldOperators(raw)
		if err != nil {
			return nil, err
		}
		return FieldCond{Path: "", Parts: nil, Ops: ops}, nil
	}
	return Parse(raw)
}

// parseFieldOperators parses every operator key in m (in canonical
// sorted order, see Parse's determinism note) into a FieldOp list.
func parseFieldOperators(m map[string]any) ([]FieldOp, error) {
	keys := sortedKeys(m)
	ops := make([]FieldOp, 0, len(keys))
	for _, k := range keys {
		if k == "$options" {
			// consumed alongside $regex below; a bare $options with no
			// $regex sibling is silently ignored, matching Mongo's own
			// tolerance of redundant/no-op operator combinations.
			continue
		}
		op, err := parseOneOperator(k, m)
		if err != nil {
			return nil, err
		}
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func parseOneOperator(k string, m map[string]any) (FieldOp, error) {
	v := m[k]
	switch k {
	case "$eq":
		return OpEq{Value: v}, nil
	case "$ne":
		return OpNe{Value: v}, nil
	case "$gt":
		return OpGt{Value: v}, nil
	case "$gte":
		return OpGte{Value: v}, nil
	case "$lt":
		return OpLt{Value: v}, nil
	case "$lte":
		return OpLte{Value: v}, nil
	case "$in":
		vals, err := toValueArray(v, "$in")
		if err != nil {
			return nil, err
		}
		return OpIn{Values: vals}, nil
	case "$nin":
		vals, err := toValueArray(v, "$nin")
		if err != nil {
			return nil, err
		}
		return OpNin{Values: vals}, nil
	case "$exists":
		b, ok := v.(bool)
		if !ok {
			return nil, document.NewMalformedStage("$exists requires a boolean")
		}
		return OpExists{Expect: b}, nil
	case "$type":
		name, err := typeNameOf(v)
		if err != nil {
			return nil, err
		}
		return OpType{TypeName: name}, nil
	case "$regex":
		pattern, ok := v.(string)
		if !ok {
			return nil, document.NewMalformedStage("$regex requires a string pattern")
		}
		opts, _ := m["$options"].(string)
		return OpRegex{Pattern: pattern, CaseInsensitive: strings.Contains(opts, "i")}, nil
	case "$size":
		n, err := toInt(v, "$size")
		if err != nil {
			return nil, err
		}
		return OpSize{Size: n}, nil
	case "$elemMatch":
		sub, ok := v.(map[string]any)
		if !ok {
			return nil, document.NewMalformedStage("$elemMatch requires an object")
		}
		inner, err := parseElementFilter(sub)
		if err != nil {
			return nil, err
		}
		return OpElemMatch{Inner: inner}, nil
	case "$all":
		vals, err := toValueArray(v, "$all")
		if err != nil {
			return nil, err
		}
		return OpAll{Values: vals}, nil
	case "$not":
		sub, ok := v.(map[string]any)
		if !ok {
			return nil, document.NewMalformedStage("$not requires an operator object")
		}
		inner, err := parseFieldOperators(sub)
		if err != nil {
			return nil, err
		}
		return OpNot{Inner: inner}, nil
	default:
		return nil, document.NewUnsupportedOperator(k)
	}
}

func toValueArray(v any, op string) ([]any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, document.NewMalformedStage(op + " requires an array")
	}
	return arr, nil
}

func toInt(v any, op string) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, document.NewMalformedStage(op + " requires a number")
	}
}

// typeNameOf maps a $type argument (Mongo accepts either the BSON type
// alias string or its numeric code) onto the names dialect-specific
// type-mapping understands. Only the string alias form is supported;
// numeric BSON type codes are rejected as unsupported since this
// translator has no BSON type table to look them up against.
func typeNameOf(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", document.NewUnsupportedExpression("$type requires a string type alias (numeric BSON type codes are not supported)")
	}
	switch s {
	case "string", "number", "integer", "boolean", "object", "array", "null", "date", "regex", "objectId":
		return s, nil
	default:
		return "", document.NewMalformedStage("$type: unknown type alias " + s)
	}
}
