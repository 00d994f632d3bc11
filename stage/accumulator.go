package stage

import (
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
)

// translateAccumulators builds the (name, sql) pairs for every key in m
// other than those in skip ($group skips "_id"; $bucket passes only its
// output object, with a nil skip), per spec §4.5's accumulator list. $sum,
// $avg, $min, $max are plain SQL aggregates identical on both dialects
// and so have no dialect.Capabilities entry; $first/$last/$push/
// $addToSet go through the capability table since their SQL shape
// genuinely differs per dialect.
func translateAccumulators(ctx *Context, m map[string]any, skip map[string]bool) ([][2]string, error) {
	keys := sortedKeys(m)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		if skip[k] {
			continue
		}
		sql, err := translateAccumulator(ctx, m[k])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]string{k, sql})
	}
	return pairs, nil
}

func translateAccumulator(ctx *Context, v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", document.NewMalformedStage("$group/$bucket accumulator must be a single-key operator object")
	}
	var op string
	var arg any
	for k, a := range m {
		op, arg = k, a
	}

	// $count (the accumulator form) and $sum: 1 both shortcut straight to
	// COUNT(*), never touching the expression translator.
	if op == "$count" {
		return ctx.Caps.AggCountStar(), nil
	}
	if op == "$sum" {
		if n, ok := arg.(float64); ok && n == 1 {
			return ctx.Caps.AggCountStar(), nil
		}
	}

	e, err := expr.Parse(arg)
	if err != nil {
		return "", err
	}
	sql, err := expr.Translate(e, ctx.Caps, ctx.Buf)
	if err != nil {
		return "", err
	}

	switch op {
	case "$sum":
		return "SUM(" + sql + ")", nil
	case "$avg":
		return "AVG(" + sql + ")", nil
	case "$min":
		return "MIN(" + sql + ")", nil
	case "$max":
		return "MAX(" + sql + ")", nil
	case "$first":
		return ctx.Caps.AggFirst(sql), nil
	case "$last":
		return ctx.Caps.AggLast(sql), nil
	case "$push":
		return ctx.Caps.AggPush(sql), nil
	case "$addToSet":
		return ctx.Caps.AggAddToSet(sql), nil
	default:
		return "", document.NewUnsupportedOperator(op)
	}
}
