package stage

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
)

// TranslateBucket implements $bucket (spec §4.5): boundaries become a
// CASE expression, grouped on that expression, with output accumulators
// applied exactly as $group.
func TranslateBucket(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$bucket requires an object")
	}
	groupByRaw, ok := m["groupBy"]
	if !ok {
		return StageResult{}, document.NewMalformedStage("$bucket requires groupBy")
	}
	boundariesRaw, ok := m["boundaries"].([]any)
	if !ok || len(boundariesRaw) < 2 {
		return StageResult{}, document.NewMalformedStage("$bucket requires a boundaries array of at least 2 elements")
	}

	e, err := expr.Parse(groupByRaw)
	if err != nil {
		return StageResult{}, err
	}
	fieldSQL, err := expr.Translate(e, ctx.Caps, ctx.Buf)
	if err != nil {
		return StageResult{}, err
	}

	bucketExpr, err := buildBucketCase(ctx, fieldSQL, boundariesRaw, m["default"])
	if err != nil {
		return StageResult{}, err
	}

	var accumPairs [][2]string
	if outputRaw, ok := m["output"].(map[string]any); ok {
		accumPairs, err = translateAccumulators(ctx, outputRaw, nil)
		if err != nil {
			return StageResult{}, err
		}
	} else {
		accumPairs = [][2]string{{"count", ctx.Caps.AggCountStar()}}
	}

	pairs := append([][2]string{{"_id", bucketExpr}}, accumPairs...)
	return StageResult{Select: ctx.Caps.GroupObject(pairs), GroupBy: []string{bucketExpr}, TransformsShape: true}, nil
}

// TranslateBucketAuto implements the supplemented $bucketAuto stage
// (SPEC_FULL §4 additions): real $bucketAuto computes its own boundaries
// from the input distribution, which this translator cannot do without
// executing SQL first. It is therefore only translated when the payload
// supplies a precomputed boundaries array — falling back to $bucket's
// shape — and otherwise raises an explicit UnsupportedStage rather than
// silently mis-translating.
func TranslateBucketAuto(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$bucketAuto requires an object")
	}
	if _, hasBoundaries := m["boundaries"]; !hasBoundaries {
		return StageResult{}, document.NewUnsupportedStage("$bucketAuto: requires precomputed boundaries")
	}
	return TranslateBucket(ctx, payload)
}

func buildBucketCase(ctx *Context, fieldSQL string, boundaries []any, defaultVal any) (string, error) {
	var b strings.Builder
	b.WriteString("CASE")
	for i := 0; i < len(boundaries)-1; i++ {
		lower := ctx.Buf.Bind(boundaries[i])
		upper := ctx.Buf.Bind(boundaries[i+1])
		result := ctx.Buf.Bind(boundaries[i])
		b.WriteString(" WHEN " + fieldSQL + " >= " + lower + " AND " + fieldSQL + " < " + upper + " THEN " + result)
	}
	defaultSQL := "NULL"
	if defaultVal != nil {
		defaultSQL = ctx.Buf.Bind(defaultVal)
	}
	b.WriteString(" ELSE " + defaultSQL + " END")
	return b.String(), nil
}
