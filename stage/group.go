package stage

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/ident"
)

// TranslateGroup implements $group (spec §4.5).
func TranslateGroup(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$group requires an object")
	}
	idVal, hasID := m["_id"]
	if !hasID {
		return StageResult{}, document.NewMalformedStage("$group requires _id")
	}
	idSelect, groupBy, err := translateGroupKey(ctx, idVal)
	if err != nil {
		return StageResult{}, err
	}
	accumPairs, err := translateAccumulators(ctx, m, map[string]bool{"_id": true})
	if err != nil {
		return StageResult{}, err
	}
	pairs := append([][2]string{{"_id", idSelect}}, accumPairs...)
	return StageResult{Select: ctx.Caps.GroupObject(pairs), GroupBy: groupBy, TransformsShape: true}, nil
}

// translateGroupKey implements spec §4.5's three _id forms: null (global
// aggregation, no GROUP BY), a single field reference, or a compound-key
// object whose member values are themselves expressions.
func translateGroupKey(ctx *Context, idVal any) (string, []string, error) {
	switch v := idVal.(type) {
	case nil:
		return "NULL", nil, nil
	case string:
		if strings.HasPrefix(v, "$") && !strings.HasPrefix(v, "$$") {
			path, err := ident.ValidateFieldPath(v[1:])
			if err != nil {
				return "", nil, err
			}
			col := ctx.Caps.JSONExtract(expr.Column, strings.Split(string(path), "."))
			return col, []string{col}, nil
		}
		return ctx.Buf.Bind(v), nil, nil
	case map[string]any:
		keys := sortedKeys(v)
		pairs := make([][2]string, 0, len(keys))
		groupBy := make([]string, 0, len(keys))
		for _, k := range keys {
			if _, err := ident.ValidateIdentifier(k); err != nil {
				return "", nil, err
			}
			e, err := expr.Parse(v[k])
			if err != nil {
				return "", nil, err
			}
			sql, err := expr.Translate(e, ctx.Caps, ctx.Buf)
			if err != nil {
				return "", nil, err
			}
			pairs = append(pairs, [2]string{k, sql})
			groupBy = append(groupBy, sql)
		}
		return ctx.Caps.GroupObject(pairs), groupBy, nil
	default:
		return ctx.Buf.Bind(v), nil, nil
	}
}
