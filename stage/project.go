package stage

import (
	"sort"
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/ident"
)

// TranslateProject implements $project (spec §4.5): inclusion vs.
// exclusion is decided by inspecting the payload's values, not by a
// separate mode flag, exactly as spec §4.5 describes.
func TranslateProject(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$project requires an object")
	}
	if isExclusionProjection(m) {
		return translateExclusion(ctx, m)
	}
	return translateInclusion(ctx, m)
}

// TranslateUnset implements the supplemented $unset stage (SPEC_FULL §4
// additions): the inverse-inclusion shorthand of $project, lowered to
// the same exclusion path.
func TranslateUnset(ctx *Context, payload any) (StageResult, error) {
	var raw []any
	switch v := payload.(type) {
	case string:
		raw = []any{v}
	case []any:
		raw = v
	default:
		return StageResult{}, document.NewMalformedStage("$unset requires a field path or an array of field paths")
	}
	paths := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return StageResult{}, document.NewMalformedStage("$unset field path must be a string")
		}
		validated, err := ident.ValidateFieldPath(s)
		if err != nil {
			return StageResult{}, err
		}
		paths = append(paths, string(validated))
	}
	return buildExclusion(ctx, paths)
}

// isExclusionProjection reports whether every non-_id value in m is
// zero-ish, per spec §4.5: "all-zero (except _id) ⇒ exclusion".
func isExclusionProjection(m map[string]any) bool {
	nonID := 0
	for k, v := range m {
		if k == "_id" {
			continue
		}
		nonID++
		if !isZeroValue(v) {
			return false
		}
	}
	return nonID > 0
}

func isZeroValue(v any) bool {
	switch t := v.(type) {
	case float64:
		return t == 0
	case int:
		return t == 0
	case bool:
		return t == false
	default:
		return false
	}
}

func translateExclusion(ctx *Context, m map[string]any) (StageResult, error) {
	paths := make([]string, 0, len(m))
	for k, v := range m {
		if !isZeroValue(v) {
			continue
		}
		validated, err := ident.ValidateFieldPath(k)
		if err != nil {
			return StageResult{}, err
		}
		paths = append(paths, string(validated))
	}
	return buildExclusion(ctx, paths)
}

// buildExclusion is shared by $project's exclusion form and $unset.
//
// Design decision (see DESIGN.md): the analytical dialect's JSON
// functions are read-only — there is no ClickHouse builtin to delete a
// key from an arbitrary JSON blob the way SQLite's json_remove does —
// so reconstructing the excluded shape would require knowing every
// surviving key up front, which this translator has no schema registry
// to supply. Exclusion therefore raises FeatureUnavailable on the
// analytical dialect rather than emitting something that only works for
// whatever keys happen to be known.
func buildExclusion(ctx *Context, paths []string) (StageResult, error) {
	if ctx.Dialect == document.Analytical {
		return StageResult{}, document.NewFeatureUnavailable("$project exclusion / $unset", "analytical")
	}
	sort.Strings(paths)
	sel := ctx.Caps.ObjectRemove(expr.Column, paths)
	return StageResult{Select: sel, TransformsShape: true}, nil
}

func translateInclusion(ctx *Context, m map[string]any) (StageResult, error) {
	keys := sortedKeys(m)
	pairs := make([][2]string, 0, len(keys)+1)
	extraFields := map[string]bool{}

	// _id is included by default even when not named, per marco's
	// "respect _id default inclusion/exclusion rules"; an explicit
	// zero-ish {_id: 0} suppresses it instead (handled in the loop below
	// rather than here, since that's the only place we know m's value).
	if _, hasID := m["_id"]; !hasID {
		pairs = append(pairs, [2]string{"_id", ctx.Caps.JSONExtract(expr.Column, []string{"_id"})})
	}

	for _, k := range keys {
		if k == "_id" && isZeroValue(m[k]) {
			continue
		}
		validated, err := ident.ValidateFieldPath(k)
		if err != nil {
			return StageResult{}, err
		}
		sql, fnFields, err := translateProjectionValue(ctx, k, m[k])
		if err != nil {
			return StageResult{}, err
		}
		pairs = append(pairs, [2]string{string(validated), sql})
		for _, f := range fnFields {
			extraFields[f] = true
		}
	}

	// §4.3/§4.5: a projected $function value's source fields must ride
	// along in the output envelope even when not separately projected,
	// so the executor can later extract its arguments from the row.
	extraKeys := make([]string, 0, len(extraFields))
	for f := range extraFields {
		if _, already := m[f]; already {
			continue
		}
		extraKeys = append(extraKeys, f)
	}
	sort.Strings(extraKeys)
	for _, f := range extraKeys {
		pairs = append(pairs, [2]string{f, ctx.Caps.JSONExtract(expr.Column, strings.Split(f, "."))})
	}

	return StageResult{Select: ctx.Caps.GroupObject(pairs), TransformsShape: true}, nil
}

// translateProjectionValue implements spec §4.5's inclusion value rules:
// 1 ⇒ extract the same-named path; '$other' ⇒ extract the renamed path;
// a literal ⇒ bound parameter; an expression object ⇒ §4.3.
func translateProjectionValue(ctx *Context, key string, v any) (string, []string, error) {
	switch val := v.(type) {
	case float64:
		if val == 1 {
			return ctx.Caps.JSONExtract(expr.Column, strings.Split(key, ".")), nil, nil
		}
		return ctx.Buf.Bind(val), nil, nil
	case bool:
		if val {
			return ctx.Caps.JSONExtract(expr.Column, strings.Split(key, ".")), nil, nil
		}
		return ctx.Buf.Bind(val), nil, nil
	case string:
		if strings.HasPrefix(val, "$") && !strings.HasPrefix(val, "$$") {
			path, err := ident.ValidateFieldPath(val[1:])
			if err != nil {
				return "", nil, err
			}
			return ctx.Caps.JSONExtract(expr.Column, strings.Split(string(path), ".")), nil, nil
		}
		return ctx.Buf.Bind(val), nil, nil
	case nil:
		return "NULL", nil, nil
	case map[string]any:
		e, err := expr.Parse(val)
		if err != nil {
			return "", nil, err
		}
		sql, err := expr.Translate(e, ctx.Caps, ctx.Buf)
		if err != nil {
			return "", nil, err
		}
		return sql, expr.CollectFunctionFields(e), nil
	default:
		return ctx.Buf.Bind(val), nil, nil
	}
}
