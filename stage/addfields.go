package stage

import (
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/ident"
)

// TranslateAddFields implements $addFields / $set (spec §4.5): a chain
// of json_set calls on the embedded dialect, each value a literal,
// field reference, or expression object translated by the Expression
// Translator. Values use expr.Parse/Translate directly — unlike
// $project, $addFields has no "1 means include" marker to special-case.
//
// Same analytical limitation as $project's exclusion path (see
// project.go's buildExclusion doc): ClickHouse's JSON functions have no
// generic "set one key in an arbitrary blob" builtin, so this raises
// FeatureUnavailable on the analytical dialect.
func TranslateAddFields(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$addFields/$set requires an object")
	}
	if ctx.Dialect == document.Analytical {
		return StageResult{}, document.NewFeatureUnavailable("$addFields", "analytical")
	}

	sel := expr.Column
	for _, k := range sortedKeys(m) {
		path, err := ident.ValidateFieldPath(k)
		if err != nil {
			return StageResult{}, err
		}
		e, err := expr.Parse(m[k])
		if err != nil {
			return StageResult{}, err
		}
		valueSQL, err := expr.Translate(e, ctx.Caps, ctx.Buf)
		if err != nil {
			return StageResult{}, err
		}
		sel = ctx.Caps.ObjectSet(sel, string(path), valueSQL)
	}
	return StageResult{Select: sel, TransformsShape: true}, nil
}
