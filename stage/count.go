package stage

import (
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/ident"
)

// TranslateCount implements $count (spec §4.5): a single-document result
// via json_object('<name>', COUNT(*)).
func TranslateCount(ctx *Context, payload any) (StageResult, error) {
	name, ok := payload.(string)
	if !ok || name == "" {
		return StageResult{}, document.NewMalformedStage("$count requires a non-empty output field name")
	}
	validated, err := ident.ValidateIdentifier(name)
	if err != nil {
		return StageResult{}, err
	}
	sel := ctx.Caps.GroupObject([][2]string{{validated, ctx.Caps.AggCountStar()}})
	return StageResult{Select: sel, TransformsShape: true}, nil
}
