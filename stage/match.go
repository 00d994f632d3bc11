package stage

import (
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/filter"
)

// TranslateMatch implements $match (spec §4.5): translate the filter via
// the Query Translator and emit a whereClause overlay.
func TranslateMatch(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$match requires a filter document")
	}
	f, err := filter.Parse(m)
	if err != nil {
		return StageResult{}, err
	}
	where, joins, err := filter.Translate(f, ctx.Collection, ctx.Caps, ctx.Buf)
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{Where: where, ExtraJoins: joins}, nil
}
