package stage

import (
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/search"
)

// TranslateSearch implements the $search stage (spec §4.5/§4.8): a thin
// wrapper over the search package's Assemble, joining the collection to
// its FTS companion table. Whether $search is the first stage in the
// pipeline is a pipeline-shape concern the planner enforces before ever
// calling this translator — this function has no visibility into
// sibling stages, only the payload it was handed.
func TranslateSearch(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$search requires an object")
	}
	if !ctx.Caps.SupportsSearch() {
		return StageResult{}, document.NewFeatureUnavailable("$search", ctx.Caps.Name())
	}
	includeScore, _ := m["includeScore"].(bool)

	q, err := search.Parse(m)
	if err != nil {
		return StageResult{}, err
	}
	assembled, err := search.Assemble(q, ctx.Collection, includeScore, ctx.Caps, ctx.Buf)
	if err != nil {
		return StageResult{}, err
	}

	cteName := ctx.NextAlias("search_")
	selectList := "data"
	if assembled.ScoreColumn != "" {
		selectList += ", " + assembled.ScoreColumn
	}
	body := "SELECT " + selectList + " FROM " + ctx.Source + " " + assembled.Join + " WHERE " + assembled.Where

	res := StageResult{CTEName: cteName, CTEBody: body, NewSource: cteName}
	if assembled.ScoreOrderBy != "" {
		res.OrderBy = []string{assembled.ScoreOrderBy}
	}
	return res, nil
}
