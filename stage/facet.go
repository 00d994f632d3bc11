package stage

import (
	"strconv"
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/params"
)

// TranslateFacet implements $facet (spec §4.5): each named sub-pipeline
// is translated independently over the same input source — the current
// running source, not the base collection, so a $facet downstream of
// earlier stages still sees their effect. Each facet gets its own
// parameter vector: the values already bound before the $facet (those
// of the upstream CTEs the planner prefixes to its query), then its own.
// It terminates the main SQL: the planner stops accumulating clauses
// once it sees Facets populated and hands each one back to the caller
// for parallel execution (package executor).
func TranslateFacet(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok || len(m) == 0 {
		return StageResult{}, document.NewMalformedStage("$facet requires a non-empty object of named sub-pipelines")
	}

	outer := ctx.Buf.Values()
	facets := make([]FacetQuery, 0, len(m))
	for _, name := range sortedKeys(m) {
		pipelineRaw, ok := m[name].([]any)
		if !ok {
			return StageResult{}, document.NewMalformedStage("$facet sub-pipeline \"" + name + "\" must be an array")
		}
		fctx := ctx.WithSource(ctx.Source)
		fctx.Buf = params.New()
		for _, v := range outer {
			fctx.Buf.Bind(v)
		}
		sql, err := translateSubPipeline(fctx, pipelineRaw)
		if err != nil {
			return StageResult{}, err
		}
		facets = append(facets, FacetQuery{Name: name, SQL: sql, Params: fctx.Buf.Values()})
	}
	return StageResult{Facets: facets}, nil
}

// translateSubPipeline runs a simple-plan fold over pipeline's stages
// against ctx.Source and renders a standalone SELECT statement. Stages
// that flush into their own CTE ($lookup, $unwind, $search, $facet) are
// rejected with UnsupportedStage: CTE chaining inside a facet
// sub-pipeline is not supported.
func translateSubPipeline(ctx *Context, pipelineRaw []any) (string, error) {
	sub := ctx.WithSource(ctx.Source)
	sel := "data"
	var where string
	var groupBy, orderBy []string
	var limit, offset *int

	for _, raw := range pipelineRaw {
		stageDoc, ok := raw.(map[string]any)
		if !ok {
			return "", document.NewMalformedStage("$facet sub-pipeline stage must be an object")
		}
		for _, name := range sortedKeys(stageDoc) {
			res, err := Translate(name, stageDoc[name], sub)
			if err != nil {
				return "", err
			}
			if res.RequiresFlush() {
				return "", document.NewUnsupportedStage("$facet sub-pipelines may not contain " + name)
			}
			if res.Select != "" {
				sel = res.Select
			}
			if res.Where != "" {
				if where != "" {
					where = where + " AND " + res.Where
				} else {
					where = res.Where
				}
			}
			if len(res.GroupBy) > 0 {
				groupBy = res.GroupBy
			}
			if len(res.OrderBy) > 0 {
				orderBy = res.OrderBy
			}
			if res.Limit != nil {
				limit = res.Limit
			}
			if res.Offset != nil {
				offset = res.Offset
			}
		}
	}

	sql := "SELECT " + sel + " FROM " + sub.Source
	if where != "" {
		sql += " WHERE " + where
	}
	if len(groupBy) > 0 {
		sql += " GROUP BY " + strings.Join(groupBy, ", ")
	}
	if len(orderBy) > 0 {
		sql += " ORDER BY " + strings.Join(orderBy, ", ")
	}
	if limit != nil {
		sql += " LIMIT " + strconv.Itoa(*limit)
	}
	if offset != nil {
		sql += " OFFSET " + strconv.Itoa(*offset)
	}
	return sql, nil
}
