package stage

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/ident"
)

// TranslateLookup implements $lookup (spec §4.5): a flushing stage with
// two payload shapes — localField/foreignField equality join, or
// let/pipeline correlated subquery. Both emit a CTE that left-joins the
// foreign collection, aggregates matches into a JSON array, and merges
// that array into "data" under the "as" key.
func TranslateLookup(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$lookup requires an object")
	}
	from, ok := m["from"].(string)
	if !ok || from == "" {
		return StageResult{}, document.NewMalformedStage("$lookup requires a \"from\" collection name")
	}
	validatedFrom, err := ident.ValidateIdentifier(from)
	if err != nil {
		return StageResult{}, err
	}
	asName, ok := m["as"].(string)
	if !ok || asName == "" {
		return StageResult{}, document.NewMalformedStage("$lookup requires an \"as\" output field name")
	}
	validatedAs, err := ident.ValidateIdentifier(asName)
	if err != nil {
		return StageResult{}, err
	}

	if _, hasPipeline := m["pipeline"]; hasPipeline {
		return translateLookupPipeline(ctx, m, validatedFrom, validatedAs)
	}
	return translateLookupEquality(ctx, m, validatedFrom, validatedAs)
}

func translateLookupEquality(ctx *Context, m map[string]any, validatedFrom, validatedAs string) (StageResult, error) {
	localField, ok := m["localField"].(string)
	if !ok || localField == "" {
		return StageResult{}, document.NewMalformedStage("$lookup equality form requires localField")
	}
	foreignField, ok := m["foreignField"].(string)
	if !ok || foreignField == "" {
		return StageResult{}, document.NewMalformedStage("$lookup equality form requires foreignField")
	}
	localPath, err := ident.ValidateFieldPath(localField)
	if err != nil {
		return StageResult{}, err
	}
	foreignPath, err := ident.ValidateFieldPath(foreignField)
	if err != nil {
		return StageResult{}, err
	}

	localExpr := ctx.Caps.JSONExtract(expr.Column, strings.Split(string(localPath), "."))
	foreignAlias := ctx.NextAlias("f")
	foreignExpr := ctx.Caps.JSONExtract(foreignAlias+"."+expr.Column, strings.Split(string(foreignPath), "."))
	aggAlias := ctx.NextAlias("lookup_agg")

	matchesExpr := ctx.Caps.Coalesce([]string{aggAlias + ".matches", "'[]'"})
	cteName := ctx.NextAlias("lookup_")
	body := "SELECT " + mergeColumn(ctx, validatedAs, matchesExpr) +
		" FROM " + ctx.Source +
		" LEFT JOIN (SELECT " + foreignExpr + " AS join_key, " + ctx.Caps.AggPush(foreignAlias+"."+expr.Column) + " AS matches" +
		" FROM " + validatedFrom + " AS " + foreignAlias +
		" GROUP BY " + foreignExpr + ") AS " + aggAlias +
		" ON " + localExpr + " = " + aggAlias + ".join_key"

	return StageResult{CTEName: cteName, CTEBody: body, NewSource: cteName, TransformsShape: true}, nil
}

// mergeColumn renders the select list that merges valueExpr into the
// running document under asName: embedded rewrites "data" in place via
// json_set, since its JSON functions support that; analytical projects
// "*, valueExpr AS asName" instead, the same asymmetry $unwind's
// analytical branch uses, for the same reason (no in-place JSON
// mutation primitive on that dialect).
func mergeColumn(ctx *Context, asName, valueExpr string) string {
	if ctx.Dialect == document.Analytical {
		return "*, " + valueExpr + " AS " + asName
	}
	return ctx.Caps.ObjectSet(expr.Column, asName, valueExpr) + " AS data"
}

// translateLookupPipeline implements the let/pipeline form: the inner
// pipeline is translated against the foreign collection as its own
// source. "let" values are bound into the shared parameter buffer up
// front so they occupy their placeholder slots in bind order; resolving
// "$$var" references from within the inner pipeline's $match/$project
// expressions is left to the executor's post-processing (no expr-level
// "$$var" substitution exists in this translator), matching the
// documented $function-placeholder pattern for values that need runtime
// resolution.
func translateLookupPipeline(ctx *Context, m map[string]any, validatedFrom, validatedAs string) (StageResult, error) {
	letRaw, _ := m["let"].(map[string]any)
	pipelineRaw, ok := m["pipeline"].([]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$lookup pipeline form requires a pipeline array")
	}
	for _, k := range sortedKeys(letRaw) {
		ctx.Buf.Bind(letRaw[k])
	}

	innerAlias := ctx.NextAlias("f")
	innerCtx := NewContext(validatedFrom, ctx.Dialect, ctx.Buf)
	innerCtx.Source = validatedFrom

	var innerWhere []string
	for _, raw := range pipelineRaw {
		stageDoc, ok := raw.(map[string]any)
		if !ok {
			return StageResult{}, document.NewMalformedStage("$lookup pipeline stage must be an object")
		}
		for _, name := range sortedKeys(stageDoc) {
			res, err := Translate(name, stageDoc[name], innerCtx)
			if err != nil {
				return StageResult{}, err
			}
			if res.Where != "" {
				innerWhere = append(innerWhere, res.Where)
			}
		}
	}

	where := "1=1"
	if len(innerWhere) > 0 {
		where = strings.Join(innerWhere, " AND ")
	}

	matchesExpr := ctx.Caps.Coalesce([]string{innerAlias + ".matches", "'[]'"})
	cteName := ctx.NextAlias("lookup_")
	body := "SELECT " + mergeColumn(ctx, validatedAs, matchesExpr) +
		" FROM " + ctx.Source +
		" LEFT JOIN (SELECT " + ctx.Caps.AggPush(expr.Column) + " AS matches FROM " + validatedFrom +
		" WHERE " + where + ") AS " + innerAlias +
		" ON 1=1"

	return StageResult{CTEName: cteName, CTEBody: body, NewSource: cteName, TransformsShape: true}, nil
}
