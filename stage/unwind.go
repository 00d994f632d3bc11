package stage

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/ident"
)

// TranslateUnwind implements $unwind (spec §4.5): a flushing stage that
// emits its own CTE rather than a clause overlay.
//
// The two dialects diverge exactly as spec §4.5 describes: embedded
// rewrites the "data" column in place (json_set the unwound path to the
// current element), so downstream stages keep reading a single uniform
// document column. Analytical instead projects "*, element AS <leaf
// field name>" — ARRAY JOIN has no equivalent in-place blob rewrite, so
// the original "data" column survives untouched and the unwound value
// rides alongside it under its own column name. This means a stage
// downstream of an analytical $unwind that re-extracts the unwound path
// from "data" will still see the pre-unwind array; it must reference the
// synthesized column instead. This asymmetry is spec-sanctioned (§4.5
// names different shapes per dialect) and recorded in DESIGN.md rather
// than papered over.
func TranslateUnwind(ctx *Context, payload any) (StageResult, error) {
	pathStr, includeIdx, preserveNull, err := parseUnwindSpec(payload)
	if err != nil {
		return StageResult{}, err
	}
	validated, err := ident.ValidateFieldPath(pathStr)
	if err != nil {
		return StageResult{}, err
	}
	parts := strings.Split(string(validated), ".")

	arrExpr := ctx.Caps.JSONExtract(expr.Column, parts)
	alias := ctx.NextAlias("u")
	join, elemExpr, idxExpr := ctx.Caps.UnwindJoin(arrExpr, alias, preserveNull)

	var idxCol string
	if includeIdx != "" {
		idxCol, err = ident.ValidateIdentifier(includeIdx)
		if err != nil {
			return StageResult{}, err
		}
	}

	var selectList []string
	if ctx.Dialect == document.Analytical {
		leaf, err := ident.ValidateIdentifier(parts[len(parts)-1])
		if err != nil {
			return StageResult{}, err
		}
		selectList = []string{"*", elemExpr + " AS " + leaf}
	} else {
		selectList = []string{ctx.Caps.ObjectSet(expr.Column, string(validated), elemExpr) + " AS data"}
	}
	if idxCol != "" {
		selectList = append(selectList, idxExpr+" AS "+idxCol)
	}

	cteName := ctx.NextAlias("unwind_")
	body := "SELECT " + strings.Join(selectList, ", ") + " FROM " + ctx.Source + " " + join
	return StageResult{CTEName: cteName, CTEBody: body, NewSource: cteName, TransformsShape: true}, nil
}

func parseUnwindSpec(payload any) (path string, includeArrayIndex string, preserveNullAndEmpty bool, err error) {
	switch v := payload.(type) {
	case string:
		if !strings.HasPrefix(v, "$") {
			return "", "", false, document.NewMalformedStage("$unwind string form requires a \"$field\" path")
		}
		return v[1:], "", false, nil
	case map[string]any:
		p, ok := v["path"].(string)
		if !ok || !strings.HasPrefix(p, "$") {
			return "", "", false, document.NewMalformedStage("$unwind requires a \"path\" field starting with \"$\"")
		}
		idx, _ := v["includeArrayIndex"].(string)
		preserve, _ := v["preserveNullAndEmptyArrays"].(bool)
		return p[1:], idx, preserve, nil
	default:
		return "", "", false, document.NewMalformedStage("$unwind requires a string path or an object")
	}
}
