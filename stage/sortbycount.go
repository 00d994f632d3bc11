package stage

// TranslateSortByCount implements the supplemented $sortByCount stage
// (SPEC_FULL §4 additions, grounded on marcgauthier-marco's
// query_stage_sortByCount.go): groups by an expression, counts, and
// sorts descending by that count. Lowered to the same $group/$sort
// translators rather than a bespoke SQL shape, per SPEC_FULL.
func TranslateSortByCount(ctx *Context, payload any) (StageResult, error) {
	groupResult, err := TranslateGroup(ctx, map[string]any{
		"_id":   payload,
		"count": map[string]any{"$sum": 1.0},
	})
	if err != nil {
		return StageResult{}, err
	}
	sortResult, err := TranslateSort(ctx, map[string]any{"count": -1.0})
	if err != nil {
		return StageResult{}, err
	}
	groupResult.OrderBy = sortResult.OrderBy
	return groupResult, nil
}
