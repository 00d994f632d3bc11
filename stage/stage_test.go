package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/params"
	"github.com/dot-do/mondodb-sub011/stage"
)

func newCtx(d document.Dialect) *stage.Context {
	return stage.NewContext("orders", d, params.New())
}

func TestTranslateMatch(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$match", map[string]any{"status": "open"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "json_extract(data, '$.status') = ?", res.Where)
}

func TestTranslateProjectInclusion(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$project", map[string]any{"name": 1.0}, ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Select, "json_object")
	assert.True(t, res.TransformsShape)
}

func TestTranslateProjectExclusionAnalyticalUnavailable(t *testing.T) {
	ctx := newCtx(document.Analytical)
	_, err := stage.Translate("$project", map[string]any{"secret": 0.0}, ctx)
	require.Error(t, err)
}

func TestTranslateProjectInclusionDefaultsID(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$project", map[string]any{"name": 1.0}, ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Select, "'_id'")
}

func TestTranslateProjectInclusionExplicitIDSuppressed(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$project", map[string]any{"name": 1.0, "_id": 0.0}, ctx)
	require.NoError(t, err)
	assert.NotContains(t, res.Select, "'_id'")
}

func TestTranslateUnset(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$unset", "secret", ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Select, "json_remove")
}

func TestTranslateAddFieldsAnalyticalUnavailable(t *testing.T) {
	ctx := newCtx(document.Analytical)
	_, err := stage.Translate("$addFields", map[string]any{"x": 1.0}, ctx)
	require.Error(t, err)
}

func TestTranslateGroup(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$group", map[string]any{
		"_id":   "$status",
		"total": map[string]any{"$sum": 1.0},
	}, ctx)
	require.NoError(t, err)
	assert.Len(t, res.GroupBy, 1)
	assert.Contains(t, res.Select, "COUNT(*)")
}

func TestTranslateSortSingleKey(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$sort", map[string]any{"age": -1.0}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"json_extract(data, '$.age') DESC"}, res.OrderBy)
}

func TestTranslateSortMultiKeyRequiresArrayForm(t *testing.T) {
	ctx := newCtx(document.Embedded)
	_, err := stage.Translate("$sort", map[string]any{"age": -1.0, "name": 1.0}, ctx)
	require.Error(t, err)

	ctx2 := newCtx(document.Embedded)
	res, err := stage.Translate("$sort", []any{
		map[string]any{"age": -1.0},
		map[string]any{"name": 1.0},
	}, ctx2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"json_extract(data, '$.age') DESC",
		"json_extract(data, '$.name') ASC",
	}, res.OrderBy)
}

func TestTranslateSortInvalidDirection(t *testing.T) {
	ctx := newCtx(document.Embedded)
	_, err := stage.Translate("$sort", map[string]any{"age": 2.0}, ctx)
	require.Error(t, err)
}

func TestTranslateLimitSkip(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$limit", 10.0, ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Limit)
	assert.Equal(t, 10, *res.Limit)

	res, err = stage.Translate("$skip", 5.0, ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Offset)
	assert.Equal(t, 5, *res.Offset)
}

func TestTranslateSample(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$sample", map[string]any{"size": 3.0}, ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"RANDOM()"}, res.OrderBy)
	require.NotNil(t, res.Limit)
	assert.Equal(t, 3, *res.Limit)
}

func TestTranslateCount(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$count", "total", ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Select, "json_object")
	assert.Contains(t, res.Select, "COUNT(*)")
}

func TestTranslateBucket(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$bucket", map[string]any{
		"groupBy":    "$age",
		"boundaries": []any{0.0, 18.0, 65.0},
	}, ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Select, "CASE")
	assert.True(t, res.TransformsShape)
}

func TestTranslateBucketAutoRequiresBoundaries(t *testing.T) {
	ctx := newCtx(document.Embedded)
	_, err := stage.Translate("$bucketAuto", map[string]any{"groupBy": "$age", "buckets": 4.0}, ctx)
	require.Error(t, err)
}

func TestTranslateSortByCount(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$sortByCount", "$status", ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderBy)
	assert.NotEmpty(t, res.GroupBy)
}

func TestTranslateUnwindEmbedded(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$unwind", "$tags", ctx)
	require.NoError(t, err)
	assert.True(t, res.RequiresFlush())
	assert.Contains(t, res.CTEBody, "json_each")
	assert.Equal(t, res.CTEName, res.NewSource)
}

func TestTranslateUnwindAnalytical(t *testing.T) {
	ctx := newCtx(document.Analytical)
	res, err := stage.Translate("$unwind", map[string]any{"path": "$tags", "preserveNullAndEmptyArrays": true}, ctx)
	require.NoError(t, err)
	assert.Contains(t, res.CTEBody, "LEFT ARRAY JOIN")
	assert.Contains(t, res.CTEBody, "AS tags")
}

func TestTranslateLookupEquality(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$lookup", map[string]any{
		"from":         "customers",
		"localField":   "customerId",
		"foreignField": "_id",
		"as":           "customer",
	}, ctx)
	require.NoError(t, err)
	assert.True(t, res.RequiresFlush())
	assert.Contains(t, res.CTEBody, "LEFT JOIN")
	assert.Contains(t, res.CTEBody, "customers")
}

func TestTranslateLookupAnalyticalMergeShape(t *testing.T) {
	ctx := newCtx(document.Analytical)
	res, err := stage.Translate("$lookup", map[string]any{
		"from":         "customers",
		"localField":   "customerId",
		"foreignField": "_id",
		"as":           "customer",
	}, ctx)
	require.NoError(t, err)
	assert.Contains(t, res.CTEBody, "*, ")
	assert.Contains(t, res.CTEBody, "AS customer")
}

func TestTranslateFacet(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$facet", map[string]any{
		"byStatus": []any{
			map[string]any{"$match": map[string]any{"status": "open"}},
			map[string]any{"$count": "n"},
		},
		"oldest": []any{
			map[string]any{"$sort": map[string]any{"age": -1.0}},
			map[string]any{"$limit": 1.0},
		},
	}, ctx)
	require.NoError(t, err)
	require.Len(t, res.Facets, 2)
	assert.Equal(t, "byStatus", res.Facets[0].Name)
	assert.Equal(t, "oldest", res.Facets[1].Name)
	assert.Contains(t, res.Facets[0].SQL, "WHERE")
	assert.Contains(t, res.Facets[1].SQL, "ORDER BY")
	assert.Contains(t, res.Facets[1].SQL, "LIMIT 1")
}

func TestTranslateSearchAnalyticalUnavailable(t *testing.T) {
	ctx := newCtx(document.Analytical)
	_, err := stage.Translate("$search", map[string]any{"text": "coffee"}, ctx)
	require.Error(t, err)
}

func TestTranslateSearchEmbedded(t *testing.T) {
	ctx := newCtx(document.Embedded)
	res, err := stage.Translate("$search", map[string]any{"text": "coffee", "includeScore": true}, ctx)
	require.NoError(t, err)
	assert.True(t, res.RequiresFlush())
	assert.Contains(t, res.CTEBody, "MATCH")
	assert.Contains(t, res.CTEBody, "bm25")
	assert.Equal(t, []string{"_searchScore DESC"}, res.OrderBy)
}

func TestUnsupportedStageName(t *testing.T) {
	ctx := newCtx(document.Embedded)
	_, err := stage.Translate("$bogus", nil, ctx)
	require.Error(t, err)
}
