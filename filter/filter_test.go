package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/filter"
	"github.com/dot-do/mondodb-sub011/params"
)

func translate(t *testing.T, raw map[string]any, d document.Dialect) (string, []any) {
	t.Helper()
	f, err := filter.Parse(raw)
	require.NoError(t, err)
	buf := params.New()
	sql, joins, err := filter.Translate(f, "orders", dialect.For(d), buf)
	require.NoError(t, err)
	assert.Empty(t, joins)
	return sql, buf.Values()
}

func TestEmptyFilter(t *testing.T) {
	sql, params := translate(t, map[string]any{}, document.Embedded)
	assert.Equal(t, "1=1", sql)
	assert.Empty(t, params)
}

func TestLiteralEquality(t *testing.T) {
	sql, params := translate(t, map[string]any{"status": "open"}, document.Embedded)
	assert.Equal(t, "json_extract(data, '$.status') = ?", sql)
	assert.Equal(t, []any{"open"}, params)
}

func TestNullEquality(t *testing.T) {
	sql, _ := translate(t, map[string]any{"status": nil}, document.Embedded)
	assert.Equal(t, "json_extract(data, '$.status') IS NULL", sql)
}

func TestMultipleTopLevelKeysAreANDed(t *testing.T) {
	sql, _ := translate(t, map[string]any{"a": 1.0, "b": 2.0}, document.Embedded)
	assert.Equal(t, "(json_extract(data, '$.a') = ? AND json_extract(data, '$.b') = ?)", sql)
}

func TestAndOrNor(t *testing.T) {
	raw := map[string]any{"$or": []any{
		map[string]any{"a": 1.0},
		map[string]any{"b": 2.0},
	}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, "(json_extract(data, '$.a') = ? OR json_extract(data, '$.b') = ?)", sql)

	raw = map[string]any{"$nor": []any{
		map[string]any{"a": 1.0},
		map[string]any{"b": 2.0},
	}}
	sql, _ = translate(t, raw, document.Embedded)
	assert.Equal(t, "NOT ((json_extract(data, '$.a') = ? OR json_extract(data, '$.b') = ?))", sql)
}

func TestComparisonOperators(t *testing.T) {
	raw := map[string]any{"age": map[string]any{"$gte": 18.0, "$lt": 65.0}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "(json_extract(data, '$.age') >= ? AND json_extract(data, '$.age') < ?)", sql)
	assert.Equal(t, []any{18.0, 65.0}, params)
}

func TestInNin(t *testing.T) {
	raw := map[string]any{"status": map[string]any{"$in": []any{"a", "b"}}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "json_extract(data, '$.status') IN (?, ?)", sql)
	assert.Equal(t, []any{"a", "b"}, params)
}

func TestEmptyInIsConstantFalse(t *testing.T) {
	raw := map[string]any{"status": map[string]any{"$in": []any{}}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, "1=0", sql)
}

func TestExists(t *testing.T) {
	raw := map[string]any{"nick": map[string]any{"$exists": true}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, "json_type(json_extract(data, '$.nick')) IS NOT NULL", sql)

	raw = map[string]any{"nick": map[string]any{"$exists": false}}
	sql, _ = translate(t, raw, document.Embedded)
	assert.Equal(t, "json_type(json_extract(data, '$.nick')) IS NULL", sql)
}

func TestTypeMapping(t *testing.T) {
	raw := map[string]any{"age": map[string]any{"$type": "number"}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "json_type(json_extract(data, '$.age')) IN (?, ?)", sql)
	assert.Equal(t, []any{"integer", "real"}, params)
}

func TestRegexWithOptions(t *testing.T) {
	raw := map[string]any{"name": map[string]any{"$regex": "^A", "$options": "i"}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "LOWER(json_extract(data, '$.name')) LIKE LOWER(?)", sql)
	assert.Equal(t, []any{"^A"}, params)
}

func TestSize(t *testing.T) {
	raw := map[string]any{"tags": map[string]any{"$size": 3.0}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "json_array_length(json_extract(data, '$.tags')) = ?", sql)
	assert.Equal(t, []any{3}, params)
}

func TestElemMatch(t *testing.T) {
	raw := map[string]any{"scores": map[string]any{"$elemMatch": map[string]any{"$gt": 80.0}}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "EXISTS (SELECT 1 FROM json_each(json_extract(data, '$.scores')) AS elem1 WHERE elem1.value > ?)", sql)
	assert.Equal(t, []any{80.0}, params)
}

func TestElemMatchNestedField(t *testing.T) {
	raw := map[string]any{"scores": map[string]any{"$elemMatch": map[string]any{"grade": "A"}}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, "EXISTS (SELECT 1 FROM json_each(json_extract(data, '$.scores')) AS elem1 WHERE json_extract(elem1.value, '$.grade') = ?)", sql)
}

func TestAll(t *testing.T) {
	raw := map[string]any{"tags": map[string]any{"$all": []any{"a", "b"}}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "(EXISTS (SELECT 1 FROM json_each(json_extract(data, '$.tags')) AS elem1 WHERE elem1.value = ?) AND EXISTS (SELECT 1 FROM json_each(json_extract(data, '$.tags')) AS elem2 WHERE elem2.value = ?))", sql)
	assert.Equal(t, []any{"a", "b"}, params)
}

func TestNot(t *testing.T) {
	raw := map[string]any{"age": map[string]any{"$not": map[string]any{"$gt": 18.0}}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, "NOT (json_extract(data, '$.age') > ?)", sql)
}

func TestExprFilter(t *testing.T) {
	raw := map[string]any{"$expr": map[string]any{"$gt": []any{"$a", "$b"}}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, "(json_extract(data, '$.a') > json_extract(data, '$.b'))", sql)
}

func TestWhereRejected(t *testing.T) {
	_, err := filter.Parse(map[string]any{"$where": "this.a > this.b"})
	require.Error(t, err)
	assert.True(t, document.Is(err, document.CodeUnsupportedOperator))
}

func TestTextFilter(t *testing.T) {
	raw := map[string]any{"$text": map[string]any{"$search": "coffee shop"}}
	f, err := filter.Parse(raw)
	require.NoError(t, err)
	buf := params.New()
	sql, joins, err := filter.Translate(f, "orders", dialect.For(document.Embedded), buf)
	require.NoError(t, err)
	require.Len(t, joins, 1)
	assert.Equal(t, "JOIN orders_fts ON orders.id = orders_fts.rowid", joins[0])
	assert.Equal(t, "orders_fts MATCH ?", sql)
	assert.Equal(t, []any{"coffee shop"}, buf.Values())
}

func TestTextFilterUnsupportedOnAnalytical(t *testing.T) {
	f, err := filter.Parse(map[string]any{"$text": map[string]any{"$search": "x"}})
	require.NoError(t, err)
	buf := params.New()
	_, _, err = filter.Translate(f, "orders", dialect.For(document.Analytical), buf)
	require.Error(t, err)
	assert.True(t, document.Is(err, document.CodeFeatureUnavailable))
}

func TestDeterministicMultiOperatorOrdering(t *testing.T) {
	raw := map[string]any{"age": map[string]any{"$lt": 65.0, "$gte": 18.0}}
	sql1, _ := translate(t, raw, document.Embedded)
	sql2, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, "(json_extract(data, '$.age') >= ? AND json_extract(data, '$.age') < ?)", sql1)
}
