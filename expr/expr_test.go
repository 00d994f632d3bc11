package expr_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/params"
)

func translate(t *testing.T, raw any, d document.Dialect) (string, []any) {
	t.Helper()
	e, err := expr.Parse(raw)
	require.NoError(t, err)
	buf := params.New()
	sql, err := expr.Translate(e, dialect.For(d), buf)
	require.NoError(t, err)
	return sql, buf.Values()
}

func TestFieldRef_BothDialects(t *testing.T) {
	sql, _ := translate(t, "$a.b", document.Embedded)
	assert.Equal(t, "json_extract(data, '$.a.b')", sql)

	sql, _ = translate(t, "$a.b", document.Analytical)
	assert.Equal(t, "JSONExtractRaw(data, 'a', 'b')", sql)
}

func TestSystemVariableRejected(t *testing.T) {
	_, err := expr.Parse("$$NOW")
	require.Error(t, err)
	assert.True(t, document.Is(err, document.CodeUnsupportedExpression))
}

func TestLiteral_BindsParameter(t *testing.T) {
	sql, params := translate(t, "active", document.Embedded)
	assert.Equal(t, "?", sql)
	assert.Equal(t, []any{"active"}, params)
}

func TestLiteral_Null(t *testing.T) {
	sql, params := translate(t, nil, document.Embedded)
	assert.Equal(t, "NULL", sql)
	assert.Empty(t, params)
}

func TestArithmetic(t *testing.T) {
	sql, params := translate(t, map[string]any{"$add": []any{"$a", 1.0}}, document.Embedded)
	assert.Equal(t, "(json_extract(data, '$.a') + ?)", sql)
	assert.Equal(t, []any{1.0}, params)
}

func TestSubstr_CorrectsZeroBasedIndex(t *testing.T) {
	sql, _ := translate(t, map[string]any{"$substr": []any{"$name", 0.0, 3.0}}, document.Embedded)
	assert.Equal(t, "SUBSTR(json_extract(data, '$.name'), (? + 1), ?)", sql)
}

func TestCond_ArrayForm(t *testing.T) {
	raw := map[string]any{"$cond": []any{
		map[string]any{"$gt": []any{"$age", 18.0}},
		"adult", "minor",
	}}
	sql, params := translate(t, raw, document.Embedded)
	assert.Equal(t, "CASE WHEN (json_extract(data, '$.age') > ?) THEN ? ELSE ? END", sql)
	assert.Equal(t, []any{18.0, "adult", "minor"}, params)
}

func TestCond_ObjectForm(t *testing.T) {
	raw := map[string]any{"$cond": map[string]any{
		"if": map[string]any{"$eq": []any{"$a", 1.0}}, "then": "y", "else": "n",
	}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Contains(t, sql, "CASE WHEN")
}

func TestSwitch(t *testing.T) {
	raw := map[string]any{"$switch": map[string]any{
		"branches": []any{
			map[string]any{"case": map[string]any{"$eq": []any{"$a", 1.0}}, "then": "one"},
		},
		"default": "other",
	}}
	sql, _ := translate(t, raw, document.Embedded)
	assert.Equal(t, "CASE WHEN (json_extract(data, '$.a') = ?) THEN ? ELSE ? END", sql)
}

func TestFunctionPlaceholder(t *testing.T) {
	raw := map[string]any{"$function": map[string]any{
		"body": "(x,y)=>x+y",
		"args": []any{"$a", "$b"},
		"lang": "js",
	}}
	sql, params := translate(t, raw, document.Embedded)
	require.Empty(t, params, "function args are not bound parameters")
	require.True(t, strings.HasPrefix(sql, "'__FUNCTION__"))
	require.True(t, strings.HasSuffix(sql, "'"))

	inner := strings.TrimSuffix(strings.TrimPrefix(sql, "'__FUNCTION__"), "'")
	inner = strings.ReplaceAll(inner, "''", "'")
	var payload struct {
		Body string `json:"body"`
		Args []struct {
			Type string `json:"type"`
			Path string `json:"path"`
		} `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(inner), &payload))
	assert.Equal(t, "(x,y)=>x+y", payload.Body)
	require.Len(t, payload.Args, 2)
	assert.Equal(t, "field", payload.Args[0].Type)
	assert.Equal(t, "a", payload.Args[0].Path)
}

func TestFunctionPlaceholder_EscapesQuotes(t *testing.T) {
	raw := map[string]any{"$function": map[string]any{
		"body": "x => x.replace(\"'\", '')",
		"args": []any{"$a"},
	}}
	sql, _ := translate(t, raw, document.Embedded)
	// Every single quote inside the payload must be doubled so the literal
	// stays well-formed SQL text.
	body := strings.TrimSuffix(strings.TrimPrefix(sql, "'__FUNCTION__"), "'")
	assert.Contains(t, body, "x.replace(\\\"''\\\", '''')") // single quote was doubled, not left bare
}

func TestDeepNestingRejected(t *testing.T) {
	raw := any(map[string]any{"$not": []any{true}})
	cur := raw
	for i := 0; i < expr.MaxDepth+5; i++ {
		cur = map[string]any{"$not": []any{cur}}
	}
	_, err := expr.Parse(cur)
	require.Error(t, err)
	assert.True(t, document.Is(err, document.CodeMalformedExpression))
}

func TestUnsupportedOperator(t *testing.T) {
	_, err := expr.Parse(map[string]any{"$bogus": 1.0})
	require.Error(t, err)
	assert.True(t, document.Is(err, document.CodeUnsupportedOperator))
}

func TestConcat_Analytical(t *testing.T) {
	sql, _ := translate(t, map[string]any{"$concat": []any{"$first", "$last"}}, document.Analytical)
	assert.Equal(t, "concat(JSONExtractRaw(data, 'first'), JSONExtractRaw(data, 'last'))", sql)
}
