package executor_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/executor"
	"github.com/dot-do/mondodb-sub011/plan"
	"github.com/dot-do/mondodb-sub011/stage"
)

type fakeBackend struct {
	rows []executor.Row
	err  error
	// bySQL, if set, looks up rows by the exact SQL text passed in —
	// used by the facet test, where each facet query differs.
	bySQL map[string][]executor.Row
}

func (b fakeBackend) Execute(_ context.Context, sql string, _ []any) ([]executor.Row, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.bySQL != nil {
		return b.bySQL[sql], nil
	}
	return b.rows, nil
}

type fakeSandbox struct {
	result func(args [][]any) []any
	err    error
}

func (s fakeSandbox) ExecuteBatch(_ context.Context, _ string, args [][]any) ([]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result(args), nil
}

func TestRunNoPlaceholdersNoSort(t *testing.T) {
	backend := fakeBackend{rows: []executor.Row{
		{Data: []byte(`{"a":1,"b":"x"}`)},
		{Data: []byte(`{"a":2,"b":"y"}`)},
	}}
	e := executor.New(backend)
	docs, err := e.Run(context.Background(), plan.Result{SQL: "SELECT data AS data FROM orders"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, float64(1), docs[0]["a"])
	assert.Equal(t, float64(2), docs[1]["a"])
}

func TestRunSearchScoreAttached(t *testing.T) {
	score := 0.75
	backend := fakeBackend{rows: []executor.Row{{Data: []byte(`{"a":1}`), SearchScore: &score}}}
	e := executor.New(backend)
	docs, err := e.Run(context.Background(), plan.Result{SQL: "..."})
	require.NoError(t, err)
	assert.Equal(t, 0.75, docs[0]["_searchScore"])
}

func TestRunResolvesFunctionPlaceholder(t *testing.T) {
	ph := `__FUNCTION__{"body":"return a+b","args":[{"type":"field","path":"a"},{"type":"literal","index":1}],"literals":{"1":10}}`
	rowJSON, err := json.Marshal(map[string]any{"a": 5, "computed": ph})
	require.NoError(t, err)
	backend := fakeBackend{rows: []executor.Row{{Data: rowJSON}}}
	sandbox := fakeSandbox{result: func(args [][]any) []any {
		require.Len(t, args, 1)
		assert.Equal(t, float64(5), args[0][0])
		assert.Equal(t, float64(10), args[0][1])
		return []any{float64(15)}
	}}
	e := executor.New(backend, executor.WithSandbox(sandbox))
	docs, err := e.Run(context.Background(), plan.Result{SQL: "..."})
	require.NoError(t, err)
	assert.Equal(t, float64(15), docs[0]["computed"])
}

func TestRunFunctionPlaceholderWithoutSandboxFails(t *testing.T) {
	ph := `__FUNCTION__{"body":"return 1","args":[]}`
	rowJSON, err := json.Marshal(map[string]any{"computed": ph})
	require.NoError(t, err)
	backend := fakeBackend{rows: []executor.Row{{Data: rowJSON}}}
	e := executor.New(backend)
	_, err = e.Run(context.Background(), plan.Result{SQL: "..."})
	require.Error(t, err)
	assert.True(t, document.Is(err, document.CodeSandboxUnavailable))
}

func TestRunPostSortNullsLastAscending(t *testing.T) {
	backend := fakeBackend{rows: []executor.Row{
		{Data: []byte(`{"k":2}`)},
		{Data: []byte(`{"k":null}`)},
		{Data: []byte(`{"k":1}`)},
	}}
	e := executor.New(backend)
	docs, err := e.Run(context.Background(), plan.Result{
		SQL:      "...",
		LastSort: []stage.SortKey{{Field: "k", Descending: false}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, float64(1), docs[0]["k"])
	assert.Equal(t, float64(2), docs[1]["k"])
	assert.Nil(t, docs[2]["k"])
}

func TestRunPostSortNullsFirstDescending(t *testing.T) {
	backend := fakeBackend{rows: []executor.Row{
		{Data: []byte(`{"k":1}`)},
		{Data: []byte(`{"k":null}`)},
		{Data: []byte(`{"k":2}`)},
	}}
	e := executor.New(backend)
	docs, err := e.Run(context.Background(), plan.Result{
		SQL:      "...",
		LastSort: []stage.SortKey{{Field: "k", Descending: true}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Nil(t, docs[0]["k"])
	assert.Equal(t, float64(2), docs[1]["k"])
	assert.Equal(t, float64(1), docs[2]["k"])
}

func TestRunFacetsAssembledByName(t *testing.T) {
	backend := fakeBackend{bySQL: map[string][]executor.Row{
		"SELECT count FROM a": {{Data: []byte(`{"n":3}`)}},
		"SELECT rows FROM b":  {{Data: []byte(`{"x":1}`)}, {Data: []byte(`{"x":2}`)}},
	}}
	e := executor.New(backend)
	docs, err := e.Run(context.Background(), plan.Result{Facets: []stage.FacetQuery{
		{Name: "count", SQL: "SELECT count FROM a"},
		{Name: "rows", SQL: "SELECT rows FROM b"},
	}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	countArr, ok := docs[0]["count"].([]any)
	require.True(t, ok)
	require.Len(t, countArr, 1)
	rowsArr, ok := docs[0]["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rowsArr, 2)
}

func TestRunBackendErrorWrapped(t *testing.T) {
	backend := fakeBackend{err: assertErr{"boom"}}
	e := executor.New(backend)
	_, err := e.Run(context.Background(), plan.Result{SQL: "..."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
