package translator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/executor"
	"github.com/dot-do/mondodb-sub011/plan"
	"github.com/dot-do/mondodb-sub011/route"
	translator "github.com/dot-do/mondodb-sub011"
)

type fakeBackend struct {
	rows []executor.Row
}

func (b fakeBackend) Execute(_ context.Context, _ string, _ []any) ([]executor.Row, error) {
	return b.rows, nil
}

type fakeCatalog struct {
	available map[route.Engine]bool
}

func (c fakeCatalog) Available(e route.Engine) bool { return c.available[e] }
func (c fakeCatalog) Supports(route.Engine, route.Features) bool { return true }

func TestTranslatePipelineSimple(t *testing.T) {
	tr := translator.New()
	res, err := tr.TranslatePipeline("orders", document.Embedded, []any{
		map[string]any{"$match": map[string]any{"status": "open"}},
		map[string]any{"$limit": 10.0},
	})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "FROM orders")
	assert.Contains(t, res.SQL, "WHERE")
	assert.Contains(t, res.SQL, "LIMIT 10")
	assert.Equal(t, []any{"open"}, res.Params)
}

func TestTranslateFindCollapsesToPipeline(t *testing.T) {
	tr := translator.New()
	skip, limit := 5, 20
	res, err := tr.TranslateFind("orders", document.Embedded,
		map[string]any{"status": "open"},
		[]any{map[string]any{"age": -1.0}},
		&skip, &limit,
	)
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "WHERE")
	assert.Contains(t, res.SQL, "ORDER BY")
	assert.Contains(t, res.SQL, "LIMIT 20")
	assert.Contains(t, res.SQL, "OFFSET 5")
}

func TestTranslateFindNoFilterOrSort(t *testing.T) {
	tr := translator.New()
	res, err := tr.TranslateFind("orders", document.Embedded, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, res.SQL, "WHERE")
	assert.Equal(t, "SELECT data AS data FROM orders", res.SQL)
}

func TestTranslateFilterFragmentOnly(t *testing.T) {
	tr := translator.New()
	where, joins, params, err := tr.TranslateFilter("orders", document.Embedded, map[string]any{"status": "open"})
	require.NoError(t, err)
	assert.Empty(t, joins)
	assert.NotContains(t, where, "SELECT")
	assert.Equal(t, []any{"open"}, params)
}

func TestRouteWithoutCatalogFails(t *testing.T) {
	tr := translator.New()
	_, err := tr.Route(plan.Result{SQL: "SELECT x FROM orders"}, route.Hints{})
	require.Error(t, err)
}

func TestRoutePicksAvailableEngine(t *testing.T) {
	cat := fakeCatalog{available: map[route.Engine]bool{route.EngineA: true, route.EngineB: true}}
	tr := translator.New(translator.WithCatalog(cat))
	decision, err := tr.Route(plan.Result{SQL: "SELECT x FROM orders"}, route.Hints{})
	require.NoError(t, err)
	assert.False(t, decision.Fallback)
}

func TestExecuteRunsBackend(t *testing.T) {
	backend := fakeBackend{rows: []executor.Row{{Data: []byte(`{"a":1}`)}}}
	tr := translator.New()
	docs, err := tr.Execute(context.Background(), backend, plan.Result{SQL: "SELECT x FROM orders"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(1), docs[0]["a"])
}
