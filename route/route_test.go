package route_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/route"
)

// fakeCatalog is a stub Catalog; available/supports are keyed by engine.
type fakeCatalog struct {
	available map[route.Engine]bool
	supports  map[route.Engine]bool
}

func (f fakeCatalog) Available(e route.Engine) bool { return f.available[e] }
func (f fakeCatalog) Supports(e route.Engine, _ route.Features) bool {
	if f.supports == nil {
		return true
	}
	return f.supports[e]
}

func bothAvailable() fakeCatalog {
	return fakeCatalog{available: map[route.Engine]bool{route.EngineA: true, route.EngineB: true}}
}

func TestDetectFeaturesJoinAndWindow(t *testing.T) {
	f := route.Detect(`SELECT a.x, RANK() OVER (ORDER BY a.x) FROM a JOIN b ON a.id = b.id`)
	assert.True(t, f.Join)
	assert.True(t, f.Window)
	assert.False(t, f.CTE)
}

func TestDetectImplicitJoin(t *testing.T) {
	f := route.Detect(`SELECT * FROM a, b WHERE a.id = b.id`)
	assert.True(t, f.ImplicitJoin)
}

func TestDetectCTEExcludesTimeZone(t *testing.T) {
	f := route.Detect(`SELECT CAST(x AS TIMESTAMP WITH TIME ZONE) FROM a`)
	assert.False(t, f.CTE)
}

func TestDetectCTE(t *testing.T) {
	f := route.Detect(`WITH recent AS (SELECT * FROM a) SELECT * FROM recent`)
	assert.True(t, f.CTE)
	assert.False(t, f.RecursiveCTE)
}

func TestDetectRecursiveCTE(t *testing.T) {
	f := route.Detect(`WITH RECURSIVE tree AS (SELECT * FROM a) SELECT * FROM tree`)
	assert.True(t, f.CTE)
	assert.True(t, f.RecursiveCTE)
}

func TestDetectDistinctTables(t *testing.T) {
	f := route.Detect(`SELECT * FROM a JOIN b ON a.id = b.id JOIN a AS dup ON dup.id = b.id`)
	assert.Equal(t, 2, f.DistinctTables)
}

func TestScoreAndBucket(t *testing.T) {
	f := route.Features{Join: true, Subquery: true}
	score := route.Score(f)
	assert.Equal(t, 3, score)
	assert.Equal(t, route.BucketComplex, route.BucketFor(score))
}

func TestScoreRecursiveCTEAddsToCTE(t *testing.T) {
	f := route.Features{CTE: true, RecursiveCTE: true}
	assert.Equal(t, 5, route.Score(f))
}

func TestRouteAutomaticSimpleGoesToEngineA(t *testing.T) {
	decision, err := route.Route(`SELECT * FROM a WHERE x = 1`, route.Hints{}, bothAvailable())
	require.NoError(t, err)
	assert.Equal(t, route.EngineA, decision.Engine)
	assert.Equal(t, route.BucketSimple, decision.Bucket)
	assert.Equal(t, route.LevelLow, decision.Complexity)
	assert.False(t, decision.Fallback)
}

func TestRouteAutomaticJoinGoesToEngineB(t *testing.T) {
	decision, err := route.Route(`SELECT * FROM a JOIN b ON a.id = b.id`, route.Hints{}, bothAvailable())
	require.NoError(t, err)
	assert.Equal(t, route.EngineB, decision.Engine)
}

func TestRouteAutomaticLargeResultHint(t *testing.T) {
	decision, err := route.Route(`SELECT * FROM a`, route.Hints{EstimatedRows: 5_000_000}, bothAvailable())
	require.NoError(t, err)
	assert.Equal(t, route.EngineB, decision.Engine)
}

func TestRouteExplicitEngineWins(t *testing.T) {
	decision, err := route.Route(`SELECT * FROM a JOIN b ON a.id = b.id`,
		route.Hints{ExplicitEngine: route.EngineA}, bothAvailable())
	require.NoError(t, err)
	assert.Equal(t, route.EngineA, decision.Engine)
	assert.Equal(t, "explicit engine requested", decision.Reason)
}

func TestRouteExplicitEngineWarnsOnMismatch(t *testing.T) {
	cat := fakeCatalog{
		available: map[route.Engine]bool{route.EngineA: true, route.EngineB: true},
		supports:  map[route.Engine]bool{route.EngineA: false, route.EngineB: true},
	}
	decision, err := route.Route(`SELECT * FROM a JOIN b ON a.id = b.id`,
		route.Hints{ExplicitEngine: route.EngineA}, cat)
	require.NoError(t, err)
	assert.Equal(t, route.EngineA, decision.Engine)
	assert.NotEmpty(t, decision.Warnings)
}

func TestRoutePreferredEngineUsedWhenAvailable(t *testing.T) {
	decision, err := route.Route(`SELECT * FROM a`, route.Hints{PreferredEngine: route.EngineB}, bothAvailable())
	require.NoError(t, err)
	assert.Equal(t, route.EngineB, decision.Engine)
}

func TestRouteFallsBackWhenChosenUnavailable(t *testing.T) {
	cat := fakeCatalog{available: map[route.Engine]bool{route.EngineB: true}}
	decision, err := route.Route(`SELECT * FROM a`, route.Hints{}, cat)
	require.NoError(t, err)
	assert.Equal(t, route.EngineB, decision.Engine)
	assert.True(t, decision.Fallback)
}

func TestRouteFallbackMayFailWhenUnsupported(t *testing.T) {
	cat := fakeCatalog{
		available: map[route.Engine]bool{route.EngineB: true},
		supports:  map[route.Engine]bool{route.EngineB: false},
	}
	decision, err := route.Route(`SELECT * FROM a JOIN b ON a.id = b.id`, route.Hints{ExplicitEngine: route.EngineA}, cat)
	require.NoError(t, err)
	assert.True(t, decision.Fallback)
	assert.True(t, decision.MayFail)
}

func TestRouteNoEngineAvailable(t *testing.T) {
	cat := fakeCatalog{available: map[route.Engine]bool{}}
	_, err := route.Route(`SELECT * FROM a`, route.Hints{}, cat)
	require.Error(t, err)
	assert.True(t, document.Is(err, document.CodeNoEngineAvailable))
}
