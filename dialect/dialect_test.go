package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
)

func TestFor_ReturnsDistinctTables(t *testing.T) {
	e := dialect.For(document.Embedded)
	a := dialect.For(document.Analytical)
	assert.Equal(t, "embedded", e.Name())
	assert.Equal(t, "analytical", a.Name())
}

func TestJSONExtract_Embedded(t *testing.T) {
	e := dialect.For(document.Embedded)
	assert.Equal(t, "json_extract(data, '$.a.b')", e.JSONExtract("data", []string{"a", "b"}))
}

func TestJSONExtract_Analytical(t *testing.T) {
	a := dialect.For(document.Analytical)
	assert.Equal(t, "JSONExtractRaw(data, 'a', 'b')", a.JSONExtract("data", []string{"a", "b"}))
}

func TestEveryOperationCoversBothDialects(t *testing.T) {
	// P4: every operation either has a concrete form in both dialects or
	// is explicitly unsupported (analytical panics are reserved for the
	// two object-shape operations and the three full-text operations,
	// which callers keep from ever reaching the table — see analytical.go).
	for _, d := range []document.Dialect{document.Embedded, document.Analytical} {
		caps := dialect.For(d)
		assert.NotEmpty(t, caps.JSONExtract("data", []string{"x"}))
		assert.NotEmpty(t, caps.CastInt("x"))
		assert.NotEmpty(t, caps.AggPush("x"))
		assert.NotEmpty(t, caps.StrConcat([]string{"a", "b"}))
		assert.NotEmpty(t, caps.Coalesce([]string{"a", "b"}))
	}
}

func TestSearchSupport(t *testing.T) {
	assert.True(t, dialect.For(document.Embedded).SupportsSearch())
	assert.False(t, dialect.For(document.Analytical).SupportsSearch())
}
