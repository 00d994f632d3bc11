// Package dialect is the Dialect Capability Table (spec §4.2): the single
// place that knows what concrete SQL fragment a backend uses for each
// abstract operation, reached through dialect.For. Outside this package
// the only branches on document.Dialect are in package stage, for shapes
// the analytical table has no fragment for: $project exclusion and
// $addFields (FeatureUnavailable), and the select lists of $unwind and
// $lookup.
package dialect

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
)

// Capabilities is the trait every dialect implements once. Every method
// is a pure string-building function: inputs are already-translated SQL
// fragments or column/path names that have passed ident validation, and
// outputs are SQL text with no bound values embedded (those come through
// params.Buf at the call site).
type Capabilities interface {
	Name() string

	// JSON navigation
	JSONExtract(col string, pathParts []string) string
	JSONTypeAt(col string, pathParts []string) string
	JSONArrayLength(col string, pathParts []string) string

	// Casts
	CastInt(expr string) string
	CastFloat(expr string) string
	CastText(expr string) string
	CastDate(expr string) string
	CastDecimal(expr string) string

	// Group accumulators
	AggPush(expr string) string
	AggAddToSet(expr string) string
	AggFirst(expr string) string
	AggLast(expr string) string
	AggCountStar() string

	// Strings
	StrConcat(parts []string) string
	StrLength(expr string) string
	StrPosition(haystack, needle string) string
	StrReplace(expr, from, to string) string
	StrLower(expr string) string
	StrUpper(expr string) string
	StrSubstr(expr, start, length string) string

	// Dates
	DateParse(expr string) string
	DateYear(expr string) string
	DateStartOf(unit, expr string) string
	DateDiff(unit, a, b string) string
	DateAdd(unit, expr, amount string) string

	// Arrays
	// UnwindJoin returns a FROM-clause fragment joining arrExpr's elements
	// under alias; elementExpr() returns the SQL referring to the current
	// element once inside that join's scope.
	UnwindJoin(arrExpr, alias string, preserveNullAndEmpty bool) (join string, elementExpr string, indexExpr string)
	// ArrayExists wraps predicateSQL (already built, referencing elemAlias
	// as the current element) in an existence test over arrExpr's
	// elements.
	ArrayExists(arrExpr, elemAlias, predicateSQL string) string
	// ElemColumn returns the column expression a nested field reference
	// resolves against once inside an ArrayExists/UnwindJoin scope bound
	// to alias (e.g. "$elemMatch" on an array of sub-documents).
	ElemColumn(alias string) string

	// Misc
	RegexMatch(expr, patternPlaceholder string, caseInsensitive bool) string
	Coalesce(parts []string) string
	GroupObject(pairs [][2]string) string
	ObjectRemove(col string, paths []string) string
	ObjectSet(col string, path string, valueExpr string) string
	RandomOrder() string

	// Full text search (spec §4.8); analytical dialect returns an error
	// via FeatureUnavailable at the call site, not here — the table just
	// reports whether it's supported.
	SupportsSearch() bool
	FTSJoin(collection, ftsTable string) string
	FTSMatch(ftsTable, placeholder string) string
	FTSScore(ftsTable string) string
}

// For returns the capability table for d.
func For(d document.Dialect) Capabilities {
	switch d {
	case document.Analytical:
		return analyticalCaps{}
	default:
		return embeddedCaps{}
	}
}

// jsonPath renders pathParts as a "$.a.b" JSON Pointer-ish path for the
// embedded (SQLite json1) dialect.
func jsonPath(pathParts []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, p := range pathParts {
		b.WriteByte('.')
		b.WriteString(p)
	}
	return b.String()
}

// quotedParts renders pathParts as a comma-separated list of single-quoted
// literals for the analytical (ClickHouse-ish) JSONExtractRaw-style calls,
// which take each path segment as its own argument.
func quotedParts(pathParts []string) string {
	parts := make([]string, len(pathParts))
	for i, p := range pathParts {
		parts[i] = "'" + strings.ReplaceAll(p, "'", "''") + "'"
	}
	return strings.Join(parts, ", ")
}
