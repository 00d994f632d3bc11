// Package stage is the Stage Translators component (spec §4.5): one
// translator per pipeline stage, each consuming a shared Context and
// emitting a StageResult the Pipeline Planner (package plan) folds into
// either a simple SELECT or a CTE chain.
package stage

import (
	"strconv"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/params"
)

// Context is the "stage context" spec §4.5 requires every translator
// accept: the collection name, the dialect's capability table, the
// shared parameter buffer, the current upstream source (the base
// collection or a previous stage's CTE alias), and a monotone counter
// shared across the whole pipeline for synthesizing CTE names and join
// aliases deterministically.
type Context struct {
	Collection string
	Dialect    document.Dialect
	Caps       dialect.Capabilities
	Buf        *params.Buf
	Source     string
	seq        *int
}

// NewContext builds the root Context a planner starts a pipeline with.
func NewContext(collection string, d document.Dialect, buf *params.Buf) *Context {
	seq := 0
	return &Context{
		Collection: collection,
		Dialect:    d,
		Caps:       dialect.For(d),
		Buf:        buf,
		Source:     collection,
		seq:        &seq,
	}
}

// WithSource returns a copy of ctx reading from a different upstream
// source (used by $facet for each of its sub-pipelines).
func (ctx *Context) WithSource(source string) *Context {
	cp := *ctx
	cp.Source = source
	return &cp
}

// NextSeq returns the next value of the pipeline-wide monotone counter,
// used for CTE names ("stage_<n>") and join aliases ("u<n>", "f<n>") alike so
// every synthesized identifier is unique and, because the counter only
// ever advances in stage-translation order, deterministic.
func (ctx *Context) NextSeq() int {
	*ctx.seq++
	return *ctx.seq
}

func (ctx *Context) NextAlias(prefix string) string {
	return prefix + strconv.Itoa(ctx.NextSeq())
}

// FacetQuery is one named sub-pipeline's translated query, as spec
// §4.5's $facet bullet describes: "a facets map name → (sql, params)".
type FacetQuery struct {
	Name   string
	SQL    string
	Params []any
}

// StageResult is the uniform shape every stage translator returns.
//
// Accumulable stages ($match, $sort, $limit, $skip, $project, $group,
// $addFields, $bucket, $count, $sample, $sortByCount, $unset,
// $bucketAuto) populate the clause-overlay fields; the planner folds
// them onto the running simple-plan clauses or the pending-clauses
// bucket of the current CTE segment.
//
// Flushing stages ($lookup, $unwind, $search, $facet) populate CTEName
// and CTEBody instead: the planner flushes whatever is pending into its
// own CTE first, then splices this one in as the new source. $facet
// populates Facets and leaves CTEBody empty, since it terminates the
// main query rather than continuing it (spec §4.5).
type StageResult struct {
	Select          string
	Where           string
	ExtraJoins      []string
	GroupBy         []string
	OrderBy         []string
	Limit           *int
	Offset          *int
	TransformsShape bool

	CTEName string
	CTEBody string
	NewSource string

	Facets []FacetQuery
}

// RequiresFlush reports whether s must be spliced in as its own CTE
// rather than folded onto the running clause set (spec §4.6's "flushing
// stage" list: $lookup, $unwind, $search, $facet).
func (s StageResult) RequiresFlush() bool {
	return s.CTEBody != "" || len(s.Facets) > 0
}

func intPtr(n int) *int { return &n }
