package plan

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/stage"
)

// pending is the CTE-plan's running bucket of accumulable clauses —
// spec §4.6's "pending-clauses bucket for accumulable stages" — flushed
// into a CTE whenever a flushing stage, or a conflicting shape-transform,
// is encountered.
type pending struct {
	sel     string
	where   []string
	joins   []string
	groupBy []string
	orderBy []string
	limit   *int
	offset  *int
	dirty   bool
}

func newPending() *pending { return &pending{sel: "data"} }

func (p *pending) apply(res stage.StageResult) {
	if res.Select != "" {
		p.sel = res.Select
		p.dirty = true
	}
	if res.Where != "" {
		p.where = append(p.where, res.Where)
		p.dirty = true
	}
	if len(res.ExtraJoins) > 0 {
		p.joins = append(p.joins, res.ExtraJoins...)
		p.dirty = true
	}
	if len(res.GroupBy) > 0 {
		p.groupBy = res.GroupBy
		p.dirty = true
	}
	if len(res.OrderBy) > 0 {
		p.orderBy = res.OrderBy
		p.dirty = true
	}
	if res.Limit != nil {
		p.limit = res.Limit
		p.dirty = true
	}
	if res.Offset != nil {
		p.offset = res.Offset
		p.dirty = true
	}
}

// render emits a standalone SELECT over source. Every intermediate CTE
// body aliases its projection "AS data" so the next segment's field
// references (built as json_extract(data, ...) / JSONExtractRaw(data,
// ...)) keep resolving against a column actually named "data" — the
// same convention stage/unwind.go and stage/lookup.go's own CTE bodies
// already follow for their flushing-stage output.
func (p *pending) render(source string) string {
	var b strings.Builder
	b.WriteString("SELECT " + p.sel + " AS data FROM " + source)
	for _, j := range p.joins {
		b.WriteString(" " + j)
	}
	if len(p.where) > 0 {
		b.WriteString(" WHERE " + strings.Join(p.where, " AND "))
	}
	if len(p.groupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(p.groupBy, ", "))
	}
	if len(p.orderBy) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(p.orderBy, ", "))
	}
	if p.limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*p.limit))
	}
	if p.offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*p.offset))
	}
	return b.String()
}

// conflictsWithPending reports whether name is a shape-transforming
// stage that would overwrite a pending select already set by an earlier
// shape-transforming stage (spec §4.6: "a second $project after a
// pending $project" flushes first).
func conflictsWithPending(name string, p *pending) bool {
	return shapeTransformingNames[name] && p.sel != "data"
}

// runCTEPlan implements spec §4.6's CTE-plan strategy: a list of CTE
// definitions, a monotone cte_index (here just stage.Context.NextAlias),
// and a current source that starts as the collection name and becomes
// each new CTE's name in turn.
func runCTEPlan(ctx *stage.Context, pipeline []Stage) (Result, error) {
	var ctes []string
	p := newPending()

	flush := func() {
		if !p.dirty {
			return
		}
		name := ctx.NextAlias("stage_")
		ctes = append(ctes, name+" AS ("+p.render(ctx.Source)+")")
		ctx.Source = name
		p = newPending()
	}

	for i, s := range pipeline {
		if s.Name == "$search" && i != 0 {
			return Result{}, document.NewMalformedStage("$search must be the first stage in the pipeline")
		}
		if stage.Flushing(s.Name) {
			flush()
			res, err := stage.Translate(s.Name, s.Payload, ctx)
			if err != nil {
				return Result{}, errors.Wrapf(err, "stage %s", s.Name)
			}
			if len(res.Facets) > 0 {
				// Facet queries read from ctx.Source, which may be a CTE
				// flushed above, so each one carries those definitions.
				if len(ctes) > 0 {
					with := "WITH " + strings.Join(ctes, ", ") + " "
					for i := range res.Facets {
						res.Facets[i].SQL = with + res.Facets[i].SQL
					}
				}
				return Result{Facets: res.Facets, Params: ctx.Buf.Values()}, nil
			}
			ctes = append(ctes, res.CTEName+" AS ("+res.CTEBody+")")
			ctx.Source = res.NewSource
			// A flushing stage's own CTEBody already carries its Select/
			// Where; any remaining overlay fields it also set (e.g.
			// $search's score ORDER BY) still need to land on the next
			// segment's pending bucket, since p was just reset by flush().
			p.apply(stage.StageResult{OrderBy: res.OrderBy, Limit: res.Limit, Offset: res.Offset})
			continue
		}

		if conflictsWithPending(s.Name, p) {
			flush()
		}
		res, err := stage.Translate(s.Name, s.Payload, ctx)
		if err != nil {
			return Result{}, errors.Wrapf(err, "stage %s", s.Name)
		}
		p.apply(res)
	}

	finalSelect := p.render(ctx.Source)
	var sql string
	if len(ctes) > 0 {
		sql = "WITH " + strings.Join(ctes, ", ") + " " + finalSelect
	} else {
		sql = finalSelect
	}
	return Result{SQL: sql, Params: ctx.Buf.Values()}, nil
}
