// Package plan is the Pipeline Planner (spec §4.6): it takes a raw
// aggregation pipeline, optionally rewrites it with a rule-based
// optimizer, chooses between the simple-plan and CTE-plan strategies,
// and folds every stage's StageResult into one SQL statement (plus,
// for a pipeline ending in $facet, a set of standalone facet queries).
package plan

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/params"
	"github.com/dot-do/mondodb-sub011/stage"
)

// shapeTransformingNames is spec §4.6's exact simple-plan eligibility
// set: "at most one shape-transforming stage among $project, $group,
// $addFields". $set is $addFields's alias and counts the same;
// $unset/$bucket/$bucketAuto/$sortByCount also transform shape but
// spec's simple-plan rule names only these three, so the count below
// follows the spec text literally rather than generalizing from
// StageResult.TransformsShape.
var shapeTransformingNames = map[string]bool{
	"$project":   true,
	"$group":     true,
	"$addFields": true,
	"$set":       true,
}

// Stage is one raw pipeline stage as decoded from the caller's payload:
// exactly one operator name mapped to its argument.
type Stage struct {
	Name    string
	Payload any
}

// Result is what a translated pipeline hands back to the executor.
type Result struct {
	SQL    string
	Params []any
	Facets []stage.FacetQuery
	// LastSort is the last $sort stage's keys, if the pipeline contained
	// one, for the executor's spec §4.7 post-sort step: SQL sorted on a
	// $function placeholder string is meaningless for the function's
	// true resolved value, so the executor re-applies this same sort
	// in-memory once placeholders are resolved.
	LastSort []stage.SortKey
}

// Option configures a single Translate call.
type Option func(*options)

type options struct {
	optimize bool
	log      *logrus.Entry
}

// WithOptimizer toggles the rule-based pre-plan rewrite (spec §4.6's
// optimizer is "enabled by default; an option disables it").
func WithOptimizer(enabled bool) Option {
	return func(o *options) { o.optimize = enabled }
}

// WithLogger attaches a structured logger for routing/optimizer
// decisions. A nil entry (the default) makes logging a no-op, per
// SPEC_FULL §2's ambient-stack logging rule.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.log = l }
}

// Translate compiles pipeline (a decoded aggregation pipeline array,
// each element a single-key stage object) into a Result.
func Translate(collection string, d document.Dialect, pipeline []Stage, opts ...Option) (Result, error) {
	cfg := options{optimize: true}
	for _, o := range opts {
		o(&cfg)
	}
	logEntry := cfg.log
	if logEntry == nil {
		logEntry = logrus.NewEntry(logrus.New())
		logEntry.Logger.SetOutput(noopWriter{})
	}

	pipeline = append([]Stage(nil), pipeline...)
	if cfg.optimize {
		before := len(pipeline)
		pipeline = optimize(pipeline, logEntry)
		logEntry.WithFields(logrus.Fields{
			"stages_before": before,
			"stages_after":  len(pipeline),
		}).Debug("plan: optimizer rewrite applied")
	}

	lastSort, err := lastSortKeys(pipeline)
	if err != nil {
		return Result{}, err
	}

	buf := params.New()
	ctx := stage.NewContext(collection, d, buf)

	if simplePlanEligible(pipeline) {
		logEntry.Debug("plan: simple-plan strategy selected")
		sql, err := runSimplePlan(ctx, pipeline)
		if err != nil {
			return Result{}, err
		}
		return Result{SQL: sql, Params: buf.Values(), LastSort: lastSort}, nil
	}

	logEntry.Debug("plan: CTE-plan strategy selected")
	res, err := runCTEPlan(ctx, pipeline)
	if err != nil {
		return Result{}, err
	}
	res.LastSort = lastSort
	return res, nil
}

// lastSortKeys returns the last $sort stage's keys in pipeline, per spec
// §4.7's "apply the last such sort again in-memory" rule. Returns nil if
// the pipeline has no $sort stage.
func lastSortKeys(pipeline []Stage) ([]stage.SortKey, error) {
	for i := len(pipeline) - 1; i >= 0; i-- {
		if pipeline[i].Name == "$sort" {
			return stage.ParseSortKeys(pipeline[i].Payload)
		}
	}
	return nil, nil
}

// simplePlanEligible implements spec §4.6's exact simple-plan test.
func simplePlanEligible(pipeline []Stage) bool {
	shapeCount := 0
	for _, s := range pipeline {
		if stage.Flushing(s.Name) {
			return false
		}
		if shapeTransformingNames[s.Name] {
			shapeCount++
		}
	}
	return shapeCount <= 1
}

func runSimplePlan(ctx *stage.Context, pipeline []Stage) (string, error) {
	sel := "data"
	var where []string
	var joins []string
	var groupBy, orderBy []string
	var limit, offset *int

	for _, s := range pipeline {
		res, err := stage.Translate(s.Name, s.Payload, ctx)
		if err != nil {
			return "", errors.Wrapf(err, "stage %s", s.Name)
		}
		if res.Select != "" {
			sel = res.Select
		}
		if res.Where != "" {
			where = append(where, res.Where)
		}
		if len(res.ExtraJoins) > 0 {
			joins = append(joins, res.ExtraJoins...)
		}
		if len(res.GroupBy) > 0 {
			groupBy = res.GroupBy
		}
		if len(res.OrderBy) > 0 {
			orderBy = res.OrderBy
		}
		if res.Limit != nil {
			limit = res.Limit
		}
		if res.Offset != nil {
			offset = res.Offset
		}
	}

	var b strings.Builder
	b.WriteString("SELECT " + sel + " AS data FROM " + ctx.Collection)
	for _, j := range joins {
		b.WriteString(" " + j)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(groupBy, ", "))
	}
	if len(orderBy) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(orderBy, ", "))
	}
	if limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*limit))
	}
	if offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*offset))
	}
	return b.String(), nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
