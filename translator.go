// Package translator is the top-level facade wiring every component
// spec §4 names into one value a caller constructs once and reuses:
// decode a raw pipeline, plan it into SQL, route the analytical dialect
// to a concrete engine, and run it through an injected backend. Every
// package under this module is independently usable — this type exists
// because a real caller wants one configured object, not nine imports,
// mirroring how dolthub-go-mysql-server's Engine wraps its analyzer,
// process list, and prepared-statement cache behind a single
// constructor rather than making callers assemble them by hand.
package translator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/executor"
	"github.com/dot-do/mondodb-sub011/filter"
	"github.com/dot-do/mondodb-sub011/params"
	"github.com/dot-do/mondodb-sub011/plan"
	"github.com/dot-do/mondodb-sub011/route"
)

// Translator holds the configuration every Translate/Route/Execute call
// shares. It carries no per-query state and no backend connection of its
// own (spec §1: "never touches a filesystem, never imports a database
// driver") — Execute always takes the backend as an argument.
type Translator struct {
	optimize         bool
	facetConcurrency int
	sandbox          executor.SandboxLoader
	catalog          route.Catalog
	log              *logrus.Entry
}

// Option configures a Translator at construction.
type Option func(*Translator)

// WithOptimizer toggles the planner's rule-based rewrite pass (plan
// package default: enabled).
func WithOptimizer(enabled bool) Option {
	return func(t *Translator) { t.optimize = enabled }
}

// WithFacetConcurrency caps concurrent facet sub-query execution
// (executor package default: 4).
func WithFacetConcurrency(n int) Option {
	return func(t *Translator) { t.facetConcurrency = n }
}

// WithSandbox attaches the sandboxed loader $function resolution needs.
// Pipelines with no $function stage are unaffected by leaving this unset.
func WithSandbox(s executor.SandboxLoader) Option {
	return func(t *Translator) { t.sandbox = s }
}

// WithCatalog attaches the engine catalog Route needs to decide
// availability. Route returns NoEngineAvailable if called without one.
func WithCatalog(c route.Catalog) Option {
	return func(t *Translator) { t.catalog = c }
}

// WithLogger attaches one structured logger shared by the planner,
// router, and executor. A nil entry (the default) makes every component's
// logging a no-op, per SPEC_FULL §2's ambient logging rule.
func WithLogger(l *logrus.Entry) Option {
	return func(t *Translator) { t.log = l }
}

// New builds a Translator. The optimizer defaults on and facet
// concurrency defaults to 4, matching plan's and executor's own
// zero-option defaults.
func New(opts ...Option) *Translator {
	t := &Translator{optimize: true, facetConcurrency: 4}
	for _, o := range opts {
		o(t)
	}
	if t.log == nil {
		t.log = logrus.NewEntry(logrus.New())
		t.log.Logger.SetOutput(noopWriter{})
	}
	return t
}

// TranslatePipeline decodes rawPipeline (a JSON-decoded aggregation
// pipeline array, one single-key stage object per element) and compiles
// it for collection under dialect d.
func (t *Translator) TranslatePipeline(collection string, d document.Dialect, rawPipeline []any) (plan.Result, error) {
	stages, err := plan.DecodeStages(rawPipeline)
	if err != nil {
		return plan.Result{}, err
	}
	return plan.Translate(collection, d, stages, plan.WithOptimizer(t.optimize), plan.WithLogger(t.log))
}

// TranslateFind is sugar over TranslatePipeline for a plain find-style
// query: MongoDB's find() is itself a thin wrapper over the aggregation
// pipeline (spec's introduction), so a filter plus an optional sort,
// skip, and limit collapse to a pipeline of at most one stage each, in
// that order, then run through the same planner as any other pipeline.
// sortDoc, if non-empty and carrying more than one key, must already be
// in $sort's order-preserving array form (see stage.TranslateSort).
func (t *Translator) TranslateFind(collection string, d document.Dialect, filterDoc map[string]any, sortDoc any, skip, limit *int) (plan.Result, error) {
	var stages []plan.Stage
	if len(filterDoc) > 0 {
		stages = append(stages, plan.Stage{Name: "$match", Payload: filterDoc})
	}
	if sortDoc != nil {
		stages = append(stages, plan.Stage{Name: "$sort", Payload: sortDoc})
	}
	if skip != nil {
		stages = append(stages, plan.Stage{Name: "$skip", Payload: float64(*skip)})
	}
	if limit != nil {
		stages = append(stages, plan.Stage{Name: "$limit", Payload: float64(*limit)})
	}
	return plan.Translate(collection, d, stages, plan.WithOptimizer(t.optimize), plan.WithLogger(t.log))
}

// TranslateFilter exposes the Query Translator directly (spec §4.4): a
// bare WHERE-clause fragment (plus any join the filter required, e.g.
// $text's FTS join, and its bound parameters) with no SELECT wrapper.
// Most callers want TranslatePipeline or TranslateFind; this is for a
// caller assembling its own query shape around a condition.
func (t *Translator) TranslateFilter(collection string, d document.Dialect, filterDoc map[string]any) (where string, joins []string, boundParams []any, err error) {
	f, err := filter.Parse(filterDoc)
	if err != nil {
		return "", nil, nil, err
	}
	buf := params.New()
	where, joins, err = filter.Translate(f, collection, dialect.For(d), buf)
	if err != nil {
		return "", nil, nil, err
	}
	return where, joins, buf.Values(), nil
}

// Route decides which analytical engine should run res's SQL (spec
// §4.9). It is meaningful only for the analytical dialect; calling it on
// embedded-dialect SQL still works (the feature-detection regexes simply
// find nothing to score) but has no engine choice to make.
func (t *Translator) Route(res plan.Result, hints route.Hints) (route.RoutingDecision, error) {
	if t.catalog == nil {
		return route.RoutingDecision{}, document.NewNoEngineAvailable("translator: no catalog configured")
	}
	return route.Route(res.SQL, hints, t.catalog, route.WithLogger(t.log))
}

// Execute runs res to completion against backend (spec §4.7): the main
// query or every facet sub-query, $function placeholder resolution, and
// the post-resolution re-sort.
func (t *Translator) Execute(ctx context.Context, backend executor.Backend, res plan.Result) ([]document.Doc, error) {
	opts := []executor.Option{
		executor.WithFacetConcurrency(t.facetConcurrency),
		executor.WithLogger(t.log),
	}
	if t.sandbox != nil {
		opts = append(opts, executor.WithSandbox(t.sandbox))
	}
	return executor.New(backend, opts...).Run(ctx, res)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
