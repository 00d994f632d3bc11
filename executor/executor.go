// Package executor is the Pipeline Executor (spec §4.7): it runs a
// plan.Result's SQL through an injected backend, resolves any
// $function placeholders via a sandboxed loader, re-applies the
// pipeline's last $sort on the resolved values, and assembles facet
// results into the pseudo-document spec §4.7 describes.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/plan"
	"github.com/dot-do/mondodb-sub011/stage"
)

// Backend is the consumed collaborator spec §6 names: a single round
// trip from SQL text and bound parameters to rows.
type Backend interface {
	Execute(ctx context.Context, sql string, params []any) ([]Row, error)
}

// Row is one result row. Data is a JSON-encoded document — for the
// embedded dialect the backend's own storage format, for the analytical
// dialect whatever a structured analytical.Row's RawData() re-encodes
// its column values as; the executor never branches on dialect itself,
// only ever sees JSON. SearchScore is populated only when the query
// requested $search scoring.
type Row struct {
	Data        []byte
	SearchScore *float64
}

// SandboxLoader is the consumed collaborator spec §6 names for
// resolving $function bodies: one batched invocation per distinct
// function body, returning one scalar per argument tuple in input
// order. Direct in-process evaluation of a function body is forbidden
// (spec §4.7's security rule) — this interface is the only sanctioned
// path to a result.
type SandboxLoader interface {
	ExecuteBatch(ctx context.Context, body string, args [][]any) ([]any, error)
}

// Executor runs translated pipelines to completion.
type Executor struct {
	backend          Backend
	sandbox          SandboxLoader
	facetConcurrency int
	log              *logrus.Entry
}

// Option configures an Executor at construction.
type Option func(*Executor)

// WithSandbox attaches the sandboxed loader $function resolution needs.
// Without one, a pipeline containing $function fails with
// SandboxUnavailable the first time a placeholder is actually found —
// pipelines with no $function are unaffected.
func WithSandbox(s SandboxLoader) Option {
	return func(e *Executor) { e.sandbox = s }
}

// WithFacetConcurrency caps how many facet sub-queries run concurrently
// (spec §5's "configurable concurrency cap"). The default is 4.
func WithFacetConcurrency(n int) Option {
	return func(e *Executor) { e.facetConcurrency = n }
}

// WithLogger attaches a structured logger. A nil entry (the default)
// makes logging a no-op, per SPEC_FULL §2's ambient logging rule.
func WithLogger(l *logrus.Entry) Option {
	return func(e *Executor) { e.log = l }
}

// New builds an Executor bound to backend.
func New(backend Backend, opts ...Option) *Executor {
	e := &Executor{backend: backend, facetConcurrency: 4}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logrus.NewEntry(logrus.New())
		e.log.Logger.SetOutput(noopWriter{})
	}
	return e
}

// Run executes res end to end. If res terminated in $facet, it runs
// every facet query (concurrently, up to the configured cap) and
// returns a single pseudo-document named by each facet; otherwise it
// runs the main query, resolves placeholders, and re-applies the last
// $sort.
func (e *Executor) Run(ctx context.Context, res plan.Result) ([]document.Doc, error) {
	if len(res.Facets) > 0 {
		return e.runFacets(ctx, res.Facets)
	}

	rows, err := e.backend.Execute(ctx, res.SQL, res.Params)
	if err != nil {
		return nil, errors.Wrap(err, "executor: backend execute failed")
	}

	docs, err := e.resolveRows(ctx, rows)
	if err != nil {
		return nil, err
	}

	if len(res.LastSort) > 0 {
		postSort(docs, res.LastSort)
		e.log.WithField("keys", len(res.LastSort)).Debug("executor: applied post-sort on resolved values")
	}
	return docs, nil
}

// runFacets runs every facet query independently, keyed by name, per
// spec §4.7 step 3: "ordering is irrelevant" for the sub-queries
// themselves since results are keyed, so they run concurrently with an
// errgroup rather than serially.
func (e *Executor) runFacets(ctx context.Context, facets []stage.FacetQuery) ([]document.Doc, error) {
	results := make([][]document.Doc, len(facets))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.facetConcurrency)

	for i, f := range facets {
		i, f := i, f
		group.Go(func() error {
			rows, err := e.backend.Execute(groupCtx, f.SQL, f.Params)
			if err != nil {
				return errors.Wrapf(err, "executor: facet %q execute failed", f.Name)
			}
			docs, err := e.resolveRows(groupCtx, rows)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	pseudo := document.Doc{}
	for i, f := range facets {
		arr := make([]any, len(results[i]))
		for j, d := range results[i] {
			arr[j] = d
		}
		pseudo[f.Name] = arr
	}
	return []document.Doc{pseudo}, nil
}

// resolveRows parses each row's JSON data, resolves every $function
// placeholder found across the whole batch (spec §4.7 step 1), and
// returns the final decoded documents.
func (e *Executor) resolveRows(ctx context.Context, rows []Row) ([]document.Doc, error) {
	data := make([][]byte, len(rows))
	for i, r := range rows {
		data[i] = r.Data
	}

	if err := e.resolveFunctions(ctx, data); err != nil {
		return nil, err
	}

	docs := make([]document.Doc, len(rows))
	for i, raw := range data {
		var doc document.Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, document.Wrap(document.CodeMalformedExpression, "executor: row data failed to decode", err)
		}
		if rows[i].SearchScore != nil {
			doc["_searchScore"] = *rows[i].SearchScore
		}
		docs[i] = doc
	}
	return docs, nil
}

// placeholderSite is one $function placeholder found in data[rowIndex]
// at a gjson/sjson-compatible dotted path.
type placeholderSite struct {
	rowIndex int
	path     string
	ph       expr.FunctionPlaceholder
}

// resolveFunctions finds every placeholder across data, groups sites by
// function body, and invokes the sandbox loader once per group with the
// batched argument tuples — the batching spec §4.7 step 1 calls for,
// rather than one sandbox round trip per placeholder site.
func (e *Executor) resolveFunctions(ctx context.Context, data [][]byte) error {
	var sites []placeholderSite
	for i, raw := range data {
		rowSites, err := collectPlaceholderSites(raw)
		if err != nil {
			return err
		}
		for _, s := range rowSites {
			s.rowIndex = i
			sites = append(sites, s)
		}
	}
	if len(sites) == 0 {
		return nil
	}
	if e.sandbox == nil {
		return document.NewSandboxUnavailable("$function placeholder present but no sandbox loader configured")
	}

	var bodyOrder []string
	groups := map[string][]placeholderSite{}
	for _, s := range sites {
		if _, ok := groups[s.ph.Body]; !ok {
			bodyOrder = append(bodyOrder, s.ph.Body)
		}
		groups[s.ph.Body] = append(groups[s.ph.Body], s)
	}

	for _, body := range bodyOrder {
		group := groups[body]
		args := make([][]any, len(group))
		for i, s := range group {
			tuple, err := resolveArgs(data[s.rowIndex], s.ph)
			if err != nil {
				return err
			}
			args[i] = tuple
		}

		e.log.WithFields(logrus.Fields{"sites": len(group)}).Debug("executor: resolving $function batch")
		results, err := e.sandbox.ExecuteBatch(ctx, body, args)
		if err != nil {
			return errors.Wrap(err, "executor: sandbox ExecuteBatch failed")
		}
		if len(results) != len(group) {
			return document.NewSandboxUnavailable(fmt.Sprintf("sandbox returned %d results for %d sites", len(results), len(group)))
		}

		for i, s := range group {
			updated, err := sjson.SetBytes(data[s.rowIndex], s.path, results[i])
			if err != nil {
				return document.Wrap(document.CodeSandboxUnavailable, "executor: failed to write resolved $function value", err)
			}
			data[s.rowIndex] = updated
		}
	}
	return nil
}

// resolveArgs builds the argument tuple for one placeholder site: field
// args are read out of the same row's current JSON (not re-derived from
// the original SQL), literal args come from the payload's recorded
// Literals map.
func resolveArgs(rowData []byte, ph expr.FunctionPlaceholder) ([]any, error) {
	args := make([]any, len(ph.Args))
	for i, a := range ph.Args {
		if a.IsField {
			args[i] = gjson.GetBytes(rowData, a.Path).Value()
			continue
		}
		args[i] = ph.Literals[strconv.Itoa(a.Index)]
	}
	return args, nil
}

// collectPlaceholderSites walks raw's JSON tree looking for string
// leaves carrying expr.FunctionPlaceholderPrefix, using gjson to read
// without a full json.Unmarshal of the row (spec's domain-stack
// rationale for pulling gjson in at all).
func collectPlaceholderSites(raw []byte) ([]placeholderSite, error) {
	var sites []placeholderSite
	var walkErr error

	var walk func(path string, result gjson.Result)
	walk = func(path string, result gjson.Result) {
		if walkErr != nil {
			return
		}
		switch {
		case result.IsObject():
			result.ForEach(func(key, value gjson.Result) bool {
				walk(joinPath(path, key.String()), value)
				return walkErr == nil
			})
		case result.IsArray():
			i := 0
			result.ForEach(func(_, value gjson.Result) bool {
				walk(joinPath(path, strconv.Itoa(i)), value)
				i++
				return walkErr == nil
			})
		case result.Type == gjson.String:
			ph, ok, err := expr.ParseFunctionPlaceholder(result.String())
			if err != nil {
				walkErr = err
				return
			}
			if ok {
				sites = append(sites, placeholderSite{path: path, ph: ph})
			}
		}
	}
	walk("", gjson.ParseBytes(raw))
	if walkErr != nil {
		return nil, walkErr
	}
	return sites, nil
}

func joinPath(base, next string) string {
	if base == "" {
		return next
	}
	return base + "." + next
}

// postSort re-applies keys to docs in place, stably, honoring MongoDB's
// null-ordering rule: nulls sort last for an ascending key and first for
// a descending one (spec §4.7 step 2).
func postSort(docs []document.Doc, keys []stage.SortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			vi := fieldValue(docs[i], k.Field)
			vj := fieldValue(docs[j], k.Field)
			cmp := compareSortValues(vi, vj, k.Descending)
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}

func fieldValue(doc document.Doc, path string) any {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// compareSortValues reports whether a sorts before (negative), equal to
// (zero), or after (positive) b, folding in MongoDB's null-last-ASC /
// null-first-DESC rule before falling through to a same-type scalar
// comparison. Comparing values of genuinely different non-null types is
// a documented simplification (string-representation comparison) rather
// than MongoDB's full BSON type-order table, since a mixed-type sort key
// is a rare, largely-undefined case in practice.
func compareSortValues(a, b any, descending bool) int {
	aNil, bNil := a == nil, b == nil
	if aNil && bNil {
		return 0
	}
	if aNil {
		if descending {
			return -1
		}
		return 1
	}
	if bNil {
		if descending {
			return 1
		}
		return -1
	}

	cmp := compareScalar(a, b)
	if descending {
		return -cmp
	}
	return cmp
}

func compareScalar(a, b any) int {
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
