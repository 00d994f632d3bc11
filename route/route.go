// Package route implements Analytical Routing (spec §4.9): a pure
// function that inspects a textual analytical query plus hints and
// chooses between two analytical engines, with availability-driven
// fallback and a RoutingDecision record describing the choice.
package route

import (
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dot-do/mondodb-sub011/document"
)

// Engine names one of the two analytical backends a query may be routed
// to, or an engine explicitly named by a caller via Hints.ExplicitEngine.
type Engine string

const (
	// EngineA is the simpler analytical engine — the default choice for
	// queries with no join/window/CTE/set-op complexity.
	EngineA Engine = "analytical-A"
	// EngineB is the richer analytical engine, chosen automatically once
	// a query's detected features or complexity score cross the
	// thresholds in chooseAutomatic.
	EngineB Engine = "analytical-B"
)

// Version is attached to every RoutingDecision's metadata so a caller
// storing decisions for later audit can tell which routing rules produced
// them.
const Version = "route/1"

// Bucket is the three-way complexity bucket spec §4.9 scores a query
// into: 0 points is simple, 1-2 is medium, 3+ is complex.
type Bucket string

const (
	BucketSimple  Bucket = "simple"
	BucketMedium  Bucket = "medium"
	BucketComplex Bucket = "complex"
)

// Level is the "low|medium|high" label spec §4.9's metadata carries,
// mapped 1:1 from Bucket.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

func (b Bucket) Level() Level {
	switch b {
	case BucketSimple:
		return LevelLow
	case BucketMedium:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Features is the set of detections spec §4.9 names, each found via a
// case-insensitive regex scan of the query text — no SQL parser is
// involved, mirroring how this package treats the query as an opaque
// string the core itself never has to understand.
type Features struct {
	Join           bool
	ImplicitJoin   bool
	Window         bool
	CTE            bool
	RecursiveCTE   bool
	SetOp          bool
	Subquery       bool
	GroupBy        bool
	Having         bool
	OrderBy        bool
	Distinct       bool
	DistinctTables int
}

// Any reports whether any join/window/CTE/set-op/subquery feature was
// detected — the signal chooseAutomatic uses to prefer the richer engine.
func (f Features) Any() bool {
	return f.Join || f.ImplicitJoin || f.Window || f.CTE || f.SetOp || f.Subquery
}

var (
	joinRe         = regexp.MustCompile(`(?i)\bJOIN\b`)
	implicitJoinRe = regexp.MustCompile(`(?i)\bFROM\s+[a-zA-Z_][\w.]*\s*,\s*[a-zA-Z_]`)
	// overRe detects a window function call's OVER( clause directly,
	// rather than enumerating window-function names — any aggregate or
	// ranking function paired with OVER( is a window function regardless
	// of which one it is.
	overRe = regexp.MustCompile(`(?i)\bOVER\s*\(`)
	// cteRe requires the "name AS (" shape that follows WITH/WITH
	// RECURSIVE in an actual CTE, rather than bare \bWITH\b, so it does
	// not fire on "WITH TIME ZONE" or "WITH (options)" style SQL text.
	// Go's RE2 engine has no lookaround to exclude those directly; the
	// shape requirement accomplishes the same exclusion spec §4.9 asks
	// for without needing one.
	cteRe          = regexp.MustCompile(`(?i)\bWITH\s+(RECURSIVE\s+)?[a-zA-Z_]\w*\s+AS\s*\(`)
	recursiveCTERe = regexp.MustCompile(`(?i)\bWITH\s+RECURSIVE\b`)
	setOpRe        = regexp.MustCompile(`(?i)\b(UNION(\s+ALL)?|INTERSECT|EXCEPT)\b`)
	subqueryRe     = regexp.MustCompile(`(?i)\(\s*SELECT\b`)
	groupByRe      = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	havingRe       = regexp.MustCompile(`(?i)\bHAVING\b`)
	orderByRe      = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	distinctRe     = regexp.MustCompile(`(?i)\bDISTINCT\b`)
	tableHeadRe    = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][\w.]*)`)
)

// Detect scans query for the features spec §4.9 names.
func Detect(query string) Features {
	f := Features{
		Join:         joinRe.MatchString(query),
		ImplicitJoin: implicitJoinRe.MatchString(query),
		Window:       overRe.MatchString(query),
		CTE:          cteRe.MatchString(query),
		RecursiveCTE: recursiveCTERe.MatchString(query),
		SetOp:        setOpRe.MatchString(query),
		Subquery:     subqueryRe.MatchString(query),
		GroupBy:      groupByRe.MatchString(query),
		Having:       havingRe.MatchString(query),
		OrderBy:      orderByRe.MatchString(query),
		Distinct:     distinctRe.MatchString(query),
	}

	seen := map[string]bool{}
	for _, m := range tableHeadRe.FindAllStringSubmatch(query, -1) {
		seen[strings.ToLower(m[1])] = true
	}
	f.DistinctTables = len(seen)
	return f
}

// Score computes spec §4.9's complexity score: JOIN +2, window +2, CTE
// +2, recursive CTE +3 (additional — a recursive CTE is still a CTE, so
// both contributions apply), subquery +1, set-op +1.
func Score(f Features) int {
	score := 0
	if f.Join || f.ImplicitJoin {
		score += 2
	}
	if f.Window {
		score += 2
	}
	if f.CTE {
		score += 2
	}
	if f.RecursiveCTE {
		score += 3
	}
	if f.Subquery {
		score += 1
	}
	if f.SetOp {
		score += 1
	}
	return score
}

// BucketFor maps a score into spec §4.9's three buckets.
func BucketFor(score int) Bucket {
	switch {
	case score == 0:
		return BucketSimple
	case score <= 2:
		return BucketMedium
	default:
		return BucketComplex
	}
}

// Catalog is the analytical catalog API spec §6 names as consumed, only
// by this package: availability signals for each engine and a capability
// table for feature support.
type Catalog interface {
	// Available reports whether engine is currently reachable.
	Available(engine Engine) bool
	// Supports reports whether engine can execute a query with the given
	// detected features at all (e.g. an engine with no window-function
	// support would return false when f.Window is true).
	Supports(engine Engine, f Features) bool
}

// Hints carries the caller-supplied signals spec §4.9's engine-choice
// rule consults before falling back to automatic selection.
type Hints struct {
	// ExplicitEngine, if set, always wins regardless of detected
	// features or availability (aside from the availability fallback
	// below) — the caller has made the choice and only wants a warning
	// if it looks unsafe.
	ExplicitEngine Engine
	// PreferredEngine is consulted only if ExplicitEngine is unset and
	// the preferred engine is available.
	PreferredEngine Engine
	// EstimatedRows is an optional result-size hint; a large estimate
	// pushes automatic selection toward the richer engine even when no
	// other complexity feature was detected.
	EstimatedRows int64
}

// largeResultThreshold is the EstimatedRows value at and above which
// automatic selection prefers the richer engine purely on result-size
// grounds, per spec §4.9's "complex-score/result-size-hint" criterion.
const largeResultThreshold = 1_000_000

// RoutingDecision is the record spec §3 describes: chosen engine, reason,
// detected features, and advisory flags, plus the metadata spec §4.9's
// last bullet requires.
type RoutingDecision struct {
	Engine     Engine
	Reason     string
	Features   Features
	Fallback   bool
	MayFail    bool
	Warnings   []string
	Complexity Level
	Bucket     Bucket
	Score      int
	Timestamp  time.Time
	Version    string
	// EstimatedRows echoes Hints.EstimatedRows (0 if the caller supplied
	// none), carried on the decision record for audit purposes.
	EstimatedRows int64
}

// Option configures a single Route call.
type Option func(*options)

type options struct {
	log *logrus.Entry
}

// WithLogger attaches a structured logger for routing decisions. A nil
// entry (the default) makes logging a no-op, per SPEC_FULL §2's ambient
// logging rule.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.log = l }
}

// Route inspects query and hints and returns a RoutingDecision, per spec
// §4.9. It is a pure function apart from reading the wall clock for the
// decision's timestamp and calling catalog (an injected collaborator);
// it never mutates query, hints, or catalog state.
func Route(query string, hints Hints, catalog Catalog, opts ...Option) (RoutingDecision, error) {
	cfg := options{}
	for _, o := range opts {
		o(&cfg)
	}
	log := cfg.log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
		log.Logger.SetOutput(noopWriter{})
	}

	f := Detect(query)
	score := Score(f)
	bucket := BucketFor(score)

	chosen, reason, warnings := chooseEngine(f, hints, catalog)

	decision := RoutingDecision{
		Engine:        chosen,
		Reason:        reason,
		Features:      f,
		Warnings:      warnings,
		Complexity:    bucket.Level(),
		Bucket:        bucket,
		Score:         score,
		Timestamp:     time.Now(),
		Version:       Version,
		EstimatedRows: hints.EstimatedRows,
	}

	if catalog.Available(decision.Engine) {
		log.WithFields(logrus.Fields{
			"engine": decision.Engine,
			"bucket": decision.Bucket,
			"score":  decision.Score,
		}).Debug("route: engine selected")
		return decision, nil
	}

	other := otherEngine(decision.Engine)
	if !catalog.Available(other) {
		return RoutingDecision{}, document.NewNoEngineAvailable(
			"neither " + string(decision.Engine) + " nor " + string(other) + " is available")
	}

	decision.Fallback = true
	decision.Reason = decision.Reason + "; " + string(decision.Engine) + " unavailable, fell back to " + string(other)
	decision.Engine = other
	if !catalog.Supports(other, f) {
		decision.MayFail = true
		decision.Warnings = append(decision.Warnings,
			string(other)+" may not support all detected features required by this query")
	}

	log.WithFields(logrus.Fields{
		"engine":   decision.Engine,
		"fallback": true,
		"mayFail":  decision.MayFail,
	}).Warn("route: fell back to secondary engine")

	return decision, nil
}

// chooseEngine implements spec §4.9's engine-choice priority: explicit
// wins (with a capability-mismatch warning, not a refusal); else the
// preferred engine if available; else automatic selection.
func chooseEngine(f Features, hints Hints, catalog Catalog) (Engine, string, []string) {
	if hints.ExplicitEngine != "" {
		var warnings []string
		if !catalog.Supports(hints.ExplicitEngine, f) {
			warnings = append(warnings, string(hints.ExplicitEngine)+" does not declare support for all detected query features")
		}
		return hints.ExplicitEngine, "explicit engine requested", warnings
	}

	if hints.PreferredEngine != "" && catalog.Available(hints.PreferredEngine) {
		return hints.PreferredEngine, "preferred engine available", nil
	}

	return chooseAutomatic(f, hints)
}

// chooseAutomatic routes to the richer EngineB when the query's
// joins/windows/CTEs/set-ops/complexity score/result-size hint exceed
// the simple case, otherwise to EngineA.
func chooseAutomatic(f Features, hints Hints) (Engine, string, []string) {
	score := Score(f)
	if f.Any() {
		return EngineB, "automatic: query exercises join/window/CTE/subquery/set-op features", nil
	}
	if score >= 3 {
		return EngineB, "automatic: complexity score exceeds simple threshold", nil
	}
	if hints.EstimatedRows >= largeResultThreshold {
		return EngineB, "automatic: estimated result size exceeds large-result threshold", nil
	}
	return EngineA, "automatic: no join/window/CTE/set-op complexity detected", nil
}

func otherEngine(e Engine) Engine {
	if e == EngineA {
		return EngineB
	}
	return EngineA
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
