package plan

import (
	"math"

	"github.com/sirupsen/logrus"
)

// optimize runs spec §4.6's rule-based pre-plan rewrite to a fixpoint:
// match pushdown past $project/$addFields, adjacent-$match merging,
// adjacent-$limit merging to the minimum, and dropping no-op
// $skip 0/$limit-with-no-bound stages. Each rule is applied in a single
// left-to-right pass; passes repeat until a full pass makes no further
// change, mirroring the teacher's repeated-rule-batch analyzer pattern
// (sql/analyzer's OnceBeforeDefault/DefaultRules passes, run until
// fixpoint) without needing its rule-registry machinery for four rules.
func optimize(pipeline []Stage, log *logrus.Entry) []Stage {
	for {
		rewritten, changed := runOnePass(pipeline, log)
		pipeline = rewritten
		if !changed {
			return pipeline
		}
	}
}

func runOnePass(pipeline []Stage, log *logrus.Entry) ([]Stage, bool) {
	changed := false

	pipeline, c := dropNoOps(pipeline, log)
	changed = changed || c
	pipeline, c = mergeAdjacentMatches(pipeline, log)
	changed = changed || c
	pipeline, c = mergeAdjacentLimits(pipeline, log)
	changed = changed || c
	pipeline, c = pushMatchPastProjection(pipeline, log)
	changed = changed || c

	return pipeline, changed
}

// dropNoOps removes $skip stages whose size is exactly 0 — a no-op
// offset spec §4.6 calls out by name ("drops $skip 0/$limit ∞").
// $limit has no literal "infinite" representation once decoded from
// JSON (no +Inf token), so the $limit half of that rule only fires
// when a payload explicitly encodes it as a float64 +Inf — the one
// shape a caller could plausibly produce by marshaling math.Inf(1).
func dropNoOps(pipeline []Stage, log *logrus.Entry) ([]Stage, bool) {
	out := make([]Stage, 0, len(pipeline))
	changed := false
	for _, s := range pipeline {
		if s.Name == "$skip" {
			if n, ok := s.Payload.(float64); ok && n == 0 {
				changed = true
				log.Debug("optimizer: dropped no-op $skip 0")
				continue
			}
		}
		if s.Name == "$limit" {
			if n, ok := s.Payload.(float64); ok && math.IsInf(n, 1) {
				changed = true
				log.Debug("optimizer: dropped no-op unbounded $limit")
				continue
			}
		}
		out = append(out, s)
	}
	return out, changed
}

// mergeAdjacentMatches folds consecutive $match stages into one,
// AND-ing their filter documents, since back-to-back $match stages are
// equivalent to a single $match of their conjunction.
func mergeAdjacentMatches(pipeline []Stage, log *logrus.Entry) ([]Stage, bool) {
	out := make([]Stage, 0, len(pipeline))
	changed := false
	for i := 0; i < len(pipeline); i++ {
		s := pipeline[i]
		if s.Name != "$match" {
			out = append(out, s)
			continue
		}
		merged := s.Payload
		j := i + 1
		for j < len(pipeline) && pipeline[j].Name == "$match" {
			merged = map[string]any{"$and": []any{merged, pipeline[j].Payload}}
			j++
			changed = true
		}
		out = append(out, Stage{Name: "$match", Payload: merged})
		if j > i+1 {
			log.Debug("optimizer: merged adjacent $match stages")
		}
		i = j - 1
	}
	return out, changed
}

// mergeAdjacentLimits folds consecutive $limit stages into the minimum,
// since the tightest bound is the only one that matters.
func mergeAdjacentLimits(pipeline []Stage, log *logrus.Entry) ([]Stage, bool) {
	out := make([]Stage, 0, len(pipeline))
	changed := false
	for i := 0; i < len(pipeline); i++ {
		s := pipeline[i]
		if s.Name != "$limit" {
			out = append(out, s)
			continue
		}
		min, ok := s.Payload.(float64)
		if !ok {
			out = append(out, s)
			continue
		}
		j := i + 1
		for j < len(pipeline) && pipeline[j].Name == "$limit" {
			if n, ok := pipeline[j].Payload.(float64); ok && n < min {
				min = n
			}
			j++
			changed = true
		}
		out = append(out, Stage{Name: "$limit", Payload: min})
		if j > i+1 {
			log.Debug("optimizer: merged adjacent $limit stages")
		}
		i = j - 1
	}
	return out, changed
}

// pushMatchPastProjection swaps a {$project or $addFields/$set, $match}
// adjacent pair when the match references no field the projection stage
// declares as an output key — i.e. the projection can't have rewritten
// or renamed anything the match cares about, so filtering first (and
// therefore, in a real backend, over fewer rows before the projection's
// work happens) is equivalent and strictly cheaper.
func pushMatchPastProjection(pipeline []Stage, log *logrus.Entry) ([]Stage, bool) {
	out := append([]Stage(nil), pipeline...)
	changed := false
	for i := 0; i < len(out)-1; i++ {
		a, b := out[i], out[i+1]
		if !(a.Name == "$project" || a.Name == "$addFields" || a.Name == "$set") || b.Name != "$match" {
			continue
		}
		projected, ok := a.Payload.(map[string]any)
		if !ok {
			continue
		}
		if containsOpaqueOperator(b.Payload) {
			// $expr/$where can reference arbitrary fields through an
			// expression tree this pass doesn't walk; refusing to push
			// past the projection is the safe default. $text is excluded
			// from this check — it matches against the FTS companion
			// table, never the projected document shape, so it can
			// never conflict with a projection no matter what fields
			// it declares.
			continue
		}
		referenced := matchFields(b.Payload)
		conflict := false
		for _, f := range referenced {
			if _, declared := projected[f]; declared {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		out[i], out[i+1] = b, a
		changed = true
		log.WithField("stage", a.Name).Debug("optimizer: pushed $match past shape-transforming stage")
	}
	return out, changed
}

// matchFields collects every top-level field name a raw (unparsed)
// $match payload tests, recursing into $and/$or/$nor so a field guarded
// behind a logical combinator still blocks an unsafe pushdown.
func matchFields(payload any) []string {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for k, v := range m {
		switch k {
		case "$and", "$or", "$nor":
			arr, ok := v.([]any)
			if !ok {
				continue
			}
			for _, item := range arr {
				out = append(out, matchFields(item)...)
			}
		case "$where", "$text", "$expr":
			// Handled by containsOpaqueOperator at the call site; no
			// field-shaped name to contribute here.
		default:
			out = append(out, k)
		}
	}
	return out
}

// containsOpaqueOperator reports whether payload tests a field through
// an operator whose field references this pass can't statically
// enumerate ($where, $expr), recursing through $and/$or/$nor the same
// way matchFields does.
func containsOpaqueOperator(payload any) bool {
	m, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	for k, v := range m {
		switch k {
		case "$where", "$expr":
			return true
		case "$and", "$or", "$nor":
			arr, ok := v.([]any)
			if !ok {
				continue
			}
			for _, item := range arr {
				if containsOpaqueOperator(item) {
					return true
				}
			}
		}
	}
	return false
}
