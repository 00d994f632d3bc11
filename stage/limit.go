package stage

import (
	"math"

	"github.com/dot-do/mondodb-sub011/document"
)

// TranslateLimit implements $limit: emits LIMIT n literally, n validated
// as a non-negative integer (spec §4.5).
func TranslateLimit(ctx *Context, payload any) (StageResult, error) {
	n, err := toNonNegInt(payload, "$limit")
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{Limit: intPtr(n)}, nil
}

// TranslateSkip implements $skip: emits OFFSET n literally.
func TranslateSkip(ctx *Context, payload any) (StageResult, error) {
	n, err := toNonNegInt(payload, "$skip")
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{Offset: intPtr(n)}, nil
}

// TranslateSample implements the supplemented $sample stage (SPEC_FULL
// §4 additions, grounded on marcgauthier-marco's query_stage_sample.go):
// a random subset lowered to the dialect's random-ordering primitive
// plus LIMIT, needing no new capability-table entry.
func TranslateSample(ctx *Context, payload any) (StageResult, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return StageResult{}, document.NewMalformedStage("$sample requires an object with size")
	}
	sizeRaw, ok := m["size"]
	if !ok {
		return StageResult{}, document.NewMalformedStage("$sample requires a size")
	}
	n, err := toNonNegInt(sizeRaw, "$sample")
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{OrderBy: []string{ctx.Caps.RandomOrder()}, Limit: intPtr(n)}, nil
}

func toNonNegInt(v any, stageName string) (int, error) {
	f, ok := v.(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, document.NewMalformedStage(stageName + " requires a non-negative integer")
	}
	return int(f), nil
}
