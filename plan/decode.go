package plan

import (
	"strconv"

	"github.com/dot-do/mondodb-sub011/document"
)

// DecodeStages converts a raw decoded aggregation pipeline — a JSON
// array of single-key stage objects, e.g. [{"$match": {...}},
// {"$limit": 10}] — into the ordered []Stage Translate expects. Pipeline
// order is semantically significant and is preserved exactly as given;
// no sorting happens here, unlike the key-order-insensitive contexts
// inside an individual stage's payload.
func DecodeStages(raw []any) ([]Stage, error) {
	out := make([]Stage, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok || len(m) != 1 {
			return nil, document.NewMalformedStage("pipeline element " + strconv.Itoa(i) + " must be a single-key stage object")
		}
		for k, v := range m {
			out = append(out, Stage{Name: k, Payload: v})
		}
	}
	return out, nil
}
