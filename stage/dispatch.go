package stage

import "github.com/dot-do/mondodb-sub011/document"

// translators maps every stage operator name — including the
// supplemented $sortByCount, $unset, $bucketAuto, $sample — to its
// translator function, for the planner to call without a type switch of
// its own (spec §4.6 calls this "delegate to its translator").
var translators = map[string]func(*Context, any) (StageResult, error){
	"$match":       TranslateMatch,
	"$project":     TranslateProject,
	"$unset":       TranslateUnset,
	"$addFields":   TranslateAddFields,
	"$set":         TranslateAddFields,
	"$group":       TranslateGroup,
	"$sort":        TranslateSort,
	"$limit":       TranslateLimit,
	"$skip":        TranslateSkip,
	"$count":       TranslateCount,
	"$lookup":      TranslateLookup,
	"$unwind":      TranslateUnwind,
	"$bucket":      TranslateBucket,
	"$bucketAuto":  TranslateBucketAuto,
	"$facet":       TranslateFacet,
	"$search":      TranslateSearch,
	"$sortByCount": TranslateSortByCount,
	"$sample":      TranslateSample,
}

// Translate dispatches name's payload to its registered translator.
func Translate(name string, payload any, ctx *Context) (StageResult, error) {
	fn, ok := translators[name]
	if !ok {
		return StageResult{}, document.NewUnsupportedStage(name)
	}
	return fn(ctx, payload)
}

// Flushing reports whether name is one of the stages that must be
// spliced in as its own CTE (spec §4.6's flush-triggering stage set),
// independent of any particular payload.
func Flushing(name string) bool {
	switch name {
	case "$lookup", "$unwind", "$search", "$facet":
		return true
	default:
		return false
	}
}
