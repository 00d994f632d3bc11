// Package search is the $search Adapter (spec §4.8): it turns a search
// operator payload (text, phrase, wildcard, or compound) into a single
// full-text query string and the SQL fragments — JOIN, MATCH, and score
// column — that wire it into a stage's CTE. Both the $search stage
// translator (stage/search.go) and the $text filter operator
// (filter/filter.go) share this package rather than duplicating the
// match-string assembly.
package search

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/params"
)

// Query is the sealed search-operator AST (spec §4.8's four forms).
type Query interface{ isQuery() }

type Text struct{ Value string }
type Phrase struct{ Value string }
type Wildcard struct{ Pattern string }
type Compound struct {
	Must    []Query
	Should  []Query
	MustNot []Query
	Filter  []Query
}

func (Text) isQuery()     {}
func (Phrase) isQuery()   {}
func (Wildcard) isQuery() {}
func (Compound) isQuery() {}

// Parse converts a raw $search (or $text) payload into a Query.
func Parse(raw map[string]any) (Query, error) {
	if v, ok := raw["text"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, document.NewMalformedStage("$search text requires a non-empty string")
		}
		return Text{Value: s}, nil
	}
	if v, ok := raw["phrase"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, document.NewMalformedStage("$search phrase requires a non-empty string")
		}
		return Phrase{Value: s}, nil
	}
	if v, ok := raw["wildcard"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, document.NewMalformedStage("$search wildcard requires a non-empty string")
		}
		return Wildcard{Pattern: s}, nil
	}
	if v, ok := raw["compound"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, document.NewMalformedStage("$search compound requires an object")
		}
		return parseCompound(m)
	}
	return nil, document.NewMalformedStage("$search requires one of text, phrase, wildcard, compound")
}

func parseCompound(m map[string]any) (Query, error) {
	must, err := parseQueryList(m["must"])
	if err != nil {
		return nil, err
	}
	should, err := parseQueryList(m["should"])
	if err != nil {
		return nil, err
	}
	mustNot, err := parseQueryList(m["mustNot"])
	if err != nil {
		return nil, err
	}
	filter, err := parseQueryList(m["filter"])
	if err != nil {
		return nil, err
	}
	if len(must) == 0 && len(should) == 0 && len(mustNot) == 0 && len(filter) == 0 {
		return nil, document.NewMalformedStage("$search compound requires at least one of must, should, mustNot, filter")
	}
	return Compound{Must: must, Should: should, MustNot: mustNot, Filter: filter}, nil
}

func parseQueryList(raw any) ([]Query, error) {
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, document.NewMalformedStage("$search compound clause requires an array")
	}
	out := make([]Query, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, document.NewMalformedStage("$search compound clause element must be an object")
		}
		q, err := Parse(m)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// BuildMatchExpr renders q as a single full-text query-language string
// (spec §4.8: "the compound form assembles MATCH sub-expressions with
// AND, OR, and negation"). This whole string is bound as one parameter
// to MATCH — it is not SQL and carries no SQL injection risk, but the
// text itself still can't embed raw double quotes unescaped.
func BuildMatchExpr(q Query) (string, error) {
	switch v := q.(type) {
	case Text:
		return v.Value, nil
	case Phrase:
		return "\"" + strings.ReplaceAll(v.Value, "\"", "") + "\"", nil
	case Wildcard:
		return v.Pattern, nil
	case Compound:
		return buildCompoundExpr(v)
	default:
		return "", document.NewMalformedStage("unrecognized search query node")
	}
}

func buildCompoundExpr(c Compound) (string, error) {
	var parts []string

	if len(c.Must) > 0 {
		s, err := joinExprs(c.Must, " AND ")
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	// filter clauses are ANDed into the match string exactly like must
	// clauses, so they contribute to the bm25 score the same way: nothing
	// here or in the executor keeps a filter term out of scoring.
	if len(c.Filter) > 0 {
		s, err := joinExprs(c.Filter, " AND ")
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(c.Should) > 0 {
		s, err := joinExprs(c.Should, " OR ")
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	if len(c.MustNot) > 0 {
		for _, sub := range c.MustNot {
			s, err := BuildMatchExpr(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, "NOT "+s)
		}
	}
	if len(parts) == 0 {
		return "", document.NewMalformedStage("$search compound produced no clauses")
	}
	return strings.Join(parts, " AND "), nil
}

func joinExprs(qs []Query, sep string) (string, error) {
	parts := make([]string, len(qs))
	for i, q := range qs {
		s, err := BuildMatchExpr(q)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

// Assembled is the set of SQL fragments a caller wires into its own
// FROM/WHERE/SELECT/ORDER BY clauses.
type Assembled struct {
	Join         string
	Where        string
	ScoreColumn  string // "" unless includeScore
	ScoreOrderBy string // "" unless includeScore
}

// Assemble builds the JOIN, MATCH predicate, and optional score
// expressions for a search over collection. caps.SupportsSearch must
// already have been checked by the caller (spec §9's resolved open
// question: analytical dialect raises FeatureUnavailable up front).
func Assemble(q Query, collection string, includeScore bool, caps dialect.Capabilities, buf *params.Buf) (Assembled, error) {
	matchExpr, err := BuildMatchExpr(q)
	if err != nil {
		return Assembled{}, err
	}
	ftsTable := collection + "_fts"
	placeholder := buf.Bind(matchExpr)

	out := Assembled{
		Join:  caps.FTSJoin(collection, ftsTable),
		Where: caps.FTSMatch(ftsTable, placeholder),
	}
	if includeScore {
		out.ScoreColumn = caps.FTSScore(ftsTable) + " AS _searchScore"
		out.ScoreOrderBy = "_searchScore DESC"
	}
	return out, nil
}
