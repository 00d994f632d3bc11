package filter

import (
	"strconv"
	"strings"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/params"
	"github.com/dot-do/mondodb-sub011/search"
)

// state threads the pieces translateCond needs but that aren't part of
// the Filter tree itself: the capability table, the parameter buffer,
// the collection name ($text needs it to name the fts companion table),
// and a monotone counter for $elemMatch subquery aliases. The counter
// advances in AST traversal order, which is fixed once Parse has run
// (field conditions are already sorted into a deterministic tree), so
// alias assignment is itself deterministic — required for invariant I4.
type state struct {
	caps       dialect.Capabilities
	buf        *params.Buf
	collection string
	elemSeq    int
	joins      []string
}

func (s *state) nextAlias() string {
	s.elemSeq++
	return "elem" + strconv.Itoa(s.elemSeq)
}

func (s *state) addJoin(j string) { s.joins = append(s.joins, j) }

// Translate converts f into a WHERE-clause boolean fragment against the
// default document column. joins carries any FROM-clause fragments the
// filter needed (only $text populates this); the caller splices them
// into its own FROM clause.
func Translate(f Filter, collection string, caps dialect.Capabilities, buf *params.Buf) (where string, joins []string, err error) {
	s := &state{caps: caps, buf: buf, collection: collection}
	where, err = translateCol(f, expr.Column, s)
	if err != nil {
		return "", nil, err
	}
	return where, s.joins, nil
}

func translateCol(f Filter, col string, s *state) (string, error) {
	switch v := f.(type) {
	case And:
		return translateBool(v.Args, col, s, " AND ", "1=1")
	case Or:
		return translateBool(v.Args, col, s, " OR ", "1=0")
	case Nor:
		inner, err := translateBool(v.Args, col, s, " OR ", "1=0")
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case ExprFilter:
		return expr.TranslateColumn(v.Inner, col, s.caps, s.buf)
	case TextFilter:
		return translateText(v, s)
	case FieldCond:
		return translateFieldCond(v, col, s)
	default:
		return "", document.NewMalformedStage("unrecognized filter node")
	}
}

func translateBool(args []Filter, col string, s *state, sqlOp, identity string) (string, error) {
	if len(args) == 0 {
		return identity, nil
	}
	parts := make([]string, len(args))
	for i, a := range args {
		p, err := translateCol(a, col, s)
		if err != nil {
			return "", err
		}
		parts[i] = p
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sqlOp) + ")", nil
}

func translateText(v TextFilter, s *state) (string, error) {
	if !s.caps.SupportsSearch() {
		return "", document.NewFeatureUnavailable("$text", s.caps.Name())
	}
	assembled, err := search.Assemble(v.Query, s.collection, false, s.caps, s.buf)
	if err != nil {
		return "", err
	}
	s.addJoin(assembled.Join)
	return assembled.Where, nil
}

func translateFieldCond(v FieldCond, col string, s *state) (string, error) {
	extract := s.caps.JSONExtract(col, v.Parts)
	parts := make([]string, 0, len(v.Ops))
	for _, op := range v.Ops {
		p, err := translateFieldOp(op, extract, v, col, s)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func translateFieldOp(op FieldOp, extract string, field FieldCond, col string, s *state) (string, error) {
	switch v := op.(type) {
	case OpEq:
		if v.Value == nil {
			return extract + " IS NULL", nil
		}
		return extract + " = " + s.buf.Bind(v.Value), nil
	case OpNe:
		if v.Value == nil {
			return extract + " IS NOT NULL", nil
		}
		return extract + " <> " + s.buf.Bind(v.Value), nil
	case OpGt:
		return extract + " > " + s.buf.Bind(v.Value), nil
	case OpGte:
		return extract + " >= " + s.buf.Bind(v.Value), nil
	case OpLt:
		return extract + " < " + s.buf.Bind(v.Value), nil
	case OpLte:
		return extract + " <= " + s.buf.Bind(v.Value), nil
	case OpIn:
		if len(v.Values) == 0 {
			return "1=0", nil
		}
		return extract + " IN (" + s.buf.BindAll(v.Values) + ")", nil
	case OpNin:
		if len(v.Values) == 0 {
			return "1=1", nil
		}
		return extract + " NOT IN (" + s.buf.BindAll(v.Values) + ")", nil
	case OpExists:
		typeCheck := s.caps.JSONTypeAt(col, field.Parts)
		if v.Expect {
			return typeCheck + " IS NOT NULL", nil
		}
		return typeCheck + " IS NULL", nil
	case OpType:
		return translateType(v, col, field, s)
	case OpRegex:
		placeholder := s.buf.Bind(v.Pattern)
		return s.caps.RegexMatch(extract, placeholder, v.CaseInsensitive), nil
	case OpSize:
		return s.caps.JSONArrayLength(col, field.Parts) + " = " + s.buf.Bind(v.Size), nil
	case OpElemMatch:
		return translateElemMatch(v, field, col, s)
	case OpAll:
		return translateAll(v, field, col, s)
	case OpNot:
		inner := make([]string, 0, len(v.Inner))
		for _, o := range v.Inner {
			p, err := translateFieldOp(o, extract, field, col, s)
			if err != nil {
				return "", err
			}
			inner = append(inner, p)
		}
		return "NOT (" + strings.Join(inner, " AND ") + ")", nil
	default:
		return "", document.NewMalformedStage("unrecognized field operator")
	}
}

func translateElemMatch(v OpElemMatch, field FieldCond, col string, s *state) (string, error) {
	arrExpr := s.caps.JSONExtract(col, field.Parts)
	alias := s.nextAlias()
	elemCol := s.caps.ElemColumn(alias)
	predicate, err := translateCol(v.Inner, elemCol, s)
	if err != nil {
		return "", err
	}
	return s.caps.ArrayExists(arrExpr, alias, predicate), nil
}

func translateAll(v OpAll, field FieldCond, col string, s *state) (string, error) {
	arrExpr := s.caps.JSONExtract(col, field.Parts)
	parts := make([]string, 0, len(v.Values))
	for _, want := range v.Values {
		alias := s.nextAlias()
		elemCol := s.caps.ElemColumn(alias)
		predicate := elemCol + " = " + s.buf.Bind(want)
		parts = append(parts, s.caps.ArrayExists(arrExpr, alias, predicate))
	}
	if len(parts) == 0 {
		return "1=1", nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func translateType(v OpType, col string, field FieldCond, s *state) (string, error) {
	names, ok := typeMapping(s.caps.Name(), v.TypeName)
	if !ok {
		return "", document.NewUnsupportedExpression("$type " + v.TypeName + " has no mapping for dialect " + s.caps.Name())
	}
	typeCheck := s.caps.JSONTypeAt(col, field.Parts)
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = n
	}
	return typeCheck + " IN (" + s.buf.BindAll(vals) + ")", nil
}
