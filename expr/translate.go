package expr

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/dialect"
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/params"
)

// arithmeticSQLOp and comparisonSQLOp map Mongo operator names to their
// infix SQL operators.
var arithmeticSQLOp = map[string]string{
	"$add": "+", "$subtract": "-", "$multiply": "*", "$divide": "/", "$mod": "%",
}
var comparisonSQLOp = map[string]string{
	"$eq": "=", "$ne": "<>", "$gt": ">", "$gte": ">=", "$lt": "<", "$lte": "<=",
}

// Column is the JSON-document column every field reference extracts
// from. The planner always binds this to the same physical column
// ("data") that stores a document's encoded body.
const Column = "data"

// Translate converts e into a SQL fragment against the default document
// column, binding any literal values into buf in the order they're
// encountered (invariant I3).
func Translate(e Expr, caps dialect.Capabilities, buf *params.Buf) (string, error) {
	return TranslateColumn(e, Column, caps, buf)
}

// TranslateColumn is Translate against an explicit column expression,
// used when a field reference resolves against something other than the
// top-level document column — e.g. the current element inside an
// $elemMatch subquery (filter package) or an unwound element (stage
// package).
func TranslateColumn(e Expr, col string, caps dialect.Capabilities, buf *params.Buf) (string, error) {
	return translateCol(e, col, caps, buf)
}

func translateCol(e Expr, col string, caps dialect.Capabilities, buf *params.Buf) (string, error) {
	switch v := e.(type) {
	case Literal:
		if v.Value == nil {
			return "NULL", nil
		}
		return buf.Bind(v.Value), nil

	case FieldRef:
		return caps.JSONExtract(col, v.Parts), nil

	case Arithmetic:
		return translateInfix(v.Args, arithmeticSQLOp[v.Op], col, caps, buf)

	case Compare:
		return translateInfix(v.Args, comparisonSQLOp[v.Op], col, caps, buf)

	case Logical:
		return translateLogical(v, col, caps, buf)

	case Concat:
		parts, err := translateAll(v.Args, col, caps, buf)
		if err != nil {
			return "", err
		}
		return caps.StrConcat(parts), nil

	case Substr:
		str, err := translateCol(v.Str, col, caps, buf)
		if err != nil {
			return "", err
		}
		start, err := translateCol(v.Start, col, caps, buf)
		if err != nil {
			return "", err
		}
		length, err := translateCol(v.Length, col, caps, buf)
		if err != nil {
			return "", err
		}
		// Mongo's $substr start is 0-based; SQL SUBSTR/substring are
		// 1-based, so we add 1 (spec §4.3).
		return caps.StrSubstr(str, "("+start+" + 1)", length), nil

	case CaseConv:
		arg, err := translateCol(v.Arg, col, caps, buf)
		if err != nil {
			return "", err
		}
		if v.Upper {
			return caps.StrUpper(arg), nil
		}
		return caps.StrLower(arg), nil

	case Cond:
		ifSQL, err := translateCol(v.If, col, caps, buf)
		if err != nil {
			return "", err
		}
		thenSQL, err := translateCol(v.Then, col, caps, buf)
		if err != nil {
			return "", err
		}
		elseSQL, err := translateCol(v.Else, col, caps, buf)
		if err != nil {
			return "", err
		}
		return "CASE WHEN " + ifSQL + " THEN " + thenSQL + " ELSE " + elseSQL + " END", nil

	case IfNull:
		parts, err := translateAll(v.Args, col, caps, buf)
		if err != nil {
			return "", err
		}
		return caps.Coalesce(parts), nil

	case Switch:
		return translateSwitch(v, col, caps, buf)

	case ExprWrap:
		return translateCol(v.Inner, col, caps, buf)

	case Function:
		return translateFunction(v, buf)

	default:
		return "", document.NewMalformedExpression("unrecognized expression node")
	}
}

func translateAll(args []Expr, col string, caps dialect.Capabilities, buf *params.Buf) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := translateCol(a, col, caps, buf)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func translateInfix(args []Expr, sqlOp string, col string, caps dialect.Capabilities, buf *params.Buf) (string, error) {
	parts, err := translateAll(args, col, caps, buf)
	if err != nil {
		return "", err
	}
	return "(" + strings.Join(parts, " "+sqlOp+" ") + ")", nil
}

func translateLogical(v Logical, col string, caps dialect.Capabilities, buf *params.Buf) (string, error) {
	if v.Op == "$not" {
		inner, err := translateCol(v.Args[0], col, caps, buf)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	}
	parts, err := translateAll(v.Args, col, caps, buf)
	if err != nil {
		return "", err
	}
	sqlOp := " AND "
	if v.Op == "$or" {
		sqlOp = " OR "
	}
	return "(" + strings.Join(parts, sqlOp) + ")", nil
}

func translateSwitch(v Switch, col string, caps dialect.Capabilities, buf *params.Buf) (string, error) {
	var b strings.Builder
	b.WriteString("CASE")
	for _, br := range v.Branches {
		caseSQL, err := translateCol(br.Case, col, caps, buf)
		if err != nil {
			return "", err
		}
		thenSQL, err := translateCol(br.Then, col, caps, buf)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHEN ")
		b.WriteString(caseSQL)
		b.WriteString(" THEN ")
		b.WriteString(thenSQL)
	}
	defSQL, err := translateCol(v.Default, col, caps, buf)
	if err != nil {
		return "", err
	}
	b.WriteString(" ELSE ")
	b.WriteString(defSQL)
	b.WriteString(" END")
	return b.String(), nil
}

func translateFunction(fn Function, buf *params.Buf) (string, error) {
	placeholder, err := buildPlaceholder(fn)
	if err != nil {
		return "", err
	}
	// The placeholder is inlined literal text, not a bound parameter
	// (documented exception, see function.go); buf is unused here but
	// kept in the signature so every translate* function has a uniform
	// shape that the stage translators can call without a type switch.
	_ = buf
	return placeholder, nil
}
