package expr

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/ident"
)

// arithmeticOps, comparisonOps, logicalOps and unaryStringOps classify
// operator names so Parse can route to the right constructor without a
// giant flat switch duplicating argument-shape handling.
var arithmeticOps = map[string]bool{"$add": true, "$subtract": true, "$multiply": true, "$divide": true, "$mod": true}
var comparisonOps = map[string]bool{"$eq": true, "$ne": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true}

// Parse converts a raw JSON-decoded expression value (string, number,
// bool, nil, []interface{}, or map[string]interface{}) into an Expr tree.
func Parse(raw any) (Expr, error) {
	return parseDepth(raw, 0)
}

func parseDepth(raw any, depth int) (Expr, error) {
	if depth > MaxDepth {
		return nil, document.NewMalformedExpression("expression nesting exceeds max depth")
	}

	switch v := raw.(type) {
	case nil:
		return Literal{Value: nil}, nil
	case string:
		return parseStringOrFieldRef(v)
	case []any:
		return parseArrayAsTuple(v, depth)
	case map[string]any:
		return parseOperatorObject(v, depth)
	default:
		// number, bool, or any other JSON scalar
		return Literal{Value: v}, nil
	}
}

// parseStringOrFieldRef distinguishes a literal string from a field
// reference ("$path") from an (unsupported) system variable ("$$var").
func parseStringOrFieldRef(s string) (Expr, error) {
	if !strings.HasPrefix(s, "$") {
		return Literal{Value: s}, nil
	}
	if strings.HasPrefix(s, "$$") {
		return nil, document.NewUnsupportedExpression("system variable " + s + " is not supported for storage")
	}
	path := s[1:]
	validated, err := ident.ValidateFieldPath(path)
	if err != nil {
		return nil, err
	}
	return FieldRef{Path: validated, Parts: strings.Split(string(validated), ".")}, nil
}

// parseArrayAsTuple parses a bare JSON array appearing where an
// expression is expected. Mongo allows this as an argument list in many
// operator positions; at the top level it's only meaningful as a literal
// array constant, so we fall back to binding it whole.
func parseArrayAsTuple(v []any, depth int) (Expr, error) {
	// A bare array used directly as an expression (not inside an
	// operator's argument position) is treated as a literal array value,
	// since there's no operator context to interpret its elements as
	// sub-expressions.
	return Literal{Value: v}, nil
}

func parseOperatorObject(m map[string]any, depth int) (Expr, error) {
	if len(m) != 1 {
		return nil, document.NewMalformedExpression("operator object must have exactly one key")
	}
	var op string
	var raw any
	for k, val := range m {
		op, raw = k, val
	}
	if !strings.HasPrefix(op, "$") {
		return nil, document.NewMalformedExpression("expected an operator key, got " + op)
	}

	switch {
	case arithmeticOps[op]:
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, document.NewMalformedExpression(op + " requires at least 2 arguments")
		}
		return Arithmetic{Op: op, Args: args}, nil

	case comparisonOps[op]:
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, document.NewMalformedExpression(op + " requires exactly 2 arguments")
		}
		return Compare{Op: op, Args: args}, nil

	case op == "$and" || op == "$or":
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, document.NewMalformedExpression(op + " requires at least 1 argument")
		}
		return Logical{Op: op, Args: args}, nil

	case op == "$not":
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, document.NewMalformedExpression("$not requires exactly 1 argument")
		}
		return Logical{Op: op, Args: args}, nil

	case op == "$concat":
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		return Concat{Args: args}, nil

	case op == "$substr":
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		if len(args) != 3 {
			return nil, document.NewMalformedExpression("$substr requires exactly 3 arguments: string, start, length")
		}
		return Substr{Str: args[0], Start: args[1], Length: args[2]}, nil

	case op == "$toLower" || op == "$toUpper":
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, document.NewMalformedExpression(op + " requires exactly 1 argument")
		}
		return CaseConv{Upper: op == "$toUpper", Arg: args[0]}, nil

	case op == "$cond":
		return parseCond(raw, depth)

	case op == "$ifNull":
		args, err := parseArgList(raw, depth)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, document.NewMalformedExpression("$ifNull requires at least 2 arguments")
		}
		return IfNull{Args: args}, nil

	case op == "$switch":
		return parseSwitch(raw, depth)

	case op == "$expr":
		inner, err := parseDepth(raw, depth+1)
		if err != nil {
			return nil, err
		}
		return ExprWrap{Inner: inner}, nil

	case op == "$function":
		return parseFunction(raw)

	default:
		return nil, document.NewUnsupportedOperator(op)
	}
}

// parseArgList normalizes an operator's payload into an argument list: a
// JSON array becomes one argument per element; anything else becomes a
// single-element argument list (many unary/binary Mongo operators accept
// a bare value instead of a 1-element array, e.g. {$toLower: "$name"}).
func parseArgList(raw any, depth int) ([]Expr, error) {
	if arr, ok := raw.([]any); ok {
		out := make([]Expr, 0, len(arr))
		for _, item := range arr {
			e, err := parseDepth(item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}
	e, err := parseDepth(raw, depth+1)
	if err != nil {
		return nil, err
	}
	return []Expr{e}, nil
}

func parseCond(raw any, depth int) (Expr, error) {
	switch v := raw.(type) {
	case []any:
		if len(v) != 3 {
			return nil, document.NewMalformedExpression("$cond array form requires exactly 3 elements")
		}
		ifE, err := parseDepth(v[0], depth+1)
		if err != nil {
			return nil, err
		}
		thenE, err := parseDepth(v[1], depth+1)
		if err != nil {
			return nil, err
		}
		elseE, err := parseDepth(v[2], depth+1)
		if err != nil {
			return nil, err
		}
		return Cond{If: ifE, Then: thenE, Else: elseE}, nil
	case map[string]any:
		ifRaw, hasIf := v["if"]
		thenRaw, hasThen := v["then"]
		elseRaw, hasElse := v["else"]
		if !hasIf || !hasThen || !hasElse {
			return nil, document.NewMalformedExpression("$cond object form requires if, then, and else")
		}
		ifE, err := parseDepth(ifRaw, depth+1)
		if err != nil {
			return nil, err
		}
		thenE, err := parseDepth(thenRaw, depth+1)
		if err != nil {
			return nil, err
		}
		elseE, err := parseDepth(elseRaw, depth+1)
		if err != nil {
			return nil, err
		}
		return Cond{If: ifE, Then: thenE, Else: elseE}, nil
	default:
		return nil, document.NewMalformedExpression("$cond requires an array of 3 elements or an {if,then,else} object")
	}
}

func parseSwitch(raw any, depth int) (Expr, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, document.NewMalformedExpression("$switch requires an object with branches and default")
	}
	branchesRaw, ok := m["branches"].([]any)
	if !ok || len(branchesRaw) == 0 {
		return nil, document.NewMalformedExpression("$switch requires a non-empty branches array")
	}
	branches := make([]SwitchBranch, 0, len(branchesRaw))
	for _, br := range branchesRaw {
		brMap, ok := br.(map[string]any)
		if !ok {
			return nil, document.NewMalformedExpression("$switch branch must be an object with case and then")
		}
		caseRaw, hasCase := brMap["case"]
		thenRaw, hasThen := brMap["then"]
		if !hasCase || !hasThen {
			return nil, document.NewMalformedExpression("$switch branch requires case and then")
		}
		caseE, err := parseDepth(caseRaw, depth+1)
		if err != nil {
			return nil, err
		}
		thenE, err := parseDepth(thenRaw, depth+1)
		if err != nil {
			return nil, err
		}
		branches = append(branches, SwitchBranch{Case: caseE, Then: thenE})
	}
	var defaultE Expr
	if defRaw, ok := m["default"]; ok {
		var err error
		defaultE, err = parseDepth(defRaw, depth+1)
		if err != nil {
			return nil, err
		}
	} else {
		defaultE = Literal{Value: nil}
	}
	return Switch{Branches: branches, Default: defaultE}, nil
}
