package expr

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/ident"
)

// FunctionPlaceholderPrefix marks a SQL string literal as a pending
// $function invocation rather than ordinary text, per spec §4.3. The
// executor scans result rows for this prefix.
const FunctionPlaceholderPrefix = "__FUNCTION__"

// functionPayload is the JSON structure recorded inside a placeholder
// literal: the function body, its ordered argument descriptors, and the
// literal values referenced by index, so the executor can reconstruct
// and batch the invocation without re-deriving anything from the SQL
// text.
type functionPayload struct {
	Body     string              `json:"body"`
	Lang     string              `json:"lang,omitempty"`
	Args     []functionArgPayload `json:"args"`
	Literals map[string]any      `json:"literals,omitempty"`
}

type functionArgPayload struct {
	Type string `json:"type"` // "field" or "literal"
	Path string `json:"path,omitempty"`
	// Index keys into the sibling Literals map, avoiding re-encoding a
	// value twice when an arg and a literal map entry refer to the same
	// value.
	Index int `json:"index,omitempty"`
}

// FunctionPlaceholder is the decoded form of a '__FUNCTION__<json>' SQL
// string literal — the executor's view of functionPayload, exported so
// the executor package can decode a placeholder without re-deriving its
// JSON shape.
type FunctionPlaceholder struct {
	Body     string
	Lang     string
	Args     []FunctionPlaceholderArg
	Literals map[string]any
}

// FunctionPlaceholderArg mirrors functionArgPayload.
type FunctionPlaceholderArg struct {
	IsField bool
	Path    string
	Index   int
}

// ParseFunctionPlaceholder reports whether s (a value read back out of a
// parsed result row) is a $function placeholder, and if so decodes it.
func ParseFunctionPlaceholder(s string) (FunctionPlaceholder, bool, error) {
	if !strings.HasPrefix(s, FunctionPlaceholderPrefix) {
		return FunctionPlaceholder{}, false, nil
	}
	var payload functionPayload
	if err := json.Unmarshal([]byte(strings.TrimPrefix(s, FunctionPlaceholderPrefix)), &payload); err != nil {
		return FunctionPlaceholder{}, true, document.Wrap(document.CodeMalformedExpression, "$function placeholder failed to decode", err)
	}
	out := FunctionPlaceholder{Body: payload.Body, Lang: payload.Lang, Literals: payload.Literals}
	out.Args = make([]FunctionPlaceholderArg, len(payload.Args))
	for i, a := range payload.Args {
		out.Args[i] = FunctionPlaceholderArg{IsField: a.Type == "field", Path: a.Path, Index: a.Index}
	}
	return out, true, nil
}

func parseFunction(raw any) (Expr, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, document.NewMalformedExpression("$function requires an object with body and args")
	}
	body, ok := m["body"].(string)
	if !ok || body == "" {
		return nil, document.NewMalformedExpression("$function requires a non-empty string body")
	}
	lang, _ := m["lang"].(string)

	argsRaw, ok := m["args"].([]any)
	if !ok {
		return nil, document.NewMalformedExpression("$function requires an args array")
	}

	args := make([]FunctionArg, 0, len(argsRaw))
	for _, a := range argsRaw {
		if s, ok := a.(string); ok && strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "$$") {
			validated, err := ident.ValidateFieldPath(s[1:])
			if err != nil {
				return nil, err
			}
			args = append(args, FunctionArg{IsField: true, Path: validated, Parts: strings.Split(string(validated), ".")})
			continue
		}
		args = append(args, FunctionArg{IsField: false, Literal: a})
	}

	return Function{Body: body, Lang: lang, Args: args}, nil
}

// buildPlaceholder renders fn as the single-quoted SQL literal described
// in spec §4.3: '__FUNCTION__<json>', with every internal single quote
// doubled so it survives inside the enclosing SQL string literal. This is
// the one documented exception to invariant I2 (no value concatenated as
// a SQL literal): the payload carries only caller-supplied structure, not
// a value bound for comparison, and must be literal text so the executor
// can recognize it in a plain parsed JSON row.
func buildPlaceholder(fn Function) (string, error) {
	payload := functionPayload{
		Body:     fn.Body,
		Lang:     fn.Lang,
		Args:     make([]functionArgPayload, len(fn.Args)),
		Literals: map[string]any{},
	}
	for i, a := range fn.Args {
		if a.IsField {
			payload.Args[i] = functionArgPayload{Type: "field", Path: string(a.Path)}
			continue
		}
		payload.Args[i] = functionArgPayload{Type: "literal", Index: i}
		payload.Literals[strconv.Itoa(i)] = a.Literal
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", document.Wrap(document.CodeMalformedExpression, "$function payload failed to encode", err)
	}

	escaped := strings.ReplaceAll(string(encoded), "'", "''")
	return "'" + FunctionPlaceholderPrefix + escaped + "'", nil
}
