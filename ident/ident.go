// Package ident is the single choke point through which every
// user-supplied field path or SQL identifier must pass before any
// translator component is allowed to emit it into a SQL fragment (spec
// §4.1, invariants I1/I2). No other component re-implements this check.
package ident

import (
	"strings"

	"github.com/dot-do/mondodb-sub011/document"
)

// isFieldPathByte, isIdentStartByte and isIdentByte check by hand rather
// than with regexp: the allowed sets are small, fixed, ASCII-only alphabets, and a
// byte-at-a-time scan avoids paying regexp's overhead on the hot path
// every expression/filter translation runs through. No example repo in
// the pack ships a validation library that fits this narrower job better
// than a direct scan (see DESIGN.md).
func isFieldPathByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '_' || b == '.' || b == '-' || b == '$':
		return true
	default:
		return false
	}
}

func isIdentStartByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '_'
}

func isIdentByte(b byte) bool {
	return isIdentStartByte(b) || (b >= '0' && b <= '9')
}

// ValidateFieldPath checks path against spec §4.1's field-path grammar:
// non-empty, no null byte, characters drawn from [A-Za-z0-9_.$-], no
// "..", and no leading or trailing dot. Returns path unchanged on
// success.
func ValidateFieldPath(path string) (document.FieldPath, error) {
	if path == "" {
		return "", document.NewValidation("empty field path")
	}
	if strings.IndexByte(path, 0) >= 0 {
		return "", document.NewValidation("field path contains a null byte")
	}
	if path[0] == '.' || path[len(path)-1] == '.' {
		return "", document.NewValidation("field path " + quote(path) + " has a leading or trailing dot")
	}
	if strings.Contains(path, "..") {
		return "", document.NewValidation("field path " + quote(path) + " contains an empty segment")
	}
	for i := 0; i < len(path); i++ {
		if !isFieldPathByte(path[i]) {
			return "", document.NewValidation("field path " + quote(path) + " contains a disallowed character")
		}
	}
	return document.FieldPath(path), nil
}

// ValidateIdentifier checks name against spec §4.1's identifier grammar:
// non-empty, no null byte, matches [A-Za-z_][A-Za-z0-9_]*. Used for any
// table/column/CTE name the planner or stage translators synthesize or
// receive from the caller (collection names, "as" aliases, facet names).
func ValidateIdentifier(name string) (string, error) {
	if name == "" {
		return "", document.NewValidation("empty identifier")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return "", document.NewValidation("identifier contains a null byte")
	}
	if !isIdentStartByte(name[0]) {
		return "", document.NewValidation("identifier " + quote(name) + " must start with a letter or underscore")
	}
	for i := 1; i < len(name); i++ {
		if !isIdentByte(name[i]) {
			return "", document.NewValidation("identifier " + quote(name) + " contains a disallowed character")
		}
	}
	return name, nil
}

// quote renders a potentially hostile string safely for an error message
// (the message never contains raw SQL-adjacent content verbatim beyond
// what's needed to name the offender).
func quote(s string) string {
	const max = 80
	if len(s) > max {
		s = s[:max] + "…"
	}
	return "\"" + strings.ReplaceAll(s, "\"", "'") + "\""
}
