// Package filter is the Query Translator (spec §4.4): it turns a Mongo
// filter document into a boolean SQL fragment, binding every value
// through params.Buf (invariant I2/I3) and validating every field path
// through ident (invariant I1) before it reaches a JSON-extract call.
package filter

import (
	"github.com/dot-do/mondodb-sub011/document"
	"github.com/dot-do/mondodb-sub011/expr"
	"github.com/dot-do/mondodb-sub011/search"
)

// Filter is the sealed filter AST.
type Filter interface{ isFilter() }

type And struct{ Args []Filter }
type Or struct{ Args []Filter }
type Nor struct{ Args []Filter }
type ExprFilter struct{ Inner expr.Expr }
type TextFilter struct{ Query search.Query }
type FieldCond struct {
	Path document.FieldPath
	Parts []string
	Ops  []FieldOp
}

func (And) isFilter()        {}
func (Or) isFilter()         {}
func (Nor) isFilter()        {}
func (ExprFilter) isFilter() {}
func (TextFilter) isFilter() {}
func (FieldCond) isFilter()  {}

// FieldOp is one operator applied to a single field (spec §4.4's bullet
// list). Several field conditions translate to the same op with
// different payload shapes, so each gets its own variant rather than a
// single {Name string, Value any} shape the translator would have to
// re-dispatch on.
type FieldOp interface{ isFieldOp() }

type OpEq struct{ Value any }
type OpNe struct{ Value any }
type OpGt struct{ Value any }
type OpGte struct{ Value any }
type OpLt struct{ Value any }
type OpLte struct{ Value any }
type OpIn struct{ Values []any }
type OpNin struct{ Values []any }
type OpExists struct{ Expect bool }
type OpType struct{ TypeName string }
type OpRegex struct {
	Pattern         string
	CaseInsensitive bool
}
type OpSize struct{ Size int }
type OpElemMatch struct{ Inner Filter }
type OpAll struct{ Values []any }
type OpNot struct{ Inner []FieldOp }

func (OpEq) isFieldOp()        {}
func (OpNe) isFieldOp()        {}
func (OpGt) isFieldOp()        {}
func (OpGte) isFieldOp()       {}
func (OpLt) isFieldOp()        {}
func (OpLte) isFieldOp()       {}
func (OpIn) isFieldOp()        {}
func (OpNin) isFieldOp()       {}
func (OpExists) isFieldOp()    {}
func (OpType) isFieldOp()      {}
func (OpRegex) isFieldOp()     {}
func (OpSize) isFieldOp()      {}
func (OpElemMatch) isFieldOp() {}
func (OpAll) isFieldOp()       {}
func (OpNot) isFieldOp()       {}
