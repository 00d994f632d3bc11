// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package document

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code names one of the error kinds in spec §6's error surface.
type Code int

const (
	CodeValidation Code = iota
	CodeMalformedExpression
	CodeMalformedStage
	CodeUnsupportedOperator
	CodeUnsupportedStage
	CodeUnsupportedExpression
	CodeFeatureUnavailable
	CodeNoEngineAvailable
	CodeSandboxUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "Validation"
	case CodeMalformedExpression:
		return "MalformedExpression"
	case CodeMalformedStage:
		return "MalformedStage"
	case CodeUnsupportedOperator:
		return "UnsupportedOperator"
	case CodeUnsupportedStage:
		return "UnsupportedStage"
	case CodeUnsupportedExpression:
		return "UnsupportedExpression"
	case CodeFeatureUnavailable:
		return "FeatureUnavailable"
	case CodeNoEngineAvailable:
		return "NoEngineAvailable"
	case CodeSandboxUnavailable:
		return "SandboxUnavailable"
	default:
		return "Unknown"
	}
}

// Error is the single error type every translator component raises. It
// never carries a bound parameter value, only the stage index, operator
// name, or field path responsible, per spec §7.
type Error struct {
	Code       Code
	StageIndex int // -1 when not applicable
	Subject    string
	ParamIndex int // -1 when not applicable
	cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Subject)
	if e.StageIndex >= 0 {
		msg = fmt.Sprintf("stage %d: %s", e.StageIndex, msg)
	}
	if e.ParamIndex >= 0 {
		msg = fmt.Sprintf("%s (parameter #%d)", msg, e.ParamIndex)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// newErr builds an Error with no stage/parameter context attached yet.
func newErr(code Code, subject string, cause error) *Error {
	return &Error{Code: code, StageIndex: -1, ParamIndex: -1, Subject: subject, cause: cause}
}

// WithStage returns a copy of err annotated with the stage index it failed
// in. Safe to call on a nil *Error (returns nil).
func (e *Error) WithStage(i int) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.StageIndex = i
	return &cp
}

// WithParam returns a copy of err annotated with the offending parameter
// index (never the value it would have bound).
func (e *Error) WithParam(i int) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.ParamIndex = i
	return &cp
}

func NewValidation(subject string) *Error {
	return newErr(CodeValidation, subject, nil)
}

func NewMalformedExpression(context string) *Error {
	return newErr(CodeMalformedExpression, context, nil)
}

func NewMalformedStage(stage string) *Error {
	return newErr(CodeMalformedStage, stage, nil)
}

func NewUnsupportedOperator(name string) *Error {
	return newErr(CodeUnsupportedOperator, name, nil)
}

func NewUnsupportedStage(name string) *Error {
	return newErr(CodeUnsupportedStage, name, nil)
}

func NewUnsupportedExpression(context string) *Error {
	return newErr(CodeUnsupportedExpression, context, nil)
}

func NewFeatureUnavailable(feature, engine string) *Error {
	return newErr(CodeFeatureUnavailable, fmt.Sprintf("%s unsupported on %s", feature, engine), nil)
}

func NewNoEngineAvailable(reason string) *Error {
	return newErr(CodeNoEngineAvailable, reason, nil)
}

func NewSandboxUnavailable(reason string) *Error {
	return newErr(CodeSandboxUnavailable, reason, nil)
}

// Wrap attaches a causal error (e.g. a json.Unmarshal failure) to a
// MalformedExpression/MalformedStage error, mirroring how engine.go wraps
// analyzer failures with github.com/pkg/errors for stack context.
func Wrap(code Code, subject string, cause error) *Error {
	return newErr(code, subject, errors.WithStack(cause))
}

// Is reports whether err is a *Error with the given code, so callers can
// branch on the taxonomy without a type assertion at every call site.
func Is(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
