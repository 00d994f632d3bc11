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

// Package document defines the document data model shared by every
// translator component: documents, field paths, dialects, and the error
// taxonomy produced at translation time.
package document

// Kind classifies a Value the way sql/types classifies a column type in a
// SQL engine, except there is no storage engine behind it: Kind is only
// used to decide how a literal should be bound and how $type comparisons
// resolve.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBinary
	KindDate
	KindObjectID
	KindArray
	KindDocument
)

// Doc is an unordered mapping from string keys to values, matching the
// BSON-ish document shape described in spec §3. The translator never
// mutates a Doc it did not construct itself (e.g. a $project output
// envelope).
type Doc map[string]any

// FieldPath is a dot-joined, already-validated field path. Construct one
// only via ident.ValidateFieldPath; the zero value is never passed to a
// translator.
type FieldPath string

func (p FieldPath) String() string { return string(p) }

// Dialect names the two supported SQL targets.
type Dialect int

const (
	Embedded Dialect = iota
	Analytical
)

func (d Dialect) String() string {
	switch d {
	case Embedded:
		return "embedded"
	case Analytical:
		return "analytical"
	default:
		return "unknown"
	}
}
