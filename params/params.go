// Package params implements the "explicit ParamBuf value passed by
// reference" called for in spec §9, replacing the source's mutable
// parameter vector threaded ad hoc through every translator call.
package params

import "strconv"

// Buf accumulates bound parameter values in bind order. A Buf is not
// safe for concurrent use — translation is single-threaded per spec §5,
// so no locking is needed.
type Buf struct {
	values []any
}

// New returns an empty parameter buffer.
func New() *Buf {
	return &Buf{}
}

// Bind appends v and returns the placeholder SQL text to splice into the
// fragment being built. Every bound value flows through here: this is the
// only way a value enters SQL (invariant I2).
func (b *Buf) Bind(v any) string {
	b.values = append(b.values, v)
	return "?"
}

// BindAll binds each value in vs in order and returns one placeholder per
// value, already comma-joined — convenient for $in/$nin lists.
func (b *Buf) BindAll(vs []any) string {
	if len(vs) == 0 {
		return ""
	}
	out := make([]byte, 0, len(vs)*3)
	for i, v := range vs {
		if i > 0 {
			out = append(out, ',', ' ')
		}
		b.values = append(b.values, v)
		out = append(out, '?')
	}
	return string(out)
}

// Len returns the number of values bound so far.
func (b *Buf) Len() int { return len(b.values) }

// Values returns the bound values in bind order. The returned slice is
// the buffer's own backing slice, not a copy, so callers must not
// mutate it.
func (b *Buf) Values() []any { return b.values }

// String aids debugging/log lines (never logs value contents, only the
// count, per spec §7's "never the value" rule).
func (b *Buf) String() string { return strconv.Itoa(len(b.values)) + " params" }
