// Package sqlpp is the PerfettoSQL-style preprocessor: it tracks where every
// byte of a rewritten SQL string originally came from (SqlSource), expands
// CREATE PERFETTO MACRO invocations and the intrinsic macros, splits a
// source into individual statements, and parses the small set of
// CREATE/DROP/INCLUDE surface forms on top of raw SqliteSql.
package sqlpp

import (
	"fmt"
	"strings"
)

// Rewrite records one substitution applied to a SqlSource: the half-open byte
// range it replaced in Original, the half-open byte range the replacement
// occupies in Rewritten, and the child SqlSource carrying the replacement
// text's own provenance (e.g. a macro body), to recurse into for a traceback
// that falls inside it. Child is nil for plain-text replacements.
type Rewrite struct {
	OrigStart, OrigEnd           int
	RewrittenStart, RewrittenEnd int
	Child                        *SqlSource
}

// SqlSource is an opaque string-with-provenance: the literal rewritten SQL
// plus enough information to map any offset in it back to the file/module it
// came from, through any number of macro expansions.
type SqlSource struct {
	Name      string
	Line, Col int
	Original  string
	Rewritten string
	Rewrites  []Rewrite

	// IncludeTracebackHeader is true only for top-level user-execute
	// sources; nested/child sources never print their own header line.
	IncludeTracebackHeader bool

	// fullyExpanded marks a statement the preprocessor rewrote via macro
	// expansion; its rendered traceback is prefixed with the expanded text.
	fullyExpanded bool
}

func newSource(name string, sql string) SqlSource {
	return SqlSource{Name: name, Line: 1, Col: 1, Original: sql, Rewritten: sql}
}

// FromExecuteQuery wraps a top-level, user-submitted query string.
func FromExecuteQuery(sql string) SqlSource {
	s := newSource(`File "stdin"`, sql)
	s.IncludeTracebackHeader = true
	return s
}

// FromMetric wraps the body of a named metric definition.
func FromMetric(name, sql string) SqlSource {
	return newSource(fmt.Sprintf("Metric %q", name), sql)
}

// FromMetricFile wraps the contents of a metric file.
func FromMetricFile(name, sql string) SqlSource {
	return newSource(fmt.Sprintf("Metric file %q", name), sql)
}

// FromModuleInclude wraps the contents of an included PerfettoSQL module.
func FromModuleInclude(name, sql string) SqlSource {
	return newSource(fmt.Sprintf("Module include %q", name), sql)
}

// FromTraceProcessorImplementation wraps SQL text baked into the trace
// processor binary itself (built-in stdlib modules, intrinsic expansions).
func FromTraceProcessorImplementation(sql string) SqlSource {
	return newSource("Trace Processor Internal", sql)
}

// Sql returns the current rewritten SQL text.
func (s SqlSource) Sql() string { return s.Rewritten }

// IsRewritten reports whether any substitution has been applied to this
// source. A rewritten source cannot be rewritten again.
func (s SqlSource) IsRewritten() bool { return len(s.Rewrites) > 0 }

// rewrittenToOriginal maps an offset in Rewritten to the corresponding offset
// in Original. An offset anywhere inside a rewritten range maps to that
// rewrite's origin start; arbitrary transformations admit nothing finer.
func (s SqlSource) rewrittenToOriginal(offset int) int {
	remaining := offset
	for _, rw := range s.Rewrites {
		if offset >= rw.RewrittenEnd {
			remaining -= rw.RewrittenEnd - rw.RewrittenStart
			remaining += rw.OrigEnd - rw.OrigStart
			continue
		}
		if offset < rw.RewrittenStart {
			break
		}
		return rw.OrigStart
	}
	return remaining
}

// Substr returns a new SqlSource representing the half-open byte range
// [offset, offset+length) of the current rewritten text, preserving
// provenance for every rewrite the slice overlaps.
func (s SqlSource) Substr(offset, length int) SqlSource {
	end := offset + length
	origStart := s.rewrittenToOriginal(offset)
	origEnd := s.rewrittenToOriginal(end)

	var newRewrites []Rewrite
	for _, rw := range s.Rewrites {
		if offset >= rw.RewrittenEnd {
			continue
		}
		if end < rw.RewrittenStart {
			break
		}
		// When the slice ends in the middle of a rewrite, the original
		// must cover that whole rewrite, not stop at its start.
		if end < rw.RewrittenEnd {
			origEnd = rw.OrigEnd
		}
		boundedStart := max(offset, rw.RewrittenStart)
		boundedEnd := min(end, rw.RewrittenEnd)
		var childPtr *SqlSource
		if rw.Child != nil {
			child := rw.Child.Substr(boundedStart-rw.RewrittenStart, boundedEnd-boundedStart)
			childPtr = &child
		}
		newRewrites = append(newRewrites, Rewrite{
			OrigStart:      rw.OrigStart - origStart,
			OrigEnd:        rw.OrigEnd - origStart,
			RewrittenStart: boundedStart - offset,
			RewrittenEnd:   boundedEnd - offset,
			Child:          childPtr,
		})
	}

	line, col := advancePos(s.Line, s.Col, s.Original, origStart)
	return SqlSource{
		Name:      s.Name,
		Line:      line,
		Col:       col,
		Original:  s.Original[origStart:origEnd],
		Rewritten: s.Rewritten[offset:end],
		Rewrites:  newRewrites,

		IncludeTracebackHeader: s.IncludeTracebackHeader,
	}
}

// FullRewrite replaces the entire source with newSrc as a single child,
// preserving a traceback path into newSrc for any offset.
func (s SqlSource) FullRewrite(newSrc SqlSource) SqlSource {
	rw := NewRewriter(s)
	rw.Rewrite(0, len(s.Original), newSrc)
	return rw.Build()
}

// Rewriter accumulates a batch of non-overlapping range replacements against
// a base SqlSource's text, then builds the resulting SqlSource in one pass.
// A source can only be rewritten once; constructing a Rewriter over an
// already-rewritten source is a caller bug.
type Rewriter struct {
	base  SqlSource
	edits []edit
}

type edit struct {
	start, end int
	text       string
	child      *SqlSource
}

// NewRewriter begins a rewrite batch over base.
func NewRewriter(base SqlSource) *Rewriter {
	if base.IsRewritten() {
		panic("sqlpp: source already rewritten")
	}
	return &Rewriter{base: base}
}

// Rewrite queues the replacement of base text [start, end) with new source
// text carrying its own provenance (e.g. a macro expansion body). Ranges
// must be queued in non-overlapping, monotonically increasing order.
func (r *Rewriter) Rewrite(start, end int, new SqlSource) *Rewriter {
	r.edits = append(r.edits, edit{start: start, end: end, text: new.Rewritten, child: &new})
	return r
}

// RewriteText queues a plain-text replacement with no further provenance tree
// beneath it (an offset inside the replaced range traces back to the range's
// origin in this node).
func (r *Rewriter) RewriteText(start, end int, new string) *Rewriter {
	r.edits = append(r.edits, edit{start: start, end: end, text: new})
	return r
}

// Build applies every queued edit in order and returns the resulting
// SqlSource.
func (r *Rewriter) Build() SqlSource {
	out := r.base

	var sb strings.Builder
	rewrites := make([]Rewrite, 0, len(r.edits))
	cursor := 0
	for _, e := range r.edits {
		sb.WriteString(r.base.Original[cursor:e.start])
		rewrittenStart := sb.Len()
		sb.WriteString(e.text)
		rewrittenEnd := sb.Len()
		rewrites = append(rewrites, Rewrite{
			OrigStart: e.start, OrigEnd: e.end,
			RewrittenStart: rewrittenStart, RewrittenEnd: rewrittenEnd,
			Child: e.child,
		})
		cursor = e.end
	}
	sb.WriteString(r.base.Original[cursor:])

	out.Rewritten = sb.String()
	out.Rewrites = rewrites
	return out
}

// Frame is a single entry in a rendered traceback: the source name, its
// 1-based line/column, a bounded context excerpt, a caret marker row
// pointing at the column, and whether this frame's source asks for the
// "Traceback (most recent call last):" header line above it.
type Frame struct {
	Name    string
	Line    int
	Col     int
	Context string
	Caret   string
	Header  bool
}

// AsTraceback walks the rewrite tree from offset (a byte offset into
// Rewritten) down to the deepest node that contributed that byte, producing
// one Frame per enclosing layer, outermost first.
func (s SqlSource) AsTraceback(offset int) []Frame {
	var frames []Frame
	cur := s
	curOffset := offset
	for {
		origOffset, child, rewrittenStart := translateToOriginal(cur, curOffset)
		line, col := advancePos(cur.Line, cur.Col, cur.Original, origOffset)
		frames = append(frames, Frame{
			Name:    cur.Name,
			Line:    line,
			Col:     col,
			Context: contextExcerpt(cur.Original, origOffset),
			Caret:   caretRow(cur.Original, origOffset),
			Header:  cur.IncludeTracebackHeader,
		})
		if child == nil {
			return frames
		}
		curOffset = curOffset - rewrittenStart
		cur = *child
	}
}

// translateToOriginal converts a rewritten-space offset to an original-space
// offset by accumulating, for each rewrite strictly before offset, the delta
// (orig_len - rewritten_len). If offset falls inside a rewrite's rewritten
// range, the result is clamped to that rewrite's origin start and the
// rewrite's child (along with its RewrittenStart) is returned so the caller
// can recurse.
func translateToOriginal(s SqlSource, offset int) (origOffset int, child *SqlSource, rewrittenStart int) {
	delta := 0
	for i := range s.Rewrites {
		rw := &s.Rewrites[i]
		if offset < rw.RewrittenStart {
			break
		}
		if offset < rw.RewrittenEnd {
			return rw.OrigStart, rw.Child, rw.RewrittenStart
		}
		origLen := rw.OrigEnd - rw.OrigStart
		rewrittenLen := rw.RewrittenEnd - rw.RewrittenStart
		delta += origLen - rewrittenLen
	}
	return offset + delta, nil, 0
}

func advancePos(line, col int, s string, uptoOffset int) (int, int) {
	if uptoOffset > len(s) {
		uptoOffset = len(s)
	}
	for i := 0; i < uptoOffset; i++ {
		if s[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

const contextRadius = 128

func contextExcerpt(s string, offset int) string {
	lo := offset - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := offset + contextRadius
	if hi > len(s) {
		hi = len(s)
	}
	// Bound by newline in either direction so the excerpt is one logical line.
	if nl := strings.LastIndexByte(s[lo:offset], '\n'); nl >= 0 {
		lo += nl + 1
	}
	if offset < len(s) {
		if nl := strings.IndexByte(s[offset:hi], '\n'); nl >= 0 {
			hi = offset + nl
		}
	}
	if lo > hi {
		lo = hi
	}
	return s[lo:hi]
}

func caretRow(s string, offset int) string {
	lo := offset - contextRadius
	if lo < 0 {
		lo = 0
	}
	if nl := strings.LastIndexByte(s[lo:offset], '\n'); nl >= 0 {
		lo += nl + 1
	}
	return strings.Repeat(" ", offset-lo) + "^"
}

// Traceback renders the frames for offset the way end-user diagnostics
// expect. A preprocessor-expanded statement is prefixed with the fully
// expanded text and a caret at the queried offset, so the reader sees both
// the final SQL and the chain of sources that produced it.
func (s SqlSource) Traceback(offset int) string {
	var sb strings.Builder
	if s.fullyExpanded {
		sb.WriteString("Fully expanded statement\n")
		sb.WriteString("  " + contextExcerpt(s.Rewritten, offset) + "\n")
		sb.WriteString("  " + caretRow(s.Rewritten, offset) + "\n")
	}
	headerDone := false
	for _, f := range s.AsTraceback(offset) {
		if f.Header && !headerDone {
			sb.WriteString("Traceback (most recent call last):\n")
			headerDone = true
		}
		fmt.Fprintf(&sb, "  %s line %d col %d\n", f.Name, f.Line, f.Col)
		sb.WriteString("    " + f.Context + "\n")
		sb.WriteString("    " + f.Caret + "\n")
	}
	return sb.String()
}

// TracebackForSqliteOffset renders a traceback for an error offset reported
// by SQLite. A negative offset means SQLite did not report one; out-of-range
// offsets (possible with buggy SQLite versions) are treated the same way.
// Both fall back to the start of the statement.
func (s SqlSource) TracebackForSqliteOffset(offset int) string {
	if offset < 0 || offset > len(s.Rewritten) {
		offset = 0
	}
	return s.Traceback(offset)
}
