package sqlpp

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tpsql-core/tpsql/internal/fhm"
)

// Macro is a CREATE PERFETTO MACRO declaration: a name, its formal argument
// names, and a body with $arg placeholders.
type Macro struct {
	Replace bool
	Name    string
	Args    []string
	Body    SqlSource
}

// MacroTable maps macro name to definition, backed by the flat hash map so
// macro lookups during expansion go through the same primitive the rest of
// the module uses for string-keyed maps.
type MacroTable struct {
	macros *fhm.Map[string, Macro]
}

// NewMacroTable constructs an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: fhm.New[string, Macro](fhm.StringHasher(), fhm.StringEq, 0, 0)}
}

// Define registers m, replacing any prior definition iff m.Replace is set.
func (t *MacroTable) Define(m Macro) error {
	if _, ok := t.macros.Find(m.Name); ok && !m.Replace {
		return fmt.Errorf("sqlpp: macro %q is already defined", m.Name)
	}
	*t.macros.Index(m.Name) = m
	return nil
}

// Lookup returns the macro registered under name, if any.
func (t *MacroTable) Lookup(name string) (Macro, bool) {
	v, ok := t.macros.Find(name)
	if !ok {
		return Macro{}, false
	}
	return *v, true
}

const (
	intrinsicStringify    = "__intrinsic_stringify"
	intrinsicTokenZipJoin = "__intrinsic_token_zip_join"
	intrinsicTokenComma   = "__intrinsic_token_comma"

	// Bounds mutually-recursive macro definitions; any legitimate expansion
	// tree is far shallower than this.
	maxMacroExpansionDepth = 256
)

type span struct{ start, end int }

// trimSpan narrows sp to exclude leading/trailing whitespace in s, so that
// both the literal substituted text and any Substr-derived provenance agree.
func trimSpan(s string, sp span) span {
	for sp.start < sp.end && isSpace(s[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && isSpace(s[sp.end-1]) {
		sp.end--
	}
	return sp
}

// tracedError carries a rendered traceback pointing at the macro call whose
// expansion failed. It is attached once, at the innermost failing call site,
// and propagates up the expansion recursion unchanged.
type tracedError struct {
	traceback string
	err       error
}

func (e *tracedError) Error() string { return e.traceback + e.err.Error() }
func (e *tracedError) Unwrap() error { return e.err }

func traceErr(src SqlSource, offset int, err error) error {
	if _, ok := err.(*tracedError); ok {
		return err
	}
	return &tracedError{traceback: src.Traceback(offset), err: err}
}

// argValue is one evaluated macro-call argument: its final text after any
// expansion of its own contents, plus the SqlSource carrying that text's
// provenance. expanded distinguishes an argument that was itself rewritten
// (nested macro calls, $var substitution) from plain call-site text.
type argValue struct {
	text     string
	src      SqlSource
	expanded bool
}

// ExpandMacros expands every `name!(args)` call in src, recursively, and
// substitutes $arg placeholders from enclosing macro bodies. Returns the
// expanded source and whether anything was rewritten at all.
//
// Each SqlSource is rewritten at most once: nested calls are expanded on the
// fresh body/argument sources they live in, never by re-rewriting an already
// built result.
func ExpandMacros(src SqlSource, table *MacroTable) (SqlSource, bool, error) {
	return expandSource(src, nil, table, 0)
}

// expandItem is one substitution site found while scanning a source: either a
// $var bound in the current macro environment or a macro call.
type expandItem struct {
	start, end int
	isCall     bool
	name       string // macro name, or var name without the '$'
	args       []span
}

// scanExpandItems tokenizes s and returns every top-level $var (bound in env)
// and macro call, in source order. Text inside a call's argument list is not
// scanned here; argument contents are handled recursively by the caller.
func scanExpandItems(s string, env map[string]argValue) ([]expandItem, error) {
	tz := NewTokenizer(s)
	var items []expandItem
	var prev Token
	havePrev := false
	skipUntil := 0
	for {
		tok, err := tz.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokEOF {
			return items, nil
		}
		if tok.Start < skipUntil {
			continue
		}
		if tok.Kind == TokVariable {
			name := tok.Text[1:]
			if _, ok := env[name]; ok {
				items = append(items, expandItem{start: tok.Start, end: tok.End, name: name})
			}
		}
		if havePrev && prev.Kind == TokID && tok.Kind == TokBang && tok.Start == prev.End {
			lpTok, err := tz.Next()
			if err != nil {
				return nil, err
			}
			if lpTok.Kind == TokLP && lpTok.Start == tok.End {
				args, rp, err := splitArgs(s, lpTok.End)
				if err != nil {
					return nil, err
				}
				items = append(items, expandItem{
					start: prev.Start, end: rp + 1,
					isCall: true, name: prev.Text, args: args,
				})
				skipUntil = rp + 1
				havePrev = false
				continue
			}
			tok = lpTok
		}
		prev, havePrev = tok, true
	}
}

// expandSource performs a single rewrite pass over src (which must not have
// been rewritten yet): every $var bound in env is substituted with its
// argument, and every macro call is replaced by its recursively computed
// expansion.
func expandSource(src SqlSource, env map[string]argValue, table *MacroTable, depth int) (SqlSource, bool, error) {
	if depth > maxMacroExpansionDepth {
		return SqlSource{}, false, fmt.Errorf("sqlpp: macro expansion exceeded depth %d (recursive macro definition?)", maxMacroExpansionDepth)
	}
	items, err := scanExpandItems(src.Rewritten, env)
	if err != nil {
		return SqlSource{}, false, err
	}
	if len(items) == 0 {
		return src, false, nil
	}

	rw := NewRewriter(src)
	for _, it := range items {
		if !it.isCall {
			arg := env[it.name]
			if arg.expanded {
				rw.Rewrite(it.start, it.end, arg.src)
			} else {
				rw.RewriteText(it.start, it.end, arg.text)
			}
			continue
		}
		args, err := evalArgs(src, it.args, env, table, depth)
		if err != nil {
			return SqlSource{}, false, err
		}
		replacement, err := expandCall(it.name, args, table, depth)
		if err != nil {
			return SqlSource{}, false, traceErr(src, it.start, err)
		}
		rw.Rewrite(it.start, it.end, replacement)
	}
	return rw.Build(), true, nil
}

// evalArgs expands each call argument in place: $vars from the enclosing
// macro body are substituted and nested calls inside the argument are
// expanded, before the callee ever sees the argument text.
func evalArgs(src SqlSource, spans []span, env map[string]argValue, table *MacroTable, depth int) ([]argValue, error) {
	args := make([]argValue, len(spans))
	for i, sp := range spans {
		sp = trimSpan(src.Rewritten, sp)
		argSrc := src.Substr(sp.start, sp.end-sp.start)
		expanded, did, err := expandSource(argSrc, env, table, depth+1)
		if err != nil {
			return nil, err
		}
		args[i] = argValue{text: expanded.Rewritten, src: expanded, expanded: did}
	}
	return args, nil
}

func expandCall(name string, args []argValue, table *MacroTable, depth int) (SqlSource, error) {
	switch name {
	case intrinsicStringify:
		return expandStringify(args)
	case intrinsicTokenComma:
		if len(args) != 0 {
			return SqlSource{}, fmt.Errorf("sqlpp: %s takes no arguments", intrinsicTokenComma)
		}
		return FromTraceProcessorImplementation(","), nil
	case intrinsicTokenZipJoin:
		return expandTokenZipJoin(args, table, depth)
	}

	m, ok := table.Lookup(name)
	if !ok {
		return SqlSource{}, fmt.Errorf("sqlpp: unknown macro %q", name)
	}
	if len(args) != len(m.Args) {
		return SqlSource{}, fmt.Errorf("sqlpp: macro %q expects %d argument(s), got %d", name, len(m.Args), len(args))
	}
	slog.Debug("expanding macro call", "macro", name, "args", len(args), "depth", depth)
	benv := make(map[string]argValue, len(m.Args))
	for i, a := range m.Args {
		benv[a] = args[i]
	}
	out, _, err := expandSource(m.Body, benv, table, depth+1)
	return out, err
}

// expandStringify quotes its single argument's literal (post-substitution)
// source text as a SQL string.
func expandStringify(args []argValue) (SqlSource, error) {
	if len(args) != 1 {
		return SqlSource{}, fmt.Errorf("sqlpp: stringify: must specify exactly one argument, actual %d", len(args))
	}
	quoted := "'" + strings.ReplaceAll(args[0].text, "'", "''") + "'"
	return FromTraceProcessorImplementation(quoted), nil
}

// expandTokenZipJoin pairs up the elements of two parenthesized lists,
// expands the per-pair macro over each pair (up to the shorter list's
// length), and joins the results with the separator argument's token text.
func expandTokenZipJoin(args []argValue, table *MacroTable, depth int) (SqlSource, error) {
	if len(args) != 4 {
		return SqlSource{}, fmt.Errorf("sqlpp: %s requires 4 arguments, got %d", intrinsicTokenZipJoin, len(args))
	}
	list1, err := parseParenList(args[0].text)
	if err != nil {
		return SqlSource{}, err
	}
	list2, err := parseParenList(args[1].text)
	if err != nil {
		return SqlSource{}, err
	}
	perPair := args[2].text
	separator := args[3].text

	n := len(list1)
	if len(list2) < n {
		n = len(list2)
	}
	var pieces []string
	for i := 0; i < n; i++ {
		call := fmt.Sprintf("%s!(%s, %s)", perPair, list1[i], list2[i])
		expanded, _, err := expandSource(FromTraceProcessorImplementation(call), nil, table, depth+1)
		if err != nil {
			return SqlSource{}, err
		}
		pieces = append(pieces, expanded.Rewritten)
	}
	return FromTraceProcessorImplementation(strings.Join(pieces, " "+separator+" ")), nil
}

// parseParenList parses "(a, b, c)" into its trimmed element texts,
// respecting nesting and quoting inside elements.
func parseParenList(text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 || trimmed[0] != '(' || trimmed[len(trimmed)-1] != ')' {
		return nil, fmt.Errorf("sqlpp: expected a parenthesized list, got %q", text)
	}
	spans, _, err := splitArgs(trimmed, 1)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(spans))
	for i, sp := range spans {
		sp = trimSpan(trimmed, sp)
		out[i] = trimmed[sp.start:sp.end]
	}
	return out, nil
}

// splitArgs splits the comma-separated argument list starting right after an
// already-consumed `(` at position openAfter, respecting nested parens and
// quoted strings. Returns the argument spans and the index of the matching
// `)`.
func splitArgs(s string, openAfter int) ([]span, int, error) {
	depth := 0
	start := openAfter
	var args []span
	i := openAfter
	for i < len(s) {
		c := s[i]
		switch c {
		case '(':
			depth++
			i++
		case ')':
			if depth == 0 {
				end := i
				if strings.TrimSpace(s[start:end]) != "" || len(args) > 0 {
					args = append(args, span{start, end})
				}
				return args, i, nil
			}
			depth--
			i++
		case ',':
			if depth == 0 {
				args = append(args, span{start, i})
				start = i + 1
			}
			i++
		case '\'', '"':
			quote := c
			i++
			for i < len(s) {
				if s[i] == quote {
					if i+1 < len(s) && s[i+1] == quote {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		default:
			i++
		}
	}
	return nil, 0, fmt.Errorf("sqlpp: unterminated macro argument list")
}
