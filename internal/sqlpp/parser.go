package sqlpp

import (
	"errors"
	"fmt"
	"strings"
)

// tokStream is a simple lookahead cursor over a statement's non-space
// tokens, used by the hand-written recursive-descent parser below. Building
// the whole token list up front is fine here: statements are short, and a
// slice with lookahead is simpler to work with than a streaming lexer.
type tokStream struct {
	toks []Token
	pos  int
}

func tokenizeStatement(s string) ([]Token, error) {
	tz := NewTokenizer(s)
	var toks []Token
	for {
		t, err := tz.Next()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokSpace {
			continue
		}
		toks = append(toks, t)
		if t.Kind == TokEOF {
			break
		}
	}
	return toks, nil
}

// parseErr is a parser diagnostic anchored at a byte offset in the statement
// being parsed, so the caller can render a traceback pointing at the
// offending token.
type parseErr struct {
	offset int
	msg    string
}

func (e *parseErr) Error() string { return e.msg }

func errAt(tok Token, format string, args ...any) error {
	return &parseErr{offset: tok.Start, msg: fmt.Sprintf(format, args...)}
}

func (ts *tokStream) peek() Token { return ts.toks[ts.pos] }
func (ts *tokStream) peekAt(off int) Token {
	i := ts.pos + off
	if i >= len(ts.toks) {
		return ts.toks[len(ts.toks)-1]
	}
	return ts.toks[i]
}
func (ts *tokStream) next() Token {
	t := ts.toks[ts.pos]
	if t.Kind != TokEOF {
		ts.pos++
	}
	return t
}
func isWord(t Token, w string) bool {
	return (t.Kind == TokID || t.Kind == TokKeyword) && strings.EqualFold(t.Text, w)
}
func (ts *tokStream) eatWord(w string) error {
	t := ts.next()
	if !isWord(t, w) {
		return errAt(t, "sqlpp: expected %q, got %q", w, t.Text)
	}
	return nil
}
func (ts *tokStream) eatIdent() (string, error) {
	t := ts.next()
	if t.Kind != TokID && t.Kind != TokKeyword {
		return "", errAt(t, "sqlpp: expected identifier, got %q", t.Text)
	}
	return t.Text, nil
}

// parseStatement classifies one statement's SqlSource into a Statement
// variant, per the recognized PerfettoSQL surface forms. Anything that is not
// a recognized CREATE/DROP/INCLUDE form falls through to
// SqliteSqlStmt, to be handed to SQLite verbatim.
func parseStatement(src SqlSource) (Statement, error) {
	toks, err := tokenizeStatement(src.Rewritten)
	if err != nil {
		return nil, err
	}
	ts := &tokStream{toks: toks}
	if ts.peek().Kind == TokEOF {
		return SqliteSqlStmt{Sql: src}, nil
	}

	switch {
	case isWord(ts.peek(), "create"):
		return parseCreate(src, ts)
	case isWord(ts.peek(), "drop"):
		return parseDrop(src, ts)
	case isWord(ts.peek(), "include"):
		return parseInclude(src, ts)
	default:
		return SqliteSqlStmt{Sql: src}, nil
	}
}

func parseCreate(src SqlSource, ts *tokStream) (Statement, error) {
	ts.next() // CREATE
	replace := false
	if isWord(ts.peek(), "or") {
		ts.next()
		if err := ts.eatWord("replace"); err != nil {
			return nil, err
		}
		replace = true
	}
	if isWord(ts.peek(), "trigger") {
		return nil, errAt(ts.peek(), "sqlpp: CREATE TRIGGER is not supported; use CREATE PERFETTO TABLE or a view instead")
	}
	if err := ts.eatWord("perfetto"); err != nil {
		return nil, err
	}
	kind := ts.next()
	switch strings.ToLower(kind.Text) {
	case "table":
		return parseCreateTable(src, ts, replace)
	case "view":
		return parseCreateView(src, ts, replace)
	case "function":
		return parseCreateFunction(src, ts, replace)
	case "macro":
		return parseCreateMacroDecl(src, ts, replace)
	case "index":
		return parseCreateIndex(src, ts, replace)
	default:
		return nil, errAt(kind, "sqlpp: unsupported CREATE PERFETTO %s", kind.Text)
	}
}

// parseArgs parses a parenthesized `(name Type, name Type, ...)` list.
// Parameterized type tokens like JOINID(table.col) are captured whole as the
// argument's Type string; the base scalar type is resolved via
// ParseArgumentType.
func parseArgs(src SqlSource, ts *tokStream) ([]Argument, error) {
	if ts.peek().Kind != TokLP {
		return nil, errAt(ts.peek(), "sqlpp: expected '(', got %q", ts.peek().Text)
	}
	ts.next()
	var args []Argument
	for {
		if ts.peek().Kind == TokRP {
			ts.next()
			break
		}
		nameTok := ts.next()
		if nameTok.Kind == TokKeyword {
			return nil, errAt(nameTok, "sqlpp: argument name %q is a reserved keyword", nameTok.Text)
		}
		if nameTok.Kind != TokID {
			return nil, errAt(nameTok, "sqlpp: expected argument name, got %q", nameTok.Text)
		}
		typeStart := ts.peek()
		typeTok := ts.next()
		typeEnd := typeTok.End
		if ts.peek().Kind == TokLP {
			depth := 0
			for {
				t := ts.next()
				if t.Kind == TokLP {
					depth++
				} else if t.Kind == TokRP {
					depth--
					typeEnd = t.End
					if depth == 0 {
						break
					}
				} else if t.Kind == TokEOF {
					return nil, errAt(t, "sqlpp: unterminated parameterized type for argument %q", nameTok.Text)
				}
			}
		}
		typeStr := src.Rewritten[typeStart.Start:typeEnd]
		kind, err := ParseArgumentType(typeStr)
		if err != nil {
			return nil, errAt(typeStart, "sqlpp: argument %q: %s", nameTok.Text, err)
		}
		args = append(args, Argument{Name: nameTok.Text, Type: typeStr, Kind: kind})
		if ts.peek().Kind == TokComma {
			ts.next()
			continue
		}
		if ts.peek().Kind == TokRP {
			ts.next()
			break
		}
		return nil, errAt(ts.peek(), "sqlpp: expected ',' or ')' in argument list, got %q", ts.peek().Text)
	}
	return args, nil
}

// restAsBody returns the remainder of src from ts's current position to the
// end of the statement, trimming a single trailing top-level semicolon.
func restAsBody(src SqlSource, ts *tokStream) SqlSource {
	start := ts.peek().Start
	end := len(src.Rewritten)
	last := ts.toks[len(ts.toks)-1]
	if last.Kind == TokEOF && len(ts.toks) >= 2 {
		prev := ts.toks[len(ts.toks)-2]
		if prev.Kind == TokSemi {
			end = prev.Start
		}
	}
	if start > end {
		start = end
	}
	return src.Substr(start, end-start)
}

func parseCreateTable(src SqlSource, ts *tokStream, replace bool) (Statement, error) {
	name, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	var schema []Argument
	if ts.peek().Kind == TokLP {
		schema, err = parseArgs(src, ts)
		if err != nil {
			return nil, err
		}
	}
	if err := ts.eatWord("as"); err != nil {
		return nil, err
	}
	return CreateTableStmt{Replace: replace, Name: name, Schema: schema, Sql: restAsBody(src, ts)}, nil
}

func parseCreateView(src SqlSource, ts *tokStream, replace bool) (Statement, error) {
	name, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	var schema []Argument
	if ts.peek().Kind == TokLP {
		schema, err = parseArgs(src, ts)
		if err != nil {
			return nil, err
		}
	}
	if err := ts.eatWord("as"); err != nil {
		return nil, err
	}
	selectSql := restAsBody(src, ts)
	createViewSql := selectSql
	createViewSql.Rewritten = "CREATE VIEW " + name + " AS " + selectSql.Rewritten
	createViewSql.Original = createViewSql.Rewritten
	createViewSql.Rewrites = nil
	return CreateViewStmt{Replace: replace, Name: name, Schema: schema, SelectSql: selectSql, CreateViewSql: createViewSql}, nil
}

func parseCreateFunction(src SqlSource, ts *tokStream, replace bool) (Statement, error) {
	name, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	args, err := parseArgs(src, ts)
	if err != nil {
		return nil, err
	}
	if err := ts.eatWord("returns"); err != nil {
		return nil, err
	}
	isTable := false
	var returns string
	if isWord(ts.peek(), "table") {
		ts.next()
		isTable = true
		cols, err := parseArgs(src, ts)
		if err != nil {
			return nil, err
		}
		returns = "TABLE(" + joinArgNames(cols) + ")"
	} else {
		returnTok := ts.next()
		returns = returnTok.Text
	}
	return finishCreateFunction(src, ts, replace, name, args, returns, isTable)
}

func finishCreateFunction(src SqlSource, ts *tokStream, replace bool, name string, args []Argument, returns string, isTable bool) (Statement, error) {
	if isWord(ts.peek(), "delegates") {
		ts.next()
		if err := ts.eatWord("to"); err != nil {
			return nil, err
		}
		target, err := ts.eatIdent()
		if err != nil {
			return nil, err
		}
		return CreateFunctionStmt{
			Replace: replace, Name: name, Args: args, Returns: returns,
			IsTable: isTable, TargetFunction: target,
		}, nil
	}
	if err := ts.eatWord("as"); err != nil {
		return nil, err
	}
	return CreateFunctionStmt{
		Replace: replace, Name: name, Args: args, Returns: returns,
		IsTable: isTable, Sql: restAsBody(src, ts),
	}, nil
}

func joinArgNames(args []Argument) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name + " " + a.Type
	}
	return strings.Join(names, ", ")
}

func parseCreateIndex(src SqlSource, ts *tokStream, replace bool) (Statement, error) {
	name, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	if err := ts.eatWord("on"); err != nil {
		return nil, err
	}
	table, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	if ts.peek().Kind != TokLP {
		return nil, errAt(ts.peek(), "sqlpp: expected '(' after table name in CREATE PERFETTO INDEX")
	}
	ts.next()
	var cols []string
	for {
		if ts.peek().Kind == TokRP {
			ts.next()
			break
		}
		c, err := ts.eatIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if ts.peek().Kind == TokComma {
			ts.next()
			continue
		}
	}
	return CreateIndexStmt{Replace: replace, Name: name, Table: table, Columns: cols}, nil
}

func parseDrop(src SqlSource, ts *tokStream) (Statement, error) {
	ts.next() // DROP
	if err := ts.eatWord("perfetto"); err != nil {
		return nil, err
	}
	if err := ts.eatWord("index"); err != nil {
		return nil, err
	}
	name, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	if err := ts.eatWord("on"); err != nil {
		return nil, err
	}
	table, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	return DropIndexStmt{Name: name, Table: table}, nil
}

func parseInclude(src SqlSource, ts *tokStream) (Statement, error) {
	ts.next() // INCLUDE
	if err := ts.eatWord("perfetto"); err != nil {
		return nil, err
	}
	if err := ts.eatWord("module"); err != nil {
		return nil, err
	}
	start := ts.peek().Start
	if _, err := ts.eatIdent(); err != nil {
		return nil, err
	}
	end := ts.toks[ts.pos-1].End
	for ts.peek().Kind == TokDot {
		ts.next()
		if _, err := ts.eatIdent(); err != nil {
			return nil, err
		}
		end = ts.toks[ts.pos-1].End
	}
	return IncludeStmt{Key: src.Rewritten[start:end]}, nil
}

// parseCreateMacroDecl parses `CREATE [OR REPLACE] PERFETTO MACRO
// name(arg Type, ...) RETURNS Type AS body` into its Statement form. Also
// used by Preprocessor (via parseStandaloneCreateMacro) to register the macro's
// name/args/body before the rest of the source is scanned for call sites.
func parseCreateMacroDecl(src SqlSource, ts *tokStream, replace bool) (Statement, error) {
	name, err := ts.eatIdent()
	if err != nil {
		return nil, err
	}
	args, err := parseArgs(src, ts)
	if err != nil {
		return nil, err
	}
	if err := ts.eatWord("returns"); err != nil {
		return nil, err
	}
	returnTok := ts.next()
	if err := ts.eatWord("as"); err != nil {
		return nil, err
	}
	body := restAsBody(src, ts)
	return CreateMacroStmt{Replace: replace, Name: name, Args: args, Returns: returnTok.Text, Sql: body}, nil
}

// looksLikeCreateMacro peeks at a statement's leading tokens to decide,
// without fully parsing, whether it declares a macro (so Preprocessor can
// register it before expanding later statements that call it).
func looksLikeCreateMacro(rewritten string) (bool, error) {
	toks, err := tokenizeStatement(rewritten)
	if err != nil {
		return false, err
	}
	ts := &tokStream{toks: toks}
	if !isWord(ts.peek(), "create") {
		return false, nil
	}
	ts.next()
	if isWord(ts.peek(), "or") {
		ts.next()
		if isWord(ts.peek(), "replace") {
			ts.next()
		}
	}
	if !isWord(ts.peek(), "perfetto") {
		return false, nil
	}
	ts.next()
	return isWord(ts.peek(), "macro"), nil
}

// Parser recognizes the PerfettoSQL surface forms (§4.3.4) on top of
// Preprocessor's macro-expanded statement stream.
type Parser struct {
	pp  *Preprocessor
	cur Statement
	err error
}

// NewParser begins parsing src, registering/expanding macros via macros (a
// fresh table is used if macros is nil).
func NewParser(src SqlSource, macros *MacroTable) *Parser {
	return &Parser{pp: NewPreprocessor(src, macros)}
}

// Status returns the first lexical/semantic error encountered, if any.
func (p *Parser) Status() error {
	if p.err != nil {
		return p.err
	}
	return p.pp.Status()
}

// Statement returns the most recently parsed Statement.
func (p *Parser) Statement() Statement { return p.cur }

// Next advances to the next statement, returning false on EOF or error.
// Once Status() is non-nil, Next always returns false.
func (p *Parser) Next() bool {
	if p.err != nil {
		return false
	}
	if !p.pp.NextStatement() {
		if err := p.pp.Status(); err != nil {
			p.err = err
		}
		return false
	}
	stmt, err := parseStatement(p.pp.Statement())
	if err != nil {
		offset := 0
		var pe *parseErr
		if errors.As(err, &pe) {
			offset = pe.offset
		}
		p.err = fmt.Errorf("%s%s", p.pp.Statement().Traceback(offset), err)
		return false
	}
	p.cur = stmt
	return true
}
