package sqlpp

import "log/slog"

// Preprocessor splits a SqlSource into statements, expanding `name!(args)`
// macro calls as it goes and registering `CREATE PERFETTO MACRO`
// declarations into its macro table the moment it reaches them — so a macro
// must be declared before any statement that calls it, the same ordering
// constraint the original preprocessor_unittest.cc exercises.
//
// A CREATE PERFETTO MACRO statement is itself emitted unexpanded (it is a
// parser-level statement, not something containing a call site to expand);
// every other statement is returned with all call sites expanded.
type Preprocessor struct {
	splitter *StatementSplitter
	macros   *MacroTable
	cur      SqlSource
	err      error
}

// NewPreprocessor begins preprocessing src. A fresh macro table is created
// if macros is nil; pass a shared table to make macros defined elsewhere
// (e.g. an included module) visible here too.
func NewPreprocessor(src SqlSource, macros *MacroTable) *Preprocessor {
	if macros == nil {
		macros = NewMacroTable()
	}
	return &Preprocessor{splitter: NewStatementSplitter(src), macros: macros}
}

// Macros returns the macro table this preprocessor registers definitions
// into and expands calls against.
func (p *Preprocessor) Macros() *MacroTable { return p.macros }

// Status returns the first lexical or semantic error encountered, if any.
func (p *Preprocessor) Status() error {
	if p.err != nil {
		return p.err
	}
	return p.splitter.Status()
}

// Statement returns the most recently produced statement's SqlSource.
func (p *Preprocessor) Statement() SqlSource { return p.cur }

// NextStatement advances to the next statement, returning false on EOF or
// error. Once Status() is non-nil, NextStatement always returns false.
func (p *Preprocessor) NextStatement() bool {
	if p.err != nil {
		return false
	}
	stmt, ok := p.splitter.NextStatement()
	if !ok {
		if err := p.splitter.Status(); err != nil {
			p.err = err
		}
		return false
	}

	isMacroDecl, err := looksLikeCreateMacro(stmt.Rewritten)
	if err != nil {
		p.err = err
		return false
	}
	if isMacroDecl {
		decl, err := parseStandaloneCreateMacro(stmt)
		if err != nil {
			p.err = err
			return false
		}
		if err := p.macros.Define(Macro{
			Replace: decl.Replace,
			Name:    decl.Name,
			Args:    argNames(decl.Args),
			Body:    decl.Sql,
		}); err != nil {
			p.err = err
			return false
		}
		slog.Debug("registered macro", "name", decl.Name, "args", len(decl.Args))
		p.cur = stmt
		return true
	}

	expanded, didExpand, err := ExpandMacros(stmt, p.macros)
	if err != nil {
		p.err = err
		return false
	}
	expanded.fullyExpanded = didExpand
	p.cur = expanded
	return true
}

func argNames(args []Argument) []string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.Name
	}
	return names
}

// parseStandaloneCreateMacro re-tokenizes a statement already known (via
// looksLikeCreateMacro) to be a CREATE [OR REPLACE] PERFETTO MACRO
// declaration, reusing the same recursive-descent logic the Parser uses for
// the Statement-level form.
func parseStandaloneCreateMacro(stmt SqlSource) (CreateMacroStmt, error) {
	toks, err := tokenizeStatement(stmt.Rewritten)
	if err != nil {
		return CreateMacroStmt{}, err
	}
	ts := &tokStream{toks: toks}
	ts.next() // CREATE
	replace := false
	if isWord(ts.peek(), "or") {
		ts.next()
		ts.next() // REPLACE
		replace = true
	}
	ts.next() // PERFETTO
	ts.next() // MACRO
	stmtAny, err := parseCreateMacroDecl(stmt, ts, replace)
	if err != nil {
		return CreateMacroStmt{}, err
	}
	return stmtAny.(CreateMacroStmt), nil
}
