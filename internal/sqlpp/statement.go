package sqlpp

// StatementSplitter yields successive statement spans from a single
// SqlSource, one per call to NextStatement. It never interprets the statement text
// itself; it only knows where one ends and the next begins.
type StatementSplitter struct {
	src  SqlSource
	pos  int
	err  error
	done bool
}

// NewStatementSplitter begins splitting src into statements.
func NewStatementSplitter(src SqlSource) *StatementSplitter {
	return &StatementSplitter{src: src}
}

// Status returns any lexical error encountered so far.
func (s *StatementSplitter) Status() error { return s.err }

// NextStatement returns the next statement's SqlSource and true, or a false
// bool on exhaustion. Once Status() is non-nil, NextStatement always returns false.
func (s *StatementSplitter) NextStatement() (SqlSource, bool) {
	if s.err != nil || s.done {
		return SqlSource{}, false
	}
	body := s.src.Rewritten

	// Skip leading whitespace and isolated semicolons.
	for s.pos < len(body) {
		tz := NewTokenizer(body[s.pos:])
		tok, err := tz.Next()
		if err != nil {
			s.err = err
			return SqlSource{}, false
		}
		if tok.Kind == TokSpace || tok.Kind == TokSemi {
			s.pos += tok.End
			continue
		}
		break
	}
	if s.pos >= len(body) {
		s.done = true
		return SqlSource{}, false
	}

	start := s.pos
	end := -1
	tz := NewTokenizer(body[s.pos:])
	for {
		tok, err := tz.Next()
		if err != nil {
			s.err = err
			return SqlSource{}, false
		}
		if tok.Kind == TokEOF {
			end = len(body)
			s.pos = len(body)
			break
		}
		if tok.Kind == TokSemi {
			end = start + tok.End
			s.pos = end
			break
		}
	}
	if end < 0 {
		end = len(body)
		s.pos = end
	}

	stmtSrc := s.src.Substr(start, end-start)
	if s.pos >= len(body) {
		s.done = true
	}
	return stmtSrc, true
}
