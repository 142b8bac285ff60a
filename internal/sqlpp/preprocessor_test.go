package sqlpp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessorMacroExpansion(t *testing.T) {
	src := FromExecuteQuery(
		"CREATE PERFETTO MACRO foo(a Expr, b Expr) Returns Expr AS SELECT $a + $b;\n" +
			"foo!((SELECT s.ts + r.dur FROM s, r), 1234);")
	pp := NewPreprocessor(src, nil)

	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())
	_, ok := pp.Macros().Lookup("foo")
	assert.True(t, ok)

	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())
	got := strings.TrimSpace(pp.Statement().Sql())
	assert.Equal(t, "SELECT (SELECT s.ts + r.dur FROM s, r) + 1234;", got)

	assert.False(t, pp.NextStatement())
	assert.NoError(t, pp.Status())
}

// Traceback inside an expanded argument shows both the call site and the
// macro body frame.
func TestPreprocessorTracebackInsideMacroArg(t *testing.T) {
	src := FromExecuteQuery(
		"CREATE PERFETTO MACRO wrap(a Expr) Returns Expr AS SELECT f($a);\n" +
			"wrap!(bogus_column);")
	pp := NewPreprocessor(src, nil)
	require.True(t, pp.NextStatement())
	require.True(t, pp.NextStatement())

	expanded := pp.Statement()
	idx := strings.Index(expanded.Sql(), "bogus_column")
	require.GreaterOrEqual(t, idx, 0)

	frames := expanded.AsTraceback(idx)
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0].Name, "stdin")
	assert.Contains(t, frames[1].Name, "stdin")
}

func TestIntrinsicStringify(t *testing.T) {
	src := FromExecuteQuery("SELECT __intrinsic_stringify!(foo bar baz);")
	pp := NewPreprocessor(src, nil)
	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())
	assert.Equal(t, "SELECT 'foo bar baz';", pp.Statement().Sql())
}

func TestIntrinsicStringifyRequiresOneArg(t *testing.T) {
	src := FromExecuteQuery("SELECT __intrinsic_stringify!();")
	pp := NewPreprocessor(src, nil)
	assert.False(t, pp.NextStatement())
	require.Error(t, pp.Status())
	assert.Contains(t, pp.Status().Error(), "must specify exactly one argument")
}

func TestIntrinsicTokenZipJoin(t *testing.T) {
	src := FromExecuteQuery(
		"CREATE PERFETTO MACRO eq(a Expr, b Expr) Returns Expr AS $a = $b;\n" +
			"SELECT __intrinsic_token_zip_join!((x, y), (1, 2), eq, AND);")
	pp := NewPreprocessor(src, nil)
	require.True(t, pp.NextStatement())
	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())
	assert.Equal(t, "SELECT x = 1 AND y = 2;", pp.Statement().Sql())
}

// The second list may be longer than the first: pairs are produced only up to
// the shorter list's length.
func TestIntrinsicTokenZipJoinTruncatesToShorterList(t *testing.T) {
	src := FromExecuteQuery(
		"CREATE PERFETTO MACRO alias_as(a Expr, b Expr) Returns Expr AS $a AS $b;\n" +
			"__intrinsic_token_zip_join!((foo, bar), (baz, bat, bada), alias_as, __intrinsic_token_comma!());")
	pp := NewPreprocessor(src, nil)
	require.True(t, pp.NextStatement())
	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())
	assert.Equal(t, "foo AS baz , bar AS bat;", pp.Statement().Sql())
}

// Macros invoking other macros expand fully, with arguments substituted
// before the inner call is expanded.
func TestNestedMacroExpansion(t *testing.T) {
	src := FromExecuteQuery(
		"CREATE PERFETTO MACRO foo(a Expr, b Expr) Returns Expr AS $a + $b;\n" +
			"CREATE PERFETTO MACRO bar(a Expr, b Expr) Returns Expr AS foo!($a, $b) + foo!($b, $a);\n" +
			"SELECT bar!((SELECT s.ts + r.dur FROM s, r), 1234);")
	pp := NewPreprocessor(src, nil)
	require.True(t, pp.NextStatement())
	require.True(t, pp.NextStatement())
	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())
	assert.Equal(t,
		"SELECT (SELECT s.ts + r.dur FROM s, r) + 1234 + 1234 + (SELECT s.ts + r.dur FROM s, r);",
		pp.Statement().Sql())
}

// Stringify quotes the argument text after $arg substitution, through any
// number of intermediate macro layers.
func TestStringifyThroughMacroLayers(t *testing.T) {
	src := FromExecuteQuery(
		"CREATE PERFETTO MACRO sf(a Expr, b Expr) Returns Expr AS __intrinsic_stringify!($a + $b);\n" +
			"sf!(1, 2);")
	pp := NewPreprocessor(src, nil)
	require.True(t, pp.NextStatement())
	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())
	assert.Equal(t, "'1 + 2';", pp.Statement().Sql())
}

// The rendered traceback of an expanded statement starts with the fully
// expanded text and a caret, then the header, then one frame per source
// layer.
func TestTracebackOfExpandedStatement(t *testing.T) {
	src := FromExecuteQuery(
		"CREATE PERFETTO MACRO foo(a Expr, b Expr) Returns Expr AS SELECT $a + $b;\n" +
			"foo!((SELECT s.ts + r.dur FROM s, r), 1234);")
	pp := NewPreprocessor(src, nil)
	require.True(t, pp.NextStatement())
	require.True(t, pp.NextStatement())
	require.NoError(t, pp.Status())

	tb := pp.Statement().Traceback(0)
	assert.True(t, strings.HasPrefix(tb, "Fully expanded statement\n"))
	assert.Contains(t, tb, "  SELECT (SELECT s.ts + r.dur FROM s, r) + 1234;\n  ^\n")
	assert.Contains(t, tb, "Traceback (most recent call last):\n")
	frames := pp.Statement().AsTraceback(0)
	require.Len(t, frames, 2)
	assert.Equal(t, `File "stdin"`, frames[0].Name)
	assert.Equal(t, `File "stdin"`, frames[1].Name)
}

// Semicolons inside comments do not terminate a statement.
func TestStatementSplitterIgnoresCommentSemicolons(t *testing.T) {
	src := FromExecuteQuery("SELECT 1 -- trailing; comment\n+ 2;\nSELECT /* mid; block */ 3;")
	splitter := NewStatementSplitter(src)
	first, ok := splitter.NextStatement()
	require.True(t, ok)
	assert.Equal(t, "SELECT 1 -- trailing; comment\n+ 2;", first.Sql())
	second, ok := splitter.NextStatement()
	require.True(t, ok)
	assert.Equal(t, "SELECT /* mid; block */ 3;", second.Sql())
	_, ok = splitter.NextStatement()
	assert.False(t, ok)
	assert.NoError(t, splitter.Status())
}

func TestStatementSplitterHandlesMissingTrailingSemicolon(t *testing.T) {
	src := FromExecuteQuery("SELECT 1; SELECT 2")
	splitter := NewStatementSplitter(src)
	first, ok := splitter.NextStatement()
	require.True(t, ok)
	assert.Equal(t, "SELECT 1;", first.Sql())
	second, ok := splitter.NextStatement()
	require.True(t, ok)
	assert.Equal(t, "SELECT 2", second.Sql())
	_, ok = splitter.NextStatement()
	assert.False(t, ok)
	assert.NoError(t, splitter.Status())
}
