package sqlpp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, sql string) []Statement {
	t.Helper()
	p := NewParser(FromExecuteQuery(sql), nil)
	var stmts []Statement
	for p.Next() {
		stmts = append(stmts, p.Statement())
	}
	require.NoError(t, p.Status())
	return stmts
}

func TestParserCreateTable(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO TABLE foo AS SELECT 1 AS x;")
	require.Len(t, stmts, 1)
	ct, ok := stmts[0].(CreateTableStmt)
	require.True(t, ok)
	assert.Equal(t, "foo", ct.Name)
	assert.Equal(t, "SELECT 1 AS x", ct.Sql.Sql())
}

func TestParserCreateTableWithSchema(t *testing.T) {
	stmts := parseAll(t, "CREATE OR REPLACE PERFETTO TABLE foo(id LONG, name STRING) AS SELECT 1, 'a';")
	require.Len(t, stmts, 1)
	ct := stmts[0].(CreateTableStmt)
	assert.True(t, ct.Replace)
	require.Len(t, ct.Schema, 2)
	assert.Equal(t, Argument{Name: "id", Type: "LONG", Kind: ArgTypeLong}, ct.Schema[0])
	assert.Equal(t, Argument{Name: "name", Type: "STRING", Kind: ArgTypeString}, ct.Schema[1])
}

// Parameterized type annotations resolve to their base scalar type.
func TestParserParameterizedArgumentType(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO FUNCTION f(x JOINID(slice.id)) RETURNS LONG AS SELECT $x;")
	fn := stmts[0].(CreateFunctionStmt)
	require.Len(t, fn.Args, 1)
	assert.Equal(t, "JOINID(slice.id)", fn.Args[0].Type)
	assert.Equal(t, ArgTypeLong, fn.Args[0].Kind)
}

func TestParserRejectsUnknownArgumentType(t *testing.T) {
	p := NewParser(FromExecuteQuery("CREATE PERFETTO FUNCTION f(x WIDGET) RETURNS LONG AS SELECT 1;"), nil)
	assert.False(t, p.Next())
	require.Error(t, p.Status())
	assert.Contains(t, p.Status().Error(), "unrecognized type")
}

func TestParserCreateView(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO VIEW v AS SELECT * FROM slice;")
	cv := stmts[0].(CreateViewStmt)
	assert.Equal(t, "v", cv.Name)
	assert.Equal(t, "SELECT * FROM slice", cv.SelectSql.Sql())
	assert.Equal(t, "CREATE VIEW v AS SELECT * FROM slice", cv.CreateViewSql.Sql())
}

func TestParserCreateFunctionScalar(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO FUNCTION double_it(x LONG) RETURNS LONG AS SELECT $x * 2;")
	fn := stmts[0].(CreateFunctionStmt)
	assert.Equal(t, "double_it", fn.Name)
	assert.False(t, fn.IsTable)
	assert.Equal(t, "LONG", fn.Returns)
	require.Len(t, fn.Args, 1)
	assert.Equal(t, "x", fn.Args[0].Name)
}

func TestParserCreateFunctionTable(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO FUNCTION f() RETURNS TABLE(id LONG) AS SELECT 1 AS id;")
	fn := stmts[0].(CreateFunctionStmt)
	assert.True(t, fn.IsTable)
	assert.Contains(t, fn.Returns, "TABLE")
}

func TestParserCreateFunctionDelegates(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO FUNCTION f(x LONG) RETURNS LONG DELEGATES TO intrinsic_f;")
	fn := stmts[0].(CreateFunctionStmt)
	assert.Equal(t, "intrinsic_f", fn.TargetFunction)
}

func TestParserCreateIndex(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO INDEX idx ON slice(ts, dur);")
	ci := stmts[0].(CreateIndexStmt)
	assert.Equal(t, "idx", ci.Name)
	assert.Equal(t, "slice", ci.Table)
	assert.Equal(t, []string{"ts", "dur"}, ci.Columns)
}

func TestParserDropIndex(t *testing.T) {
	stmts := parseAll(t, "DROP PERFETTO INDEX idx ON slice;")
	di := stmts[0].(DropIndexStmt)
	assert.Equal(t, "idx", di.Name)
	assert.Equal(t, "slice", di.Table)
}

func TestParserInclude(t *testing.T) {
	stmts := parseAll(t, "INCLUDE PERFETTO MODULE android.startup.startups;")
	inc := stmts[0].(IncludeStmt)
	assert.Equal(t, "android.startup.startups", inc.Key)
}

func TestParserCreateMacroStatementVariant(t *testing.T) {
	stmts := parseAll(t, "CREATE PERFETTO MACRO foo(a Expr) Returns Expr AS SELECT $a;\nSELECT foo!(1);")
	require.Len(t, stmts, 2)
	cm, ok := stmts[0].(CreateMacroStmt)
	require.True(t, ok)
	assert.Equal(t, "foo", cm.Name)
	sql, ok := stmts[1].(SqliteSqlStmt)
	require.True(t, ok)
	assert.Equal(t, "SELECT SELECT 1;", strings.TrimSpace(sql.Sql.Sql()))
}

func TestParserRejectsCreateTrigger(t *testing.T) {
	p := NewParser(FromExecuteQuery("CREATE TRIGGER t AFTER INSERT ON foo BEGIN SELECT 1; END;"), nil)
	assert.False(t, p.Next())
	require.Error(t, p.Status())
	assert.Contains(t, p.Status().Error(), "CREATE TRIGGER")
}

func TestParserPassesThroughRawSqlite(t *testing.T) {
	stmts := parseAll(t, "SELECT * FROM slice WHERE dur > 0;")
	_, ok := stmts[0].(SqliteSqlStmt)
	assert.True(t, ok)
}
