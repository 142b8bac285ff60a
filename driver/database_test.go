package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqlite3ExecuteRoundtrip(t *testing.T) {
	db, err := NewDatabase(Config{DbType: "sqlite3", DbName: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.ExecPreamble([]string{
		"CREATE TABLE slice (id INTEGER, ts INTEGER, dur INTEGER, name TEXT)",
		"INSERT INTO slice VALUES (1, 100, 10, 'foo')",
		"CREATE INDEX slice_name_idx ON slice(name)",
	}))

	rows, err := db.Execute("SELECT id, name FROM slice WHERE name = 'foo'")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0]["id"])
	assert.Equal(t, "foo", rows[0]["name"])
}

func TestNewDatabaseRejectsUnknownDialect(t *testing.T) {
	_, err := NewDatabase(Config{DbType: "oracle"})
	require.Error(t, err)
}

func TestOrderPreambleMovesIndexAfterTable(t *testing.T) {
	in := []string{
		"CREATE INDEX slice_name_idx ON slice(name)",
		"CREATE TABLE slice (id INTEGER, name TEXT)",
	}
	out := orderPreamble(in)
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "CREATE TABLE")
	assert.Contains(t, out[1], "CREATE INDEX")
}
