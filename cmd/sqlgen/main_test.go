package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts, rest := parseOptions([]string{"-d", "postgres", "-u", "alice", "--db", "traces"})
	assert.Equal(t, "postgres", opts.Dialect)
	assert.Equal(t, "alice", opts.User)
	assert.Equal(t, "traces", opts.DbName)
	assert.Empty(t, rest)
}

func TestRunMacroOnlyExpandsCallSite(t *testing.T) {
	sql := "CREATE PERFETTO MACRO foo(a Expr, b Expr) Returns Expr AS SELECT $a + $b;\n" +
		"foo!((SELECT s.ts + r.dur FROM s, r), 1234);"
	out, err := runMacroOnly(sql)
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT (SELECT s.ts + r.dur FROM s, r) + 1234")
}
