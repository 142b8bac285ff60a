package driver

import (
	_ "modernc.org/sqlite"
)

// sqlite3BuildDSN returns the DSN sql.Open("sqlite", ...) expects. DbName is
// a file path, or ":memory:" for an ephemeral in-process database — the
// mode used by internal/sqlgen's integration tests to execute generated SQL
// against a real engine and assert result shape rather than just string
// equality.
func sqlite3BuildDSN(config Config) string {
	if config.DbName == "" {
		return ":memory:"
	}
	return config.DbName
}
