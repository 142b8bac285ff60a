package main

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v2"
)

// lintPostgres parses sql with the real Postgres grammar as a syntax check
// before ever executing it against a live connection — catching a SQGEN bug
// that emitted syntactically invalid SQL earlier and with a clearer message
// than whatever error the driver itself would surface.
func lintPostgres(sql string) error {
	if _, err := pg_query.Parse(sql); err != nil {
		return fmt.Errorf("postgres grammar rejected generated SQL: %w", err)
	}
	return nil
}
