// Package driver opens a connection to one of the four SQL engines this
// module's go.mod carries a driver for, and executes SQL text against it.
// Its sole job is to run SQGEN-emitted SQL against a live engine so a caller
// can validate that the generated query is not just textually plausible but
// actually executes. It never deals with DDL diffing.
package driver

import (
	"database/sql"
	"fmt"
)

// Config describes how to reach a single SQL engine.
type Config struct {
	DbType   string // "mysql", "postgres", "mssql", or "sqlite3"
	DbName   string
	User     string
	Password string
	Host     string
	Port     int
	Socket   string
}

// Database wraps a single *sql.DB and the dialect it was opened for.
type Database struct {
	config Config
	db     *sql.DB
}

// NewDatabase opens a connection for config.DbType. The returned Database
// must be closed by the caller.
func NewDatabase(config Config) (*Database, error) {
	var driverName, dsn string

	switch config.DbType {
	case "mysql":
		driverName, dsn = "mysql", mysqlBuildDSN(config)
	case "postgres":
		driverName, dsn = "postgres", postgresBuildDSN(config)
	case "mssql":
		driverName, dsn = "sqlserver", mssqlBuildDSN(config)
	case "sqlite3":
		driverName, dsn = "sqlite", sqlite3BuildDSN(config)
	default:
		return nil, fmt.Errorf("driver: database type must be one of mysql, postgres, mssql, sqlite3, got %q", config.DbType)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("driver: open %s: %w", config.DbType, err)
	}
	return &Database{config: config, db: db}, nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Execute runs a single SQL statement (typically SQGEN output) and returns
// the resulting rows as a slice of column-name-keyed maps, so a caller (e.g.
// cmd/sqlgen's -debug pretty-printer) can inspect result shape rather than
// only string-comparing the generated SQL.
func (d *Database) Execute(query string) ([]map[string]any, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("driver: execute: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("driver: columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("driver: scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ExecPreamble runs every statement in stmts in order inside a single
// transaction, rolling back on the first failure. Used to apply a SQGEN
// preamble (the `CREATE PERFETTO TABLE`/index setup statements a `Sql`
// source's non-final statements lower to) before the final query runs.
func (d *Database) ExecPreamble(stmts []string) error {
	stmts = orderPreamble(stmts)
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("driver: begin: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("driver: preamble statement %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}
