// Command sqlgen reads a PerfettoSQL-dialect statement (or a raw
// StructuredQuery wire-format file), runs it through the sqlpp/sqlgen
// pipeline, and optionally executes the resulting SQL against a live
// database for validation.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"

	"github.com/tpsql-core/tpsql/driver"
	"github.com/tpsql-core/tpsql/internal/config"
	"github.com/tpsql-core/tpsql/internal/logging"
	"github.com/tpsql-core/tpsql/internal/sqlgen"
	"github.com/tpsql-core/tpsql/internal/sqlpp"
)

type options struct {
	Dialect  string `short:"d" long:"dialect" description:"Backend to execute against (mysql, postgres, mssql, sqlite3); omit to only print the generated SQL" value-name:"dialect"`
	User     string `short:"u" long:"user" description:"Database user name" value-name:"user_name"`
	Password string `short:"p" long:"password" description:"Database user password" value-name:"password"`
	Host     string `short:"h" long:"host" description:"Host to connect to" value-name:"host_name"`
	Port     int    `short:"P" long:"port" description:"Port used for the connection" value-name:"port_num"`
	Socket   string `short:"S" long:"socket" description:"Unix socket to use for connection" value-name:"socket"`
	DbName   string `long:"db" description:"Database name" value-name:"db_name"`
	Prompt   bool   `long:"password-prompt" description:"Force an interactive password prompt"`
	Config   string `long:"config" description:"YAML file with per-dialect connection defaults" value-name:"config_file"`
	File     string `long:"file" description:"Read the input (StructuredQuery wire bytes, or PerfettoSQL text with --macro-only) from this file rather than stdin" value-name:"sql_file"`
	Macro    bool   `long:"macro-only" description:"Run only the preprocessor (macro expansion), printing the expanded SQL without generating from a StructuredQuery"`
	Debug    bool   `long:"debug" description:"Pretty-print the referenced modules, preambles and result rows"`
	Help     bool   `long:"help" description:"Show this help"`
}

// fatal logs msg at error level through the handler logging.Init installed,
// then exits non-zero.
func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func parseOptions(args []string) (*options, []string) {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		fatal("parsing command line flags", "err", err)
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	return &opts, rest
}

func readInput(opts *options) ([]byte, error) {
	if opts.File != "" && opts.File != "-" {
		return os.ReadFile(opts.File)
	}
	return io.ReadAll(os.Stdin)
}

func resolvePassword(opts *options) string {
	if pw, ok := os.LookupEnv("SQLGEN_PWD"); ok {
		return pw
	}
	if opts.Prompt {
		fmt.Fprint(os.Stderr, "Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fatal("reading password", "err", err)
		}
		fmt.Fprintln(os.Stderr)
		return string(pass)
	}
	return opts.Password
}

func main() {
	logging.Init()
	opts, _ := parseOptions(os.Args[1:])

	input, err := readInput(opts)
	if err != nil {
		fatal("reading input", "err", err)
	}

	if opts.Macro {
		expanded, err := runMacroOnly(string(input))
		if err != nil {
			fatal("macro expansion failed", "err", err)
		}
		fmt.Println(expanded)
		return
	}

	gen := sqlgen.NewGenerator()
	sql, err := gen.Generate(input)
	if err != nil {
		fatal("generating SQL", "err", err)
	}

	if opts.Debug {
		pp.Println("referenced_modules", gen.ReferencedModules())
		pp.Println("preambles", gen.Preambles())
	}

	if opts.Dialect == "" {
		fmt.Println(sql)
		return
	}

	if opts.Dialect == "postgres" {
		if lintErr := lintPostgres(sql); lintErr != nil {
			fatal("generated SQL failed postgres lint", "err", lintErr)
		}
	}

	cfgFile, err := config.Load(opts.Config)
	if err != nil {
		fatal("loading config", "err", err)
	}
	dbConfig := cfgFile.Merge(opts.Dialect, driver.Config{
		DbType:   opts.Dialect,
		User:     opts.User,
		Password: resolvePassword(opts),
		Host:     opts.Host,
		Port:     opts.Port,
		Socket:   opts.Socket,
		DbName:   opts.DbName,
	})

	db, err := driver.NewDatabase(dbConfig)
	if err != nil {
		fatal("opening database", "err", err)
	}
	defer db.Close()

	if preambles := gen.Preambles(); len(preambles) > 0 {
		if err := db.ExecPreamble(preambles); err != nil {
			fatal("applying preamble", "err", err)
		}
	}

	rows, err := db.Execute(sql)
	if err != nil {
		fatal("executing generated SQL", "err", err)
	}
	if opts.Debug {
		pp.Println("rows", rows)
	} else {
		for _, row := range rows {
			fmt.Println(row)
		}
	}
}

// runMacroOnly expands macros in a raw PerfettoSQL statement and returns the
// fully rewritten SQL text, without involving the StructuredQuery pipeline
// at all. Useful for debugging a CREATE PERFETTO MACRO definition in
// isolation.
func runMacroOnly(sql string) (string, error) {
	preproc := sqlpp.NewPreprocessor(sqlpp.FromExecuteQuery(sql), nil)

	var out []string
	for preproc.NextStatement() {
		out = append(out, preproc.Statement().Sql())
	}
	if err := preproc.Status(); err != nil {
		return "", err
	}
	return strings.Join(out, "\n"), nil
}
