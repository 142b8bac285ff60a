// Package config loads per-dialect connection defaults for cmd/sqlgen from an
// optional YAML file, merged with command-line flags (flags always win over
// the file).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/tpsql-core/tpsql/driver"
)

// DialectDefaults holds the connection defaults for a single dialect, as
// they would appear under that dialect's key in the YAML config file.
type DialectDefaults struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Socket   string `yaml:"socket"`
	DbName   string `yaml:"db_name"`
}

// File is the top-level shape of a -config YAML file: one optional
// DialectDefaults per supported dialect.
type File struct {
	Mysql    DialectDefaults `yaml:"mysql"`
	Postgres DialectDefaults `yaml:"postgres"`
	Mssql    DialectDefaults `yaml:"mssql"`
	Sqlite3  DialectDefaults `yaml:"sqlite3"`
}

// Load reads and parses a YAML config file. A non-existent path is not an
// error: it yields a zero-valued File, since the config file is optional.
func Load(path string) (*File, error) {
	var f File
	if path == "" {
		return &f, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// defaultsFor returns the DialectDefaults for dialect, or a zero value if
// the dialect is unrecognized.
func (f *File) defaultsFor(dialect string) DialectDefaults {
	switch dialect {
	case "mysql":
		return f.Mysql
	case "postgres":
		return f.Postgres
	case "mssql":
		return f.Mssql
	case "sqlite3":
		return f.Sqlite3
	default:
		return DialectDefaults{}
	}
}

// Merge produces a driver.Config for dialect, starting from the file's
// defaults for that dialect and overriding every field the caller's flags
// actually set (a non-zero-value override always wins; flags that were left
// at their own zero value fall through to the file's default, matching
// go-flags' own "default" tag convention of only overriding when the user
// supplied a value).
func (f *File) Merge(dialect string, flags driver.Config) driver.Config {
	d := f.defaultsFor(dialect)
	cfg := driver.Config{DbType: dialect}

	cfg.User = firstNonEmpty(flags.User, d.User)
	cfg.Password = firstNonEmpty(flags.Password, d.Password)
	cfg.Host = firstNonEmpty(flags.Host, d.Host)
	cfg.Socket = firstNonEmpty(flags.Socket, d.Socket)
	cfg.DbName = firstNonEmpty(flags.DbName, d.DbName)
	if flags.Port != 0 {
		cfg.Port = flags.Port
	} else {
		cfg.Port = d.Port
	}
	return cfg
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
