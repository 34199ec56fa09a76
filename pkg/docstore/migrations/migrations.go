// Package migrations embeds the SQL schema of the self-hosted document stores
// and applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS contains the embedded SQL migration files, one directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Dialect selects a schema directory and the matching goose dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) goose() (string, error) {
	switch d {
	case SQLite:
		return "sqlite3", nil
	case Postgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("unknown dialect %q", string(d))
}

// Setup points goose at the embedded files for d. Callers that drive goose
// directly (the admin CLI) use this before goose.Status and friends.
func Setup(d Dialect) (dir string, err error) {
	name, err := d.goose()
	if err != nil {
		return "", err
	}
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(name); err != nil {
		return "", fmt.Errorf("set dialect: %w", err)
	}
	return string(d), nil
}

// Run applies all pending migrations for d.
func Run(db *sql.DB, d Dialect) error {
	dir, err := Setup(d)
	if err != nil {
		return err
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
