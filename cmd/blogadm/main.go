// Command blogadm administers a self-hosted document store: it applies the
// schema and issues one-time sign-in tokens.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/irfansharif/blog/pkg/config"
	"github.com/irfansharif/blog/pkg/docstore/migrations"
	"github.com/irfansharif/blog/pkg/docstore/postgres"
	"github.com/irfansharif/blog/pkg/docstore/sqlite"
	"github.com/irfansharif/blog/pkg/docstore/sqlstore"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: blogadm [-backend sqlite|postgres] [-dsn dsn] [-project id] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  migrate up       Migrate to the latest version")
	fmt.Fprintln(os.Stderr, "  migrate up-one   Migrate one version up")
	fmt.Fprintln(os.Stderr, "  migrate down     Roll back one version")
	fmt.Fprintln(os.Stderr, "  migrate status   Show migration status")
	fmt.Fprintln(os.Stderr, "  migrate version  Show current version")
	fmt.Fprintln(os.Stderr, "  token <uid>      Issue a one-time sign-in token for uid")
}

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("load environment: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	defaults, err := env.Service.Options(cfg.DataDir)
	if err != nil {
		log.Fatalf("service config: %v", err)
	}

	backend := flag.String("backend", env.Service.BackendName(), "document store backend (sqlite or postgres)")
	dsn := flag.String("dsn", defaults.DSN, "database file or connection string")
	project := flag.String("project", defaults.ProjectID, "project id tokens are issued for")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	if *dsn == "" {
		log.Fatalf("no dsn configured for the %s backend", *backend)
	}

	ctx := context.Background()
	switch args[0] {
	case "migrate":
		if len(args) != 2 {
			usage()
			os.Exit(1)
		}
		err = migrate(*backend, *dsn, args[1])
	case "token":
		if len(args) != 2 {
			usage()
			os.Exit(1)
		}
		err = issueToken(ctx, *backend, *dsn, *project, args[1])
	default:
		log.Fatalf("unknown command: %s", args[0])
	}
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func dialect(backend string) (driver string, d migrations.Dialect, err error) {
	switch backend {
	case config.BackendSQLite:
		return "sqlite", migrations.SQLite, nil
	case config.BackendPostgres:
		return "postgres", migrations.Postgres, nil
	}
	return "", "", fmt.Errorf("backend %q has no schema", backend)
}

func migrate(backend, dsn, cmd string) error {
	driver, d, err := dialect(backend)
	if err != nil {
		return err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	dir, err := migrations.Setup(d)
	if err != nil {
		return err
	}
	switch cmd {
	case "up":
		return migrations.Run(db.DB, d)
	case "up-one":
		return goose.UpByOne(db.DB, dir)
	case "down":
		return goose.Down(db.DB, dir)
	case "status":
		return goose.Status(db.DB, dir)
	case "version":
		return goose.Version(db.DB, dir)
	}
	return fmt.Errorf("unknown migrate command: %s", cmd)
}

func issueToken(ctx context.Context, backend, dsn, project, uid string) error {
	var db *sqlx.DB
	var err error
	switch backend {
	case config.BackendSQLite:
		db, err = sqlite.OpenDB(dsn)
	case config.BackendPostgres:
		db, err = postgres.OpenDB(ctx, dsn)
	default:
		err = fmt.Errorf("backend %q cannot issue tokens", backend)
	}
	if err != nil {
		return err
	}
	store := sqlstore.New(db, project, nil, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	defer func() { _ = store.Close() }()

	token, err := store.IssueToken(ctx, uid)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
