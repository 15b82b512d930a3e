// Package main is the entrypoint for the resource fetcher (binary name "fetcher").
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/resource-fetcher/internal/config"
	"github.com/morezero/resource-fetcher/internal/server"
	"github.com/morezero/resource-fetcher/pkg/bootstrap"
	"github.com/morezero/resource-fetcher/pkg/db"
)

const usage = `Usage: fetcher [command]
       fetcher serve               Start the fetcher (HTTP, COMMS, document store).
       fetcher migrate up          Run database migrations.
       fetcher migrate down        Roll back the latest applied migration.
       fetcher migrate status      Show migration status.
       fetcher ensure-db [name]    Create database if missing (default name: fetcher_test). Uses DATABASE_URL host/user.
       fetcher clear               Delete every stored document; schema is preserved.
       fetcher bootstrap [file]    Validate a bootstrap file and list the remote handlers it declares.

Environment: DATABASE_URL, MIGRATION_PATH, FETCHER_HTTP_ADDR (default :8080), COMMS_URL,
FETCHER_BOOTSTRAP_FILE, FETCHER_STORE_HANDLER, FETCHER_REQUEST_TIMEOUT, LOG_LEVEL, LOG_FILE.
`

// errUsage marks a command line that could not be parsed.
var errUsage = errors.New("invalid command line")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n%s", err, usage)
			os.Exit(1)
		}
		log.Fatalf("fetcher: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}
	arg := func(i int, def string) string {
		if len(args) > i && args[i] != "" {
			return args[i]
		}
		return def
	}

	switch cmd {
	case "migrate":
		switch sub := arg(1, ""); sub {
		case "up":
			return withPool(runMigrateUp)
		case "status":
			return withPool(db.MigrationStatus)
		case "down":
			return withPool(db.MigrationDown)
		case "":
			return fmt.Errorf("%w: migrate requires a subcommand (up, down, status)", errUsage)
		default:
			return fmt.Errorf("%w: unknown migrate subcommand %q", errUsage, sub)
		}
	case "clear":
		return withPool(func(ctx context.Context, pool *pgxpool.Pool, _ string) error {
			return db.ClearResources(ctx, pool)
		})
	case "ensure-db":
		return runEnsureDB(out, arg(1, "fetcher_test"))
	case "bootstrap":
		return runBootstrap(out, arg(1, ""))
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	case "serve", "":
		return server.Run()
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// withPool loads config, connects to DATABASE_URL and runs fn with the migration path.
func withPool(fn func(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, pool, cfg.MigrationPath)
}

func runMigrateUp(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	migrations, err := db.LoadMigrations(migrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runEnsureDB(out io.Writer, dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	targetURL, err := databaseURLFor(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %q is ready.\n", dbName)
	return nil
}

// databaseURLFor swaps the database name in databaseURL, keeping host, user and query.
func databaseURLFor(databaseURL, dbName string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

func runBootstrap(out io.Writer, file string) error {
	if file == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		file = cfg.BootstrapFile
	}
	bootstrapCfg := bootstrap.GetDefaultBootstrapConfig()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read bootstrap file: %w", err)
		}
		if bootstrapCfg, err = bootstrap.ParseBootstrapConfig(file, data); err != nil {
			return err
		}
	}
	resolved := bootstrap.CreateResolvedBootstrap(bootstrapCfg)

	fmt.Fprintf(out, "Bootstrap %q version %q\n", resolved.Name(), resolved.Version())
	for _, name := range resolved.Names() {
		h := resolved.Get(name)
		fmt.Fprintf(out, "  handler %-20s subject=%q version=%q\n", name, h.Subject, h.Version)
	}
	for _, alias := range resolved.Aliases() {
		fmt.Fprintf(out, "  alias   %-20s -> %s\n", alias, resolved.ResolveAlias(alias))
	}
	return nil
}
