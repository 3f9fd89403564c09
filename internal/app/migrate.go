package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videotube/backend/internal/config"
	"github.com/videotube/backend/internal/db"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/migrations"
	"github.com/videotube/backend/seeds"
)

var errMemoryDriver = errors.New("the memory store driver has no schema; set VIDEOTUBE_STORE_DRIVER=postgres")

// sqlSource returns the directory override when set, otherwise the files
// embedded in the binary.
func sqlSource(dir string, embedded fs.FS) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return embedded
	}
	return os.DirFS(dir)
}

// listMigrations returns the .sql files at the root of src in lexical order.
func listMigrations(src fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// pending filters names down to migrations not yet recorded as applied.
func pending(names []string, applied map[string]bool) []string {
	var out []string
	for _, name := range names {
		if !applied[name] {
			out = append(out, name)
		}
	}
	return out
}

// seedFile maps a seed name such as "dev" to its file name.
func seedFile(name string) string {
	if strings.HasSuffix(name, ".sql") {
		return name
	}
	return name + "_seed.sql"
}

// schemaMigrator applies migrations over one connection, recording each
// version in schema_migrations within the same transaction.
type schemaMigrator struct {
	conn   *pgxpool.Conn
	src    fs.FS
	logger *slog.Logger
}

func (m schemaMigrator) applied(ctx context.Context) (map[string]bool, error) {
	if _, err := m.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// apply runs one migration in a serializable transaction; cockroach-go
// restarts it on retryable serialization failures.
func (m schemaMigrator) apply(ctx context.Context, name string) error {
	contents, err := fs.ReadFile(m.src, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	return crdbpgxv5.ExecuteTx(ctx, m.conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		return nil
	})
}

func runMigrations(ctx context.Context, cfg config.Config, args []string) error {
	if cfg.StoreDriver == "memory" {
		return errMemoryDriver
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command != "up" && command != "status" {
		return fmt.Errorf("unknown migrate command %q (want up or status)", command)
	}

	src := sqlSource(cfg.MigrationDir, migrations.Files)
	names, err := listMigrations(src)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	m := schemaMigrator{conn: conn, src: src, logger: logging.FromContext(ctx)}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	if command == "status" {
		for _, name := range names {
			m.logger.Info("migration status", "version", name, "applied", applied[name])
		}
		return nil
	}

	todo := pending(names, applied)
	if len(todo) == 0 {
		m.logger.Info("schema is up to date", "applied", len(applied))
		return nil
	}
	for _, name := range todo {
		if err := m.apply(ctx, name); err != nil {
			return err
		}
		m.logger.Info("applied migration", "version", name)
	}
	return nil
}

func runSeed(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}
	if cfg.StoreDriver == "memory" {
		return errMemoryDriver
	}

	name := seedFile(args[0])
	contents, err := fs.ReadFile(sqlSource(cfg.SeedDir, seeds.Files), name)
	if err != nil {
		return fmt.Errorf("read seed %s: %w", name, err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, string(contents))
		return err
	}); err != nil {
		return fmt.Errorf("apply seed %s: %w", name, err)
	}

	logging.FromContext(ctx).Info("applied seed", "seed", name)
	return nil
}
