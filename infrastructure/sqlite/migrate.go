package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationLockRetry is how often a blocked migrator retries the lock file.
var MigrationLockRetry = 100 * time.Millisecond

// ApplyMigrations executes *.sql files in lexical order. Migrations are
// written to be re-runnable.
//
// If migrationsDir is empty, embedded migrations are applied. A lock file next
// to the database keeps the server and packctl from migrating at once.
func ApplyMigrations(ctx context.Context, db *DB, migrationsDir string) error {
	unlock, err := lockMigrations(ctx, db)
	if err != nil {
		return err
	}
	defer unlock()

	if strings.TrimSpace(migrationsDir) == "" {
		return applyMigrationsFromFS(ctx, db, embeddedMigrations, "migrations")
	}
	return applyMigrationsFromDir(ctx, db, migrationsDir)
}

// ApplyEmbeddedMigrations executes the migrations compiled into the binary.
func ApplyEmbeddedMigrations(ctx context.Context, db *DB) error {
	return ApplyMigrations(ctx, db, "")
}

func lockMigrations(ctx context.Context, db *DB) (func(), error) {
	if db == nil || db.Path == "" || strings.HasPrefix(db.Path, ":memory:") {
		return func() {}, nil
	}
	lock := flock.New(db.Path + ".migrate.lock")
	locked, err := lock.TryLockContext(ctx, MigrationLockRetry)
	if err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire migration lock: %s is held", lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}

func applyMigrationsFromDir(ctx context.Context, db *DB, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for _, name := range sqlFileNames(entries) {
		sqlBytes, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applySingleMigration(ctx, db, name, sqlBytes); err != nil {
			return err
		}
	}
	return nil
}

func applyMigrationsFromFS(ctx context.Context, db *DB, migrationsFS fs.FS, root string) error {
	entries, err := fs.ReadDir(migrationsFS, root)
	if err != nil {
		return fmt.Errorf("read migrations fs: %w", err)
	}

	for _, name := range sqlFileNames(entries) {
		sqlBytes, err := fs.ReadFile(migrationsFS, root+"/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applySingleMigration(ctx, db, name, sqlBytes); err != nil {
			return err
		}
	}
	return nil
}

func sqlFileNames(entries []fs.DirEntry) []string {
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files
}

func applySingleMigration(ctx context.Context, db *DB, name string, sqlBytes []byte) error {
	sqlText := string(sqlBytes)
	upper := strings.ToUpper(sqlText)
	if strings.Contains(upper, "BEGIN TRANSACTION") || strings.Contains(upper, "BEGIN;") {
		if _, err := db.WriteSQL.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		return nil
	}

	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, execErr := tx.ExecContext(ctx, sqlText)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	return nil
}
