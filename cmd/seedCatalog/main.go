package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	catalogpage "packtrack/frontend/catalog"
	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/cache"
	"packtrack/infrastructure/catalog"
	"packtrack/infrastructure/sqlite"
)

const defaultPackers = "Luis Perez:barra;Ana Ruiz:empacador"

func main() {
	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		log.Fatalf("resolve migrations dir: %v", err)
	}

	defaultDBPath := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(migrationsDir))), "packtrack.db")
	dbPath := getenv("SQLITE_PATH", defaultDBPath)

	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := sqlite.ApplyMigrations(ctx, db, migrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	auditSvc := audit.NewService()
	svc := catalog.NewService(db, auditSvc, cache.NewPackerCache())
	seeds, err := parsePackers(getenv("SEED_PACKERS", defaultPackers))
	if err != nil {
		log.Fatalf("parse SEED_PACKERS: %v", err)
	}
	for _, p := range seeds {
		if _, err := svc.AddPacker(ctx, p.name, p.role, "seed"); err != nil {
			log.Fatalf("seed packer: %v", err)
		}
	}
	fmt.Printf("seeded %d packers\n", len(seeds))

	if path := os.Getenv("SEED_LABELS"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open labels: %v", err)
		}
		defer f.Close()
		summary, err := catalogpage.ImportLabelsCSV(ctx, db, auditSvc, "seed", f)
		if err != nil {
			log.Fatalf("import labels: %v", err)
		}
		fmt.Printf("labels: %d inserted, %d updated, %d errors\n", summary.Inserted, summary.Updated, summary.Errors)
	}
}

type packerSeed struct {
	name string
	role string
}

// parsePackers reads "name:role;name:role". A missing role means encargado.
func parsePackers(raw string) ([]packerSeed, error) {
	var out []packerSeed
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, role, _ := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty packer name in %q", entry)
		}
		role = strings.TrimSpace(role)
		if role == "" {
			role = catalog.RoleEncargado
		}
		out = append(out, packerSeed{name: name, role: role})
	}
	return out, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func resolveMigrationsDir() (string, error) {
	candidates := []string{
		filepath.Join("infrastructure", "sqlite", "migrations"),
		filepath.Join("..", "..", "infrastructure", "sqlite", "migrations"),
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations"))
	}

	tried := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		tried = append(tried, absPath)

		info, err := os.Stat(absPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("migrations dir not found; tried: %s", strings.Join(tried, ", "))
}
