package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/sqlite"
)

func openCatalogTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "label-import-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestImportLabelsCSV_InvalidHeader(t *testing.T) {
	db := openCatalogTestDB(t)

	_, err := ImportLabelsCSV(context.Background(), db, nil, "admin", strings.NewReader("sku,description\nA,Alpha\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid CSV header") {
		t.Fatalf("expected invalid header error, got %v", err)
	}
}

func TestImportLabelsCSV_SpanishHeaderAndUpsert(t *testing.T) {
	db := openCatalogTestDB(t)
	ctx := context.Background()

	first := "\uFEFFCódigo,SKU,Producto,Cantidad,EMPRESA,Venta\n" +
		"41234567890,SKU-1,Mug,2,Acme,V-1\n" +
		"41234567891,SKU-2,Cup,1,Acme,V-2\n"
	summary, err := ImportLabelsCSV(ctx, db, audit.NewService(), "admin", strings.NewReader(first))
	if err != nil {
		t.Fatalf("import 1: %v", err)
	}
	if summary.Inserted != 2 || summary.Updated != 0 || summary.Errors != 0 {
		t.Fatalf("unexpected summary1: %+v", summary)
	}

	second := "code,product,quantity\n" +
		"41234567890,Mug XL,3\n" +
		",Missing,1\n" +
		"41234567892,Plate,many\n" +
		"ID12345678901TLM,Bowl,1\n"
	summary, err = ImportLabelsCSV(ctx, db, nil, "", strings.NewReader(second))
	if err != nil {
		t.Fatalf("import 2: %v", err)
	}
	if summary.Inserted != 1 || summary.Updated != 1 || summary.Errors != 2 {
		t.Fatalf("unexpected summary2: %+v", summary)
	}

	var product string
	var qty int64
	var runs int
	var unwrapped int
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`SELECT product, quantity FROM labels WHERE code = '41234567890'`).Scan(ctx, &product, &qty); err != nil {
			return err
		}
		if err := tx.NewRaw(`SELECT COUNT(*) FROM label_import_runs`).Scan(ctx, &runs); err != nil {
			return err
		}
		return tx.NewRaw(`SELECT COUNT(*) FROM labels WHERE code = '12345678901'`).Scan(ctx, &unwrapped)
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if product != "Mug XL" || qty != 3 {
		t.Fatalf("expected upserted label, got %q/%d", product, qty)
	}
	if runs != 2 {
		t.Fatalf("expected 2 import runs, got %d", runs)
	}
	if unwrapped != 1 {
		t.Fatalf("expected wrapped code to be stored canonical")
	}

	rows, err := ListLabels(ctx, db, 10)
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(rows))
	}
}
