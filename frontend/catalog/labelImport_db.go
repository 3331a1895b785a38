package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/uptrace/bun"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/scancode"
	"packtrack/infrastructure/sqlite"
	"packtrack/models"
)

type ImportSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

// headerAliases maps folded header names to label columns.
var headerAliases = map[string]string{
	"code":           "code",
	"codigo":         "code",
	"sku":            "sku",
	"product":        "product",
	"producto":       "product",
	"quantity":       "quantity",
	"cantidad":       "quantity",
	"organization":   "organization",
	"empresa":        "organization",
	"sale_reference": "sale_reference",
	"venta":          "sale_reference",
}

func ListLabels(ctx context.Context, db *sqlite.DB, limit int) ([]models.Label, error) {
	if limit <= 0 {
		limit = 200
	}
	rows := make([]models.Label, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("updated_at DESC, code ASC").Limit(limit).Scan(ctx)
	})
	return rows, err
}

// ImportLabelsCSV upserts printed labels. The header must name a code column;
// other columns are optional and matched by name in English or Spanish.
// Rows with no code or a bad quantity are counted as errors and skipped.
func ImportLabelsCSV(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actor string, reader io.Reader) (ImportSummary, error) {
	summary := ImportSummary{}
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return summary, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		if col, ok := headerAliases[foldHeader(h)]; ok {
			if _, dup := columns[col]; !dup {
				columns[col] = i
			}
		}
	}
	if _, ok := columns["code"]; !ok {
		return summary, fmt.Errorf("invalid CSV header; expected a code column")
	}
	field := func(record []string, col string) string {
		i, ok := columns[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	err = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for {
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				summary.Errors++
				continue
			}
			code := scancode.Normalize(field(record, "code"), scancode.ChannelPhysical)
			if code == "" {
				summary.Errors++
				continue
			}
			var qty int64
			if raw := field(record, "quantity"); raw != "" {
				qty, err = strconv.ParseInt(raw, 10, 64)
				if err != nil || qty < 0 {
					summary.Errors++
					continue
				}
			}

			var exists int
			if err := tx.NewRaw("SELECT COUNT(1) FROM labels WHERE code = ?", code).Scan(ctx, &exists); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO labels (code, sku, product, quantity, organization, sale_reference, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT(code) DO UPDATE SET
  sku = excluded.sku,
  product = excluded.product,
  quantity = excluded.quantity,
  organization = excluded.organization,
  sale_reference = excluded.sale_reference,
  updated_at = CURRENT_TIMESTAMP`,
				code, field(record, "sku"), field(record, "product"), qty, field(record, "organization"), field(record, "sale_reference")); err != nil {
				summary.Errors++
				continue
			}
			if exists > 0 {
				summary.Updated++
			} else {
				summary.Inserted++
			}
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO label_import_runs (actor, inserted_count, updated_count, error_count)
VALUES (?, ?, ?, ?)`, audit.ActorOrSystem(actor), summary.Inserted, summary.Updated, summary.Errors); err != nil {
			return err
		}

		if auditSvc != nil {
			after := map[string]any{"inserted": summary.Inserted, "updated": summary.Updated, "errors": summary.Errors}
			if err := auditSvc.Write(ctx, tx, actor, "labels.import", "label_import_runs", "latest", nil, after); err != nil {
				return err
			}
		}
		return nil
	})
	return summary, err
}

func foldHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, h); err == nil {
		h = folded
	}
	return strings.ReplaceAll(h, " ", "_")
}
