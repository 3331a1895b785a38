package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"packtrack/infrastructure/lifecycle"
	"packtrack/models"
)

const packageColumns = `code, status, assigned_to, assigned_by, product, sku, quantity,
	organization, sale_reference, report_details, assigned_at, qualified_at, delivered_at, updated_at`

// PackageStore is a Postgres-backed lifecycle.Store.
type PackageStore struct{ DB *sql.DB }

func NewPackageStore(db *sql.DB) *PackageStore {
	return &PackageStore{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (models.PackageRecord, error) {
	var rec models.PackageRecord
	var qualified, delivered sql.NullTime
	err := row.Scan(
		&rec.Code, &rec.Status, &rec.AssignedTo, &rec.AssignedBy, &rec.Product, &rec.SKU, &rec.Quantity,
		&rec.Organization, &rec.SaleReference, &rec.ReportDetails, &rec.AssignedAt, &qualified, &delivered, &rec.UpdatedAt,
	)
	if err != nil {
		return models.PackageRecord{}, err
	}
	if qualified.Valid {
		t := qualified.Time
		rec.QualifiedAt = &t
	}
	if delivered.Valid {
		t := delivered.Time
		rec.DeliveredAt = &t
	}
	return rec, nil
}

func (s *PackageStore) Get(ctx context.Context, code string) (models.PackageRecord, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE code = $1`, code)
	rec, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PackageRecord{}, lifecycle.ErrNotFound
	}
	if err != nil {
		return models.PackageRecord{}, fmt.Errorf("get package %s: %w", code, err)
	}
	return rec, nil
}

func (s *PackageStore) GetMany(ctx context.Context, codes []string) (map[string]models.PackageRecord, error) {
	if len(codes) == 0 {
		return map[string]models.PackageRecord{}, nil
	}
	out, err := queryPackages(ctx, s.DB, `SELECT `+packageColumns+` FROM packages WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("get packages: %w", err)
	}
	return out, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPackages(ctx context.Context, q queryer, query string, args ...any) (map[string]models.PackageRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	out := make(map[string]models.PackageRecord)
	for rows.Next() {
		rec, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[rec.Code] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return out, nil
}

func (s *PackageStore) CountByPacker(ctx context.Context) ([]lifecycle.PackerCount, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT assigned_to, status, COUNT(*)
FROM packages
GROUP BY assigned_to, status
ORDER BY assigned_to, status`)
	if err != nil {
		return nil, fmt.Errorf("count packages: query: %w", err)
	}
	defer rows.Close()
	var out []lifecycle.PackerCount
	for rows.Next() {
		var c lifecycle.PackerCount
		if err := rows.Scan(&c.Packer, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("count packages: scan row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count packages: row iteration: %w", err)
	}
	return out, nil
}

func (s *PackageStore) Insert(ctx context.Context, records []models.PackageRecord, actor string) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert packages: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO packages (code, status, assigned_to, assigned_by, product, sku, quantity,
				organization, sale_reference, assigned_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			ON CONFLICT (code) DO NOTHING`,
			r.Code, r.Status, r.AssignedTo, r.AssignedBy, r.Product, r.SKU, r.Quantity,
			r.Organization, r.SaleReference, r.AssignedAt,
		)
		if err != nil {
			return fmt.Errorf("insert package %s: %w", r.Code, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return lifecycle.ErrConcurrentChange
		}
		if err := writeAudit(ctx, tx, actor, lifecycle.AuditAction(lifecycle.StatusAssigned), r.Code, nil, r); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert packages: commit: %w", err)
	}
	return nil
}

func (s *PackageStore) Update(ctx context.Context, code string, from []lifecycle.Status, f lifecycle.Fields) error {
	n, err := s.update(ctx, []string{code}, from, f)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, code); errors.Is(err, lifecycle.ErrNotFound) {
			return lifecycle.ErrNotFound
		}
		return lifecycle.ErrConcurrentChange
	}
	return nil
}

func (s *PackageStore) BulkUpdate(ctx context.Context, codes []string, from []lifecycle.Status, f lifecycle.Fields) (int64, error) {
	return s.update(ctx, codes, from, f)
}

func (s *PackageStore) update(ctx context.Context, codes []string, from []lifecycle.Status, f lifecycle.Fields) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("update packages: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	before, err := queryPackages(ctx, tx, `SELECT `+packageColumns+` FROM packages WHERE code = ANY($1) FOR UPDATE`, codes)
	if err != nil {
		return 0, fmt.Errorf("update packages: lock rows: %w", err)
	}

	query, args := updateStatement(codes, from, f, time.Now().UTC())
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update packages: %w", err)
	}
	var updated []models.PackageRecord
	for rows.Next() {
		rec, err := scanPackage(rows)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("update packages: scan row: %w", err)
		}
		updated = append(updated, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("update packages: row iteration: %w", err)
	}
	if len(codes) > 1 && len(updated) != len(codes) {
		return 0, lifecycle.ErrConcurrentChange
	}

	for _, e := range auditEntries(before, updated) {
		if err := writeAudit(ctx, tx, f.Actor, lifecycle.AuditAction(f.Status), e.code, e.before, e.after); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("update packages: commit: %w", err)
	}
	return int64(len(updated)), nil
}

// updateStatement builds a guarded UPDATE returning the new rows.
func updateStatement(codes []string, from []lifecycle.Status, f lifecycle.Fields, now time.Time) (string, []any) {
	args := []any{string(f.Status), now}
	sets := []string{"status = $1", "updated_at = $2"}
	next := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if f.ReportDetails != nil {
		next("report_details", *f.ReportDetails)
	} else {
		sets = append(sets, "report_details = NULL")
	}
	if f.QualifiedAt != nil {
		next("qualified_at", *f.QualifiedAt)
	}
	if f.DeliveredAt != nil {
		next("delivered_at", *f.DeliveredAt)
	}
	args = append(args, codes, lifecycle.StatusStrings(from))
	query := "UPDATE packages SET " + strings.Join(sets, ", ") +
		" WHERE code = ANY($" + strconv.Itoa(len(args)-1) + ") AND status = ANY($" + strconv.Itoa(len(args)) + ")" +
		" RETURNING " + packageColumns
	return query, args
}

type auditEntry struct {
	code   string
	before models.PackageRecord
	after  models.PackageRecord
}

// auditEntries pairs updated rows with their locked prior state. Rows whose
// status did not change get no entry.
func auditEntries(before map[string]models.PackageRecord, updated []models.PackageRecord) []auditEntry {
	out := make([]auditEntry, 0, len(updated))
	for _, rec := range updated {
		prev := before[rec.Code]
		if prev.Status == rec.Status {
			continue
		}
		out = append(out, auditEntry{code: rec.Code, before: prev, after: rec})
	}
	return out
}

func writeAudit(ctx context.Context, tx *sql.Tx, actor, action, code string, before, after any) error {
	beforeJSON, err := marshalAudit(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalAudit(after)
	if err != nil {
		return err
	}
	if strings.TrimSpace(actor) == "" {
		actor = "system"
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_logs (actor, action, entity_type, entity_id, before_json, after_json)
		VALUES ($1, $2, 'package', $3, $4, $5)`,
		actor, action, code, beforeJSON, afterJSON,
	)
	if err != nil {
		return fmt.Errorf("write audit for %s: %w", code, err)
	}
	return nil
}

func marshalAudit(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
