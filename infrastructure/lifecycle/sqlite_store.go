package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/sqlite"
	"packtrack/models"
)

// SQLiteStore keeps package records in the packages table and audits every
// write in the same transaction.
type SQLiteStore struct {
	db    *sqlite.DB
	audit *audit.Service
}

func NewSQLiteStore(db *sqlite.DB, auditSvc *audit.Service) *SQLiteStore {
	if auditSvc == nil {
		auditSvc = audit.NewService()
	}
	return &SQLiteStore{db: db, audit: auditSvc}
}

func (s *SQLiteStore) Get(ctx context.Context, code string) (models.PackageRecord, error) {
	var rec models.PackageRecord
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rec).Where("code = ?", code).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.PackageRecord{}, ErrNotFound
	}
	if err != nil {
		return models.PackageRecord{}, fmt.Errorf("load package %s: %w", code, err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetMany(ctx context.Context, codes []string) (map[string]models.PackageRecord, error) {
	out := make(map[string]models.PackageRecord, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	var rows []models.PackageRecord
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).Where("code IN (?)", bun.In(codes)).Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	for _, r := range rows {
		out[r.Code] = r
	}
	return out, nil
}

func (s *SQLiteStore) CountByPacker(ctx context.Context) ([]PackerCount, error) {
	var rows []PackerCount
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT assigned_to, status, COUNT(*) AS n
FROM packages
GROUP BY assigned_to, status
ORDER BY assigned_to, status`).Scan(ctx, &rows)
	})
	if err != nil {
		return nil, fmt.Errorf("count packages: %w", err)
	}
	return rows, nil
}

// Insert creates assigned records. An existing code aborts the whole insert
// with ErrConcurrentChange.
func (s *SQLiteStore) Insert(ctx context.Context, records []models.PackageRecord, actor string) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		codes := make([]string, 0, len(records))
		for _, r := range records {
			codes = append(codes, r.Code)
		}
		var existing int
		if err := tx.NewRaw(`SELECT COUNT(*) FROM packages WHERE code IN (?)`, bun.In(codes)).Scan(ctx, &existing); err != nil {
			return err
		}
		if existing > 0 {
			return ErrConcurrentChange
		}
		if _, err := tx.NewInsert().Model(&records).Exec(ctx); err != nil {
			return err
		}
		for i := range records {
			if err := s.audit.Write(ctx, tx, actor, AuditAction(StatusAssigned), "package", records[i].Code, nil, records[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Update(ctx context.Context, code string, from []Status, f Fields) error {
	n, err := s.update(ctx, []string{code}, from, f)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, code); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConcurrentChange
	}
	return nil
}

func (s *SQLiteStore) BulkUpdate(ctx context.Context, codes []string, from []Status, f Fields) (int64, error) {
	return s.update(ctx, codes, from, f)
}

// update moves codes that are still in one of the from states. If any code
// has left those states the transaction rolls back and nothing changes.
func (s *SQLiteStore) update(ctx context.Context, codes []string, from []Status, f Fields) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	var affected int64
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var before []models.PackageRecord
		if err := tx.NewSelect().Model(&before).Where("code IN (?)", bun.In(codes)).Scan(ctx); err != nil {
			return err
		}

		query, args := updateStatement(codes, from, f, time.Now().UTC())
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if len(codes) > 1 && affected != int64(len(codes)) {
			return ErrConcurrentChange
		}

		var after []models.PackageRecord
		if err := tx.NewSelect().Model(&after).Where("code IN (?)", bun.In(codes)).Scan(ctx); err != nil {
			return err
		}
		beforeByCode := make(map[string]models.PackageRecord, len(before))
		for _, b := range before {
			beforeByCode[b.Code] = b
		}
		for _, a := range after {
			b := beforeByCode[a.Code]
			if b.Status == a.Status {
				continue
			}
			if err := s.audit.Write(ctx, tx, f.Actor, AuditAction(f.Status), "package", a.Code, b, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentChange) {
			return 0, err
		}
		return 0, fmt.Errorf("update packages: %w", err)
	}
	return affected, nil
}

// updateStatement builds the guarded UPDATE shared by single and bulk writes.
func updateStatement(codes []string, from []Status, f Fields, now time.Time) (string, []any) {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(f.Status), now}
	if f.ReportDetails != nil {
		sets = append(sets, "report_details = ?")
		args = append(args, *f.ReportDetails)
	} else {
		sets = append(sets, "report_details = NULL")
	}
	if f.QualifiedAt != nil {
		sets = append(sets, "qualified_at = ?")
		args = append(args, *f.QualifiedAt)
	}
	if f.DeliveredAt != nil {
		sets = append(sets, "delivered_at = ?")
		args = append(args, *f.DeliveredAt)
	}
	args = append(args, bun.In(codes), bun.In(StatusStrings(from)))
	query := "UPDATE packages SET " + strings.Join(sets, ", ") + " WHERE code IN (?) AND status IN (?)"
	return query, args
}
