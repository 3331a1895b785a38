package exports

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/sqlite"
	"packtrack/infrastructure/scansession"
	"packtrack/models"
)

// ScanLogRecorder stores exported assignment lists in scan_logs.
type ScanLogRecorder struct {
	db    *sqlite.DB
	audit *audit.Service
	now   func() time.Time
}

func NewScanLogRecorder(db *sqlite.DB, auditSvc *audit.Service) *ScanLogRecorder {
	return &ScanLogRecorder{db: db, audit: auditSvc, now: time.Now}
}

// RecordScans inserts one row per item in a single transaction.
func (r *ScanLogRecorder) RecordScans(ctx context.Context, encargado, area string, items []scansession.Item) error {
	if len(items) == 0 {
		return nil
	}
	now := r.now()
	rows := make([]models.ScanLog, 0, len(items))
	for _, it := range items {
		rows = append(rows, models.ScanLog{
			Code:      it.Code,
			ScannedAt: stamp(it, now),
			Encargado: encargado,
			Area:      area,
			CreatedAt: now,
		})
	}
	return r.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert scan logs: %w", err)
		}
		if r.audit != nil {
			after := map[string]any{"count": len(rows), "area": area}
			return r.audit.Write(ctx, tx, encargado, "scan_logs.record", "scan_logs", encargado, nil, after)
		}
		return nil
	})
}

// ListScanLogs returns the latest scan log rows, newest first.
func ListScanLogs(ctx context.Context, db *sqlite.DB, limit int) ([]models.ScanLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows := make([]models.ScanLog, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("id DESC").Limit(limit).Scan(ctx)
	})
	return rows, err
}
