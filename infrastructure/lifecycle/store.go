package lifecycle

import (
	"context"
	"time"

	"packtrack/models"
)

// Fields is the set of columns a transition writes. A nil ReportDetails
// clears the report.
type Fields struct {
	Status        Status
	ReportDetails *string
	QualifiedAt   *time.Time
	DeliveredAt   *time.Time
	Actor         string
}

// Store is the record store behind the state machine. Update and BulkUpdate
// only touch rows whose status is in from; BulkUpdate either updates every
// code or none of them and reports ErrConcurrentChange otherwise.
type Store interface {
	Get(ctx context.Context, code string) (models.PackageRecord, error)
	GetMany(ctx context.Context, codes []string) (map[string]models.PackageRecord, error)
	Insert(ctx context.Context, records []models.PackageRecord, actor string) error
	Update(ctx context.Context, code string, from []Status, f Fields) error
	BulkUpdate(ctx context.Context, codes []string, from []Status, f Fields) (int64, error)
	// CountByPacker returns one row per packer and status that has records.
	CountByPacker(ctx context.Context) ([]PackerCount, error)
}

// PackerCount is the number of a packer's packages in one status.
type PackerCount struct {
	Packer string `bun:"assigned_to"`
	Status Status `bun:"status"`
	Count  int64  `bun:"n"`
}

// StatusStrings converts statuses for use in SQL IN clauses.
func StatusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// AuditAction is the audit_logs action recorded for a transition into s.
func AuditAction(s Status) string {
	for v, target := range targets {
		if target == s {
			return "package." + string(v)
		}
	}
	return "package.update"
}
