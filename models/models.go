package models

import (
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// PackageRecord tracks a physical package through its lifecycle. A code with
// no row is unassigned.
type PackageRecord struct {
	bun.BaseModel `bun:"table:packages,alias:pk"`

	Code          string         `bun:"code,pk" json:"code"`
	Status        string         `bun:"status,notnull" json:"status"`
	AssignedTo    string         `bun:"assigned_to,notnull" json:"assigned_to"`
	AssignedBy    string         `bun:"assigned_by,notnull,default:''" json:"assigned_by"`
	Product       string         `bun:"product,notnull,default:''" json:"product"`
	SKU           string         `bun:"sku,notnull,default:''" json:"sku"`
	Quantity      int64          `bun:"quantity,notnull,default:0" json:"quantity"`
	Organization  string         `bun:"organization,notnull,default:''" json:"organization"`
	SaleReference string         `bun:"sale_reference,notnull,default:''" json:"sale_reference"`
	ReportDetails sql.NullString `bun:"report_details" json:"-"`
	AssignedAt    time.Time      `bun:"assigned_at,notnull,default:current_timestamp" json:"assigned_at"`
	QualifiedAt   *time.Time     `bun:"qualified_at" json:"qualified_at,omitempty"`
	DeliveredAt   *time.Time     `bun:"delivered_at" json:"delivered_at,omitempty"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Report returns the report reason, or "" when the package is not reported.
func (p PackageRecord) Report() string {
	if !p.ReportDetails.Valid {
		return ""
	}
	return p.ReportDetails.String
}

// Label is a row of the printed-label catalog. Assignment only accepts codes
// that were printed.
type Label struct {
	bun.BaseModel `bun:"table:labels,alias:lb"`

	Code          string    `bun:"code,pk"`
	SKU           string    `bun:"sku,notnull,default:''"`
	Product       string    `bun:"product,notnull,default:''"`
	Quantity      int64     `bun:"quantity,notnull,default:0"`
	Organization  string    `bun:"organization,notnull,default:''"`
	SaleReference string    `bun:"sale_reference,notnull,default:''"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Packer is a person who can be assigned packages or run a scan session.
type Packer struct {
	bun.BaseModel `bun:"table:packers,alias:pc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,unique,notnull"`
	Role      string    `bun:"role,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ReportReason is a selectable reason for reporting a package.
type ReportReason struct {
	bun.BaseModel `bun:"table:report_reasons,alias:rr"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Reason string `bun:"reason,unique,notnull"`
}

// ScanLog records a code scanned during an assignment session.
type ScanLog struct {
	bun.BaseModel `bun:"table:scan_logs,alias:sl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Code      string    `bun:"code,notnull"`
	ScannedAt time.Time `bun:"scanned_at,notnull"`
	Encargado string    `bun:"encargado,notnull"`
	Area      string    `bun:"area,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// AuditLog captures immutable change history for key operations.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Actor      string    `bun:"actor,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
