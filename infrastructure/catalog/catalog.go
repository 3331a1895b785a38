package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"

	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/cache"
	"packtrack/infrastructure/sqlite"
	"packtrack/models"
)

// RoleEncargado is the packer role that may run scan sessions.
const RoleEncargado = "barra"

var ErrInvalidName = errors.New("packer name must not be empty")

// Service reads reference data: printed labels, packers and report reasons.
type Service struct {
	db      *sqlite.DB
	audit   *audit.Service
	packers *cache.PackerCache
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, packers *cache.PackerCache) *Service {
	if packers == nil {
		packers = cache.NewPackerCache()
	}
	return &Service{db: db, audit: auditSvc, packers: packers}
}

// Label returns the printed label for code; found is false when the code
// was never printed.
func (s *Service) Label(ctx context.Context, code string) (label models.Label, found bool, err error) {
	err = s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&label).Where("code = ?", code).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Label{}, false, nil
	}
	if err != nil {
		return models.Label{}, false, fmt.Errorf("load label %s: %w", code, err)
	}
	return label, true, nil
}

// Packers lists packers with role, or all packers when role is empty, sorted
// by name.
func (s *Service) Packers(ctx context.Context, role string) ([]models.Packer, error) {
	if err := s.ensurePackers(ctx); err != nil {
		return nil, err
	}
	out := s.packers.List(role)
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// Packer finds a packer by name, case-insensitively.
func (s *Service) Packer(ctx context.Context, name string) (models.Packer, bool, error) {
	if err := s.ensurePackers(ctx); err != nil {
		return models.Packer{}, false, err
	}
	p, ok := s.packers.Get(name)
	return p, ok, nil
}

func (s *Service) ensurePackers(ctx context.Context) error {
	if s.packers.Loaded() {
		return nil
	}
	var rows []models.Packer
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("name COLLATE NOCASE ASC").Scan(ctx)
	})
	if err != nil {
		return fmt.Errorf("load packers: %w", err)
	}
	s.packers.Replace(rows)
	return nil
}

// AddPacker creates or re-roles a packer.
func (s *Service) AddPacker(ctx context.Context, name, role, actor string) (models.Packer, error) {
	name = strings.Join(strings.Fields(name), " ")
	role = strings.TrimSpace(role)
	if name == "" {
		return models.Packer{}, ErrInvalidName
	}
	if role == "" {
		role = RoleEncargado
	}

	var packer models.Packer
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO packers (name, role) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET role = excluded.role`, name, role); err != nil {
			return err
		}
		if err := tx.NewSelect().Model(&packer).Where("name = ?", name).Limit(1).Scan(ctx); err != nil {
			return err
		}
		if s.audit != nil {
			return s.audit.Write(ctx, tx, actor, "packer.upsert", "packers", name, nil, packer)
		}
		return nil
	})
	if err != nil {
		return models.Packer{}, fmt.Errorf("add packer %s: %w", name, err)
	}
	s.packers.Invalidate()
	return packer, nil
}

// ReportReasons lists the selectable report reasons.
func (s *Service) ReportReasons(ctx context.Context) ([]models.ReportReason, error) {
	var rows []models.ReportReason
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rows).OrderExpr("id ASC").Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("load report reasons: %w", err)
	}
	return rows, nil
}
