package audit

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/uptrace/bun"

	"packtrack/models"
)

// SystemActor is recorded when no encargado is attached to a change.
const SystemActor = "system"

// Service writes audit records inside the caller transaction.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Write appends one audit row. before and after are stored as JSON; nil
// values are stored as empty strings.
func (s *Service) Write(ctx context.Context, tx bun.Tx, actor, action, entityType, entityID string, before, after any) error {
	beforeJSON, err := marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return err
	}
	entry := &models.AuditLog{
		Actor:      ActorOrSystem(actor),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
	}
	_, err = tx.NewInsert().Model(entry).Exec(ctx)
	return err
}

// ActorOrSystem returns actor, or SystemActor when it is blank.
func ActorOrSystem(actor string) string {
	if actor = strings.TrimSpace(actor); actor == "" {
		return SystemActor
	}
	return actor
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
