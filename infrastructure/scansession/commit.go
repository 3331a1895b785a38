package scansession

import (
	"context"
	"log/slog"
	"time"

	"packtrack/infrastructure/lifecycle"
)

// Commit applies the session's batch transition to its list: assignment of
// the associated codes, mass qualification, or delivery. Codes that moved are
// removed from the list; failed codes stay for the operator to inspect. A
// store error leaves the list untouched.
func (s *Session) Commit(ctx context.Context) (lifecycle.BatchResult, error) {
	actor := s.Operator()
	if actor == "" {
		return lifecycle.BatchResult{}, ErrNoOperator
	}

	var (
		res  lifecycle.BatchResult
		err  error
		list *List
	)
	switch s.cfg.Workflow {
	case WorkflowAssign:
		s.mu.Lock()
		items := s.assigned.Items()
		list = s.assigned
		s.mu.Unlock()
		if len(items) == 0 {
			return res, ErrNothingToCommit
		}
		batch := make([]lifecycle.Assignment, 0, len(items))
		for _, it := range items {
			batch = append(batch, lifecycle.Assignment{
				Code:   it.Code,
				Packer: it.AssignedTo,
				Metadata: lifecycle.Metadata{
					Product:       it.Product,
					SKU:           it.SKU,
					Quantity:      it.Quantity,
					Organization:  it.Organization,
					SaleReference: it.SaleReference,
				},
			})
		}
		res, err = s.machine.AssignBatch(ctx, batch, actor)

	case WorkflowQualify, WorkflowDeliver:
		if s.cfg.Workflow == WorkflowQualify && s.Mode() != ModeMass {
			return res, ErrNoBatch
		}
		s.mu.Lock()
		codes := s.pending.Codes()
		list = s.pending
		s.mu.Unlock()
		if len(codes) == 0 {
			return res, ErrNothingToCommit
		}
		if s.cfg.Workflow == WorkflowQualify {
			res, err = s.machine.QualifyBatch(ctx, codes, actor)
		} else {
			res, err = s.machine.DeliverBatch(ctx, codes, actor)
		}

	default:
		return res, ErrNoBatch
	}
	if err != nil {
		s.log.Error("batch commit failed", slog.Any("err", err))
		return res, err
	}

	s.mu.Lock()
	for _, code := range res.Updated {
		list.Remove(code)
	}
	if list.Len() == 0 {
		list.Clear()
	}
	s.mu.Unlock()
	s.log.Info("batch committed", slog.Int("updated", len(res.Updated)), slog.Int("failed", len(res.Failed)))
	return res, nil
}

// Export is the pending list as handed to the CSV writer.
type Export struct {
	Encargado string
	Area      string
	At        time.Time
	Items     []Item
}

// Export snapshots the pending list and marks it fresh.
func (s *Session) Export() (Export, error) {
	at := s.cfg.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() == 0 {
		return Export{}, ErrNothingToCommit
	}
	s.pending.MarkExported(at)
	return Export{
		Encargado: s.operator,
		Area:      s.cfg.Area,
		At:        at,
		Items:     s.pending.Items(),
	}, nil
}

// Record stores the pending list through rec. The list must have been
// exported since its last change; on success it is cleared.
func (s *Session) Record(ctx context.Context, rec Recorder) error {
	if s.cfg.Workflow != WorkflowAssign {
		return ErrWrongWorkflow
	}
	s.mu.Lock()
	if s.pending.Len() == 0 {
		s.mu.Unlock()
		return ErrNothingToCommit
	}
	if s.pending.Stale() {
		s.mu.Unlock()
		return ErrExportStale
	}
	items := s.pending.Items()
	operator := s.operator
	s.mu.Unlock()

	if err := rec.RecordScans(ctx, operator, s.cfg.Area, items); err != nil {
		return err
	}

	s.mu.Lock()
	for _, it := range items {
		s.pending.Remove(it.Code)
	}
	if s.pending.Len() == 0 {
		s.pending.Clear()
	}
	s.mu.Unlock()
	s.arbiter.Forget()
	return nil
}
