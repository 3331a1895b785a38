package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"packtrack/models"
)

// Metadata is the descriptive data carried onto a package at assignment.
type Metadata struct {
	Product       string `json:"product"`
	SKU           string `json:"sku"`
	Quantity      int64  `json:"quantity"`
	Organization  string `json:"organization"`
	SaleReference string `json:"sale_reference"`
}

// Assignment pairs a code with the packer it goes to.
type Assignment struct {
	Code     string
	Packer   string
	Metadata Metadata
}

// BatchResult splits a batch into codes that moved and codes whose
// precondition failed.
type BatchResult struct {
	Updated []string           `json:"updated"`
	Failed  []*TransitionError `json:"failed"`
}

// Err joins the per-code failures, or returns nil when every code moved.
func (r BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Machine applies guarded lifecycle transitions against a Store.
type Machine struct {
	store Store
	now   func() time.Time
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store, now: time.Now}
}

// WithClock overrides the timestamp source.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

func (m *Machine) Store() Store {
	return m.store
}

// Status returns the current state of code; a missing row is unassigned.
func (m *Machine) Status(ctx context.Context, code string) (Status, models.PackageRecord, error) {
	rec, err := m.store.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return StatusUnassigned, models.PackageRecord{}, nil
	}
	if err != nil {
		return "", models.PackageRecord{}, err
	}
	st, err := ParseStatus(rec.Status)
	if err != nil {
		return "", rec, err
	}
	return st, rec, nil
}

func (m *Machine) Assign(ctx context.Context, a Assignment, actor string) (models.PackageRecord, error) {
	res, err := m.AssignBatch(ctx, []Assignment{a}, actor)
	if err != nil {
		return models.PackageRecord{}, err
	}
	if len(res.Failed) > 0 {
		return models.PackageRecord{}, res.Failed[0]
	}
	return m.store.Get(ctx, strings.TrimSpace(a.Code))
}

func (m *Machine) Qualify(ctx context.Context, code, actor string) (models.PackageRecord, error) {
	now := m.now().UTC()
	return m.apply(ctx, code, VerbQualify, Fields{Status: StatusQualified, QualifiedAt: &now, Actor: actor})
}

func (m *Machine) Report(ctx context.Context, code, reason, actor string) (models.PackageRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.PackageRecord{}, ErrReasonRequired
	}
	return m.apply(ctx, code, VerbReport, Fields{Status: StatusReported, ReportDetails: &reason, Actor: actor})
}

func (m *Machine) Deliver(ctx context.Context, code, actor string) (models.PackageRecord, error) {
	now := m.now().UTC()
	return m.apply(ctx, code, VerbDeliver, Fields{Status: StatusDelivered, DeliveredAt: &now, Actor: actor})
}

func (m *Machine) apply(ctx context.Context, code string, verb Verb, f Fields) (models.PackageRecord, error) {
	code = strings.TrimSpace(code)
	from, _, err := m.Status(ctx, code)
	if err != nil {
		return models.PackageRecord{}, fmt.Errorf("%s %s: %w", verb, code, err)
	}
	if !verb.Allows(from) {
		return models.PackageRecord{}, &TransitionError{Code: code, From: from, Attempted: verb}
	}
	if err := m.store.Update(ctx, code, []Status{from}, f); err != nil {
		return models.PackageRecord{}, fmt.Errorf("%s %s: %w", verb, code, err)
	}
	slog.Info("package transition",
		slog.String("code", code),
		slog.String("from", string(from)),
		slog.String("to", string(f.Status)),
		slog.String("actor", f.Actor),
	)
	return m.store.Get(ctx, code)
}

// QualifyBatch qualifies every eligible code in one bulk update.
func (m *Machine) QualifyBatch(ctx context.Context, codes []string, actor string) (BatchResult, error) {
	now := m.now().UTC()
	return m.applyBatch(ctx, codes, VerbQualify, Fields{Status: StatusQualified, QualifiedAt: &now, Actor: actor})
}

// DeliverBatch delivers every eligible code in one bulk update.
func (m *Machine) DeliverBatch(ctx context.Context, codes []string, actor string) (BatchResult, error) {
	now := m.now().UTC()
	return m.applyBatch(ctx, codes, VerbDeliver, Fields{Status: StatusDelivered, DeliveredAt: &now, Actor: actor})
}

// applyBatch partitions codes by precondition and moves the eligible set in
// one store call. When the store call fails nothing is reported as updated.
func (m *Machine) applyBatch(ctx context.Context, codes []string, verb Verb, f Fields) (BatchResult, error) {
	codes = uniqueCodes(codes)
	if len(codes) == 0 {
		return BatchResult{}, nil
	}
	current, err := m.store.GetMany(ctx, codes)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%s batch: %w", verb, err)
	}

	var res BatchResult
	eligible := make([]string, 0, len(codes))
	for _, code := range codes {
		from := StatusUnassigned
		if rec, ok := current[code]; ok {
			from = Status(rec.Status)
		}
		if !verb.Allows(from) {
			res.Failed = append(res.Failed, &TransitionError{Code: code, From: from, Attempted: verb})
			continue
		}
		eligible = append(eligible, code)
	}
	if len(eligible) == 0 {
		return res, nil
	}

	n, err := m.store.BulkUpdate(ctx, eligible, verb.From(), f)
	if err != nil {
		return BatchResult{Failed: res.Failed}, fmt.Errorf("%s batch: %w", verb, err)
	}
	if n != int64(len(eligible)) {
		return BatchResult{Failed: res.Failed}, fmt.Errorf("%s batch: %w", verb, ErrConcurrentChange)
	}
	res.Updated = eligible
	slog.Info("package batch transition",
		slog.String("verb", string(verb)),
		slog.Int("updated", len(res.Updated)),
		slog.Int("failed", len(res.Failed)),
		slog.String("actor", f.Actor),
	)
	return res, nil
}

// AssignBatch inserts every code that has no record yet.
func (m *Machine) AssignBatch(ctx context.Context, assignments []Assignment, actor string) (BatchResult, error) {
	byCode := make(map[string]Assignment, len(assignments))
	codes := make([]string, 0, len(assignments))
	for _, a := range assignments {
		a.Code = strings.TrimSpace(a.Code)
		a.Packer = strings.TrimSpace(a.Packer)
		if a.Code == "" {
			continue
		}
		if a.Packer == "" {
			return BatchResult{}, fmt.Errorf("assign %s: %w", a.Code, ErrPackerRequired)
		}
		if _, seen := byCode[a.Code]; !seen {
			codes = append(codes, a.Code)
		}
		byCode[a.Code] = a
	}
	if len(codes) == 0 {
		return BatchResult{}, nil
	}

	current, err := m.store.GetMany(ctx, codes)
	if err != nil {
		return BatchResult{}, fmt.Errorf("assign batch: %w", err)
	}

	var res BatchResult
	now := m.now().UTC()
	records := make([]models.PackageRecord, 0, len(codes))
	for _, code := range codes {
		if rec, ok := current[code]; ok {
			res.Failed = append(res.Failed, &TransitionError{Code: code, From: Status(rec.Status), Attempted: VerbAssign})
			continue
		}
		a := byCode[code]
		records = append(records, models.PackageRecord{
			Code:          code,
			Status:        string(StatusAssigned),
			AssignedTo:    a.Packer,
			AssignedBy:    strings.TrimSpace(actor),
			Product:       a.Metadata.Product,
			SKU:           a.Metadata.SKU,
			Quantity:      a.Metadata.Quantity,
			Organization:  a.Metadata.Organization,
			SaleReference: a.Metadata.SaleReference,
			AssignedAt:    now,
			UpdatedAt:     now,
		})
	}
	if len(records) == 0 {
		return res, nil
	}
	if err := m.store.Insert(ctx, records, actor); err != nil {
		return BatchResult{Failed: res.Failed}, fmt.Errorf("assign batch: %w", err)
	}
	for _, r := range records {
		res.Updated = append(res.Updated, r.Code)
	}
	slog.Info("package batch transition",
		slog.String("verb", string(VerbAssign)),
		slog.Int("updated", len(res.Updated)),
		slog.Int("failed", len(res.Failed)),
		slog.String("actor", actor),
	)
	return res, nil
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SortedFailures returns failures ordered by code.
func (r BatchResult) SortedFailures() []*TransitionError {
	out := append([]*TransitionError(nil), r.Failed...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
