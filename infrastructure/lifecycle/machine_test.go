package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun"

	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/sqlite"
)

func newTestMachine(t *testing.T) (*Machine, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "lifecycle.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewMachine(NewSQLiteStore(db, audit.NewService())), db
}

func assign(t *testing.T, m *Machine, codes ...string) {
	t.Helper()
	for _, code := range codes {
		if _, err := m.Assign(context.Background(), Assignment{Code: code, Packer: "Ana Lopez", Metadata: Metadata{Product: "Mug", Quantity: 2}}, "Luis Perez"); err != nil {
			t.Fatalf("assign %s: %v", code, err)
		}
	}
}

func expectIllegal(t *testing.T, err error, from Status) {
	t.Helper()
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition match, got %v", err)
	}
	if te.From != from {
		t.Fatalf("expected from %s, got %s", from, te.From)
	}
}

func TestHappyPathOrder(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	assign(t, m, "41234567890")

	rec, err := m.Qualify(ctx, "41234567890", "Luis Perez")
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if rec.Status != string(StatusQualified) || rec.QualifiedAt == nil {
		t.Fatalf("expected qualified with timestamp, got %+v", rec)
	}
	rec, err = m.Deliver(ctx, "41234567890", "Luis Perez")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if rec.Status != string(StatusDelivered) || rec.DeliveredAt == nil {
		t.Fatalf("expected delivered with timestamp, got %+v", rec)
	}
	if rec.AssignedTo != "Ana Lopez" || rec.AssignedBy != "Luis Perez" || rec.Product != "Mug" {
		t.Fatalf("expected assignment metadata carried, got %+v", rec)
	}
}

func TestOutOfOrderTransitionsFail(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	_, err := m.Qualify(ctx, "41234567890", "x")
	expectIllegal(t, err, StatusUnassigned)

	assign(t, m, "41234567890")
	_, err = m.Deliver(ctx, "41234567890", "x")
	expectIllegal(t, err, StatusAssigned)

	_, err = m.Assign(ctx, Assignment{Code: "41234567890", Packer: "Ana Lopez"}, "x")
	expectIllegal(t, err, StatusAssigned)

	if _, err := m.Qualify(ctx, "41234567890", "x"); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	_, err = m.Qualify(ctx, "41234567890", "x")
	expectIllegal(t, err, StatusQualified)

	if _, err := m.Deliver(ctx, "41234567890", "x"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	_, err = m.Report(ctx, "41234567890", "Damaged packaging", "x")
	expectIllegal(t, err, StatusDelivered)
}

func TestReportThenQualifyClearsDetails(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	assign(t, m, "41234567890")

	rec, err := m.Report(ctx, "41234567890", "Damaged packaging", "x")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rec.Report() != "Damaged packaging" {
		t.Fatalf("expected report details, got %q", rec.Report())
	}

	_, err = m.Deliver(ctx, "41234567890", "x")
	expectIllegal(t, err, StatusReported)

	rec, err = m.Qualify(ctx, "41234567890", "x")
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if rec.ReportDetails.Valid {
		t.Fatalf("expected report details cleared, got %q", rec.Report())
	}
	if _, err := m.Deliver(ctx, "41234567890", "x"); err != nil {
		t.Fatalf("deliver after requalify: %v", err)
	}
}

func TestReportAfterQualify(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	assign(t, m, "41234567890")
	if _, err := m.Qualify(ctx, "41234567890", "x"); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if _, err := m.Report(ctx, "41234567890", "Wrong product", "x"); err != nil {
		t.Fatalf("late report: %v", err)
	}
	if _, err := m.Report(ctx, "41234567890", " ", "x"); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestQualifyBatchReportsFailures(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()
	assign(t, m, "A0000000001", "B0000000002", "C0000000003")
	if _, err := m.Qualify(ctx, "B0000000002", "x"); err != nil {
		t.Fatalf("qualify B: %v", err)
	}
	if _, err := m.Deliver(ctx, "B0000000002", "x"); err != nil {
		t.Fatalf("deliver B: %v", err)
	}

	res, err := m.QualifyBatch(ctx, []string{"A0000000001", "B0000000002", "C0000000003"}, "x")
	if err != nil {
		t.Fatalf("qualify batch: %v", err)
	}
	if len(res.Updated) != 2 || res.Updated[0] != "A0000000001" || res.Updated[1] != "C0000000003" {
		t.Fatalf("expected A and C updated, got %v", res.Updated)
	}
	if len(res.Failed) != 1 || res.Failed[0].Code != "B0000000002" || res.Failed[0].From != StatusDelivered {
		t.Fatalf("expected B failed as delivered, got %+v", res.Failed)
	}
	if res.Err() == nil || !errors.Is(res.Err(), ErrIllegalTransition) {
		t.Fatalf("expected joined illegal transition error, got %v", res.Err())
	}

	st, _, err := m.Status(ctx, "B0000000002")
	if err != nil || st != StatusDelivered {
		t.Fatalf("expected B unchanged, got %s %v", st, err)
	}
}

func TestBulkUpdateIsAllOrNothing(t *testing.T) {
	m, db := newTestMachine(t)
	ctx := context.Background()
	assign(t, m, "A0000000001", "B0000000002")

	// B moves on behind the batch's back.
	if _, err := m.Qualify(ctx, "B0000000002", "x"); err != nil {
		t.Fatalf("qualify B: %v", err)
	}
	n, err := m.Store().BulkUpdate(ctx, []string{"A0000000001", "B0000000002"}, []Status{StatusAssigned}, Fields{Status: StatusQualified, Actor: "x"})
	if !errors.Is(err, ErrConcurrentChange) || n != 0 {
		t.Fatalf("expected concurrent change with nothing updated, got n=%d err=%v", n, err)
	}
	st, _, _ := m.Status(ctx, "A0000000001")
	if st != StatusAssigned {
		t.Fatalf("expected A rolled back to assigned, got %s", st)
	}

	var audits int
	err = db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM audit_logs WHERE entity_id = ? AND action = 'package.qualify'`, "A0000000001").Scan(ctx, &audits)
	})
	if err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 0 {
		t.Fatalf("expected no audit rows for rolled back update, got %d", audits)
	}
}

func TestDeliverBatchAndAssignBatch(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	res, err := m.AssignBatch(ctx, []Assignment{
		{Code: "A0000000001", Packer: "Ana Lopez"},
		{Code: "B0000000002", Packer: "Ana Lopez"},
		{Code: "A0000000001", Packer: "Ana Lopez"},
	}, "Luis Perez")
	if err != nil {
		t.Fatalf("assign batch: %v", err)
	}
	if len(res.Updated) != 2 || len(res.Failed) != 0 {
		t.Fatalf("unexpected assign result %+v", res)
	}

	if _, err := m.Qualify(ctx, "A0000000001", "x"); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	res, err = m.DeliverBatch(ctx, []string{"A0000000001", "B0000000002", "Z0000000000"}, "x")
	if err != nil {
		t.Fatalf("deliver batch: %v", err)
	}
	if len(res.Updated) != 1 || res.Updated[0] != "A0000000001" {
		t.Fatalf("expected only A delivered, got %v", res.Updated)
	}
	failed := res.SortedFailures()
	if len(failed) != 2 || failed[0].From != StatusAssigned || failed[1].From != StatusUnassigned {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestLookup(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if r := m.Lookup(ctx, "41234567890"); r.Kind != LookupUnassigned {
		t.Fatalf("expected unassigned, got %s", r.Kind)
	}
	assign(t, m, "41234567890")
	if r := m.Lookup(ctx, "41234567890"); r.Kind != LookupFound || r.Status() != StatusAssigned {
		t.Fatalf("expected found assigned, got %s %s", r.Kind, r.Status())
	}
	if _, err := m.Report(ctx, "41234567890", "Unreadable label", "x"); err != nil {
		t.Fatalf("report: %v", err)
	}
	r := m.Lookup(ctx, "41234567890")
	if r.Kind != LookupBlocked || r.Reason != ReasonPreviouslyReported {
		t.Fatalf("expected blocked previously reported, got %+v", r)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusUnassigned, StatusAssigned, true},
		{StatusAssigned, StatusQualified, true},
		{StatusAssigned, StatusReported, true},
		{StatusReported, StatusQualified, true},
		{StatusQualified, StatusReported, true},
		{StatusQualified, StatusDelivered, true},
		{StatusReported, StatusDelivered, false},
		{StatusAssigned, StatusDelivered, false},
		{StatusDelivered, StatusQualified, false},
		{StatusDelivered, StatusReported, false},
		{StatusQualified, StatusQualified, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
