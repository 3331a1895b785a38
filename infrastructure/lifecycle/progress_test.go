package lifecycle

import (
	"context"
	"testing"
)

func TestProgressCountsByPacker(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	assign(t, m, "41234567890", "41234567891", "41234567892")
	if _, err := m.Assign(ctx, Assignment{Code: "41234567893", Packer: "Bea Soto"}, "Luis Perez"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := m.Qualify(ctx, "41234567890", "Luis Perez"); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if _, err := m.Report(ctx, "41234567891", "Damaged packaging", "Luis Perez"); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := m.Qualify(ctx, "41234567893", "Luis Perez"); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if _, err := m.Deliver(ctx, "41234567893", "Luis Perez"); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	p, err := m.Progress(ctx)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Totals.Total != 4 || p.Totals.Assigned != 1 || p.Totals.Qualified != 1 || p.Totals.Reported != 1 || p.Totals.Delivered != 1 {
		t.Fatalf("unexpected totals: %+v", p.Totals)
	}
	if len(p.ByPacker) != 2 {
		t.Fatalf("expected two packers, got %+v", p.ByPacker)
	}
	first := p.ByPacker[0]
	if first.Packer != "Ana Lopez" || first.Assigned != 1 || first.Reported != 1 || first.Qualified != 1 || first.Total != 3 {
		t.Fatalf("unexpected first packer: %+v", first)
	}
	if p.ByPacker[1].Packer != "Bea Soto" || p.ByPacker[1].Delivered != 1 {
		t.Fatalf("unexpected second packer: %+v", p.ByPacker[1])
	}
}

func TestProgressEmpty(t *testing.T) {
	m, _ := newTestMachine(t)
	p, err := m.Progress(context.Background())
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Totals.Total != 0 || len(p.ByPacker) != 0 {
		t.Fatalf("expected empty progress, got %+v", p)
	}
}
