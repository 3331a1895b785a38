package scansession

import (
	"testing"
	"time"
)

func TestListOrderAndStale(t *testing.T) {
	l := NewList()
	if !l.Stale() {
		t.Fatalf("new list must count as stale")
	}
	for _, code := range []string{"41111111111", "ABC123", "42222222222"} {
		if !l.Add(Item{Code: code}) {
			t.Fatalf("add %s", code)
		}
	}
	if l.Add(Item{Code: "ABC123"}) {
		t.Fatalf("duplicate add must be rejected")
	}

	l.MarkExported(time.Now())
	if l.Stale() {
		t.Fatalf("expected fresh after export")
	}
	if !l.Remove("ABC123") {
		t.Fatalf("remove ABC123")
	}
	if !l.Stale() {
		t.Fatalf("expected stale after remove")
	}

	codes := l.Codes()
	if len(codes) != 2 || codes[0] != "41111111111" || codes[1] != "42222222222" {
		t.Fatalf("unexpected order %v", codes)
	}
	if !l.Contains("42222222222") || l.Contains("ABC123") {
		t.Fatalf("index out of sync after remove")
	}
	mel, other := l.Counts()
	if mel != 2 || other != 0 {
		t.Fatalf("counts = %d/%d", mel, other)
	}

	l.Clear()
	if l.Len() != 0 || l.Contains("41111111111") {
		t.Fatalf("expected empty list after clear")
	}
}
