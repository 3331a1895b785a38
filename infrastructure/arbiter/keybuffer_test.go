package arbiter

import (
	"testing"
	"time"
)

func TestKeyBufferExpire(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := NewKeyBuffer(150 * time.Millisecond)

	b.Press("4", start)
	b.Press("1", start.Add(40*time.Millisecond))
	if b.State() != BufferBuffering {
		t.Fatalf("expected buffering")
	}
	if _, ok := b.Expire(start.Add(150 * time.Millisecond)); ok {
		t.Fatalf("deadline should move with each key")
	}
	text, ok := b.Expire(start.Add(190 * time.Millisecond))
	if !ok || text != "41" {
		t.Fatalf("expected flush of 41, got %q ok=%v", text, ok)
	}
	if b.State() != BufferIdle || !b.Deadline().IsZero() {
		t.Fatalf("expected idle buffer after flush")
	}
}

func TestKeyBufferEnterOnEmpty(t *testing.T) {
	b := NewKeyBuffer(150 * time.Millisecond)
	if _, ok := b.Press(KeyEnter, time.Now()); ok {
		t.Fatalf("enter on empty buffer must not flush")
	}
}
