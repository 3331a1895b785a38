package confirm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGateResolve(t *testing.T) {
	g := NewGate()
	result := make(chan bool, 1)
	go func() {
		ok, err := g.Request(context.Background(), Request{Title: "Warning", Message: "Not a MEL code", Code: "51234567890"})
		if err != nil {
			t.Errorf("request: %v", err)
		}
		result <- ok
	}()

	req := <-g.Posted()
	if req.Code != "51234567890" {
		t.Fatalf("unexpected request %+v", req)
	}
	if pending, ok := g.Pending(); !ok || pending.Title != "Warning" {
		t.Fatalf("expected pending request, got %+v ok=%v", pending, ok)
	}
	if err := g.Resolve(true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok := <-result; !ok {
		t.Fatalf("expected confirmed decision")
	}
	if _, ok := g.Pending(); ok {
		t.Fatalf("expected gate empty after resolve")
	}
	if err := g.Resolve(false); !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected ErrNoPending, got %v", err)
	}
}

func TestGateSingleSlot(t *testing.T) {
	g := NewGate()
	go func() {
		_, _ = g.Request(context.Background(), Request{Code: "A"})
	}()
	<-g.Posted()

	if _, err := g.Request(context.Background(), Request{Code: "B"}); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
	if err := g.Resolve(false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestGateContextCancelClearsSlot(t *testing.T) {
	g := NewGate()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.Request(ctx, Request{Code: "A"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if _, ok := g.Pending(); ok {
		t.Fatalf("expected no pending request after timeout")
	}
}
