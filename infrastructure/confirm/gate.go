package confirm

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPending   = errors.New("a confirmation is already pending")
	ErrNoPending = errors.New("no confirmation is pending")
)

// Request is the question put to the operator.
type Request struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Gate is a single-slot suspend point between the scan pipeline and the
// operator. At most one request is outstanding.
type Gate struct {
	mu       sync.Mutex
	pending  *Request
	decision chan bool
	posted   chan Request
}

func NewGate() *Gate {
	return &Gate{posted: make(chan Request, 1)}
}

// Request blocks until the operator resolves the question or ctx ends. A
// context error leaves no request pending.
func (g *Gate) Request(ctx context.Context, req Request) (bool, error) {
	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return false, ErrPending
	}
	decision := make(chan bool, 1)
	g.pending = &req
	g.decision = decision
	g.mu.Unlock()

	// Drop a stale notice nobody read before posting the new one.
	select {
	case <-g.posted:
	default:
	}
	g.posted <- req

	select {
	case ok := <-decision:
		return ok, nil
	case <-ctx.Done():
		g.mu.Lock()
		if g.decision == decision {
			g.pending = nil
			g.decision = nil
		}
		g.mu.Unlock()
		return false, ctx.Err()
	}
}

// Resolve answers the pending request.
func (g *Gate) Resolve(confirmed bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return ErrNoPending
	}
	g.decision <- confirmed
	g.pending = nil
	g.decision = nil
	return nil
}

// Pending returns the outstanding request, if any.
func (g *Gate) Pending() (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Request{}, false
	}
	return *g.pending, true
}

// Posted delivers each new request as it is raised.
func (g *Gate) Posted() <-chan Request {
	return g.posted
}
