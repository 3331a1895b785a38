package lifecycle

import (
	"context"
	"errors"

	"packtrack/models"
)

// LookupKind classifies a store lookup.
type LookupKind int

const (
	LookupUnassigned LookupKind = iota
	LookupBlocked
	LookupFound
	LookupFailed
)

func (k LookupKind) String() string {
	switch k {
	case LookupUnassigned:
		return "unassigned"
	case LookupBlocked:
		return "blocked"
	case LookupFound:
		return "found"
	default:
		return "lookup_failed"
	}
}

// ReasonPreviouslyReported is the block reason for reported packages.
const ReasonPreviouslyReported = "previously reported"

// LookupResult is the validated view of one code. Record is set for Found and
// Blocked; Err only for LookupFailed.
type LookupResult struct {
	Kind   LookupKind
	Code   string
	Record models.PackageRecord
	Reason string
	Err    error
}

// Status returns the lifecycle state the lookup observed.
func (r LookupResult) Status() Status {
	switch r.Kind {
	case LookupFound, LookupBlocked:
		return Status(r.Record.Status)
	case LookupUnassigned:
		return StatusUnassigned
	default:
		return ""
	}
}

// Lookup reads code from the store and classifies the result.
func (m *Machine) Lookup(ctx context.Context, code string) LookupResult {
	rec, err := m.store.Get(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		return LookupResult{Kind: LookupUnassigned, Code: code}
	case err != nil:
		return LookupResult{Kind: LookupFailed, Code: code, Err: err}
	case Status(rec.Status) == StatusReported:
		return LookupResult{Kind: LookupBlocked, Code: code, Record: rec, Reason: ReasonPreviouslyReported}
	default:
		return LookupResult{Kind: LookupFound, Code: code, Record: rec}
	}
}
