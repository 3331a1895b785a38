package scansession

import (
	"packtrack/infrastructure/confirm"
	"packtrack/infrastructure/lifecycle"
	"packtrack/models"
)

// OutcomeKind is the pipeline result for one event.
type OutcomeKind string

const (
	OutcomeAccepted            OutcomeKind = "accepted"
	OutcomeFound               OutcomeKind = "found"
	OutcomeAssociated          OutcomeKind = "associated"
	OutcomeDropped             OutcomeKind = "dropped"
	OutcomeSessionDuplicate    OutcomeKind = "session_duplicate"
	OutcomeUnassigned          OutcomeKind = "unassigned"
	OutcomeBlocked             OutcomeKind = "blocked"
	OutcomeLookupFailed        OutcomeKind = "lookup_failed"
	OutcomeIllegalTransition   OutcomeKind = "illegal_transition"
	OutcomeCancelled           OutcomeKind = "cancelled"
	OutcomeUnknownLabel        OutcomeKind = "unknown_label"
	OutcomePendingConfirmation OutcomeKind = "pending_confirmation"
)

// Drop reasons.
const (
	DropBusy         = "busy"
	DropNotListening = "not_listening"
	DropEmpty        = "empty"
	DropNameToken    = "name_token"
)

// Outcome is what the presentation layer shows for one event.
type Outcome struct {
	Kind         OutcomeKind           `json:"kind"`
	Code         string                `json:"code,omitempty"`
	Reason       string                `json:"reason,omitempty"`
	Message      string                `json:"message,omitempty"`
	Status       lifecycle.Status      `json:"status,omitempty"`
	Record       *models.PackageRecord `json:"record,omitempty"`
	Item         *Item                 `json:"item,omitempty"`
	Packer       string                `json:"packer,omitempty"`
	Associated   int                   `json:"associated,omitempty"`
	Confirmation *confirm.Request      `json:"confirmation,omitempty"`
	Err          error                 `json:"-"`
}

// Visible reports whether the operator should see the outcome. Drops are
// absorbed silently.
func (o Outcome) Visible() bool {
	return o.Kind != OutcomeDropped
}

// Succeeded reports whether the code was processed successfully.
func (o Outcome) Succeeded() bool {
	switch o.Kind {
	case OutcomeAccepted, OutcomeFound, OutcomeAssociated:
		return true
	default:
		return false
	}
}

func dropped(code, reason string) Outcome {
	return Outcome{Kind: OutcomeDropped, Code: code, Reason: reason}
}
