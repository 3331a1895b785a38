package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a package lifecycle state. StatusUnassigned is implicit: the
// store has no row for the code.
type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusAssigned   Status = "assigned"
	StatusQualified  Status = "qualified"
	StatusReported   Status = "reported"
	StatusDelivered  Status = "delivered"
)

// Verb names a transition.
type Verb string

const (
	VerbAssign  Verb = "assign"
	VerbQualify Verb = "qualify"
	VerbReport  Verb = "report"
	VerbDeliver Verb = "deliver"
)

var (
	ErrNotFound          = errors.New("package not found")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrConcurrentChange  = errors.New("package changed during update")
	ErrReasonRequired    = errors.New("a report reason is required")
	ErrPackerRequired    = errors.New("a packer is required")
)

// preconditions lists the states each verb may start from.
var preconditions = map[Verb][]Status{
	VerbAssign:  {StatusUnassigned},
	VerbQualify: {StatusAssigned, StatusReported},
	VerbReport:  {StatusAssigned, StatusQualified},
	VerbDeliver: {StatusQualified},
}

var targets = map[Verb]Status{
	VerbAssign:  StatusAssigned,
	VerbQualify: StatusQualified,
	VerbReport:  StatusReported,
	VerbDeliver: StatusDelivered,
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusUnassigned, StatusAssigned, StatusQualified, StatusReported, StatusDelivered:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// From returns the states v may be applied to.
func (v Verb) From() []Status {
	return append([]Status(nil), preconditions[v]...)
}

// Target returns the state v moves a package into.
func (v Verb) Target() Status {
	return targets[v]
}

// Allows reports whether v may be applied to a package in state from.
func (v Verb) Allows(from Status) bool {
	for _, s := range preconditions[v] {
		if s == from {
			return true
		}
	}
	return false
}

// CanTransition reports whether a package may move from one state to another.
func CanTransition(from, to Status) bool {
	for v, target := range targets {
		if target == to && v.Allows(from) {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered
}

// TransitionError names the code and the state that refused a transition.
type TransitionError struct {
	Code      string `json:"code"`
	From      Status `json:"status"`
	Attempted Verb   `json:"attempted"`
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s package %s: status is %s", e.Attempted, e.Code, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
