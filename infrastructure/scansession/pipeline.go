package scansession

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"packtrack/infrastructure/arbiter"
	"packtrack/infrastructure/confirm"
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scancode"
	"packtrack/models"
)

// Process runs one scan event to completion: arbiter, normalizer,
// classifier, confirmation, lookup and list update. Events that arrive while
// another one is in flight are dropped.
func (s *Session) Process(ctx context.Context, ev scancode.Event) Outcome {
	return s.run(ctx, ev, true)
}

// AddManual runs a hand-typed code through the pipeline without the timing
// checks.
func (s *Session) AddManual(ctx context.Context, code string) (Outcome, error) {
	if s.Operator() == "" {
		return Outcome{}, ErrNoOperator
	}
	if strings.TrimSpace(code) == "" {
		return Outcome{}, fmt.Errorf("a code is required")
	}
	ev := scancode.Event{
		RawText:    code,
		Channel:    scancode.ChannelPhysical,
		Format:     scancode.FormatUnknown,
		ObservedAt: s.cfg.Now(),
	}
	return s.run(ctx, ev, false), nil
}

// Key feeds one physical-scanner keystroke. When it completes a scan the
// outcome is returned with ok set.
func (s *Session) Key(ctx context.Context, key string) (out Outcome, ok bool, err error) {
	ev, flushed, err := s.arbiter.Key(key)
	if err != nil || !flushed {
		return Outcome{}, false, err
	}
	return s.Process(ctx, ev), true, nil
}

// processFlushed handles scans completed by the keystroke inactivity timer.
func (s *Session) processFlushed(ev scancode.Event) {
	s.Process(context.Background(), ev)
}

// Submit runs fn in the background and returns its outcome, or a
// pending_confirmation outcome as soon as the run stops at the gate. The run
// outlives ctx; Resolve collects its final outcome.
func (s *Session) Submit(ctx context.Context, fn func(context.Context) Outcome) Outcome {
	done := make(chan Outcome, 1)
	runCtx := context.WithoutCancel(ctx)
	go func() { done <- fn(runCtx) }()

	for {
		select {
		case out := <-done:
			return out
		case req := <-s.gate.Posted():
			if cur, ok := s.gate.Pending(); ok && cur == req {
				return Outcome{Kind: OutcomePendingConfirmation, Code: req.Code, Message: req.Message, Confirmation: &req}
			}
		case <-ctx.Done():
			return Outcome{Kind: OutcomeDropped, Reason: "request_cancelled", Err: ctx.Err()}
		}
	}
}

// Resolve answers the pending confirmation and waits for the suspended run to
// finish.
func (s *Session) Resolve(ctx context.Context, confirmed bool) (Outcome, error) {
	s.mu.Lock()
	done := s.inflight
	s.mu.Unlock()
	if err := s.gate.Resolve(confirmed); err != nil {
		return Outcome{}, err
	}
	if done == nil {
		return Outcome{}, nil
	}
	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (s *Session) run(ctx context.Context, ev scancode.Event, timed bool) Outcome {
	if !s.busy.CompareAndSwap(false, true) {
		return dropped("", DropBusy)
	}
	defer s.busy.Store(false)

	done := make(chan Outcome, 1)
	s.mu.Lock()
	s.inflight = done
	s.mu.Unlock()

	out := s.pipeline(ctx, ev, timed)
	if out.Succeeded() {
		s.arbiter.MarkProcessed(out.Code)
	}
	s.remember(out)
	done <- out

	if out.Visible() {
		s.log.Info("scan outcome",
			slog.String("kind", string(out.Kind)),
			slog.String("code", out.Code),
			slog.String("channel", string(ev.Channel)),
		)
	} else {
		s.log.Debug("scan dropped", slog.String("reason", out.Reason), slog.String("code", out.Code))
	}
	return out
}

func (s *Session) pipeline(ctx context.Context, ev scancode.Event, timed bool) Outcome {
	if timed {
		verdict, err := s.arbiter.Admit(ev)
		if err != nil {
			out := dropped("", DropNotListening)
			out.Err = err
			return out
		}
		if verdict != arbiter.Pass {
			return dropped("", verdict.String())
		}
	}

	code := scancode.Normalize(ev.RawText, ev.Channel)
	if code == "" {
		return dropped("", DropEmpty)
	}
	cls := scancode.Classify(code, ev.Channel, ev.Format)

	if cls.Kind == scancode.KindNameToken {
		if s.cfg.Workflow != WorkflowAssign {
			return dropped(code, DropNameToken)
		}
		if timed && s.arbiter.Screen(code, nil) == arbiter.DropRepeat {
			return dropped(code, arbiter.DropRepeat.String())
		}
		return s.associate(code)
	}

	verdict := s.arbiter.Screen(code, s.inList)
	if !timed && verdict == arbiter.DropRepeat {
		verdict = arbiter.Pass
	}
	switch verdict {
	case arbiter.DropRepeat:
		return dropped(code, verdict.String())
	case arbiter.Duplicate:
		return Outcome{Kind: OutcomeSessionDuplicate, Code: code, Message: fmt.Sprintf("Code %s is already in the list.", code)}
	}

	if cls.NeedsConfirmation {
		if out, ok := s.confirmScan(ctx, cls); !ok {
			return out
		}
	}

	switch s.cfg.Workflow {
	case WorkflowAssign:
		return s.assignScan(ctx, code)
	case WorkflowQualify:
		return s.qualifyScan(ctx, code)
	case WorkflowDeliver:
		return s.deliverScan(ctx, code)
	default:
		return s.lookupScan(ctx, code)
	}
}

func (s *Session) inList(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.cfg.Workflow == WorkflowAssign:
		return s.pending.Contains(code) || s.assigned.Contains(code)
	case s.cfg.Workflow == WorkflowDeliver:
		return s.pending.Contains(code)
	case s.cfg.Workflow == WorkflowQualify && s.mode == ModeMass:
		return s.pending.Contains(code)
	default:
		return false
	}
}

// confirmScan suspends the run at the gate with the camera paused. ok is false
// when the operator declined or the wait ended.
func (s *Session) confirmScan(ctx context.Context, cls scancode.Classification) (Outcome, bool) {
	s.arbiter.PauseDecoder()
	defer s.arbiter.ResumeDecoder()

	if s.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
		defer cancel()
	}
	confirmed, err := s.gate.Request(ctx, confirm.Request{Title: cls.Title, Message: cls.Message, Code: cls.Code})
	if err != nil {
		return Outcome{Kind: OutcomeCancelled, Code: cls.Code, Reason: "confirmation_ended", Message: "Scan cancelled.", Err: err}, false
	}
	if !confirmed {
		return Outcome{Kind: OutcomeCancelled, Code: cls.Code, Message: "Scan cancelled."}, false
	}
	return Outcome{}, true
}

func (s *Session) assignScan(ctx context.Context, code string) Outcome {
	lr := s.machine.Lookup(ctx, code)
	switch lr.Kind {
	case lifecycle.LookupFailed:
		return lookupFailed(code, lr.Err)
	case lifecycle.LookupFound, lifecycle.LookupBlocked:
		return illegal(code, lr, lifecycle.VerbAssign)
	}

	label, found, err := s.catalog.Label(ctx, code)
	if err != nil {
		return lookupFailed(code, err)
	}
	if !found {
		return Outcome{Kind: OutcomeUnknownLabel, Code: code, Message: fmt.Sprintf("Code %s was not found in the printed labels.", code)}
	}

	item := Item{
		Code:          code,
		Product:       label.Product,
		SKU:           label.SKU,
		Quantity:      label.Quantity,
		Organization:  label.Organization,
		SaleReference: label.SaleReference,
		Status:        lifecycle.StatusUnassigned,
		AddedAt:       s.cfg.Now(),
	}
	return s.addItem(item, fmt.Sprintf("Added code %s.", code))
}

func (s *Session) qualifyScan(ctx context.Context, code string) Outcome {
	lr := s.machine.Lookup(ctx, code)
	switch lr.Kind {
	case lifecycle.LookupFailed:
		return lookupFailed(code, lr.Err)
	case lifecycle.LookupUnassigned:
		return unassigned(code)
	}
	st := lr.Status()

	if s.Mode() == ModeIndividual {
		switch {
		case lr.Kind == lifecycle.LookupBlocked:
			return blocked(code, lr, "Code %s was previously reported. Qualify it to resolve the report.")
		case st == lifecycle.StatusAssigned:
			rec := lr.Record
			return Outcome{Kind: OutcomeFound, Code: code, Status: st, Record: &rec, Packer: rec.AssignedTo, Message: fmt.Sprintf("Code %s is ready to qualify.", code)}
		default:
			return illegal(code, lr, lifecycle.VerbQualify)
		}
	}

	if !lifecycle.VerbQualify.Allows(st) {
		return illegal(code, lr, lifecycle.VerbQualify)
	}
	item := itemFromRecord(lr.Record, s.cfg.Now())
	msg := fmt.Sprintf("Added code %s.", code)
	if item.Reported {
		msg = fmt.Sprintf("Added code %s (reported).", code)
	}
	out := s.addItem(item, msg)
	if item.Reported && out.Kind == OutcomeAccepted {
		out.Reason = lifecycle.ReasonPreviouslyReported
	}
	return out
}

func (s *Session) deliverScan(ctx context.Context, code string) Outcome {
	lr := s.machine.Lookup(ctx, code)
	switch lr.Kind {
	case lifecycle.LookupFailed:
		return lookupFailed(code, lr.Err)
	case lifecycle.LookupUnassigned:
		return unassigned(code)
	case lifecycle.LookupBlocked:
		return blocked(code, lr, "Code %s was reported and must be qualified again before delivery.")
	}
	if lr.Status() != lifecycle.StatusQualified {
		return illegal(code, lr, lifecycle.VerbDeliver)
	}
	return s.addItem(itemFromRecord(lr.Record, s.cfg.Now()), fmt.Sprintf("Added code %s.", code))
}

func (s *Session) lookupScan(ctx context.Context, code string) Outcome {
	lr := s.machine.Lookup(ctx, code)
	switch lr.Kind {
	case lifecycle.LookupFailed:
		return lookupFailed(code, lr.Err)
	case lifecycle.LookupUnassigned:
		return unassigned(code)
	case lifecycle.LookupBlocked:
		return blocked(code, lr, "Code %s is reported.")
	}
	rec := lr.Record
	return Outcome{
		Kind:    OutcomeFound,
		Code:    code,
		Status:  lr.Status(),
		Record:  &rec,
		Packer:  rec.AssignedTo,
		Message: fmt.Sprintf("Code %s was packed by %s.", code, rec.AssignedTo),
	}
}

func (s *Session) addItem(item Item, msg string) Outcome {
	s.mu.Lock()
	added := s.pending.Add(item)
	s.mu.Unlock()
	if !added {
		return Outcome{Kind: OutcomeSessionDuplicate, Code: item.Code, Message: fmt.Sprintf("Code %s is already in the list.", item.Code)}
	}
	return Outcome{Kind: OutcomeAccepted, Code: item.Code, Status: item.Status, Item: &item, Message: msg}
}

// Associate assigns every pending code to packer, moving them to the
// assignment list. It is what scanning a name token does.
func (s *Session) Associate(packer string) (Outcome, error) {
	if s.cfg.Workflow != WorkflowAssign {
		return Outcome{}, ErrWrongWorkflow
	}
	packer = strings.Join(strings.Fields(packer), " ")
	if packer == "" {
		return Outcome{}, fmt.Errorf("a packer name is required")
	}
	out := s.associate(packer)
	s.arbiter.MarkProcessed(packer)
	s.remember(out)
	return out, nil
}

func (s *Session) associate(packer string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.pending.Items()
	if len(items) == 0 {
		return Outcome{Kind: OutcomeAssociated, Code: packer, Packer: packer, Message: "There are no pending codes to associate."}
	}
	for _, it := range items {
		it.AssignedTo = packer
		s.assigned.Add(it)
	}
	s.pending.Clear()
	return Outcome{
		Kind:       OutcomeAssociated,
		Code:       packer,
		Packer:     packer,
		Associated: len(items),
		Message:    fmt.Sprintf("Associated %d codes to %s.", len(items), packer),
	}
}

func itemFromRecord(rec models.PackageRecord, at time.Time) Item {
	return Item{
		Code:          rec.Code,
		Product:       rec.Product,
		SKU:           rec.SKU,
		Quantity:      rec.Quantity,
		Organization:  rec.Organization,
		SaleReference: rec.SaleReference,
		AssignedTo:    rec.AssignedTo,
		Status:        lifecycle.Status(rec.Status),
		Reported:      lifecycle.Status(rec.Status) == lifecycle.StatusReported,
		ReportDetails: rec.Report(),
		AddedAt:       at,
	}
}

func lookupFailed(code string, err error) Outcome {
	return Outcome{Kind: OutcomeLookupFailed, Code: code, Message: fmt.Sprintf("Lookup for %s failed: %v", code, err), Err: err}
}

func unassigned(code string) Outcome {
	return Outcome{Kind: OutcomeUnassigned, Code: code, Status: lifecycle.StatusUnassigned, Message: fmt.Sprintf("Code %s has not been assigned yet.", code)}
}

func blocked(code string, lr lifecycle.LookupResult, format string) Outcome {
	rec := lr.Record
	return Outcome{Kind: OutcomeBlocked, Code: code, Status: lr.Status(), Record: &rec, Reason: lr.Reason, Message: fmt.Sprintf(format, code)}
}

func illegal(code string, lr lifecycle.LookupResult, verb lifecycle.Verb) Outcome {
	te := &lifecycle.TransitionError{Code: code, From: lr.Status(), Attempted: verb}
	out := Outcome{Kind: OutcomeIllegalTransition, Code: code, Status: te.From, Message: te.Error(), Err: te}
	if lr.Kind == lifecycle.LookupFound || lr.Kind == lifecycle.LookupBlocked {
		rec := lr.Record
		out.Record = &rec
	}
	return out
}
