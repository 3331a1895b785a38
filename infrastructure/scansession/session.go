package scansession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"packtrack/infrastructure/arbiter"
	"packtrack/infrastructure/confirm"
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scancode"
	"packtrack/models"
)

// Workflow is the job a session performs with each scanned code.
type Workflow string

const (
	WorkflowAssign  Workflow = "assign"
	WorkflowQualify Workflow = "qualify"
	WorkflowDeliver Workflow = "deliver"
	WorkflowLookup  Workflow = "lookup"
)

// Mode is the qualify sub-mode.
type Mode string

const (
	ModeIndividual Mode = "individual"
	ModeMass       Mode = "mass"
)

// DefaultArea is written to exports and scan logs of assignment sessions.
const DefaultArea = "QUALITY CHECK"

const recentOutcomes = 20

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrNoBatch         = errors.New("this session has no batch to commit")
	ErrNothingToCommit = errors.New("the session list is empty")
	ErrExportStale     = errors.New("the list changed since the last export")
	ErrWrongWorkflow   = errors.New("operation not available in this workflow")
	ErrNoOperator      = arbiter.ErrNoOperator
)

func ParseWorkflow(s string) (Workflow, error) {
	switch w := Workflow(strings.ToLower(strings.TrimSpace(s))); w {
	case WorkflowAssign, WorkflowQualify, WorkflowDeliver, WorkflowLookup:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWorkflow, s)
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "individual", "":
		return ModeIndividual, nil
	case "mass", "masivo":
		return ModeMass, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Catalog resolves printed labels for assignment sessions. found is false
// for codes that were never printed.
type Catalog interface {
	Label(ctx context.Context, code string) (models.Label, bool, error)
}

// Recorder persists an exported assignment list.
type Recorder interface {
	RecordScans(ctx context.Context, encargado, area string, items []Item) error
}

// Config tunes a session. Zero durations fall back to the workflow defaults.
type Config struct {
	Workflow       Workflow
	Mode           Mode
	MinInterval    time.Duration
	FlushDelay     time.Duration
	ConfirmTimeout time.Duration
	Area           string
	Now            func() time.Time
	AfterFunc      func(d time.Duration, f func()) arbiter.Timer
}

// DefaultInterval is the rate-limit window each workflow uses.
func DefaultInterval(w Workflow) time.Duration {
	switch w {
	case WorkflowAssign:
		return 500 * time.Millisecond
	case WorkflowDeliver:
		return 1500 * time.Millisecond
	default:
		return 2000 * time.Millisecond
	}
}

// Session is one operator's scanning context: the arbiter, the confirmation
// gate and the in-memory lists. Events are processed one at a time.
type Session struct {
	id        string
	cfg       Config
	createdAt time.Time
	machine   *lifecycle.Machine
	catalog   Catalog
	arbiter   *arbiter.Arbiter
	gate      *confirm.Gate
	log       *slog.Logger

	busy atomic.Bool

	mu       sync.Mutex
	mode     Mode
	operator string
	decoder  *arbiter.RemoteDecoder
	pending  *List
	assigned *List
	recent   []Outcome
	inflight chan Outcome
}

// New builds a session for cfg.Workflow. catalog is only consulted by
// assignment sessions and may be nil otherwise.
func New(cfg Config, machine *lifecycle.Machine, catalog Catalog) (*Session, error) {
	if _, err := ParseWorkflow(string(cfg.Workflow)); err != nil {
		return nil, err
	}
	if cfg.Workflow == WorkflowAssign && catalog == nil {
		return nil, errors.New("assignment sessions need a label catalog")
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultInterval(cfg.Workflow)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if strings.TrimSpace(cfg.Area) == "" {
		cfg.Area = DefaultArea
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeIndividual
	}

	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		createdAt: cfg.Now(),
		machine:   machine,
		catalog:   catalog,
		gate:      confirm.NewGate(),
		mode:      mode,
		pending:   NewList(),
		assigned:  NewList(),
	}
	s.log = slog.Default().With(slog.String("session_id", s.id), slog.String("workflow", string(cfg.Workflow)))
	s.arbiter = arbiter.New(arbiter.Options{
		MinInterval: cfg.MinInterval,
		FlushDelay:  cfg.FlushDelay,
		Now:         cfg.Now,
		AfterFunc:   cfg.AfterFunc,
		OnFlush:     s.processFlushed,
	})
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Workflow() Workflow { return s.cfg.Workflow }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) Gate() *confirm.Gate { return s.gate }

func (s *Session) Arbiter() *arbiter.Arbiter { return s.arbiter }

func (s *Session) Area() string { return s.cfg.Area }

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Operator() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operator
}

// SetOperator selects the encargado without starting a channel, for manual
// entry.
func (s *Session) SetOperator(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoOperator
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operator = name
	return nil
}

// Start activates a channel. For the camera, a remote decoder is created to
// stand for the client's decode loop.
func (s *Session) Start(ctx context.Context, ch scancode.Channel, operator string) error {
	var dec arbiter.Decoder
	if ch == scancode.ChannelCamera {
		dec = arbiter.NewRemoteDecoder()
	}
	return s.StartWithDecoder(ctx, ch, operator, dec)
}

// StartWithDecoder is Start with a caller-supplied camera decoder. A stop
// left unfinished by an earlier switch is completed first.
func (s *Session) StartWithDecoder(ctx context.Context, ch scancode.Channel, operator string, dec arbiter.Decoder) error {
	if s.arbiter.State() == arbiter.StateStopping {
		if err := s.arbiter.Stop(ctx); err != nil {
			return fmt.Errorf("finish stop: %w", err)
		}
	}
	running := s.arbiter.State() == arbiter.StateListening && s.arbiter.Channel() == ch
	if err := s.arbiter.Start(ctx, ch, operator, dec); err != nil {
		return err
	}
	s.mu.Lock()
	s.operator = strings.TrimSpace(operator)
	if !running {
		s.decoder, _ = dec.(*arbiter.RemoteDecoder)
	}
	s.mu.Unlock()
	s.log.Info("scanner started", slog.String("channel", string(ch)), slog.String("encargado", operator))
	return nil
}

// AckDecoder records, on behalf of a remote client, that its camera decode
// loop has halted. Switching to the physical channel waits for this.
func (s *Session) AckDecoder() {
	s.mu.Lock()
	dec := s.decoder
	s.mu.Unlock()
	if dec != nil {
		dec.Ack()
	}
}

// Stop deactivates the channel. decoderStopped acknowledges on behalf of a
// remote client that its decode loop has halted. A pending confirmation is
// left for the operator to resolve.
func (s *Session) Stop(ctx context.Context, decoderStopped bool) error {
	if decoderStopped {
		s.AckDecoder()
	}
	if err := s.arbiter.Stop(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.decoder = nil
	s.mu.Unlock()
	s.log.Info("scanner stopped")
	return nil
}

// DecoderState reports the remote decoder state, or stopped when there is
// none.
func (s *Session) DecoderState() arbiter.DecoderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoder == nil {
		return arbiter.DecoderStopped
	}
	return s.decoder.State()
}

// Close stops the channel and declines any pending confirmation.
func (s *Session) Close(ctx context.Context) error {
	if _, ok := s.gate.Pending(); ok {
		_ = s.gate.Resolve(false)
	}
	return s.Stop(ctx, true)
}

// SwitchMode changes the qualify sub-mode. The list and the repeat markers
// are discarded.
func (s *Session) SwitchMode(mode Mode) error {
	if s.cfg.Workflow != WorkflowQualify {
		return ErrWrongWorkflow
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == mode {
		return nil
	}
	s.mode = mode
	s.pending.Clear()
	s.arbiter.Forget()
	return nil
}

// Remove deletes code from the session lists.
func (s *Session) Remove(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.pending.Remove(code)
	if s.assigned.Remove(code) {
		removed = true
	}
	return removed
}

// Clear empties the session lists and forgets the repeat markers.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Clear()
	s.assigned.Clear()
	s.arbiter.Forget()
}

// Snapshot is a read-only view of the session for presentation.
type Snapshot struct {
	ID           string               `json:"id"`
	Workflow     Workflow             `json:"workflow"`
	Mode         Mode                 `json:"mode,omitempty"`
	Operator     string               `json:"encargado"`
	Area         string               `json:"area"`
	Channel      scancode.Channel     `json:"channel,omitempty"`
	State        string               `json:"state"`
	Decoder      arbiter.DecoderState `json:"decoder"`
	Pending      []Item               `json:"pending"`
	Assigned     []Item               `json:"assigned,omitempty"`
	MELCount     int                  `json:"mel_count"`
	OtherCount   int                  `json:"other_count"`
	ExportStale  bool                 `json:"export_stale"`
	Confirmation *confirm.Request     `json:"confirmation,omitempty"`
	Recent       []Outcome            `json:"recent"`
	CreatedAt    time.Time            `json:"created_at"`
}

func (s *Session) Snapshot() Snapshot {
	state := s.arbiter.State()
	snap := Snapshot{
		ID:        s.id,
		Workflow:  s.cfg.Workflow,
		Area:      s.cfg.Area,
		State:     state.String(),
		Decoder:   s.DecoderState(),
		CreatedAt: s.createdAt,
	}
	if state != arbiter.StateIdle {
		snap.Channel = s.arbiter.Channel()
	}
	if req, ok := s.gate.Pending(); ok {
		snap.Confirmation = &req
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Workflow == WorkflowQualify {
		snap.Mode = s.mode
	}
	snap.Operator = s.operator
	snap.Pending = s.pending.Items()
	snap.Assigned = s.assigned.Items()
	snap.MELCount, snap.OtherCount = s.pending.Counts()
	snap.ExportStale = s.pending.Stale()
	snap.Recent = append([]Outcome(nil), s.recent...)
	return snap
}

// Recent returns the latest visible outcomes, oldest first.
func (s *Session) Recent() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outcome(nil), s.recent...)
}

func (s *Session) remember(out Outcome) {
	if !out.Visible() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, out)
	if len(s.recent) > recentOutcomes {
		s.recent = s.recent[len(s.recent)-recentOutcomes:]
	}
}
