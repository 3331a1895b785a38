package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"packtrack/infrastructure/scancode"
)

var (
	ErrNoOperator   = errors.New("an encargado must be selected before scanning")
	ErrNotListening = errors.New("scanner is not listening")
	ErrStopping     = errors.New("scanner is still stopping")
)

// DefaultFlushDelay is the keystroke inactivity gap that ends a physical scan.
const DefaultFlushDelay = 150 * time.Millisecond

// State is the active channel lifecycle.
type State int

const (
	StateIdle State = iota
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Verdict is the arbiter's decision on one event or code.
type Verdict int

const (
	Pass Verdict = iota
	// DropRate: inside the minimum interval since the last accepted event.
	DropRate
	// DropInactive: the event came from a channel that is not active.
	DropInactive
	// DropRepeat: same code as the last successfully processed one.
	DropRepeat
	// Duplicate: the code is already in the session list.
	Duplicate
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case DropRate:
		return "rate_limited"
	case DropInactive:
		return "inactive_channel"
	case DropRepeat:
		return "immediate_repeat"
	default:
		return "session_duplicate"
	}
}

// Timer is the part of *time.Timer the arbiter uses.
type Timer interface {
	Stop() bool
}

// Options tune an Arbiter. Zero values take the defaults.
type Options struct {
	// MinInterval between accepted events; zero disables the rate limit.
	MinInterval time.Duration
	FlushDelay  time.Duration
	Now         func() time.Time
	AfterFunc   func(d time.Duration, f func()) Timer
	// OnFlush receives physical scans flushed by the inactivity timer.
	OnFlush func(scancode.Event)
}

// Arbiter merges the camera and physical channels into one event stream.
// Exactly one channel is active at a time.
type Arbiter struct {
	mu sync.Mutex

	interval  time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer
	onFlush   func(scancode.Event)

	state    State
	channel  scancode.Channel
	operator string
	decoder  Decoder

	keys     *KeyBuffer
	timer    Timer
	timerGen uint64

	lastAccepted  time.Time
	lastProcessed string
}

func New(opts Options) *Arbiter {
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = DefaultFlushDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Arbiter{
		interval:  opts.MinInterval,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		onFlush:   opts.OnFlush,
		keys:      NewKeyBuffer(opts.FlushDelay),
	}
}

// SetFlushHandler replaces the receiver of timer-flushed physical scans.
func (a *Arbiter) SetFlushHandler(fn func(scancode.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFlush = fn
}

func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Arbiter) Channel() scancode.Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channel
}

func (a *Arbiter) Operator() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.operator
}

// Start activates ch for operator. Starting a different channel while one is
// listening stops the old channel first. dec is only used for the camera.
func (a *Arbiter) Start(ctx context.Context, ch scancode.Channel, operator string, dec Decoder) error {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return ErrNoOperator
	}
	if ch != scancode.ChannelCamera && ch != scancode.ChannelPhysical {
		return fmt.Errorf("start scanner: unknown channel %q", ch)
	}

	a.mu.Lock()
	switch {
	case a.state == StateStopping:
		a.mu.Unlock()
		return ErrStopping
	case a.state == StateListening && a.channel == ch:
		a.operator = operator
		a.mu.Unlock()
		return nil
	case a.state == StateListening:
		a.mu.Unlock()
		if err := a.Stop(ctx); err != nil {
			return fmt.Errorf("switch channel: %w", err)
		}
		a.mu.Lock()
	}
	defer a.mu.Unlock()

	a.state = StateListening
	a.channel = ch
	a.operator = operator
	a.decoder = nil
	if ch == scancode.ChannelCamera {
		a.decoder = dec
	}
	return nil
}

// Stop deactivates the channel. Any buffered keystrokes are discarded and the
// flush timer is cancelled. For the camera, Stop returns only after the
// decoder confirms it halted; on error the arbiter stays in StateStopping and
// Stop may be retried.
func (a *Arbiter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateIdle {
		a.mu.Unlock()
		return nil
	}
	a.state = StateStopping
	a.cancelFlushLocked()
	a.keys.Reset()
	dec := a.decoder
	a.mu.Unlock()

	if dec != nil {
		if err := dec.Stop(ctx); err != nil {
			return fmt.Errorf("stop decoder: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateIdle
	a.decoder = nil
	return nil
}

// Admit applies channel and rate-limit checks to an incoming event. Accepted
// events move the rate-limit window.
func (a *Arbiter) Admit(ev scancode.Event) (Verdict, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateListening {
		return DropInactive, ErrNotListening
	}
	if ev.Channel != a.channel {
		return DropInactive, nil
	}
	at := ev.ObservedAt
	if at.IsZero() {
		at = a.now()
	}
	if a.interval > 0 && !a.lastAccepted.IsZero() && at.Sub(a.lastAccepted) < a.interval {
		return DropRate, nil
	}
	a.lastAccepted = at
	return Pass, nil
}

// Screen applies the session-duplicate and repeat checks to a canonical code.
// A code already in the session list is always a Duplicate, even when it is
// also the last processed code. inSession may be nil.
func (a *Arbiter) Screen(code string, inSession func(string) bool) Verdict {
	if inSession != nil && inSession(code) {
		return Duplicate
	}
	a.mu.Lock()
	last := a.lastProcessed
	a.mu.Unlock()
	if code != "" && code == last {
		return DropRepeat
	}
	return Pass
}

// MarkProcessed records code as the last successfully processed code.
func (a *Arbiter) MarkProcessed(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastProcessed = code
}

// Forget clears the repeat and rate-limit markers, as on a session clear.
func (a *Arbiter) Forget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastProcessed = ""
	a.lastAccepted = time.Time{}
}

// Key feeds one keystroke from the physical scanner. An Enter that completes
// a scan returns the event directly; otherwise the inactivity timer hands the
// scan to the flush handler.
func (a *Arbiter) Key(key string) (scancode.Event, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateListening || a.channel != scancode.ChannelPhysical {
		return scancode.Event{}, false, ErrNotListening
	}

	now := a.now()
	text, flushed := a.keys.Press(key, now)
	if flushed {
		a.cancelFlushLocked()
		return a.physicalEvent(text, now), true, nil
	}
	if a.keys.State() == BufferBuffering {
		a.scheduleFlushLocked()
	}
	return scancode.Event{}, false, nil
}

// PauseDecoder pauses the camera loop while a confirmation is pending.
func (a *Arbiter) PauseDecoder() {
	a.mu.Lock()
	dec := a.decoder
	a.mu.Unlock()
	if dec != nil {
		dec.Pause()
	}
}

func (a *Arbiter) ResumeDecoder() {
	a.mu.Lock()
	dec := a.decoder
	a.mu.Unlock()
	if dec != nil {
		dec.Resume()
	}
}

func (a *Arbiter) physicalEvent(text string, at time.Time) scancode.Event {
	return scancode.Event{
		RawText:    text,
		Channel:    scancode.ChannelPhysical,
		Format:     scancode.FormatUnknown,
		ObservedAt: at,
	}
}

func (a *Arbiter) scheduleFlushLocked() {
	a.cancelFlushLocked()
	gen := a.timerGen
	delay := a.keys.Deadline().Sub(a.now())
	a.timer = a.afterFunc(delay, func() { a.expire(gen) })
}

func (a *Arbiter) cancelFlushLocked() {
	a.timerGen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Arbiter) expire(gen uint64) {
	a.mu.Lock()
	if gen != a.timerGen || a.state != StateListening {
		a.mu.Unlock()
		return
	}
	now := a.now()
	text, ok := a.keys.Expire(now)
	if !ok {
		if a.keys.State() == BufferBuffering {
			a.scheduleFlushLocked()
		}
		a.mu.Unlock()
		return
	}
	a.timer = nil
	sink := a.onFlush
	a.mu.Unlock()

	if sink != nil {
		sink(a.physicalEvent(text, now))
	}
}
