package arbiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"packtrack/infrastructure/scancode"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type timerSet struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *timerSet) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{fn: f}
	s.timers = append(s.timers, t)
	return t
}

// fireLive runs every timer that has not been stopped.
func (s *timerSet) fireLive() int {
	s.mu.Lock()
	live := make([]*fakeTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if !t.stopped {
			t.stopped = true
			live = append(live, t)
		}
	}
	s.mu.Unlock()
	for _, t := range live {
		t.fn()
	}
	return len(live)
}

type fakeDecoder struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	release chan struct{}
}

func (d *fakeDecoder) Pause()  { d.mu.Lock(); d.paused = true; d.mu.Unlock() }
func (d *fakeDecoder) Resume() { d.mu.Lock(); d.paused = false; d.mu.Unlock() }
func (d *fakeDecoder) Stop(ctx context.Context) error {
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	return nil
}

func newTestArbiter(interval time.Duration) (*Arbiter, *fakeClock, *timerSet, *[]scancode.Event) {
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	timers := &timerSet{}
	var flushed []scancode.Event
	a := New(Options{
		MinInterval: interval,
		Now:         clock.Now,
		AfterFunc:   timers.AfterFunc,
		OnFlush:     func(ev scancode.Event) { flushed = append(flushed, ev) },
	})
	return a, clock, timers, &flushed
}

func cameraEvent(text string, at time.Time) scancode.Event {
	return scancode.Event{RawText: text, Channel: scancode.ChannelCamera, Format: scancode.FormatBarcode, ObservedAt: at}
}

func TestStartRequiresOperator(t *testing.T) {
	a, _, _, _ := newTestArbiter(0)
	if err := a.Start(context.Background(), scancode.ChannelCamera, "  ", nil); !errors.Is(err, ErrNoOperator) {
		t.Fatalf("expected ErrNoOperator, got %v", err)
	}
	if a.State() != StateIdle {
		t.Fatalf("expected idle, got %s", a.State())
	}
}

func TestAdmitRateLimit(t *testing.T) {
	a, clock, _, _ := newTestArbiter(500 * time.Millisecond)
	if err := a.Start(context.Background(), scancode.ChannelCamera, "Ana Lopez", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := a.Admit(cameraEvent("41234567890", clock.Now()))
	if err != nil || first != Pass {
		t.Fatalf("first admit = %s, %v", first, err)
	}
	clock.Advance(200 * time.Millisecond)
	if v, _ := a.Admit(cameraEvent("41234567890", clock.Now())); v != DropRate {
		t.Fatalf("expected rate drop inside window, got %s", v)
	}
	clock.Advance(300 * time.Millisecond)
	if v, _ := a.Admit(cameraEvent("41234567891", clock.Now())); v != Pass {
		t.Fatalf("expected pass after window, got %s", v)
	}
}

func TestAdmitRejectsInactiveChannel(t *testing.T) {
	a, clock, _, _ := newTestArbiter(0)
	if _, err := a.Admit(cameraEvent("41234567890", clock.Now())); !errors.Is(err, ErrNotListening) {
		t.Fatalf("expected ErrNotListening while idle, got %v", err)
	}
	if err := a.Start(context.Background(), scancode.ChannelPhysical, "Ana Lopez", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if v, _ := a.Admit(cameraEvent("41234567890", clock.Now())); v != DropInactive {
		t.Fatalf("expected camera event dropped while physical active, got %s", v)
	}
}

func TestScreenRepeatAndDuplicate(t *testing.T) {
	a, _, _, _ := newTestArbiter(0)
	list := map[string]bool{"41234567890": true}
	inList := func(code string) bool { return list[code] }

	if v := a.Screen("41234567890", inList); v != Duplicate {
		t.Fatalf("expected duplicate, got %s", v)
	}
	a.MarkProcessed("41234567891")
	if v := a.Screen("41234567891", inList); v != DropRepeat {
		t.Fatalf("expected immediate repeat, got %s", v)
	}
	if v := a.Screen("41234567892", inList); v != Pass {
		t.Fatalf("expected pass, got %s", v)
	}
	a.Forget()
	if v := a.Screen("41234567891", inList); v != Pass {
		t.Fatalf("expected pass after forget, got %s", v)
	}

	a.MarkProcessed("41234567890")
	if v := a.Screen("41234567890", inList); v != Duplicate {
		t.Fatalf("expected listed last code to be a duplicate, got %s", v)
	}
}

func TestKeyEnterFlushesImmediately(t *testing.T) {
	a, _, timers, flushed := newTestArbiter(0)
	if err := a.Start(context.Background(), scancode.ChannelPhysical, "Ana Lopez", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, k := range []string{"4", "1", "2", "Shift", "3"} {
		if _, ok, err := a.Key(k); ok || err != nil {
			t.Fatalf("unexpected flush on %q: ok=%v err=%v", k, ok, err)
		}
	}
	ev, ok, err := a.Key(KeyEnter)
	if err != nil || !ok {
		t.Fatalf("expected enter flush, ok=%v err=%v", ok, err)
	}
	if ev.RawText != "4123" || ev.Channel != scancode.ChannelPhysical {
		t.Fatalf("unexpected event %+v", ev)
	}
	if n := timers.fireLive(); n != 0 {
		t.Fatalf("expected flush timer cancelled by enter, %d live", n)
	}
	if len(*flushed) != 0 {
		t.Fatalf("expected no timer flush, got %d", len(*flushed))
	}
}

func TestKeyInactivityFlush(t *testing.T) {
	a, clock, timers, flushed := newTestArbiter(0)
	if err := a.Start(context.Background(), scancode.ChannelPhysical, "Ana Lopez", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, k := range []string{"4", "1", "2"} {
		if _, _, err := a.Key(k); err != nil {
			t.Fatalf("key %q: %v", k, err)
		}
	}
	clock.Advance(DefaultFlushDelay)
	timers.fireLive()
	if len(*flushed) != 1 || (*flushed)[0].RawText != "412" {
		t.Fatalf("expected one timer flush of 412, got %+v", *flushed)
	}
}

func TestStopClearsBufferAndCancelsTimer(t *testing.T) {
	a, clock, timers, flushed := newTestArbiter(0)
	if err := a.Start(context.Background(), scancode.ChannelPhysical, "Ana Lopez", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := a.Key("4"); err != nil {
		t.Fatalf("key: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	clock.Advance(time.Second)
	timers.fireLive()
	if len(*flushed) != 0 {
		t.Fatalf("expected no stale flush after stop, got %+v", *flushed)
	}
	if err := a.Start(context.Background(), scancode.ChannelPhysical, "Ana Lopez", nil); err != nil {
		t.Fatalf("restart: %v", err)
	}
	ev, ok, _ := a.Key(KeyEnter)
	if ok {
		t.Fatalf("expected empty buffer after stop, got %+v", ev)
	}
}

func TestStopAwaitsDecoder(t *testing.T) {
	a, _, _, _ := newTestArbiter(0)
	dec := &fakeDecoder{release: make(chan struct{})}
	if err := a.Start(context.Background(), scancode.ChannelCamera, "Ana Lopez", dec); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Stop(ctx); err == nil {
		t.Fatalf("expected stop to fail while decoder is running")
	}
	if a.State() != StateStopping {
		t.Fatalf("expected stopping state, got %s", a.State())
	}
	if err := a.Start(context.Background(), scancode.ChannelCamera, "Ana Lopez", dec); !errors.Is(err, ErrStopping) {
		t.Fatalf("expected ErrStopping, got %v", err)
	}

	close(dec.release)
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("stop after release: %v", err)
	}
	if a.State() != StateIdle || !dec.stopped {
		t.Fatalf("expected idle with stopped decoder, state=%s stopped=%v", a.State(), dec.stopped)
	}
}

func TestStartOtherChannelStopsCurrent(t *testing.T) {
	a, _, _, _ := newTestArbiter(0)
	dec := &fakeDecoder{}
	if err := a.Start(context.Background(), scancode.ChannelCamera, "Ana Lopez", dec); err != nil {
		t.Fatalf("start camera: %v", err)
	}
	if err := a.Start(context.Background(), scancode.ChannelPhysical, "Ana Lopez", nil); err != nil {
		t.Fatalf("start physical: %v", err)
	}
	if !dec.stopped {
		t.Fatalf("expected camera decoder stopped on channel switch")
	}
	if a.Channel() != scancode.ChannelPhysical || a.State() != StateListening {
		t.Fatalf("expected physical listening, got %s/%s", a.Channel(), a.State())
	}
}

func TestRemoteDecoderStopWaitsForAck(t *testing.T) {
	d := NewRemoteDecoder()
	d.Pause()
	if d.State() != DecoderPaused {
		t.Fatalf("expected paused, got %s", d.State())
	}
	done := make(chan error, 1)
	go func() { done <- d.Stop(context.Background()) }()
	select {
	case err := <-done:
		t.Fatalf("stop returned before ack: %v", err)
	case <-time.After(10 * time.Millisecond):
	}
	d.Ack()
	if err := <-done; err != nil {
		t.Fatalf("stop: %v", err)
	}
	if d.State() != DecoderStopped {
		t.Fatalf("expected stopped, got %s", d.State())
	}
}
