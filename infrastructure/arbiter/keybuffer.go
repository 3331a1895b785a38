package arbiter

import (
	"strings"
	"time"
)

// KeyEnter is the key name that terminates a physical scan.
const KeyEnter = "Enter"

// BufferState is the keystroke buffer phase.
type BufferState int

const (
	BufferIdle BufferState = iota
	BufferBuffering
)

// KeyBuffer rebuilds discrete scans from a keyboard-wedge stream. It holds no
// timers: callers feed it key presses and expiry checks with explicit times.
type KeyBuffer struct {
	delay    time.Duration
	state    BufferState
	text     strings.Builder
	deadline time.Time
}

func NewKeyBuffer(delay time.Duration) *KeyBuffer {
	return &KeyBuffer{delay: delay}
}

func (b *KeyBuffer) State() BufferState { return b.state }

func (b *KeyBuffer) Text() string { return b.text.String() }

// Deadline is the instant the buffer flushes absent further input. It is
// zero while idle.
func (b *KeyBuffer) Deadline() time.Time { return b.deadline }

// Press feeds one key. Enter flushes a non-empty buffer and returns its text.
// Printable single characters are appended and push the deadline out; other
// named keys (Shift, Tab...) are ignored.
func (b *KeyBuffer) Press(key string, now time.Time) (string, bool) {
	if key == KeyEnter || key == "\n" || key == "\r" {
		return b.flush()
	}
	if len([]rune(key)) != 1 {
		return "", false
	}
	b.text.WriteString(key)
	b.state = BufferBuffering
	b.deadline = now.Add(b.delay)
	return "", false
}

// Expire flushes the buffer when now has reached the deadline.
func (b *KeyBuffer) Expire(now time.Time) (string, bool) {
	if b.state != BufferBuffering || now.Before(b.deadline) {
		return "", false
	}
	return b.flush()
}

// Reset drops any buffered text.
func (b *KeyBuffer) Reset() {
	b.text.Reset()
	b.state = BufferIdle
	b.deadline = time.Time{}
}

func (b *KeyBuffer) flush() (string, bool) {
	text := b.text.String()
	b.Reset()
	if text == "" {
		return "", false
	}
	return text, true
}
