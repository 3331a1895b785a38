package arbiter

import (
	"context"
	"sync"
)

// Decoder is the camera decode loop as seen by the arbiter. Pause keeps the
// viewfinder live without emitting; Stop returns once the loop has halted.
type Decoder interface {
	Pause()
	Resume()
	Stop(ctx context.Context) error
}

// DecoderState is reported to the remote client so it knows whether to keep
// posting decodes.
type DecoderState string

const (
	DecoderRunning DecoderState = "running"
	DecoderPaused  DecoderState = "paused"
	DecoderStopped DecoderState = "stopped"
)

// RemoteDecoder stands in for a decode loop running in the operator's
// browser. Stop blocks until the client acknowledges that its loop halted.
type RemoteDecoder struct {
	mu      sync.Mutex
	state   DecoderState
	stopped chan struct{}
	acked   bool
}

func NewRemoteDecoder() *RemoteDecoder {
	return &RemoteDecoder{state: DecoderRunning, stopped: make(chan struct{})}
}

func (d *RemoteDecoder) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DecoderRunning {
		d.state = DecoderPaused
	}
}

func (d *RemoteDecoder) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DecoderPaused {
		d.state = DecoderRunning
	}
}

func (d *RemoteDecoder) State() DecoderState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Ack records that the client's decode loop has stopped.
func (d *RemoteDecoder) Ack() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DecoderStopped
	if !d.acked {
		d.acked = true
		close(d.stopped)
	}
}

func (d *RemoteDecoder) Stop(ctx context.Context) error {
	select {
	case <-d.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
