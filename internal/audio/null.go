package audio

import (
	"context"
	"sync"
)

// NullOutput discards audio. It keeps playback timing intact on hosts
// without a sound card.
type NullOutput struct {
	mu     sync.Mutex
	frames int64
	closed bool
}

// NewNullOutput creates a NullOutput.
func NewNullOutput() *NullOutput {
	return &NullOutput{}
}

// Write accepts and drops pcm.
func (o *NullOutput) Write(ctx context.Context, pcm []int16, channels, rate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if channels <= 0 || rate <= 0 {
		return ErrInvalidFormat
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.frames += int64(len(pcm) / channels)
	return nil
}

// Frames returns how many frames have been written.
func (o *NullOutput) Frames() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames
}

// Close marks the output closed.
func (o *NullOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}
