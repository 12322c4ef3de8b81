package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/billy-core/internal/infrastructure/config"
)

// Output renders PCM to a sound device.
//
// Write queues one block of interleaved 16-bit samples and returns once
// the block is accepted; it does not wait for the block to be heard.
// Real-time pacing is the caller's job.
type Output interface {
	Write(ctx context.Context, pcm []int16, channels, rate int) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendOto  = "oto"
	BackendNull = "null"
)

// Open creates the output selected by cfg.Backend.
func Open(cfg config.AudioConfig) (Output, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendOto, "":
		return NewOtoOutput(cfg.BufferMillis), nil
	case BackendNull:
		return NewNullOutput(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
