//go:build !headless

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// defaultBufferMillis is the device buffer when none is configured.
const defaultBufferMillis = 100

// OtoOutput plays audio through the sound card with ebitengine/oto.
//
// The device is opened on the first Write using that block's format;
// later blocks in another format are converted. oto allows a single
// context per process, so create one OtoOutput and share it.
type OtoOutput struct {
	bufferMillis int

	mu          sync.Mutex
	ctx         *oto.Context
	player      *oto.Player
	stream      *pcmStream
	devChannels int
	devRate     int
	closed      bool
}

// NewOtoOutput creates an output with a device buffer of bufferMillis
// milliseconds. No device is touched until the first Write.
func NewOtoOutput(bufferMillis int) *OtoOutput {
	if bufferMillis <= 0 {
		bufferMillis = defaultBufferMillis
	}
	return &OtoOutput{bufferMillis: bufferMillis}
}

// Write queues pcm for playback. It blocks while more than two device
// buffers are already queued.
func (o *OtoOutput) Write(ctx context.Context, pcm []int16, channels, rate int) error {
	if channels <= 0 || rate <= 0 {
		return ErrInvalidFormat
	}
	stream, devChannels, devRate, err := o.ensureDevice(channels, rate)
	if err != nil {
		return err
	}

	samples := convert(pcm, channels, rate, devChannels, devRate)
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	limit := 2 * o.bufferMillis * devRate / 1000 * devChannels * 2
	return stream.write(ctx, buf, limit)
}

func (o *OtoOutput) ensureDevice(channels, rate int) (*pcmStream, int, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, 0, 0, ErrClosed
	}
	if o.ctx != nil {
		return o.stream, o.devChannels, o.devRate, nil
	}

	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(o.bufferMillis) * time.Millisecond,
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	<-ready

	o.ctx = octx
	o.stream = newPCMStream()
	o.player = octx.NewPlayer(o.stream)
	o.player.Play()
	o.devChannels = channels
	o.devRate = rate

	return o.stream, channels, rate, nil
}

// Close stops playback. The oto context itself lives until process exit.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	if o.stream != nil {
		o.stream.close()
	}
	if o.player != nil {
		err := o.player.Close()
		o.player = nil
		return err
	}
	return nil
}
