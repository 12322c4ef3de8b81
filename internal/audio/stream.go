package audio

import (
	"context"
	"sync"
	"time"
)

// drainPoll is how often a blocked writer re-checks the queue.
const drainPoll = 5 * time.Millisecond

// pcmStream is the io.Reader handed to the device player. Writers append
// encoded PCM; the device reads it back, getting silence on underrun so
// the device never stalls.
type pcmStream struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

func newPCMStream() *pcmStream {
	return &pcmStream{}
}

// Read fills p from the queue and pads the rest with silence.
func (s *pcmStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	s.mu.Unlock()

	clear(p[n:])
	return len(p), nil
}

// write appends b once fewer than limit bytes are queued.
func (s *pcmStream) write(ctx context.Context, b []byte, limit int) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if limit <= 0 || len(s.buf) < limit {
			s.buf = append(s.buf, b...)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPoll):
		}
	}
}

func (s *pcmStream) close() {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.mu.Unlock()
}
