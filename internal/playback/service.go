package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/billy-core/internal/audio"
	"github.com/nerrad567/billy-core/internal/movement"
	"github.com/nerrad567/billy-core/internal/song"
)

// Default service options.
const (
	DefaultChunkFrames = 1024
	DefaultQueueDepth  = 16

	// DefaultDrainTimeout is how long a cancelled session waits for the
	// worker to drain before it is torn down anyway.
	DefaultDrainTimeout = 2 * time.Second
)

// maxLag is how far the worker may fall behind its schedule before it
// gives up catching up and restarts the clock.
const maxLag = 250 * time.Millisecond

// Deps holds the collaborators of a Service.
type Deps struct {
	Library   *song.Library
	Output    audio.Output
	Actuator  movement.Actuator
	Bus       StatusBus // optional
	Hub       Hub       // optional
	Reporters []Reporter
	Logger    Logger
}

// Options tunes a Service. Zero values take the package defaults.
type Options struct {
	ChunkFrames int
	QueueDepth   int
	DrainTimeout time.Duration
	Movement     movement.Options
}

func (o Options) withDefaults() Options {
	if o.ChunkFrames <= 0 {
		o.ChunkFrames = DefaultChunkFrames
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = DefaultQueueDepth
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	return o
}

// item is one entry of the playback FIFO: a chunk to render, or a
// session-end marker when done is non-nil.
type item struct {
	session *Session
	chunk   *song.Chunk
	start   time.Duration
	done    chan struct{}
}

// Service owns the playback pipeline: the chunk queue, the worker that
// renders it in real time and the single active session.
//
// Thread Safety: All exported methods are safe for concurrent use.
type Service struct {
	library   *song.Library
	output    audio.Output
	actuator  movement.Actuator
	notifier  *Notifier
	reporters []Reporter
	logger    Logger
	opts      Options

	queue chan item
	stop  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool
	closed  bool
	starts  int
	current *Session

	songMode atomic.Bool
}

// New creates a Service. The worker is started lazily by the first song.
func New(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Library == nil:
		return nil, errors.New("playback: library is required")
	case deps.Output == nil:
		return nil, errors.New("playback: audio output is required")
	case deps.Actuator == nil:
		return nil, errors.New("playback: actuator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	opts = opts.withDefaults()

	return &Service{
		library:   deps.Library,
		output:    deps.Output,
		actuator:  deps.Actuator,
		notifier:  NewNotifier(deps.Bus, deps.Hub, logger),
		reporters: deps.Reporters,
		logger:    logger,
		opts:      opts,
		queue:     make(chan item, opts.QueueDepth),
		stop:      make(chan struct{}),
	}, nil
}

// EnsureWorker starts the playback worker unless it is already running.
// Calling it any number of times leaves exactly one worker.
func (s *Service) EnsureWorker() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}
	if s.running {
		return nil
	}

	s.running = true
	s.starts++
	s.wg.Add(1)
	go s.worker()

	s.logger.Debug("playback worker started")
	return nil
}

// WorkerRunning reports whether the worker goroutine is alive.
func (s *Service) WorkerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SongMode reports whether a song session is in progress.
func (s *Service) SongMode() bool {
	return s.songMode.Load()
}

// Notifier returns the notifier that announces the playback state.
func (s *Service) Notifier() *Notifier {
	return s.notifier
}

// Current returns the active session, or nil.
func (s *Service) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Status is a point-in-time view of the service.
type Status struct {
	SongMode      bool           `json:"song_mode"`
	WorkerRunning bool           `json:"worker_running"`
	Session       *SessionStatus `json:"session,omitempty"`
}

// Status returns a snapshot of the service.
func (s *Service) Status() Status {
	st := Status{
		SongMode:      s.SongMode(),
		WorkerRunning: s.WorkerRunning(),
	}
	if sess := s.Current(); sess != nil {
		ss := sess.Status()
		st.Session = &ss
	}
	return st
}

// Close cancels the active session and stops the worker.
// It is safe to call more than once.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.current != nil {
		s.current.Cancel()
	}
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// worker renders queued chunks in FIFO order until the service closes.
func (s *Service) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case it := <-s.queue:
			if it.done != nil {
				close(it.done)
				continue
			}
			s.render(it)
		}
	}
}

// render plays one chunk and dispatches its movements, then waits until
// the chunk's scheduled end.
func (s *Service) render(it item) {
	sess := it.session
	if sess.stopped() {
		return
	}

	rate := sess.FrameRate()
	cmds := sess.engine.Plan(it.chunk, it.start)
	pcm := applyGain(it.chunk.Main, sess.Metadata().Gain)

	if sess.deadline.IsZero() {
		sess.deadline = time.Now()
	}

	if err := s.output.Write(sess.ctx, pcm, it.chunk.MainChannels, rate); err != nil {
		if sess.ctx.Err() == nil {
			s.logger.Error("audio output failed", "session_id", sess.ID(), "error", err)
			sess.fail(fmt.Errorf("%w: %w", ErrOutput, err))
		}
		return
	}
	if err := sess.engine.Dispatch(sess.ctx, cmds); err != nil {
		if sess.ctx.Err() == nil {
			s.logger.Error("movement dispatch failed", "session_id", sess.ID(), "error", err)
			sess.fail(fmt.Errorf("%w: %w", ErrActuator, err))
		}
		return
	}

	sess.elapsed.Add(int64(it.chunk.Frames))
	s.pace(sess, it.chunk.Duration(rate))
}

// pace blocks until the end of the chunk that began at sess.deadline.
// Deadlines are absolute so rounding never accumulates.
func (s *Service) pace(sess *Session, d time.Duration) {
	sess.deadline = sess.deadline.Add(d)
	wait := time.Until(sess.deadline)
	if wait <= 0 {
		if -wait > maxLag {
			s.logger.Warn("playback fell behind, resyncing", "session_id", sess.ID(), "lag", -wait)
			sess.deadline = time.Now()
		}
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-sess.ctx.Done():
	case <-s.stop:
	}
}

// applyGain scales samples by gain, clipping to the int16 range.
// The input is never modified.
func applyGain(samples []int16, gain float64) []int16 {
	out := make([]int16, len(samples))
	if gain == 1 {
		copy(out, samples)
		return out
	}
	for i, v := range samples {
		scaled := math.Round(float64(v) * gain)
		switch {
		case scaled > math.MaxInt16:
			out[i] = math.MaxInt16
		case scaled < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(scaled)
		}
	}
	return out
}
