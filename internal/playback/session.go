package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/billy-core/internal/movement"
	"github.com/nerrad567/billy-core/internal/song"
)

// Phase is where a session is in its lifecycle.
type Phase int32

// Session phases, in order. A session always ends in PhaseIdle.
const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseStreaming
	PhaseTail
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseStreaming:
		return "streaming"
	case PhaseTail:
		return "tail"
	default:
		return "unknown"
	}
}

// Outcomes recorded in a Report.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Session is one play of one song.
//
// It is created when a play request is accepted and torn down when the
// request returns. Status methods are safe to call from any goroutine.
type Session struct {
	id        string
	song      string
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	meta    song.Metadata
	rate    int
	err     error
	endedAt time.Time

	phase   atomic.Int32
	elapsed atomic.Int64 // frames rendered
	chunks  atomic.Int64 // chunks enqueued
	failed  atomic.Bool
	tail    atomic.Bool

	// Owned by the worker once chunks are queued.
	engine   *movement.Engine
	deadline time.Time
}

func newSession(parent context.Context, name string) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:        uuid.NewString(),
		song:      name,
		startedAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
		meta:      song.DefaultMetadata(),
	}
	s.phase.Store(int32(PhaseLoading))
	return s
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Song returns the song name.
func (s *Session) Song() string { return s.song }

// StartedAt returns when the session was accepted.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Session) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

// Metadata returns the song metadata once loaded.
func (s *Session) Metadata() song.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// FrameRate returns the track frame rate, or 0 before the track is open.
func (s *Session) FrameRate() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

// ElapsedFrames returns how many frames have been rendered.
func (s *Session) ElapsedFrames() int64 {
	return s.elapsed.Load()
}

// Elapsed returns how much of the song has been rendered.
func (s *Session) Elapsed() time.Duration {
	rate := s.FrameRate()
	if rate == 0 {
		return 0
	}
	return time.Duration(s.elapsed.Load()) * time.Second / time.Duration(rate)
}

// Chunks returns how many chunks have been queued for playback.
func (s *Session) Chunks() int64 {
	return s.chunks.Load()
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Cancel asks the session to stop. The chunk being rendered finishes;
// queued chunks are dropped.
func (s *Session) Cancel() {
	s.cancel()
}

// Done is closed when the session is cancelled or torn down.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// fail records err as the session error. Only the first error is kept.
func (s *Session) fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.failed.Store(true)
}

// stopped reports whether the remaining chunks should be skipped.
func (s *Session) stopped() bool {
	return s.failed.Load() || s.ctx.Err() != nil
}

func (s *Session) load(meta song.Metadata) {
	s.mu.Lock()
	s.meta = meta
	s.mu.Unlock()
}

func (s *Session) setRate(rate int) {
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

func (s *Session) enterTail(time.Duration) {
	s.tail.Store(true)
	s.setPhase(PhaseTail)
}

// SessionStatus is a point-in-time view of a session.
type SessionStatus struct {
	ID             string    `json:"id"`
	Song           string    `json:"song"`
	Phase          string    `json:"phase"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	BPM            float64   `json:"bpm"`
	StartedAt      time.Time `json:"started_at"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() SessionStatus {
	return SessionStatus{
		ID:             s.id,
		Song:           s.song,
		Phase:          s.Phase().String(),
		ElapsedSeconds: s.Elapsed().Seconds(),
		BPM:            s.Metadata().BPM,
		StartedAt:      s.startedAt,
	}
}

// Report summarises a finished session.
type Report struct {
	SessionID   string        `json:"session_id"`
	Song        string        `json:"song"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Played      time.Duration `json:"played_ns"`
	Frames      int64         `json:"frames"`
	Chunks      int64         `json:"chunks"`
	FrameRate   int           `json:"frame_rate"`
	ReachedTail bool          `json:"reached_tail"`
	Outcome     string        `json:"outcome"`
	Error       string        `json:"error,omitempty"`
}

func (s *Session) report() Report {
	s.mu.Lock()
	if s.endedAt.IsZero() {
		s.endedAt = time.Now().UTC()
	}
	ended, err, rate := s.endedAt, s.err, s.rate
	s.mu.Unlock()

	r := Report{
		SessionID:   s.id,
		Song:        s.song,
		StartedAt:   s.startedAt,
		EndedAt:     ended,
		Played:      s.Elapsed(),
		Frames:      s.elapsed.Load(),
		Chunks:      s.chunks.Load(),
		FrameRate:   rate,
		ReachedTail: s.tail.Load(),
		Outcome:     OutcomeCompleted,
	}
	switch {
	case err != nil:
		r.Outcome = OutcomeFailed
		r.Error = err.Error()
	case s.ctx.Err() != nil:
		r.Outcome = OutcomeCancelled
	}
	return r
}

// Reporter receives the report of every finished session.
type Reporter interface {
	RecordSession(ctx context.Context, r Report) error
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(ctx context.Context, r Report) error

// RecordSession calls f(ctx, r).
func (f ReporterFunc) RecordSession(ctx context.Context, r Report) error {
	return f(ctx, r)
}
