package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/billy-core/internal/movement"
	"github.com/nerrad567/billy-core/internal/song"
)

// teardownTimeout bounds the motor stop and reporting at session end.
const teardownTimeout = 5 * time.Second

// PlaySong plays song name to completion, moving the fish in sync.
//
// It blocks until the last chunk has been rendered, the song fails, or
// ctx is cancelled. Whatever happens after the song starts, teardown runs
// exactly once: motors stop, "idle" is published and reporters are told.
// Only one song plays at a time; a second request gets ErrSessionActive.
func (s *Service) PlaySong(ctx context.Context, name string) error {
	sess, err := s.begin(ctx, name)
	if err != nil {
		return err
	}
	return s.run(sess)
}

// begin claims the session slot for name.
func (s *Service) begin(ctx context.Context, name string) (*Session, error) {
	if err := song.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if s.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, s.current.Song())
	}

	sess := newSession(ctx, name)
	s.current = sess
	return sess, nil
}

// release frees the session slot if sess still holds it.
func (s *Service) release(sess *Session) {
	s.mu.Lock()
	if s.current == sess {
		s.current = nil
	}
	s.mu.Unlock()
}

// run streams a claimed session.
func (s *Service) run(sess *Session) (err error) {
	name := sess.Song()
	log := s.logger
	log.Info("song requested", "song", name, "session_id", sess.ID())
	s.notifier.PublishPhase(sess)

	defer func() {
		err = errors.Join(err, s.teardown(sess))
	}()

	path, err := s.library.MetadataPath(name)
	if err != nil {
		sess.fail(err)
		return err
	}
	meta, issues := song.ReadMetadata(path)
	for _, issue := range issues {
		log.Warn("skipping malformed metadata", "song", name, "issue", issue.String())
	}
	sess.load(meta)

	if err := s.EnsureWorker(); err != nil {
		sess.fail(err)
		return err
	}
	s.songMode.Store(true)

	s.notifier.publish(StatePlayingSong, sess)

	track, err := s.library.Open(name)
	if err != nil {
		sess.fail(err)
		log.Error("cannot open song", "song", name, "error", err)
		return err
	}
	defer track.Close()

	rate := track.FrameRate()
	sess.setRate(rate)

	mopts := s.opts.Movement
	mopts.OnTailPhase = func(at time.Duration) {
		sess.enterTail(at)
		s.notifier.PublishPhase(sess)
		log.Debug("tail phase", "song", name, "at", at)
	}
	sess.engine = movement.NewEngine(meta, rate, s.actuator, mopts)

	sess.setPhase(PhaseStreaming)
	s.notifier.PublishPhase(sess)
	log.Info("streaming song",
		"song", name,
		"session_id", sess.ID(),
		"frame_rate", rate,
		"bpm", meta.BPM,
		"beat", sess.engine.Beat(),
	)

	var start time.Duration
	for !sess.stopped() {
		chunk, rerr := track.NextChunk(s.opts.ChunkFrames)
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			sess.fail(fmt.Errorf("reading %s: %w", name, rerr))
			break
		}
		if !s.enqueue(sess, item{session: sess, chunk: chunk, start: start}) {
			break
		}
		sess.chunks.Add(1)
		start += chunk.Duration(rate)
	}

	s.finish(sess)

	if err := sess.Err(); err != nil {
		return err
	}
	return sess.ctx.Err()
}

// enqueue hands it to the worker. It reports false when the session or
// the service stopped first.
func (s *Service) enqueue(sess *Session, it item) bool {
	select {
	case s.queue <- it:
		return true
	case <-sess.Done():
		return false
	case <-s.stop:
		sess.fail(ErrServiceClosed)
		return false
	}
}

// finish queues the session-end marker and waits for the worker to reach
// it, so every earlier chunk has been rendered or dropped. Once the session
// is cancelled the wait is bounded by the drain timeout.
func (s *Service) finish(sess *Session) {
	done := make(chan struct{})
	queue := s.queue
	var (
		acked     <-chan struct{}
		cancelled = sess.Done()
		expired   <-chan time.Time
	)

	for {
		select {
		case queue <- item{session: sess, done: done}:
			queue, acked = nil, done
		case <-acked:
			return
		case <-cancelled:
			cancelled = nil
			timer := time.NewTimer(s.opts.DrainTimeout)
			defer timer.Stop()
			expired = timer.C
		case <-expired:
			s.logger.Warn("playback worker did not drain in time, tearing down",
				"session_id", sess.ID(),
				"timeout", s.opts.DrainTimeout,
			)
			return
		case <-s.stop:
			return
		}
	}
}

// teardown returns the fish to rest and closes the session.
func (s *Service) teardown(sess *Session) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(sess.ctx), teardownTimeout)
	defer cancel()

	s.songMode.Store(false)

	var errs []error
	if err := s.stopMotors(ctx, sess); err != nil {
		s.logger.Error("failed to stop motors", "session_id", sess.ID(), "error", err)
		errs = append(errs, err)
	}

	s.notifier.publish(StateIdle, sess)
	sess.setPhase(PhaseIdle)
	s.notifier.PublishPhase(sess)

	report := sess.report()
	for _, r := range s.reporters {
		if err := r.RecordSession(ctx, report); err != nil {
			s.logger.Warn("failed to record session", "session_id", sess.ID(), "error", err)
		}
	}

	s.logger.Info("song finished",
		"song", report.Song,
		"session_id", report.SessionID,
		"outcome", report.Outcome,
		"played", report.Played,
	)

	s.release(sess)
	sess.Cancel()
	return errors.Join(errs...)
}

// stopMotors rests the fish through the session engine, or directly when
// the session ended before its engine was built.
func (s *Service) stopMotors(ctx context.Context, sess *Session) error {
	if sess.engine != nil {
		return sess.engine.Stop(ctx)
	}
	if err := s.actuator.StopAllMotors(ctx); err != nil {
		return fmt.Errorf("stopping motors: %w", err)
	}
	return nil
}
