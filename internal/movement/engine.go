package movement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nerrad567/billy-core/internal/song"
)

// Default engine options.
const (
	DefaultIdleAmplitude    = 0.3
	DefaultMouthThreshold   = 800.0
	DefaultKeyframeHold     = time.Second
	DefaultTailFlapDuration = 250 * time.Millisecond
)

// maxOffset caps converted song offsets so that the sum or difference
// of two of them cannot overflow.
const maxOffset = time.Duration(1 << 61)

// mouthFullScale is the multiple of the mouth threshold at which the
// mouth is fully open.
const mouthFullScale = 4.0

// Options tunes an Engine. Zero values take the package defaults.
type Options struct {
	IdleAmplitude    float64
	MouthThreshold   float64
	KeyframeHold     time.Duration
	TailFlapDuration time.Duration

	// OnTailPhase is called once, from Plan, when the tail condition
	// first fires. at is the song offset of the detecting chunk.
	OnTailPhase func(at time.Duration)
}

func (o Options) withDefaults() Options {
	if o.IdleAmplitude <= 0 {
		o.IdleAmplitude = DefaultIdleAmplitude
	}
	if o.MouthThreshold <= 0 {
		o.MouthThreshold = DefaultMouthThreshold
	}
	if o.KeyframeHold <= 0 {
		o.KeyframeHold = DefaultKeyframeHold
	}
	if o.TailFlapDuration <= 0 {
		o.TailFlapDuration = DefaultTailFlapDuration
	}
	return o
}

// Engine turns song metadata and audio levels into a movement timeline
// for one playback session.
//
// Plan must be called with chunks in playback order. Plan and Dispatch
// are not safe for concurrent use; Stop may be called from any goroutine.
type Engine struct {
	meta     song.Metadata
	rate     int
	actuator Actuator
	opts     Options

	beat      time.Duration
	flapEvery time.Duration
	compTail  time.Duration

	keyframes []song.HeadMove
	nextKey   int
	governed  bool // a fired keyframe with a non-rest position holds the head
	nextBeat  time.Duration

	inTail      bool
	flapped     bool
	lastFlap    time.Duration
	pendingTail []Command // flaps delayed past the chunk that detected them
}

// NewEngine creates an Engine for a song with the given metadata,
// playing at rate frames per second.
func NewEngine(meta song.Metadata, rate int, actuator Actuator, opts Options) *Engine {
	bpm := meta.BPM
	if !(bpm >= song.MinBPM && bpm <= song.MaxBPM) {
		bpm = song.DefaultBPM
	}
	beat := time.Duration(float64(time.Minute) / bpm)
	if beat <= 0 {
		beat = time.Duration(float64(time.Minute) / song.DefaultBPM)
	}

	flapEvery := beat
	if meta.HalfTempoTailFlap {
		flapEvery = 2 * beat
	}

	keyframes := append([]song.HeadMove(nil), meta.HeadMoves...)
	sort.SliceStable(keyframes, func(i, j int) bool { return keyframes[i].At < keyframes[j].At })

	return &Engine{
		meta:      meta,
		rate:      rate,
		actuator:  actuator,
		opts:      opts.withDefaults(),
		beat:      beat,
		flapEvery: flapEvery,
		compTail:  seconds(meta.CompensateTail),
		keyframes: keyframes,
	}
}

// Beat returns the beat period derived from the song tempo.
func (e *Engine) Beat() time.Duration {
	return e.beat
}

// Plan returns the commands belonging to chunk, which starts start into
// the song. Commands are ordered by At and never fall before start.
func (e *Engine) Plan(chunk *song.Chunk, start time.Duration) []Command {
	if chunk == nil || chunk.Frames == 0 {
		return nil
	}
	end := start + chunk.Duration(e.rate)

	cmds := e.planHead(start, end)
	if cmd, ok := e.planMouth(chunk, start, end); ok {
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, e.planTail(chunk, start, end)...)

	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].At < cmds[j].At })
	return cmds
}

// planHead merges explicit keyframes and tempo pulses falling in [start, end).
func (e *Engine) planHead(start, end time.Duration) []Command {
	var cmds []Command
	for {
		keyAt, hasKey := e.nextKeyframeAt()
		keyDue := hasKey && keyAt < end
		beatDue := e.nextBeat < end

		switch {
		case keyDue && (!beatDue || keyAt <= e.nextBeat):
			cmds = append(cmds, e.fireKeyframe(start))
		case beatDue:
			at := e.nextBeat
			e.nextBeat += e.beat
			if e.governed || at < start {
				continue
			}
			cmds = append(cmds, Command{
				At:       at,
				Motor:    MotorHead,
				Position: e.opts.IdleAmplitude,
				Duration: e.beat / 2,
			})
		default:
			return cmds
		}
	}
}

func (e *Engine) nextKeyframeAt() (time.Duration, bool) {
	if e.nextKey >= len(e.keyframes) {
		return 0, false
	}
	return seconds(e.keyframes[e.nextKey].At), true
}

func (e *Engine) fireKeyframe(start time.Duration) Command {
	kf := e.keyframes[e.nextKey]
	e.nextKey++

	at := seconds(kf.At)
	hold := e.opts.KeyframeHold
	if e.nextKey < len(e.keyframes) {
		hold = seconds(e.keyframes[e.nextKey].At) - at
	}
	if at < start {
		at = start
	}
	e.governed = kf.Position != 0

	return Command{At: at, Motor: MotorHead, Position: kf.Position, Duration: hold}
}

// planMouth opens the mouth in proportion to the vocal level of the chunk.
func (e *Engine) planMouth(chunk *song.Chunk, start, end time.Duration) (Command, bool) {
	level := VocalBandLevel(chunk.Vocals, e.rate)
	if level <= e.opts.MouthThreshold {
		return Command{}, false
	}
	pos := level / (e.opts.MouthThreshold * mouthFullScale)
	if pos > 1 {
		pos = 1
	}
	return Command{At: start, Motor: MotorMouth, Position: pos, Duration: end - start}, true
}

// planTail detects the end-of-song tail on the drum stem and schedules flaps.
func (e *Engine) planTail(chunk *song.Chunk, start, end time.Duration) []Command {
	var cmds []Command

	// Flaps delayed by negative compensation from earlier chunks.
	kept := e.pendingTail[:0]
	for _, c := range e.pendingTail {
		if c.At < end {
			cmds = append(cmds, c)
		} else {
			kept = append(kept, c)
		}
	}
	e.pendingTail = kept

	level := RMS(chunk.Drums)
	if level == 0 || level < e.meta.TailThreshold {
		return cmds
	}

	if !e.inTail {
		e.inTail = true
		if e.opts.OnTailPhase != nil {
			e.opts.OnTailPhase(start)
		}
	}

	detected := start + peakOffset(chunk.Drums, e.rate)
	if e.flapped && detected-e.lastFlap < e.flapEvery {
		return cmds
	}
	e.flapped = true
	e.lastFlap = detected

	at := detected - e.compTail
	if at < start {
		at = start
	}
	flap := Command{At: at, Motor: MotorTail, Position: 1, Duration: e.opts.TailFlapDuration}
	if at >= end {
		e.pendingTail = append(e.pendingTail, flap)
		return cmds
	}
	return append(cmds, flap)
}

// Dispatch sends cmds to the actuator in order. It stops at the first
// failure.
func (e *Engine) Dispatch(ctx context.Context, cmds []Command) error {
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.actuator.DispatchMovement(ctx, cmd); err != nil {
			return fmt.Errorf("dispatching %s: %w", cmd, err)
		}
	}
	return nil
}

// Stop returns every motor to rest.
func (e *Engine) Stop(ctx context.Context) error {
	if e.actuator == nil {
		return errors.New("movement: no actuator")
	}
	if err := e.actuator.StopAllMotors(ctx); err != nil {
		return fmt.Errorf("stopping motors: %w", err)
	}
	return nil
}

// peakOffset returns the offset of the loudest sample in a mono block.
func peakOffset(samples []int16, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	peak, idx := 0, 0
	for i, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak, idx = v, i
		}
	}
	return time.Duration(idx) * time.Second / time.Duration(rate)
}

// seconds converts s to a Duration, saturating at maxOffset.
func seconds(s float64) time.Duration {
	d := s * float64(time.Second)
	switch {
	case math.IsNaN(d):
		return 0
	case d >= float64(maxOffset):
		return maxOffset
	case d <= -float64(maxOffset):
		return -maxOffset
	}
	return time.Duration(d)
}
