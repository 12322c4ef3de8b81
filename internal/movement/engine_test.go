package movement

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/billy-core/internal/song"
)

const testRate = 1000 // 1 frame per millisecond

// mockActuator records every call.
type mockActuator struct {
	mu          sync.Mutex
	dispatched  []Command
	stops       int
	dispatchErr error
	stopErr     error
}

func (m *mockActuator) DispatchMovement(_ context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dispatchErr != nil {
		return m.dispatchErr
	}
	m.dispatched = append(m.dispatched, cmd)
	return nil
}

func (m *mockActuator) StopAllMotors(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return m.stopErr
}

// silentChunk returns a chunk of frames frames of silence on every layer.
func silentChunk(frames int) *song.Chunk {
	return &song.Chunk{
		Main:         make([]int16, frames),
		MainChannels: 1,
		Vocals:       make([]int16, frames),
		Drums:        make([]int16, frames),
		Frames:       frames,
	}
}

// planSong plans n consecutive 100ms chunks produced by mk and returns
// every command of the given motor.
func planSong(e *Engine, n int, mk func(i int) *song.Chunk, motor Motor) []Command {
	var out []Command
	var start time.Duration
	for i := 0; i < n; i++ {
		c := mk(i)
		for _, cmd := range e.Plan(c, start) {
			if cmd.Motor == motor {
				out = append(out, cmd)
			}
		}
		start += c.Duration(testRate)
	}
	return out
}

func silent(int) *song.Chunk { return silentChunk(100) }

func metaWith(f func(*song.Metadata)) song.Metadata {
	m := song.DefaultMetadata()
	f(&m)
	return m
}

func TestPlan_IdleTempoPulses(t *testing.T) {
	e := NewEngine(song.DefaultMetadata(), testRate, &mockActuator{}, Options{})

	head := planSong(e, 10, silent, MotorHead)

	if len(head) != 2 {
		t.Fatalf("got %d head commands, want 2: %v", len(head), head)
	}
	for i, want := range []time.Duration{0, 500 * time.Millisecond} {
		if head[i].At != want {
			t.Errorf("pulse %d at %v, want %v", i, head[i].At, want)
		}
		if head[i].Position != DefaultIdleAmplitude {
			t.Errorf("pulse %d position = %v, want %v", i, head[i].Position, DefaultIdleAmplitude)
		}
		if head[i].Duration != 250*time.Millisecond {
			t.Errorf("pulse %d duration = %v, want half a beat", i, head[i].Duration)
		}
	}
}

func TestPlan_IdleFollowsBPM(t *testing.T) {
	meta := metaWith(func(m *song.Metadata) { m.BPM = 240 })
	e := NewEngine(meta, testRate, &mockActuator{}, Options{IdleAmplitude: 0.2})

	head := planSong(e, 10, silent, MotorHead)

	if len(head) != 4 {
		t.Fatalf("got %d pulses at 240 bpm over 1s, want 4", len(head))
	}
	if head[1].At != 250*time.Millisecond || head[1].Position != 0.2 {
		t.Errorf("second pulse = %v", head[1])
	}
}

func TestPlan_KeyframesFireOnceInOrder(t *testing.T) {
	meta := metaWith(func(m *song.Metadata) {
		m.HeadMoves = []song.HeadMove{{At: 0.25, Position: 1}, {At: 0.05, Position: 0.5}}
	})
	e := NewEngine(meta, testRate, &mockActuator{}, Options{})

	head := planSong(e, 20, silent, MotorHead)

	want := []Command{
		{At: 0, Motor: MotorHead, Position: DefaultIdleAmplitude, Duration: 250 * time.Millisecond},
		{At: 50 * time.Millisecond, Motor: MotorHead, Position: 0.5, Duration: 200 * time.Millisecond},
		{At: 250 * time.Millisecond, Motor: MotorHead, Position: 1, Duration: DefaultKeyframeHold},
	}
	if len(head) != len(want) {
		t.Fatalf("head commands = %v, want %v", head, want)
	}
	for i := range want {
		if head[i] != want[i] {
			t.Errorf("command %d = %v, want %v", i, head[i], want[i])
		}
	}

	// The source metadata keeps its file order.
	if meta.HeadMoves[0].At != 0.25 {
		t.Error("NewEngine reordered the caller's head moves")
	}
}

func TestPlan_RestKeyframeResumesTempo(t *testing.T) {
	meta := metaWith(func(m *song.Metadata) {
		m.HeadMoves = []song.HeadMove{{At: 0.1, Position: 1}, {At: 0.3, Position: 0}}
	})
	e := NewEngine(meta, testRate, &mockActuator{}, Options{})

	head := planSong(e, 10, silent, MotorHead)

	wantAt := []time.Duration{0, 100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}
	if len(head) != len(wantAt) {
		t.Fatalf("head commands = %v", head)
	}
	for i, at := range wantAt {
		if head[i].At != at {
			t.Errorf("command %d at %v, want %v", i, head[i].At, at)
		}
	}
	if head[3].Position != DefaultIdleAmplitude {
		t.Errorf("pulse after rest keyframe = %v", head[3])
	}
}

func TestPlan_KeyframeHold(t *testing.T) {
	meta := metaWith(func(m *song.Metadata) { m.HeadMoves = []song.HeadMove{{At: 0, Position: 0.7}} })
	e := NewEngine(meta, testRate, &mockActuator{}, Options{KeyframeHold: 3 * time.Second})

	head := planSong(e, 1, silent, MotorHead)
	if len(head) != 1 || head[0].Duration != 3*time.Second {
		t.Errorf("head = %v, want one 3s keyframe", head)
	}
}

func drumChunk(level int16) func(int) *song.Chunk {
	return func(int) *song.Chunk {
		c := silentChunk(100)
		for i := range c.Drums {
			c.Drums[i] = level
		}
		return c
	}
}

func TestPlan_TailPhaseCadence(t *testing.T) {
	tests := []struct {
		name      string
		halfTempo bool
		wantAt    []time.Duration
	}{
		{"full tempo", false, []time.Duration{0, 500 * time.Millisecond, time.Second}},
		{"half tempo", true, []time.Duration{0, time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := metaWith(func(m *song.Metadata) {
				m.TailThreshold = 1500
				m.HalfTempoTailFlap = tt.halfTempo
			})
			var entered []time.Duration
			e := NewEngine(meta, testRate, &mockActuator{}, Options{
				OnTailPhase: func(at time.Duration) { entered = append(entered, at) },
			})

			tail := planSong(e, 11, drumChunk(2000), MotorTail)

			if len(tail) != len(tt.wantAt) {
				t.Fatalf("tail commands = %v, want at %v", tail, tt.wantAt)
			}
			for i, at := range tt.wantAt {
				if tail[i].At != at {
					t.Errorf("flap %d at %v, want %v", i, tail[i].At, at)
				}
				if tail[i].Duration != DefaultTailFlapDuration {
					t.Errorf("flap %d duration = %v", i, tail[i].Duration)
				}
			}
			if len(entered) != 1 || entered[0] != 0 {
				t.Errorf("OnTailPhase calls = %v, want one at 0", entered)
			}
		})
	}
}

func TestPlan_NoTailBelowThreshold(t *testing.T) {
	meta := metaWith(func(m *song.Metadata) { m.TailThreshold = 1500 })
	e := NewEngine(meta, testRate, &mockActuator{}, Options{
		OnTailPhase: func(time.Duration) { t.Error("OnTailPhase called below threshold") },
	})

	if tail := planSong(e, 10, drumChunk(1000), MotorTail); len(tail) != 0 {
		t.Errorf("tail commands = %v, want none", tail)
	}
}

// spikeAt returns a chunk source whose first chunk carries a loud drum hit
// at frame idx and is otherwise silent.
func spikeAt(idx int) func(int) *song.Chunk {
	return func(i int) *song.Chunk {
		c := silentChunk(100)
		if i == 0 {
			c.Drums[idx] = 32000
		}
		return c
	}
}

func TestPlan_TailCompensation(t *testing.T) {
	tests := []struct {
		name       string
		compensate float64
		wantAt     time.Duration
	}{
		{"none", 0, 80 * time.Millisecond},
		{"earlier", 0.05, 30 * time.Millisecond},
		{"clamped to chunk start", 0.1, 0},
		{"delayed across chunks", -0.15, 230 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := metaWith(func(m *song.Metadata) {
				m.TailThreshold = 1000
				m.CompensateTail = tt.compensate
			})
			e := NewEngine(meta, testRate, &mockActuator{}, Options{})

			tail := planSong(e, 5, spikeAt(80), MotorTail)

			if len(tail) != 1 {
				t.Fatalf("tail commands = %v, want one flap", tail)
			}
			if tail[0].At != tt.wantAt {
				t.Errorf("flap at %v, want %v", tail[0].At, tt.wantAt)
			}
		})
	}
}

func sine(freq, amplitude float64, rate, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestPlan_MouthFollowsVocals(t *testing.T) {
	const rate = 8000
	tests := []struct {
		name    string
		vocals  []int16
		wantCmd bool
		wantPos float64
	}{
		{"silence", make([]int16, 1024), false, 0},
		{"speech band loud", sine(1000, 8000, rate, 1024), true, 1},
		{"speech band moderate", sine(1000, 2000, rate, 1024), true, 2000 / math.Sqrt2 / (DefaultMouthThreshold * mouthFullScale)},
		{"bass only", sine(100, 8000, rate, 1024), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(song.DefaultMetadata(), rate, &mockActuator{}, Options{})
			c := silentChunk(1024)
			c.Vocals = tt.vocals

			var mouth []Command
			for _, cmd := range e.Plan(c, time.Second) {
				if cmd.Motor == MotorMouth {
					mouth = append(mouth, cmd)
				}
			}

			if !tt.wantCmd {
				if len(mouth) != 0 {
					t.Errorf("mouth commands = %v, want none", mouth)
				}
				return
			}
			if len(mouth) != 1 {
				t.Fatalf("mouth commands = %v, want one", mouth)
			}
			if mouth[0].At != time.Second || mouth[0].Duration != c.Duration(rate) {
				t.Errorf("mouth timing = %v", mouth[0])
			}
			if math.Abs(mouth[0].Position-tt.wantPos) > 0.05 {
				t.Errorf("mouth position = %v, want ~%v", mouth[0].Position, tt.wantPos)
			}
		})
	}
}

func TestPlan_CommandsNeverPrecedeChunk(t *testing.T) {
	meta := metaWith(func(m *song.Metadata) {
		m.TailThreshold = 100
		m.CompensateTail = 0.5
		m.HeadMoves = []song.HeadMove{{At: 0, Position: 1}, {At: 0.01, Position: 0}}
	})
	e := NewEngine(meta, testRate, &mockActuator{}, Options{})

	var start time.Duration
	for i := 0; i < 20; i++ {
		c := drumChunk(500)(i)
		cmds := e.Plan(c, start)
		for j, cmd := range cmds {
			if cmd.At < start {
				t.Errorf("chunk %d: %v precedes chunk start %v", i, cmd, start)
			}
			if j > 0 && cmd.At < cmds[j-1].At {
				t.Errorf("chunk %d: commands out of order: %v", i, cmds)
			}
		}
		start += c.Duration(testRate)
	}
}

func TestPlan_EmptyChunk(t *testing.T) {
	e := NewEngine(song.DefaultMetadata(), testRate, &mockActuator{}, Options{})
	if cmds := e.Plan(&song.Chunk{}, 0); cmds != nil {
		t.Errorf("Plan(empty) = %v, want nil", cmds)
	}
	if cmds := e.Plan(nil, 0); cmds != nil {
		t.Errorf("Plan(nil) = %v, want nil", cmds)
	}
}

func TestPlan_ExtremeTimingTerminates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*song.Metadata)
		chunks func(int) *song.Chunk
		motor  Motor
		want   int
	}{
		{"bpm too fast", func(m *song.Metadata) { m.BPM = 1e11 }, silent, MotorHead, 2},
		{"bpm too slow", func(m *song.Metadata) { m.BPM = 1e-10 }, silent, MotorHead, 2},
		{"bpm not a number", func(m *song.Metadata) { m.BPM = math.NaN() }, silent, MotorHead, 2},
		{"keyframe far in the future", func(m *song.Metadata) {
			m.HeadMoves = []song.HeadMove{{At: 1e300, Position: 1}}
		}, silent, MotorHead, 2},
		{"keyframe far in the past", func(m *song.Metadata) {
			m.HeadMoves = []song.HeadMove{{At: -1e300, Position: 0}}
		}, silent, MotorHead, 3},
		{"tail compensation far in the past", func(m *song.Metadata) {
			m.CompensateTail = -1e300
		}, drumChunk(2000), MotorTail, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(metaWith(tt.mutate), testRate, &mockActuator{}, Options{})
			if e.Beat() != 500*time.Millisecond {
				t.Errorf("Beat() = %v, want 500ms", e.Beat())
			}

			done := make(chan []Command, 1)
			go func() { done <- planSong(e, 10, tt.chunks, tt.motor) }()

			select {
			case cmds := <-done:
				if len(cmds) != tt.want {
					t.Errorf("got %d commands, want %d: %v", len(cmds), tt.want, cmds)
				}
				for _, cmd := range cmds {
					if cmd.At < 0 || cmd.At >= time.Second {
						t.Errorf("%v outside the planned second", cmd)
					}
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Plan did not return")
			}
		})
	}
}

func TestDispatch(t *testing.T) {
	act := &mockActuator{}
	e := NewEngine(song.DefaultMetadata(), testRate, act, Options{})
	cmds := []Command{
		{At: 0, Motor: MotorHead, Position: 0.3},
		{At: 10 * time.Millisecond, Motor: MotorTail, Position: 1},
	}

	if err := e.Dispatch(context.Background(), cmds); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(act.dispatched) != 2 || act.dispatched[0] != cmds[0] || act.dispatched[1] != cmds[1] {
		t.Errorf("dispatched = %v, want %v", act.dispatched, cmds)
	}
}

func TestDispatch_Errors(t *testing.T) {
	boom := errors.New("motor jammed")
	act := &mockActuator{dispatchErr: boom}
	e := NewEngine(song.DefaultMetadata(), testRate, act, Options{})

	err := e.Dispatch(context.Background(), []Command{{Motor: MotorHead}})
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	act.dispatchErr = nil
	if err := e.Dispatch(ctx, []Command{{Motor: MotorHead}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Dispatch(cancelled) error = %v", err)
	}
	if len(act.dispatched) != 0 {
		t.Errorf("dispatched after cancel: %v", act.dispatched)
	}
}

func TestStop(t *testing.T) {
	act := &mockActuator{}
	e := NewEngine(song.DefaultMetadata(), testRate, act, Options{})

	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if act.stops != 1 {
		t.Errorf("StopAllMotors calls = %d, want 1", act.stops)
	}

	act.stopErr = errors.New("bus down")
	if err := e.Stop(context.Background()); !errors.Is(err, act.stopErr) {
		t.Errorf("Stop() error = %v", err)
	}
}
