package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/nerrad567/billy-core/internal/audio"
	"github.com/nerrad567/billy-core/internal/movement"
	"github.com/nerrad567/billy-core/internal/song"
)

const (
	testRate        = 8000
	testChunkFrames = 400 // 50ms
)

// writeWAV writes a mono 16-bit PCM WAV file.
func writeWAV(t *testing.T, path string, samples []int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, testRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: testRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoding %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalising %s: %v", path, err)
	}
}

// markedTrack returns chunks chunks of main-track audio where every
// sample of chunk i equals i+1, so rendered blocks identify their chunk.
func markedTrack(chunks int) []int {
	out := make([]int, 0, chunks*testChunkFrames)
	for i := 0; i < chunks; i++ {
		for j := 0; j < testChunkFrames; j++ {
			out = append(out, i+1)
		}
	}
	return out
}

func constant(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// songFixture creates a song in a fresh library and returns the library.
type songFixture struct {
	main     []int
	drums    []int
	metadata string
}

func newLibrary(t *testing.T, songs map[string]songFixture) *song.Library {
	t.Helper()
	dir := t.TempDir()
	for name, fx := range songs {
		writeWAV(t, filepath.Join(dir, name, song.MainFile), fx.main)
		if fx.drums != nil {
			writeWAV(t, filepath.Join(dir, name, song.DrumsFile), fx.drums)
		}
		if fx.metadata != "" {
			path := filepath.Join(dir, name, song.MetadataFile)
			if err := os.WriteFile(path, []byte(fx.metadata), 0o644); err != nil {
				t.Fatalf("writing metadata: %v", err)
			}
		}
	}
	return song.NewLibrary(dir)
}

// recordingOutput keeps a copy of every block it is given.
type recordingOutput struct {
	mu       sync.Mutex
	blocks   [][]int16
	failOn   int // fail the nth write (1-based) when > 0
	failErr  error
	closed   bool
	channels []int
}

func (o *recordingOutput) Write(_ context.Context, pcm []int16, channels, _ int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failOn > 0 && len(o.blocks)+1 == o.failOn {
		o.blocks = append(o.blocks, nil)
		return o.failErr
	}
	o.blocks = append(o.blocks, append([]int16(nil), pcm...))
	o.channels = append(o.channels, channels)
	return nil
}

func (o *recordingOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *recordingOutput) writes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.blocks)
}

// markers returns the first sample of every successfully written block.
func (o *recordingOutput) markers() []int16 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []int16
	for _, b := range o.blocks {
		if len(b) > 0 {
			out = append(out, b[0])
		}
	}
	return out
}

// blockingOutput holds every write until release is closed or the
// write's context ends.
type blockingOutput struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingOutput() *blockingOutput {
	return &blockingOutput{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (o *blockingOutput) Write(ctx context.Context, _ []int16, _, _ int) error {
	o.once.Do(func() { close(o.entered) })
	select {
	case <-o.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *blockingOutput) Close() error { return nil }

// stuckOutput holds every write until release is closed, ignoring the
// write's context like a wedged device.
type stuckOutput struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStuckOutput() *stuckOutput {
	return &stuckOutput{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (o *stuckOutput) Write(context.Context, []int16, int, int) error {
	o.once.Do(func() { close(o.entered) })
	<-o.release
	return nil
}

func (o *stuckOutput) Close() error { return nil }

// mockActuator records movements and stops.
type mockActuator struct {
	mu          sync.Mutex
	moves       []movement.Command
	stops       int
	dispatchErr error
	stopErr     error
}

func (m *mockActuator) DispatchMovement(_ context.Context, cmd movement.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dispatchErr != nil {
		return m.dispatchErr
	}
	m.moves = append(m.moves, cmd)
	return nil
}

func (m *mockActuator) StopAllMotors(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return m.stopErr
}

func (m *mockActuator) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *mockActuator) motorMoves(motor movement.Motor) []movement.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []movement.Command
	for _, c := range m.moves {
		if c.Motor == motor {
			out = append(out, c)
		}
	}
	return out
}

// mockBus records published states.
type mockBus struct {
	mu       sync.Mutex
	topics   []string
	payloads []string
	err      error
}

func (b *mockBus) PublishState(topic, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return b.err
}

func (b *mockBus) states() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.payloads...)
}

// mockHub records broadcasts.
type mockHub struct {
	mu     sync.Mutex
	events []hubEvent
}

type hubEvent struct {
	channel string
	payload any
}

func (h *mockHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{channel, payload})
}

func (h *mockHub) phases() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, e := range h.events {
		if ev, ok := e.payload.(PhaseEvent); ok {
			out = append(out, ev.Phase)
		}
	}
	return out
}

// reportRecorder collects session reports.
type reportRecorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *reportRecorder) RecordSession(_ context.Context, rep Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}

func (r *reportRecorder) all() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.reports...)
}

// harness bundles a Service with its mocks.
type harness struct {
	svc      *Service
	output   *recordingOutput
	actuator *mockActuator
	bus      *mockBus
	hub      *mockHub
	reports  *reportRecorder
}

func newHarness(t *testing.T, lib *song.Library) *harness {
	t.Helper()
	return newHarnessWithOutput(t, lib, &recordingOutput{})
}

func newHarnessWithOutput(t *testing.T, lib *song.Library, out audio.Output) *harness {
	t.Helper()
	return newHarnessWithOptions(t, lib, out, Options{ChunkFrames: testChunkFrames, QueueDepth: 4})
}

func newHarnessWithOptions(t *testing.T, lib *song.Library, out audio.Output, opts Options) *harness {
	t.Helper()
	h := &harness{
		actuator: &mockActuator{},
		bus:      &mockBus{},
		hub:      &mockHub{},
		reports:  &reportRecorder{},
	}
	svc, err := New(Deps{
		Library:   lib,
		Output:    out,
		Actuator:  h.actuator,
		Bus:       h.bus,
		Hub:       h.hub,
		Reporters: []Reporter{h.reports},
	}, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	h.output, _ = out.(*recordingOutput)
	h.svc = svc
	return h
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
