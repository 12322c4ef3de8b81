package song

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag; float and compressed WAVs are rejected.
const wavFormatPCM = 1

// Chunk is one unit of synchronised audio across the three layers.
//
// Main is interleaved with MainChannels channels. Vocals and Drums are
// down-mixed to mono. All three always hold exactly Frames frames; a
// layer that ended early is padded with silence.
type Chunk struct {
	Main         []int16
	MainChannels int
	Vocals       []int16
	Drums        []int16
	Frames       int
}

// Duration returns how long the chunk plays at rate frames per second.
func (c *Chunk) Duration(rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(c.Frames) * time.Second / time.Duration(rate)
}

// TrackReader yields synchronised chunks from a song's three layers.
//
// Not safe for concurrent use; one orchestrator owns a reader.
type TrackReader struct {
	name   string
	rate   int
	main   *stem
	vocals *stem // nil when the song has no vocal stem
	drums  *stem // nil when the song has no drum stem
	closed bool
}

// Open opens the three layers of song name.
//
// The main track is required. A missing stem reads as silence. Every
// stem must share the main track's frame rate. On any error, files
// opened so far are closed before returning.
func (l *Library) Open(name string) (*TrackReader, error) {
	mainPath, err := l.Path(name, MainFile)
	if err != nil {
		return nil, err
	}

	r := &TrackReader{name: name}
	if err := r.open(mainPath, filepath.Dir(mainPath)); err != nil {
		_ = r.Close() //nolint:errcheck // Best effort cleanup on error path
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSongNotFound, name)
		}
		return nil, err
	}
	return r, nil
}

// open opens the main track and whichever stems exist in dir.
func (r *TrackReader) open(mainPath, dir string) error {
	var err error
	r.main, err = openStem(mainPath)
	if err != nil {
		return fmt.Errorf("opening main track: %w", err)
	}
	r.rate = r.main.rate

	for _, s := range []struct {
		file string
		dst  **stem
	}{
		{VocalsFile, &r.vocals},
		{DrumsFile, &r.drums},
	} {
		st, err := openStem(filepath.Join(dir, s.file))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("opening %s: %w", s.file, err)
		}
		*s.dst = st
		if st.rate != r.rate {
			return fmt.Errorf("%w: %s is %d Hz, main track is %d Hz", ErrFormatMismatch, s.file, st.rate, r.rate)
		}
	}

	return nil
}

// Name returns the song name.
func (r *TrackReader) Name() string {
	return r.name
}

// FrameRate returns the frames per second of the song.
func (r *TrackReader) FrameRate() int {
	return r.rate
}

// MainChannels returns the channel count of the main track.
func (r *TrackReader) MainChannels() int {
	return r.main.channels
}

// NextChunk reads up to frames frames from each layer.
//
// Each layer is read independently. End of stream is decided by the main
// track alone: when it yields no frames NextChunk returns io.EOF, even if
// a stem still has audio left.
func (r *TrackReader) NextChunk(frames int) (*Chunk, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	if frames <= 0 {
		return nil, fmt.Errorf("song: chunk size must be positive, got %d", frames)
	}

	main, mainFrames, err := r.main.read(frames)
	if err != nil {
		return nil, fmt.Errorf("reading main track: %w", err)
	}
	vocals, err := r.readMono(r.vocals, frames)
	if err != nil {
		return nil, fmt.Errorf("reading vocals: %w", err)
	}
	drums, err := r.readMono(r.drums, frames)
	if err != nil {
		return nil, fmt.Errorf("reading drums: %w", err)
	}

	if mainFrames == 0 {
		return nil, io.EOF
	}

	return &Chunk{
		Main:         main,
		MainChannels: r.main.channels,
		Vocals:       fitFrames(vocals, mainFrames),
		Drums:        fitFrames(drums, mainFrames),
		Frames:       mainFrames,
	}, nil
}

// readMono reads frames from s and down-mixes them. A nil stem is silence.
func (r *TrackReader) readMono(s *stem, frames int) ([]int16, error) {
	if s == nil {
		return nil, nil
	}
	samples, n, err := s.read(frames)
	if err != nil {
		return nil, err
	}
	return downmix(samples, s.channels, n), nil
}

// Close releases every open file. It is safe to call more than once.
func (r *TrackReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, s := range []*stem{r.main, r.vocals, r.drums} {
		if s != nil {
			errs = append(errs, s.close())
		}
	}
	return errors.Join(errs...)
}

// stem is one decoded WAV file.
type stem struct {
	file     *os.File
	dec      *wav.Decoder
	rate     int
	channels int
	depth    int
	buf      *audio.IntBuffer
	eof      bool
}

func openStem(path string) (*stem, error) {
	f, err := os.Open(path) // #nosec G304 -- path is built from a validated song name
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, path, err)
	}
	if dec.WavAudioFormat != wavFormatPCM || dec.SampleRate == 0 || dec.NumChans == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not PCM audio", ErrUnsupportedFormat, path)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s has %d-bit samples", ErrUnsupportedFormat, path, dec.BitDepth)
	}

	return &stem{
		file:     f,
		dec:      dec,
		rate:     int(dec.SampleRate),
		channels: int(dec.NumChans),
		depth:    int(dec.BitDepth),
	}, nil
}

// read returns up to frames interleaved frames normalised to int16 and
// the number of whole frames read.
func (s *stem) read(frames int) ([]int16, int, error) {
	if s.eof {
		return nil, 0, nil
	}

	want := frames * s.channels
	if s.buf == nil || cap(s.buf.Data) < want {
		s.buf = &audio.IntBuffer{
			Data:   make([]int, want),
			Format: &audio.Format{NumChannels: s.channels, SampleRate: s.rate},
		}
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, 0, err
	}

	got := n / s.channels
	if got < frames {
		s.eof = true
	}

	out := make([]int16, got*s.channels)
	for i := range out {
		out[i] = s.normalise(s.buf.Data[i])
	}
	return out, got, nil
}

// normalise maps a decoded sample of any supported depth onto int16.
func (s *stem) normalise(v int) int16 {
	switch s.depth {
	case 8:
		return int16((v - 128) << 8) // 8-bit WAV is unsigned
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

func (s *stem) close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// downmix averages interleaved channels into mono.
func downmix(samples []int16, channels, frames int) []int16 {
	if channels == 1 {
		return samples[:frames]
	}
	out := make([]int16, frames)
	for f := 0; f < frames; f++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[f*channels+c])
		}
		out[f] = int16(sum / channels)
	}
	return out
}

// fitFrames pads with silence or truncates mono samples to exactly frames.
func fitFrames(samples []int16, frames int) []int16 {
	if len(samples) == frames {
		return samples
	}
	out := make([]int16, frames)
	copy(out, samples)
	return out
}
