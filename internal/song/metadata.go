package song

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Metadata defaults, applied to any key that is absent or malformed.
const (
	DefaultGain              = 1.0
	DefaultBPM               = 120.0
	DefaultTailThreshold     = 1500.0
	DefaultCompensateTail    = 0.0
	DefaultHalfTempoTailFlap = false
)

// Accepted ranges. Values outside them are reported as malformed.
const (
	MinBPM = 1e-3
	MaxBPM = 1e6

	// MaxOffset bounds head move timestamps and compensate_tail, in seconds.
	MaxOffset = 1e6
)

// Recognised metadata keys.
const (
	keyGain              = "gain"
	keyBPM               = "bpm"
	keyTailThreshold     = "tail_threshold"
	keyCompensateTail    = "compensate_tail"
	keyHalfTempoTailFlap = "half_tempo_tail_flap"
	keyHeadMoves         = "head_moves"
)

// HeadMove is a single explicit head keyframe.
type HeadMove struct {
	// At is the offset from song start, in seconds.
	At float64 `json:"at"`

	// Position is the target head position (0 = rest, 1 = fully turned).
	Position float64 `json:"position"`
}

// Metadata is the per-song choreography read from metadata.txt.
// It is a plain value; treat it as immutable once loaded.
type Metadata struct {
	Gain              float64    `json:"gain"`
	BPM               float64    `json:"bpm"`
	TailThreshold     float64    `json:"tail_threshold"`
	CompensateTail    float64    `json:"compensate_tail"`
	HalfTempoTailFlap bool       `json:"half_tempo_tail_flap"`
	HeadMoves         []HeadMove `json:"head_moves"`
}

// DefaultMetadata returns the metadata used for songs without a metadata file.
func DefaultMetadata() Metadata {
	return Metadata{
		Gain:              DefaultGain,
		BPM:               DefaultBPM,
		TailThreshold:     DefaultTailThreshold,
		CompensateTail:    DefaultCompensateTail,
		HalfTempoTailFlap: DefaultHalfTempoTailFlap,
		HeadMoves:         []HeadMove{},
	}
}

// ParseIssue describes a metadata line (or head_moves pair) that was skipped.
type ParseIssue struct {
	Line   int
	Text   string
	Reason string
}

func (p ParseIssue) String() string {
	return fmt.Sprintf("line %d: %s (%q)", p.Line, p.Reason, p.Text)
}

// LoadMetadata reads the metadata file at path.
//
// A missing or unreadable file is not an error: songs may have no
// metadata, so the defaults are returned instead.
func LoadMetadata(path string) Metadata {
	meta, _ := ReadMetadata(path)
	return meta
}

// ReadMetadata is LoadMetadata that also reports the lines it skipped.
func ReadMetadata(path string) (Metadata, []ParseIssue) {
	f, err := os.Open(path) // #nosec G304 -- path is built from a validated song name
	if err != nil {
		return DefaultMetadata(), nil
	}
	defer f.Close()

	return ParseMetadata(f)
}

// ParseMetadata parses line-oriented key=value metadata.
//
// Every key parses independently: a malformed line leaves that key at its
// default and parsing continues. Malformed head_moves pairs are dropped
// individually; the well-formed pairs of the same line are kept in order.
// Unknown keys, blank lines and '#' comments are ignored.
func ParseMetadata(r io.Reader) (Metadata, []ParseIssue) {
	meta := DefaultMetadata()
	var issues []ParseIssue

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			issues = append(issues, ParseIssue{Line: lineNo, Text: line, Reason: "missing '='"})
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		issue := func(reason string) {
			issues = append(issues, ParseIssue{Line: lineNo, Text: line, Reason: reason})
		}

		switch key {
		case keyGain:
			if v, err := parseFloat(value); err != nil {
				issue(err.Error())
			} else if v < 0 {
				issue("gain must not be negative")
			} else {
				meta.Gain = v
			}
		case keyBPM:
			if v, err := parseFloat(value); err != nil {
				issue(err.Error())
			} else if v <= 0 {
				issue("bpm must be positive")
			} else if v < MinBPM || v > MaxBPM {
				issue(fmt.Sprintf("bpm must be between %g and %g", MinBPM, MaxBPM))
			} else {
				meta.BPM = v
			}
		case keyTailThreshold:
			if v, err := parseFloat(value); err != nil {
				issue(err.Error())
			} else {
				meta.TailThreshold = v
			}
		case keyCompensateTail:
			if v, err := parseFloat(value); err != nil {
				issue(err.Error())
			} else if math.Abs(v) > MaxOffset {
				issue(fmt.Sprintf("compensate_tail must be between %g and %g", -MaxOffset, MaxOffset))
			} else {
				meta.CompensateTail = v
			}
		case keyHalfTempoTailFlap:
			if v, err := parseBool(value); err != nil {
				issue(err.Error())
			} else {
				meta.HalfTempoTailFlap = v
			}
		case keyHeadMoves:
			moves, bad := parseHeadMoves(value)
			for _, b := range bad {
				issue("malformed head move " + strconv.Quote(b))
			}
			meta.HeadMoves = moves
		}
	}
	if err := scanner.Err(); err != nil {
		issues = append(issues, ParseIssue{Line: lineNo + 1, Reason: "read error: " + err.Error()})
	}

	return meta, issues
}

// parseHeadMoves parses "t1:p1,t2:p2". It returns the valid moves in
// input order and the raw text of every pair it could not parse.
func parseHeadMoves(value string) ([]HeadMove, []string) {
	moves := []HeadMove{}
	var bad []string

	if value == "" {
		return moves, nil
	}

	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ts, pos, ok := strings.Cut(pair, ":")
		if !ok {
			bad = append(bad, pair)
			continue
		}
		at, err := parseFloat(strings.TrimSpace(ts))
		if err != nil || at < 0 || at > MaxOffset {
			bad = append(bad, pair)
			continue
		}
		position, err := parseFloat(strings.TrimSpace(pos))
		if err != nil {
			bad = append(bad, pair)
			continue
		}
		moves = append(moves, HeadMove{At: at, Position: position})
	}

	return moves, bad
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}
