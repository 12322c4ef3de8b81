package song

import "errors"

// Domain-specific errors for song library operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSongNotFound is returned when a song directory or its main track is missing.
	ErrSongNotFound = errors.New("song: not found")

	// ErrInvalidName is returned for names that could escape the songs directory.
	ErrInvalidName = errors.New("song: invalid name")

	// ErrUnsupportedFormat is returned when a track is not a readable PCM WAV file.
	ErrUnsupportedFormat = errors.New("song: unsupported audio format")

	// ErrFormatMismatch is returned when a stem's frame rate differs from the main track.
	ErrFormatMismatch = errors.New("song: stem format does not match main track")

	// ErrReaderClosed is returned when reading from a closed TrackReader.
	ErrReaderClosed = errors.New("song: track reader closed")
)
