package audio

import "errors"

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("audio: unknown backend")

	// ErrClosed is returned when writing to a closed output.
	ErrClosed = errors.New("audio: output closed")

	// ErrInvalidFormat is returned for a block with no channels or no rate.
	ErrInvalidFormat = errors.New("audio: invalid PCM format")

	// ErrDeviceUnavailable is returned when the sound device cannot be opened.
	ErrDeviceUnavailable = errors.New("audio: device unavailable")
)
