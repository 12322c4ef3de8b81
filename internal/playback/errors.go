package playback

import "errors"

// Domain-specific errors for playback operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSessionActive is returned when a song is requested while another is playing.
	ErrSessionActive = errors.New("playback: a song is already playing")

	// ErrServiceClosed is returned once the service has been closed.
	ErrServiceClosed = errors.New("playback: service closed")

	// ErrNoSession is returned when stopping while nothing is playing.
	ErrNoSession = errors.New("playback: no song playing")

	// ErrOutput wraps audio output failures. They end the session.
	ErrOutput = errors.New("playback: audio output failed")

	// ErrActuator wraps motor failures. They end the session.
	ErrActuator = errors.New("playback: actuator failed")
)
