package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/billy-core/internal/infrastructure/mqtt"
)

// Remote command names, published on billy/command/{name}.
const (
	CommandPlay = "play"
	CommandStop = "stop"
)

// ErrUnknownCommand is returned by HandleCommand for unrecognised topics.
var ErrUnknownCommand = errors.New("playback: unknown command")

// Controller runs songs in the background on behalf of remote callers
// (the HTTP API and MQTT commands). It owns the lifetime of every song
// it starts.
type Controller struct {
	svc    *Service
	logger Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewController creates a Controller for svc.
func NewController(svc *Service, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		svc:    svc,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Play starts song name and returns as soon as it is accepted.
func (c *Controller) Play(name string) (SessionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return SessionStatus{}, ErrServiceClosed
	}

	sess, err := c.svc.begin(c.ctx, name)
	if err != nil {
		return SessionStatus{}, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.svc.run(sess); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("song ended with error", "song", name, "session_id", sess.ID(), "error", err)
		}
	}()

	return sess.Status(), nil
}

// Stop cancels the active song. The song tears down in the background.
func (c *Controller) Stop() (SessionStatus, error) {
	sess := c.svc.Current()
	if sess == nil {
		return SessionStatus{}, ErrNoSession
	}
	sess.Cancel()
	c.logger.Info("song stop requested", "song", sess.Song(), "session_id", sess.ID())
	return sess.Status(), nil
}

// Status returns the service status.
func (c *Controller) Status() Status {
	return c.svc.Status()
}

// HandleCommand handles a message on billy/command/{play|stop}.
// The play payload is the song name.
func (c *Controller) HandleCommand(topic string, payload []byte) error {
	prefix := mqtt.Topics{}.Command("")
	cmd, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
	}

	switch cmd {
	case CommandPlay:
		name := strings.TrimSpace(string(payload))
		if _, err := c.Play(name); err != nil {
			return fmt.Errorf("play %q: %w", name, err)
		}
		return nil
	case CommandStop:
		if _, err := c.Stop(); err != nil && !errors.Is(err, ErrNoSession) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

// Close cancels any running song and waits for its teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
