package playback

import (
	"time"

	"github.com/nerrad567/billy-core/internal/infrastructure/mqtt"
)

// State is the playback state announced on the status bus.
type State string

// States published on the status topic. The payloads are part of the
// wire contract with home automation and must not change.
const (
	StatePlayingSong State = mqtt.StatePlayingSong
	StateIdle        State = mqtt.StateIdle
)

// WebSocket channels the notifier broadcasts on.
const (
	ChannelState = "playback.state"
	ChannelPhase = "playback.phase"
)

// StatusBus publishes playback state to the outside world.
// Satisfied by *mqtt.Client.
type StatusBus interface {
	PublishState(topic, payload string) error
}

// Hub fans events out to in-process listeners.
// Satisfied by *api.Hub.
type Hub interface {
	Broadcast(channel string, payload any)
}

// StateEvent is the payload broadcast when the playback state changes.
type StateEvent struct {
	State     State     `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Song      string    `json:"song,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PhaseEvent is the payload broadcast when a session changes phase.
type PhaseEvent struct {
	SessionID string    `json:"session_id"`
	Song      string    `json:"song"`
	Phase     string    `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier announces playback state on the status bus and the hub.
// Either may be nil. Failures are logged and never returned.
type Notifier struct {
	bus    StatusBus
	hub    Hub
	topic  string
	logger Logger
}

// NewNotifier creates a Notifier publishing to the billy/state topic.
func NewNotifier(bus StatusBus, hub Hub, logger Logger) *Notifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Notifier{
		bus:    bus,
		hub:    hub,
		topic:  mqtt.Topics{}.State(),
		logger: logger,
	}
}

// Topic returns the status topic.
func (n *Notifier) Topic() string {
	return n.topic
}

// Publish announces state. It never fails the caller.
func (n *Notifier) Publish(state State) {
	n.publish(state, nil)
}

func (n *Notifier) publish(state State, s *Session) {
	if n.bus != nil {
		if err := n.bus.PublishState(n.topic, string(state)); err != nil {
			n.logger.Warn("failed to publish playback state",
				"topic", n.topic,
				"state", string(state),
				"error", err,
			)
		} else {
			n.logger.Debug("playback state published", "state", string(state))
		}
	}

	if n.hub != nil {
		ev := StateEvent{State: state, Timestamp: time.Now().UTC()}
		if s != nil {
			ev.SessionID = s.ID()
			ev.Song = s.Song()
		}
		n.hub.Broadcast(ChannelState, ev)
	}
}

// PublishPhase tells in-process listeners that s entered a new phase.
// Phases are not published on the status bus.
func (n *Notifier) PublishPhase(s *Session) {
	if n.hub == nil {
		return
	}
	n.hub.Broadcast(ChannelPhase, PhaseEvent{
		SessionID: s.ID(),
		Song:      s.Song(),
		Phase:     s.Phase().String(),
		Timestamp: time.Now().UTC(),
	})
}
