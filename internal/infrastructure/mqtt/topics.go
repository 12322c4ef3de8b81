package mqtt

import "fmt"

// TopicPrefix is the root of every Billy topic.
const TopicPrefix = "billy"

// State payloads published on the state topic. The exact strings are
// what home automation listeners match on.
const (
	StatePlayingSong = "playing_song"
	StateIdle        = "idle"
)

// Topics provides builders for Billy MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topics.State()         // "billy/state"
//	topics.Motor("tail")   // "billy/motor/tail"
type Topics struct{}

// State returns the playback state topic.
//
// Example: billy/state
func (Topics) State() string {
	return TopicPrefix + "/state"
}

// Motor returns the command topic for one motor (head, mouth or tail).
//
// Example: billy/motor/head
func (Topics) Motor(name string) string {
	return fmt.Sprintf("%s/motor/%s", TopicPrefix, name)
}

// MotorStop returns the topic that returns every motor to rest.
//
// Example: billy/motor/stop
func (Topics) MotorStop() string {
	return TopicPrefix + "/motor/stop"
}

// Command returns the topic for a remote control command.
//
// Example: billy/command/play
func (Topics) Command(name string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, name)
}

// AllCommands returns a pattern matching every remote control command.
//
// Pattern: billy/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// SessionEvent returns the topic for playback session reports.
//
// Example: billy/session/finished
func (Topics) SessionEvent(event string) string {
	return fmt.Sprintf("%s/session/%s", TopicPrefix, event)
}

// SystemStatus returns the online/offline status topic (LWT target).
//
// Example: billy/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllTopics returns a pattern matching every Billy topic.
//
// Pattern: billy/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
