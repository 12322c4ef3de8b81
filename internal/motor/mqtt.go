package motor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/billy-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/billy-core/internal/movement"
)

// Publisher is the subset of the MQTT client the actuator needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// movePayload is the JSON body of a billy/motor/{motor} message.
type movePayload struct {
	Position   float64 `json:"position"`
	DurationMS int64   `json:"duration_ms"`
	AtMS       int64   `json:"at_ms"`
}

// stopPayload is the JSON body of a billy/motor/stop message.
type stopPayload struct {
	Motors []movement.Motor `json:"motors"`
}

// MQTTActuator drives the motor controller over MQTT.
//
// Each movement is published to billy/motor/{head|mouth|tail}; stopping
// publishes to billy/motor/stop. Messages are not retained: a motor
// controller that reconnects must not replay stale movements.
type MQTTActuator struct {
	pub Publisher
	qos byte
}

// NewMQTTActuator creates an actuator publishing through pub with qos.
func NewMQTTActuator(pub Publisher, qos byte) *MQTTActuator {
	return &MQTTActuator{pub: pub, qos: qos}
}

// DispatchMovement publishes one movement command.
func (a *MQTTActuator) DispatchMovement(ctx context.Context, cmd movement.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validMotor(cmd.Motor) {
		return fmt.Errorf("%w: %q", ErrUnknownMotor, cmd.Motor)
	}

	payload, err := json.Marshal(movePayload{
		Position:   clamp01(cmd.Position),
		DurationMS: cmd.Duration.Milliseconds(),
		AtMS:       cmd.At.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", cmd.Motor, err)
	}

	if err := a.pub.Publish(mqtt.Topics{}.Motor(string(cmd.Motor)), payload, a.qos, false); err != nil {
		return fmt.Errorf("publishing %s command: %w", cmd.Motor, err)
	}
	return nil
}

// StopAllMotors publishes a stop for every motor.
//
// It is called during session teardown, possibly after the session
// context was cancelled, so it does not check ctx.
func (a *MQTTActuator) StopAllMotors(_ context.Context) error {
	payload, err := json.Marshal(stopPayload{Motors: AllMotors()})
	if err != nil {
		return fmt.Errorf("encoding stop command: %w", err)
	}
	if err := a.pub.Publish(mqtt.Topics{}.MotorStop(), payload, a.qos, false); err != nil {
		return fmt.Errorf("publishing stop command: %w", err)
	}
	return nil
}

// AllMotors returns every motor the device has.
func AllMotors() []movement.Motor {
	return []movement.Motor{movement.MotorHead, movement.MotorMouth, movement.MotorTail}
}

func validMotor(m movement.Motor) bool {
	switch m {
	case movement.MotorHead, movement.MotorMouth, movement.MotorTail:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
