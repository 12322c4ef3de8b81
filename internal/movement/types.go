package movement

import (
	"context"
	"fmt"
	"time"
)

// Motor identifies one of the animatronic's actuators.
type Motor string

// Known motors.
const (
	MotorHead  Motor = "head"
	MotorMouth Motor = "mouth"
	MotorTail  Motor = "tail"
)

// Command is one semantic movement for the actuator.
type Command struct {
	// At is the offset from song start at which the movement belongs.
	At time.Duration `json:"-"`

	Motor Motor `json:"motor"`

	// Position is the target position, 0 (rest) to 1 (full travel).
	Position float64 `json:"position"`

	// Duration is how long the motor should hold the movement.
	Duration time.Duration `json:"-"`
}

func (c Command) String() string {
	return fmt.Sprintf("%s@%v pos=%.2f for %v", c.Motor, c.At, c.Position, c.Duration)
}

// Actuator executes movement commands on the physical device.
//
// Implementations must be safe for concurrent use: the playback worker
// dispatches movements while the session teardown may stop all motors.
type Actuator interface {
	// DispatchMovement moves one motor.
	DispatchMovement(ctx context.Context, cmd Command) error

	// StopAllMotors returns every motor to rest.
	StopAllMotors(ctx context.Context) error
}
