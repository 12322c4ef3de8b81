package motor

import (
	"context"

	"github.com/nerrad567/billy-core/internal/movement"
)

// Logger is the logging interface used by LogActuator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// LogActuator logs movements instead of driving hardware. It is used
// when no motor controller is reachable, e.g. `billy play` on a laptop.
type LogActuator struct {
	logger Logger
}

// NewLogActuator creates a LogActuator.
func NewLogActuator(logger Logger) *LogActuator {
	return &LogActuator{logger: logger}
}

// DispatchMovement logs cmd at debug level.
func (a *LogActuator) DispatchMovement(_ context.Context, cmd movement.Command) error {
	a.logger.Debug("movement",
		"motor", string(cmd.Motor),
		"position", cmd.Position,
		"at", cmd.At,
		"duration", cmd.Duration,
	)
	return nil
}

// StopAllMotors logs the stop.
func (a *LogActuator) StopAllMotors(_ context.Context) error {
	a.logger.Info("all motors stopped")
	return nil
}
