package motor

import "errors"

// ErrUnknownMotor is returned for a command addressed to a motor the device does not have.
var ErrUnknownMotor = errors.New("motor: unknown motor")
