package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	ErrConnectionFailed = errors.New("influxdb: server unreachable")
	ErrNotConnected     = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps errors reported asynchronously by the batch
	// writer; they reach the SetOnError callback, not the caller.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
