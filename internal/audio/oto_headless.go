//go:build headless

package audio

import "context"

// OtoOutput is unavailable in headless builds; use the null backend.
type OtoOutput struct{}

// NewOtoOutput returns an output that always fails.
func NewOtoOutput(int) *OtoOutput {
	return &OtoOutput{}
}

// Write reports that no sound device is compiled in.
func (o *OtoOutput) Write(context.Context, []int16, int, int) error {
	return ErrDeviceUnavailable
}

// Close is a no-op.
func (o *OtoOutput) Close() error {
	return nil
}
