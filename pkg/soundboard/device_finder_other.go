//go:build !linux

package soundboard

import (
	"go.uber.org/zap"
)

// NewDeviceFinder is unavailable outside linux. Output devices can still be
// set by their player name.
func NewDeviceFinder(logger *zap.SugaredLogger) (DeviceFinder, error) {
	logger.Named("device_finder").Debug("No device finder on this platform")
	return nil, ErrDeviceDiscoveryUnsupported
}
