package soundboard

import (
	"errors"
	"fmt"
)

// ErrDeviceDiscoveryUnsupported is returned on platforms without a device finder.
var ErrDeviceDiscoveryUnsupported = errors.New("output device discovery is not supported on this platform")

// OutputDevice is an audio sink the player can be pointed at.
type OutputDevice struct {
	Name        string
	Description string
	Default     bool
}

// PlayerDevice is the value for a sound's or the settings' output device.
func (d OutputDevice) PlayerDevice() string {
	return "pulse/" + d.Name
}

func (d OutputDevice) String() string {
	return fmt.Sprintf("<device: %s (%s)>", d.Name, d.Description)
}

// DeviceFinder enumerates audio output devices.
type DeviceFinder interface {
	// OutputDevices lists the current sinks.
	OutputDevices() ([]OutputDevice, error)

	// Release frees any resources allocated by the DeviceFinder.
	Release() error
}
