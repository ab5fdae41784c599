package audio

import (
	"fmt"
	"strings"
)

type DeviceType int

const (
	Input DeviceType = iota
	Output
)

func (t DeviceType) String() string {
	if t == Output {
		return "output"
	}
	return "input"
}

// Device identifies one capture source. Output devices are captured in
// loopback mode (system audio). Identity is the (Name, Type) pair.
type Device struct {
	Name string
	Type DeviceType
}

func NewDevice(name string, t DeviceType) Device {
	return Device{Name: name, Type: t}
}

// String returns the display form used for round-tripping device
// references: "<name> (input)" or "<name> (output)".
func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Type)
}

// ParseDevice parses a display-form device string. The trailing
// "(input)"/"(output)" suffix is required.
func ParseDevice(s string) (Device, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Device{}, fmt.Errorf("%w: empty name", ErrInvalidDeviceName)
	}

	lower := strings.ToLower(trimmed)
	var t DeviceType
	var suffix string
	switch {
	case strings.HasSuffix(lower, "(input)"):
		t, suffix = Input, "(input)"
	case strings.HasSuffix(lower, "(output)"):
		t, suffix = Output, "(output)"
	default:
		return Device{}, fmt.Errorf("%w: %q has no (input)/(output) suffix", ErrInvalidDeviceName, s)
	}

	name := strings.TrimSpace(trimmed[:len(trimmed)-len(suffix)])
	if name == "" {
		return Device{}, fmt.Errorf("%w: empty name", ErrInvalidDeviceName)
	}
	return Device{Name: name, Type: t}, nil
}
