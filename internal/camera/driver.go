// Package camera defines the control surface of a machine-vision camera:
// configuration snapshots, disruption levels, the driver boundary, and the
// session that owns a live device handle.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeviceUnavailable indicates the configured identity did not
	// resolve to a reachable device.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrConfigRejected indicates the device refused a configuration
	// snapshot. The previously applied snapshot remains in force.
	ErrConfigRejected = errors.New("camera rejected configuration")

	// ErrNotRunning indicates an operation that needs a streaming device
	// was attempted while the session was stopped.
	ErrNotRunning = errors.New("camera session not running")
)

// Identity names the device a session should attach to. It is fixed when the
// session is created; at least one of the fields must be set.
type Identity struct {
	IP   string `json:"ip,omitempty"`
	GUID string `json:"guid,omitempty"`
}

// Valid reports whether the identity can resolve to a device.
func (id Identity) Valid() error {
	if id.IP == "" && id.GUID == "" {
		return fmt.Errorf("identity needs an IP or a GUID")
	}
	return nil
}

func (id Identity) String() string {
	switch {
	case id.IP != "" && id.GUID != "":
		return fmt.Sprintf("%s (guid %s)", id.IP, id.GUID)
	case id.IP != "":
		return id.IP
	case id.GUID != "":
		return fmt.Sprintf("guid %s", id.GUID)
	}
	return "(unset)"
}

// DeviceInfo describes a device once opened, for startup logs and status
// reporting.
type DeviceInfo struct {
	Model     string `json:"model"`
	Serial    string `json:"serial"`
	Firmware  string `json:"firmware,omitempty"`
	Interface string `json:"interface,omitempty"`
}

func (i DeviceInfo) String() string {
	return fmt.Sprintf("%s serial %s via %s", i.Model, i.Serial, i.Interface)
}

// Frame is one acquired image as the device delivered it. DeviceTimestamp is
// the camera's own clock domain; published stamps come from the transport
// clock instead.
type Frame interface {
	Bytes() []byte
	Width() uint32
	Height() uint32
	PixelFormat() PixelFormat
	DeviceTimestamp() time.Time
}

// FrameFunc receives each acquired frame. It is invoked from the driver's
// delivery goroutine and must not block.
type FrameFunc func(Frame)

// Device is an open camera handle.
type Device interface {
	// Info describes the opened device.
	Info() DeviceInfo

	// Apply pushes a configuration snapshot to the device without closing
	// it. Rejection leaves the device on its previous settings.
	Apply(Config) error

	// Start begins acquisition, delivering each frame to fn.
	Start(fn FrameFunc) error

	// Stop halts acquisition. No frames are delivered after Stop returns.
	Stop() error

	// Close releases the handle. The device is unusable afterwards.
	Close() error
}

// Driver resolves identities to open devices. Implementations wrap a vendor
// SDK or, for development, a synthetic frame source.
type Driver interface {
	Open(ctx context.Context, id Identity) (Device, error)
}
