package camera

import (
	"context"
	"fmt"

	"github.com/banshee-data/camerad/internal/monitoring"
)

// SessionState is the camera lifecycle state as the session tracks it.
type SessionState int

const (
	// SessionStopped means no device handle is held and no frames flow.
	SessionStopped SessionState = iota

	// SessionRunning means the device is open and acquiring.
	SessionRunning
)

func (s SessionState) String() string {
	switch s {
	case SessionStopped:
		return "stopped"
	case SessionRunning:
		return "running"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session owns the live device handle and the configuration applied to it.
// It is not self-locking: a single owner goroutine drives every method, so
// state transitions are plain field writes. The identity is fixed at
// creation; restarting reattaches to the same device.
type Session struct {
	driver   Driver
	identity Identity
	logf     func(format string, v ...interface{})

	state   SessionState
	device  Device
	info    DeviceInfo
	gen     uint64
	applied Config
	frameFn FrameFunc
}

// SessionOption adjusts session construction.
type SessionOption func(*Session)

// WithSessionLogger routes session logs through f instead of the package
// default.
func WithSessionLogger(f func(format string, v ...interface{})) SessionOption {
	return func(s *Session) { s.logf = f }
}

// NewSession creates a stopped session bound to the given identity.
func NewSession(driver Driver, identity Identity, opts ...SessionOption) *Session {
	s := &Session{
		driver:   driver,
		identity: identity,
		logf:     monitoring.Logf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFrameFunc registers the delivery callback handed to the device on
// Start. It must be set before the first Start and must not block: it runs
// on the driver's delivery goroutine.
func (s *Session) SetFrameFunc(fn FrameFunc) {
	s.frameFn = fn
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return s.state
}

// Generation counts successful starts. Frames are tagged with the generation
// current at capture so late deliveries from a torn-down acquisition can be
// recognised and discarded.
func (s *Session) Generation() uint64 {
	return s.gen
}

// Config returns the last snapshot the device accepted.
func (s *Session) Config() Config {
	return s.applied
}

// Info returns the opened device's description. ok is false before the first
// successful Start.
func (s *Session) Info() (DeviceInfo, bool) {
	return s.info, s.gen > 0
}

// Identity returns the device identity the session is bound to.
func (s *Session) Identity() Identity {
	return s.identity
}

// Start opens the device and begins acquisition. Only valid while stopped.
func (s *Session) Start(ctx context.Context) error {
	if s.state == SessionRunning {
		return fmt.Errorf("session already running")
	}
	if s.frameFn == nil {
		return fmt.Errorf("no frame handler registered")
	}
	if err := s.identity.Valid(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	device, err := s.driver.Open(ctx, s.identity)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, s.identity, err)
	}

	info := device.Info()
	s.logf("[camera] opened %s", info)

	if err := device.Start(s.frameFn); err != nil {
		device.Close()
		return fmt.Errorf("%w: start acquisition on %s: %v", ErrDeviceUnavailable, s.identity, err)
	}

	s.device = device
	s.info = info
	s.state = SessionRunning
	s.gen++
	s.logf("[camera] session running (generation %d)", s.gen)
	return nil
}

// Stop halts acquisition and releases the device handle. Calling Stop on a
// stopped session is a no-op.
func (s *Session) Stop() error {
	if s.state == SessionStopped {
		return nil
	}

	stopErr := s.device.Stop()
	closeErr := s.device.Close()

	// The handle is released even when teardown reported an error; a
	// half-stopped device cannot be reused.
	s.device = nil
	s.state = SessionStopped

	if stopErr != nil {
		return fmt.Errorf("stop acquisition: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close device: %w", closeErr)
	}
	s.logf("[camera] session stopped")
	return nil
}

// Apply pushes a configuration snapshot to the streaming device. On
// rejection the previous snapshot stays in force, on the device and here.
func (s *Session) Apply(cfg Config) error {
	if s.state != SessionRunning {
		return ErrNotRunning
	}

	if err := s.device.Apply(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigRejected, err)
	}

	s.applied = cfg
	return nil
}
