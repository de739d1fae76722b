package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/camerad/internal/timeutil"
)

// MockDriver is an in-memory Driver for tests and for -dev mode, where the
// daemon runs against synthetic frames instead of hardware. Every Open hands
// back the same MockDevice with a fresh handle state, so a test can assert
// the full lifecycle call sequence across restarts.
type MockDriver struct {
	mu       sync.Mutex
	Device   *MockDevice
	OpenErr  error // returned by every Open while set
	FailNext int   // fail this many Opens, then succeed
	opens    []Identity
}

// NewMockDriver returns a driver whose Opens succeed with a default device.
func NewMockDriver() *MockDriver {
	return &MockDriver{Device: NewMockDevice()}
}

func (d *MockDriver) Open(ctx context.Context, id Identity) (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opens = append(d.opens, id)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.FailNext > 0 {
		d.FailNext--
		return nil, fmt.Errorf("no device at %s", id)
	}

	d.Device.reopen()
	return d.Device, nil
}

// Opens returns the identities passed to Open, in order.
func (d *MockDriver) Opens() []Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Identity, len(d.opens))
	copy(out, d.opens)
	return out
}

// MockDevice records the calls a session makes against it and can be primed
// to fail any of them.
type MockDevice struct {
	mu        sync.Mutex
	InfoValue DeviceInfo
	ApplyErr  error
	StartErr  error
	StopErr   error
	CloseErr  error

	calls     []string
	applied   []Config
	streaming bool
	closed    bool
	frameFn   FrameFunc
}

// NewMockDevice returns a device that accepts every call.
func NewMockDevice() *MockDevice {
	return &MockDevice{
		InfoValue: DeviceInfo{
			Model:     "Mock-1300C",
			Serial:    "0xDEADBEEF",
			Firmware:  "0.0-mock",
			Interface: "synthetic",
		},
	}
}

func (m *MockDevice) reopen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "open")
	m.streaming = false
	m.closed = false
	m.frameFn = nil
}

func (m *MockDevice) Info() DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InfoValue
}

func (m *MockDevice) Apply(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "apply")
	if m.closed {
		return fmt.Errorf("apply on closed device")
	}
	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	m.applied = append(m.applied, cfg)
	return nil
}

func (m *MockDevice) Start(fn FrameFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "start")
	if m.closed {
		return fmt.Errorf("start on closed device")
	}
	if m.streaming {
		return fmt.Errorf("already streaming")
	}
	if m.StartErr != nil {
		return m.StartErr
	}
	m.streaming = true
	m.frameFn = fn
	return nil
}

func (m *MockDevice) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "stop")
	m.streaming = false
	m.frameFn = nil
	if m.StopErr != nil {
		return m.StopErr
	}
	return nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "close")
	m.streaming = false
	m.frameFn = nil
	m.closed = true
	if m.CloseErr != nil {
		return m.CloseErr
	}
	return nil
}

// Calls returns the recorded call sequence, including "open" markers added
// each time the driver hands the device out.
func (m *MockDevice) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Applied returns every configuration snapshot the device accepted.
func (m *MockDevice) Applied() []Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Config, len(m.applied))
	copy(out, m.applied)
	return out
}

// Streaming reports whether acquisition is running.
func (m *MockDevice) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// EmitFrame delivers a frame through the registered callback, as the driver
// would. It reports whether a callback was registered and streaming.
func (m *MockDevice) EmitFrame(f Frame) bool {
	m.mu.Lock()
	fn := m.frameFn
	streaming := m.streaming
	m.mu.Unlock()

	if !streaming || fn == nil {
		return false
	}
	fn(f)
	return true
}

// GenerateFrames emits synthetic frames at the given interval until ctx is
// cancelled. Dev mode runs this in place of a hardware acquisition loop.
func (m *MockDevice) GenerateFrames(ctx context.Context, clock timeutil.Clock, interval time.Duration, width, height uint32, format PixelFormat) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			m.EmitFrame(NewStaticFrame(width, height, format, now))
		}
	}
}

// StaticFrame is a synthetic Frame with a horizontal gradient fill.
type StaticFrame struct {
	data   []byte
	width  uint32
	height uint32
	format PixelFormat
	stamp  time.Time
}

// NewStaticFrame builds a gradient frame of the given geometry. Multi-byte
// formats are sized accordingly; the fill pattern stays byte-wise.
func NewStaticFrame(width, height uint32, format PixelFormat, stamp time.Time) *StaticFrame {
	size := int(width) * int(height) * synthBytesPerPixel(format)
	data := make([]byte, size)
	if width > 0 {
		for i := range data {
			data[i] = byte((uint32(i) % width) * 255 / width)
		}
	}
	return &StaticFrame{
		data:   data,
		width:  width,
		height: height,
		format: format,
		stamp:  stamp,
	}
}

func synthBytesPerPixel(format PixelFormat) int {
	switch format {
	case FormatMono10, FormatMono12, FormatMono14, FormatMono16:
		return 2
	case FormatRGB8, FormatBGR8:
		return 3
	case FormatRGBA8, FormatBGRA8:
		return 4
	}
	return 1
}

func (f *StaticFrame) Bytes() []byte              { return f.data }
func (f *StaticFrame) Width() uint32              { return f.width }
func (f *StaticFrame) Height() uint32             { return f.height }
func (f *StaticFrame) PixelFormat() PixelFormat   { return f.format }
func (f *StaticFrame) DeviceTimestamp() time.Time { return f.stamp }
