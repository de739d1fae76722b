package camera

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestSession(driver *MockDriver) *Session {
	s := NewSession(driver, Identity{IP: "10.0.0.42"}, WithSessionLogger(func(string, ...interface{}) {}))
	s.SetFrameFunc(func(Frame) {})
	return s
}

func TestSessionStartStop(t *testing.T) {
	driver := NewMockDriver()
	s := newTestSession(driver)

	if s.State() != SessionStopped {
		t.Fatalf("initial state = %v, want stopped", s.State())
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.State() != SessionRunning {
		t.Errorf("state after Start = %v, want running", s.State())
	}
	if s.Generation() != 1 {
		t.Errorf("generation = %d, want 1", s.Generation())
	}
	if !driver.Device.Streaming() {
		t.Error("device is not streaming after Start")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.State() != SessionStopped {
		t.Errorf("state after Stop = %v, want stopped", s.State())
	}
	if driver.Device.Streaming() {
		t.Error("device is still streaming after Stop")
	}
}

func TestSessionStart_AlreadyRunning(t *testing.T) {
	s := newTestSession(NewMockDriver())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error starting a running session")
	}
}

func TestSessionStart_OpenFailure(t *testing.T) {
	driver := NewMockDriver()
	driver.OpenErr = fmt.Errorf("no route to camera")
	s := newTestSession(driver)

	err := s.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("error = %v, want ErrDeviceUnavailable", err)
	}
	if s.State() != SessionStopped {
		t.Errorf("state = %v, want stopped after failed Start", s.State())
	}
}

func TestSessionStart_AcquisitionFailureClosesDevice(t *testing.T) {
	driver := NewMockDriver()
	driver.Device.StartErr = fmt.Errorf("acquisition refused")
	s := newTestSession(driver)

	if err := s.Start(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("error = %v, want ErrDeviceUnavailable", err)
	}

	calls := driver.Device.Calls()
	if len(calls) == 0 || calls[len(calls)-1] != "close" {
		t.Errorf("device calls = %v, want trailing close", calls)
	}
}

func TestSessionStart_InvalidIdentity(t *testing.T) {
	s := NewSession(NewMockDriver(), Identity{}, WithSessionLogger(func(string, ...interface{}) {}))
	s.SetFrameFunc(func(Frame) {})

	if err := s.Start(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("error = %v, want ErrDeviceUnavailable for empty identity", err)
	}
}

func TestSessionStop_NoOpWhenStopped(t *testing.T) {
	s := newTestSession(NewMockDriver())
	if err := s.Stop(); err != nil {
		t.Errorf("Stop on a stopped session returned %v, want nil", err)
	}
}

func TestSessionApply(t *testing.T) {
	driver := NewMockDriver()
	s := newTestSession(driver)

	cfg := Config{FrameID: "camera", Width: 640, Height: 480, BinningX: 1, BinningY: 1}
	if err := s.Apply(cfg); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Apply before Start = %v, want ErrNotRunning", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Apply(cfg); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := s.Config(); got != cfg {
		t.Errorf("Config() = %+v, want %+v", got, cfg)
	}
}

func TestSessionApply_RejectionRetainsPrevious(t *testing.T) {
	driver := NewMockDriver()
	s := newTestSession(driver)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	good := Config{FrameID: "camera", Width: 640, BinningX: 1, BinningY: 1}
	if err := s.Apply(good); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	driver.Device.ApplyErr = fmt.Errorf("feature out of range")
	bad := good
	bad.Width = 99999
	if err := s.Apply(bad); !errors.Is(err, ErrConfigRejected) {
		t.Errorf("error = %v, want ErrConfigRejected", err)
	}
	if got := s.Config(); got != good {
		t.Errorf("Config() = %+v, want previous snapshot retained", got)
	}
}

func TestSessionGenerationAdvancesAcrossRestarts(t *testing.T) {
	s := newTestSession(NewMockDriver())

	for want := uint64(1); want <= 3; want++ {
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start %d failed: %v", want, err)
		}
		if got := s.Generation(); got != want {
			t.Errorf("generation = %d, want %d", got, want)
		}
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop %d failed: %v", want, err)
		}
	}
}

func TestMockDeviceEmitFrame(t *testing.T) {
	driver := NewMockDriver()
	s := NewSession(driver, Identity{GUID: "50-0503317598"}, WithSessionLogger(func(string, ...interface{}) {}))

	var got []Frame
	s.SetFrameFunc(func(f Frame) { got = append(got, f) })

	frame := NewStaticFrame(4, 2, FormatMono8, time.Unix(100, 0))
	if driver.Device.EmitFrame(frame) {
		t.Error("EmitFrame delivered before Start")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !driver.Device.EmitFrame(frame) {
		t.Fatal("EmitFrame did not deliver while streaming")
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	if got[0].Width() != 4 || got[0].Height() != 2 {
		t.Errorf("frame geometry = %dx%d, want 4x2", got[0].Width(), got[0].Height())
	}
	if len(got[0].Bytes()) != 8 {
		t.Errorf("frame size = %d, want 8", len(got[0].Bytes()))
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if driver.Device.EmitFrame(frame) {
		t.Error("EmitFrame delivered after Stop")
	}
}
