package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camerad/internal/calib"
	"github.com/banshee-data/camerad/internal/camera"
	"github.com/banshee-data/camerad/internal/publish"
	"github.com/banshee-data/camerad/internal/timeutil"
)

// harness runs a node against mocks and tears it down with the test.
type harness struct {
	t      *testing.T
	driver *camera.MockDriver
	device *camera.MockDevice
	pub    *publish.Publisher
	clock  *timeutil.MockClock
	node   *Node
	ctx    context.Context
	cancel context.CancelFunc

	done   chan error
	once   sync.Once
	runErr error
}

func defaultConfig() camera.Config {
	return camera.Config{FrameID: "front", Height: 480, Width: 640}
}

func startNode(t *testing.T, initial camera.Config, opts ...NodeOption) *harness {
	t.Helper()

	driver := camera.NewMockDriver()
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	pub := publish.NewPublisher(publish.WithPublisherLogger(quietf))
	bridge := NewBridge(publish.RawConverter{}, pub, WithBridgeClock(clock), WithBridgeLogger(quietf))
	session := camera.NewSession(driver, camera.Identity{IP: "10.1.2.3"}, camera.WithSessionLogger(quietf))
	synth := calib.NewSynthesizer(nil, calib.WithSynthLogger(quietf))

	node := NewNode(session, synth, bridge, initial,
		append([]NodeOption{WithNodeLogger(quietf)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t:      t,
		driver: driver,
		device: driver.Device,
		pub:    pub,
		clock:  clock,
		node:   node,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { h.done <- node.Run(ctx) }()
	t.Cleanup(h.stop)

	// The first Snapshot cannot be answered until the initial
	// reconfiguration has finished, so this blocks until the node is ready.
	_, err := node.Snapshot(ctx)
	require.NoError(t, err)
	return h
}

func (h *harness) wait() error {
	h.once.Do(func() {
		select {
		case h.runErr = <-h.done:
		case <-time.After(2 * time.Second):
			h.t.Error("node did not stop")
		}
	})
	return h.runErr
}

func (h *harness) stop() {
	h.cancel()
	h.wait()
}

func TestNodeInitialReconfigureRestartsOnce(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())

	// The initial pass carries the full-disruption sentinel: the freshly
	// started session is stopped and reopened once before the first apply.
	want := []string{"open", "start", "stop", "close", "open", "start", "apply"}
	assert.Equal(t, want, h.device.Calls())

	st, err := h.node.Snapshot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, uint64(2), st.Generation)
	assert.Equal(t, "front", st.Config.FrameID)
	require.NotNil(t, st.Device)
	assert.Equal(t, "Mock-1300C", st.Device.Model)
}

func TestNodeReconfigureStopLevel(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	before := len(h.device.Calls())

	cfg := defaultConfig()
	cfg.ExposureUS = 2000
	res, err := h.node.Reconfigure(h.ctx, cfg, camera.LevelStop)
	require.NoError(t, err)

	assert.True(t, res.Restarted)
	assert.True(t, res.Applied)
	assert.Empty(t, res.Message)

	// Exactly one stop, then one start, then the apply.
	delta := h.device.Calls()[before:]
	assert.Equal(t, []string{"stop", "close", "open", "start", "apply"}, delta)
}

func TestNodeReconfigureCloseLevelTakesSamePath(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	before := len(h.device.Calls())

	res, err := h.node.Reconfigure(h.ctx, defaultConfig(), camera.LevelClose)
	require.NoError(t, err)
	require.True(t, res.Restarted)

	delta := h.device.Calls()[before:]
	assert.Equal(t, []string{"stop", "close", "open", "start", "apply"}, delta)
}

func TestNodeReconfigureRunLevelAppliesDirectly(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	before := len(h.device.Calls())

	cfg := defaultConfig()
	cfg.Gain = 12
	res, err := h.node.Reconfigure(h.ctx, cfg, camera.LevelNone)
	require.NoError(t, err)

	assert.False(t, res.Restarted)
	assert.True(t, res.Applied)
	assert.Equal(t, []string{"apply"}, h.device.Calls()[before:])
}

func TestNodeReconfigureNormalizesFrameID(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())

	cfg := defaultConfig()
	cfg.FrameID = ""
	res, err := h.node.Reconfigure(h.ctx, cfg, camera.LevelNone)
	require.NoError(t, err)

	assert.Equal(t, "camera", res.FrameID)
	applied := h.device.Applied()
	assert.Equal(t, "camera", applied[len(applied)-1].FrameID)
}

func TestNodeAbsorbsRejectedConfiguration(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	h.device.ApplyErr = errors.New("ROI exceeds sensor bounds")

	bad := defaultConfig()
	bad.ROIWidth = 99999
	res, err := h.node.Reconfigure(h.ctx, bad, camera.LevelNone)
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Contains(t, res.Message, "apply")

	// The node keeps running on its last good configuration.
	st, err := h.node.Snapshot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, "front", st.Config.FrameID)
	assert.Zero(t, st.Config.ROIWidth)

	h.device.ApplyErr = nil
	res, err = h.node.Reconfigure(h.ctx, defaultConfig(), camera.LevelNone)
	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestNodeRecoversAfterFailedRestart(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	h.device.StartErr = errors.New("camera claimed by another host")

	res, err := h.node.Reconfigure(h.ctx, defaultConfig(), camera.LevelStop)
	require.NoError(t, err)
	assert.False(t, res.Restarted)
	assert.False(t, res.Applied)
	assert.Contains(t, res.Message, "restart")

	st, err := h.node.Snapshot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "stopped", st.State)

	// Once the device comes back the next stop-level pass recovers.
	h.device.StartErr = nil
	res, err = h.node.Reconfigure(h.ctx, defaultConfig(), camera.LevelStop)
	require.NoError(t, err)
	assert.True(t, res.Restarted)
	assert.True(t, res.Applied)

	st, err = h.node.Snapshot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)
}

func TestNodeScenarioEmptyFrameIDCloseLevel(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig(),
		WithNodeRecord(calib.Record{Height: 480, Width: 640}))
	before := len(h.device.Calls())

	cfg := camera.Config{Height: 480, Width: 640, ROIHeight: 480, ROIWidth: 640}
	res, err := h.node.Reconfigure(h.ctx, cfg, camera.LevelClose)
	require.NoError(t, err)

	delta := h.device.Calls()[before:]
	assert.Equal(t, []string{"stop", "close", "open", "start", "apply"}, delta)

	applied := h.device.Applied()
	assert.Equal(t, "camera", applied[len(applied)-1].FrameID)
	assert.True(t, res.RectifyValid)
}

func TestNodeScenarioMismatchedRecordResolution(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig(),
		WithNodeRecord(calib.Record{Height: 600, Width: 800}))

	cfg := camera.Config{Height: 480, Width: 640, ROIHeight: 480, ROIWidth: 640}
	res, err := h.node.Reconfigure(h.ctx, cfg, camera.LevelClose)
	require.NoError(t, err)

	assert.False(t, res.RectifyValid)

	rec, err := h.node.Record(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 600, rec.Height)
	assert.Equal(t, 800, rec.Width)
}

func TestNodeFrameFlow(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	_, ch := h.pub.Subscribe("test")

	frame := camera.NewStaticFrame(4, 2, camera.FormatMono8, time.Unix(7, 0))
	require.True(t, h.device.EmitFrame(frame))

	select {
	case pair := <-ch:
		assert.Equal(t, "front", pair.Image.FrameID)
		assert.Equal(t, "front", pair.Calibration.FrameID)
		assert.Equal(t, time.Unix(1000, 0), pair.Image.Stamp)
		assert.Equal(t, pair.Image.Stamp, pair.Calibration.Stamp)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for published pair")
	}

	st, err := h.node.Snapshot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.FramesSeen)
	assert.Equal(t, uint64(1), st.Bridge.Converted)
	assert.Equal(t, uint64(1), st.Publisher.Published)
}

func TestNodeSkipsConversionWithoutSubscribers(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())

	frame := camera.NewStaticFrame(4, 2, camera.FormatMono8, time.Unix(7, 0))
	require.True(t, h.device.EmitFrame(frame))

	st, err := h.node.Snapshot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.FramesSeen)
	assert.Equal(t, uint64(1), st.Bridge.Skipped)
	assert.Zero(t, st.Bridge.Converted)
	assert.Zero(t, st.Publisher.Published)
}

func TestNodeDiscardsStaleGenerationFrames(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	_, ch := h.pub.Subscribe("test")

	// A frame tagged with a torn-down acquisition's generation must be
	// dropped, not published.
	frame := camera.NewStaticFrame(4, 2, camera.FormatMono8, time.Unix(7, 0))
	h.node.events <- frameEvent{generation: 1, frame: frame}

	st, err := h.node.Snapshot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.FramesSeen)
	assert.Equal(t, uint64(1), st.FramesStale)
	assert.Zero(t, st.Bridge.Converted)

	select {
	case <-ch:
		t.Fatal("stale frame must not be published")
	default:
	}
}

func TestNodeRecordAccessor(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())

	rec, err := h.node.Record(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "front", rec.FrameID)
	assert.Equal(t, 480, rec.Height)
	assert.Equal(t, 640, rec.Width)
	assert.True(t, rec.ROI.RectifyValid)
}

func TestNodeObserverNotified(t *testing.T) {
	t.Parallel()

	var events []ReconfigureEvent
	h := startNode(t, defaultConfig(), WithNodeObserver(func(ev ReconfigureEvent) {
		events = append(events, ev)
	}))

	require.Len(t, events, 1)
	assert.Equal(t, camera.LevelAll, events[0].Result.Level)
	assert.Equal(t, "running", events[0].Status.State)
	assert.Equal(t, "front", events[0].Record.FrameID)

	cfg := defaultConfig()
	cfg.Gain = 4
	_, err := h.node.Reconfigure(h.ctx, cfg, camera.LevelNone)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.True(t, events[1].Result.Applied)
	assert.False(t, events[1].Result.Restarted)
	assert.Equal(t, 4.0, events[1].Status.Config.Gain)
}

func TestNodeShutdownStopsSession(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())

	h.cancel()
	err := h.wait()
	require.ErrorIs(t, err, context.Canceled)

	assert.False(t, h.device.Streaming())
	calls := h.device.Calls()
	assert.Equal(t, []string{"stop", "close"}, calls[len(calls)-2:])
}

func TestNodeRunFailsWhenDeviceUnavailable(t *testing.T) {
	t.Parallel()

	driver := camera.NewMockDriver()
	driver.OpenErr = errors.New("no route to camera")
	pub := publish.NewPublisher(publish.WithPublisherLogger(quietf))
	bridge := NewBridge(publish.RawConverter{}, pub, WithBridgeLogger(quietf))
	session := camera.NewSession(driver, camera.Identity{IP: "10.1.2.3"}, camera.WithSessionLogger(quietf))
	synth := calib.NewSynthesizer(nil, calib.WithSynthLogger(quietf))
	node := NewNode(session, synth, bridge, defaultConfig(), WithNodeLogger(quietf))

	err := node.Run(context.Background())
	require.ErrorIs(t, err, camera.ErrDeviceUnavailable)
}

func TestNodeReconfigureAfterContextCancelled(t *testing.T) {
	t.Parallel()

	h := startNode(t, defaultConfig())
	h.cancel()
	h.wait()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.node.Reconfigure(ctx, defaultConfig(), camera.LevelNone)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
