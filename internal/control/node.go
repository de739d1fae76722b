package control

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/camerad/internal/calib"
	"github.com/banshee-data/camerad/internal/camera"
	"github.com/banshee-data/camerad/internal/monitoring"
	"github.com/banshee-data/camerad/internal/publish"
)

// eventQueueDepth bounds the actor mailbox. Frames that arrive while the
// mailbox is full are dropped at the delivery callback, never queued behind
// a slow reconfiguration.
const eventQueueDepth = 32

// Result reports what one reconfiguration did. Failures land in Message;
// they are absorbed here and never take the stream down.
type Result struct {
	FrameID      string                 `json:"frame_id"`
	Level        camera.DisruptionLevel `json:"level"`
	Restarted    bool                   `json:"restarted"`
	Applied      bool                   `json:"applied"`
	RectifyValid bool                   `json:"rectify_valid"`
	Message      string                 `json:"message,omitempty"`
}

// Status is a point-in-time snapshot of the node for the status API.
type Status struct {
	State         string             `json:"state"`
	Generation    uint64             `json:"generation"`
	Identity      camera.Identity    `json:"identity"`
	Device        *camera.DeviceInfo `json:"device,omitempty"`
	Config        camera.Config      `json:"config"`
	RectifyValid  bool               `json:"rectify_valid"`
	FramesSeen    uint64             `json:"frames_seen"`
	FramesDropped uint64             `json:"frames_dropped"`
	FramesStale   uint64             `json:"frames_stale"`
	Bridge        BridgeStats        `json:"bridge"`
	Publisher     publish.Stats      `json:"publisher"`
}

// ReconfigureEvent bundles one reconfiguration's outcome for observers.
type ReconfigureEvent struct {
	Result Result
	Status Status
	Record calib.Record
}

// Observer is notified after every reconfiguration, the initial pass
// included. It runs on the control goroutine and must not block.
type Observer func(ReconfigureEvent)

type reconfigureEvent struct {
	cfg   camera.Config
	level camera.DisruptionLevel
	reply chan Result
}

type frameEvent struct {
	generation uint64
	frame      camera.Frame
}

type recordQuery struct {
	reply chan calib.Record
}

type statusQuery struct {
	reply chan Status
}

// Node is the camera actor. It owns the session, the calibration record
// value, and the frame bridge; Run's goroutine is the only one that touches
// them. Everything else talks to the node by posting events.
type Node struct {
	session  *camera.Session
	synth    *calib.Synthesizer
	bridge   *Bridge
	initial  camera.Config
	logf     func(format string, v ...interface{})
	observer Observer

	events chan interface{}

	// Actor-owned state, touched only inside Run.
	record      calib.Record
	framesSeen  uint64
	framesStale uint64

	// framesDropped is bumped on the driver's delivery goroutine when the
	// mailbox is full, so it is the one counter that needs an atomic.
	framesDropped atomic.Uint64
}

// NodeOption adjusts node construction.
type NodeOption func(*Node)

// WithNodeLogger routes node logs through f.
func WithNodeLogger(f func(format string, v ...interface{})) NodeOption {
	return func(n *Node) { n.logf = f }
}

// WithNodeRecord seeds the owned calibration record, typically with the
// store's last saved value so the camera resumes where it left off.
func WithNodeRecord(rec calib.Record) NodeOption {
	return func(n *Node) { n.record = rec }
}

// WithNodeObserver registers f to receive every reconfiguration outcome.
func WithNodeObserver(f Observer) NodeOption {
	return func(n *Node) { n.observer = f }
}

// NewNode assembles the actor. initial is the configuration applied by the
// first reconfiguration when Run starts.
func NewNode(session *camera.Session, synth *calib.Synthesizer, bridge *Bridge, initial camera.Config, opts ...NodeOption) *Node {
	n := &Node{
		session: session,
		synth:   synth,
		bridge:  bridge,
		initial: initial,
		logf:    monitoring.Logf,
		events:  make(chan interface{}, eventQueueDepth),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run starts the session, applies the initial configuration, and drains the
// event channel until ctx is cancelled. The initial start is the one call
// whose failure is returned rather than absorbed: a daemon that cannot open
// its camera at startup has nothing to serve.
func (n *Node) Run(ctx context.Context) error {
	if err := n.startSession(ctx); err != nil {
		return err
	}

	// The first reconfiguration always carries the full-disruption
	// sentinel, so the session restarts once right after starting. The
	// redundant cycle is tolerated; it keeps the initial path identical
	// to every later stop-level reconfiguration.
	res := n.handleReconfigure(ctx, n.initial, camera.LevelAll)
	if res.Message != "" {
		n.logf("[control] initial configuration not fully applied: %s", res.Message)
	}

	for {
		select {
		case <-ctx.Done():
			if err := n.session.Stop(); err != nil {
				n.logf("[control] stop at shutdown: %v", err)
			}
			return ctx.Err()

		case ev := <-n.events:
			n.handle(ctx, ev)
		}
	}
}

func (n *Node) handle(ctx context.Context, ev interface{}) {
	switch ev := ev.(type) {
	case reconfigureEvent:
		ev.reply <- n.handleReconfigure(ctx, ev.cfg, ev.level)

	case frameEvent:
		n.framesSeen++
		if ev.generation != n.session.Generation() {
			n.framesStale++
			return
		}
		n.bridge.OnFrame(n.record, ev.frame)

	case recordQuery:
		ev.reply <- n.record

	case statusQuery:
		ev.reply <- n.snapshot()
	}
}

// Reconfigure posts a reconfiguration and waits for its result. The error
// covers only the wait itself; failures inside the reconfiguration are
// absorbed into the Result.
func (n *Node) Reconfigure(ctx context.Context, cfg camera.Config, level camera.DisruptionLevel) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case n.events <- reconfigureEvent{cfg: cfg, level: level, reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Record returns the actor's current calibration record.
func (n *Node) Record(ctx context.Context) (calib.Record, error) {
	reply := make(chan calib.Record, 1)
	select {
	case n.events <- recordQuery{reply: reply}:
	case <-ctx.Done():
		return calib.Record{}, ctx.Err()
	}
	select {
	case rec := <-reply:
		return rec, nil
	case <-ctx.Done():
		return calib.Record{}, ctx.Err()
	}
}

// Snapshot returns a point-in-time status of the node.
func (n *Node) Snapshot(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case n.events <- statusQuery{reply: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// startSession registers a fresh generation-tagged delivery callback and
// starts the session. The tag is fixed in the closure before the device can
// deliver, so a frame from an older acquisition can never masquerade as a
// current one.
func (n *Node) startSession(ctx context.Context) error {
	next := n.session.Generation() + 1
	n.session.SetFrameFunc(func(f camera.Frame) {
		select {
		case n.events <- frameEvent{generation: next, frame: f}:
		default:
			n.framesDropped.Add(1)
		}
	})
	return n.session.Start(ctx)
}

// handleReconfigure runs the reconfiguration algorithm inside the actor.
// Every failure is logged and reported in the Result; none propagates.
func (n *Node) handleReconfigure(ctx context.Context, cfg camera.Config, level camera.DisruptionLevel) Result {
	res := Result{Level: level}

	cfg, err := cfg.Normalize()
	res.FrameID = cfg.FrameID
	if err != nil {
		n.logf("[control] rejecting configuration: %v", err)
		res.Message = err.Error()
	} else if err := n.reconfigure(ctx, cfg, level, &res); err != nil {
		n.logf("[control] error reconfiguring %s: %v", cfg.FrameID, err)
		res.Message = err.Error()
	}

	if n.observer != nil {
		n.observer(ReconfigureEvent{Result: res, Status: n.snapshot(), Record: n.record})
	}
	return res
}

func (n *Node) reconfigure(ctx context.Context, cfg camera.Config, level camera.DisruptionLevel, res *Result) error {
	if level.RequiresStop() {
		// Stop releases the handle even when teardown reports an
		// error, so a failed stop is logged and the restart proceeds.
		if err := n.session.Stop(); err != nil {
			n.logf("[control] stop before restart: %v", err)
		}
		if err := n.startSession(ctx); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		res.Restarted = true
	}

	if err := n.session.Apply(cfg); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	res.Applied = true

	// The synthesized record is adopted even when persisting it failed;
	// the store is best-effort, the in-memory record is authoritative.
	rec, err := n.synth.Apply(ctx, n.record, cfg)
	n.record = rec
	res.RectifyValid = rec.ROI.RectifyValid
	if err != nil {
		return fmt.Errorf("persist calibration: %w", err)
	}

	n.logf("[control] reconfigured %s level=%s restarted=%t rectify_valid=%t",
		cfg.FrameID, level, res.Restarted, rec.ROI.RectifyValid)
	return nil
}

func (n *Node) snapshot() Status {
	st := Status{
		State:         n.session.State().String(),
		Generation:    n.session.Generation(),
		Identity:      n.session.Identity(),
		Config:        n.session.Config(),
		RectifyValid:  n.record.ROI.RectifyValid,
		FramesSeen:    n.framesSeen,
		FramesDropped: n.framesDropped.Load(),
		FramesStale:   n.framesStale,
		Bridge:        n.bridge.Stats(),
	}
	if info, ok := n.session.Info(); ok {
		st.Device = &info
	}
	st.Publisher = n.bridge.publisher.Stats()
	return st
}
