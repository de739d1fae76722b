// Package control runs the camera as a single-threaded actor. One goroutine
// owns the session, the calibration record, and the frame path; reconfigure
// requests, frames, and state queries all arrive through one ordered event
// channel, so no state needs a lock.
package control

import (
	"github.com/banshee-data/camerad/internal/calib"
	"github.com/banshee-data/camerad/internal/camera"
	"github.com/banshee-data/camerad/internal/monitoring"
	"github.com/banshee-data/camerad/internal/publish"
	"github.com/banshee-data/camerad/internal/timeutil"
)

// Bridge carries one frame from the driver callback to the publisher. It
// stamps with the transport clock, skips conversion when nobody is
// listening, and publishes image and calibration as one pair.
//
// Like the rest of the actor state it is driven by a single goroutine; the
// counters are plain fields.
type Bridge struct {
	converter publish.Converter
	publisher *publish.Publisher
	clock     timeutil.Clock
	logf      func(format string, v ...interface{})

	converted uint64
	failed    uint64
	skipped   uint64
}

// BridgeOption adjusts bridge construction.
type BridgeOption func(*Bridge)

// WithBridgeClock substitutes the clock used to stamp published pairs.
func WithBridgeClock(c timeutil.Clock) BridgeOption {
	return func(b *Bridge) { b.clock = c }
}

// WithBridgeLogger routes bridge logs through f.
func WithBridgeLogger(f func(format string, v ...interface{})) BridgeOption {
	return func(b *Bridge) { b.logf = f }
}

// NewBridge creates a bridge publishing converted frames through publisher.
func NewBridge(converter publish.Converter, publisher *publish.Publisher, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		converter: converter,
		publisher: publisher,
		clock:     timeutil.RealClock{},
		logf:      monitoring.Logf,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnFrame publishes the frame paired with the calibration record in force
// when it arrived. The stamp is taken at invocation, from the transport
// clock, not the frame's device timestamp. With no subscribers the frame is
// skipped before conversion; a conversion failure drops the frame and
// touches nothing.
func (b *Bridge) OnFrame(rec calib.Record, frame camera.Frame) {
	stamp := b.clock.Now()

	if !b.publisher.HasSubscribers() {
		b.skipped++
		return
	}

	img, err := b.converter.Convert(frame)
	if err != nil {
		b.failed++
		b.logf("[bridge] dropping frame: %v", err)
		return
	}

	img.FrameID = rec.FrameID
	img.Stamp = stamp
	rec.Stamp = stamp
	b.publisher.Publish(publish.Pair{Image: img, Calibration: rec})
	b.converted++
}

// BridgeStats is a snapshot of the frame-path counters.
type BridgeStats struct {
	Converted uint64 `json:"converted"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
}

// Stats returns the frame-path counters. Call from the owning goroutine.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{Converted: b.converted, Failed: b.failed, Skipped: b.skipped}
}
