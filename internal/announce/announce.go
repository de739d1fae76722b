// Package announce publishes camera lifecycle and calibration state over
// MQTT so fleet tooling can watch cameras without polling their HTTP APIs.
package announce

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/camerad/internal/calib"
	"github.com/banshee-data/camerad/internal/control"
	"github.com/banshee-data/camerad/internal/monitoring"
)

const (
	defaultPrefix  = "camerad"
	connectTimeout = 5 * time.Second
)

// Announcer mirrors camera state onto retained MQTT topics. All methods are
// safe on a nil receiver, which is how a daemon with no broker configured
// runs.
type Announcer struct {
	client mqtt.Client
	prefix string
	logf   func(format string, v ...interface{})
}

// Option adjusts announcer construction.
type Option func(*Announcer)

// WithLogger routes announcer logs through f.
func WithLogger(f func(format string, v ...interface{})) Option {
	return func(a *Announcer) { a.logf = f }
}

// WithPrefix overrides the topic prefix, camerad by default.
func WithPrefix(prefix string) Option {
	return func(a *Announcer) { a.prefix = prefix }
}

func newAnnouncer(client mqtt.Client, opts ...Option) *Announcer {
	a := &Announcer{
		client: client,
		prefix: defaultPrefix,
		logf:   monitoring.Logf,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect dials the broker and returns a ready announcer. The broker keeps
// an offline state for the camera as the connection's will, so watchers see
// a crash without the daemon getting a say.
func Connect(broker, clientID, frameID string, opts ...Option) (*Announcer, error) {
	a := newAnnouncer(nil, opts...)

	will, err := json.Marshal(stateMessage{State: "offline", FrameID: frameID})
	if err != nil {
		return nil, err
	}

	options := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	options.SetKeepAlive(30 * time.Second)
	options.SetPingTimeout(5 * time.Second)
	options.SetAutoReconnect(true)
	options.SetBinaryWill(a.stateTopic(frameID), will, 0, true)

	client := mqtt.NewClient(options)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}

	a.client = client
	return a, nil
}

// Close announces the camera offline and disconnects.
func (a *Announcer) Close() {
	if a == nil {
		return
	}
	a.client.Disconnect(250)
}

// stateMessage is the retained per-camera state document.
type stateMessage struct {
	State        string `json:"state"`
	FrameID      string `json:"frame_id"`
	Generation   uint64 `json:"generation,omitempty"`
	Restarted    bool   `json:"restarted,omitempty"`
	Applied      bool   `json:"applied,omitempty"`
	RectifyValid bool   `json:"rectify_valid,omitempty"`
	Message      string `json:"message,omitempty"`
}

// calibrationMessage summarises the applied record. Full intrinsics stay in
// the store; subscribers that need them fetch over HTTP.
type calibrationMessage struct {
	Name         string `json:"name"`
	FrameID      string `json:"frame_id"`
	Height       int    `json:"height"`
	Width        int    `json:"width"`
	Calibrated   bool   `json:"calibrated"`
	RectifyValid bool   `json:"rectify_valid"`
}

// ObserveReconfigure publishes the state and calibration topics for one
// reconfiguration outcome. It is shaped to hang off the controller's
// observer hook and never blocks on the broker.
func (a *Announcer) ObserveReconfigure(ev control.ReconfigureEvent) {
	if a == nil {
		return
	}

	frameID := ev.Result.FrameID
	a.publish(a.stateTopic(frameID), stateMessage{
		State:        ev.Status.State,
		FrameID:      frameID,
		Generation:   ev.Status.Generation,
		Restarted:    ev.Result.Restarted,
		Applied:      ev.Result.Applied,
		RectifyValid: ev.Result.RectifyValid,
		Message:      ev.Result.Message,
	})
	a.announceCalibration(frameID, ev.Record)
}

// AnnounceOffline retains an offline state for the camera. Graceful
// shutdowns call it because a clean disconnect never fires the will.
func (a *Announcer) AnnounceOffline(frameID string) {
	if a == nil {
		return
	}
	a.publish(a.stateTopic(frameID), stateMessage{State: "offline", FrameID: frameID})
}

func (a *Announcer) announceCalibration(frameID string, rec calib.Record) {
	a.publish(a.calibrationTopic(frameID), calibrationMessage{
		Name:         rec.Name,
		FrameID:      rec.FrameID,
		Height:       rec.Height,
		Width:        rec.Width,
		Calibrated:   rec.Calibrated(),
		RectifyValid: rec.ROI.RectifyValid,
	})
}

// publish marshals and fires the message at QoS 0, retained. Delivery is
// best effort; a camera must keep streaming through a broker outage.
func (a *Announcer) publish(topic string, msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		a.logf("[announce] failed to encode %s: %v", topic, err)
		return
	}
	a.client.Publish(topic, 0, true, payload)
}

func (a *Announcer) stateTopic(frameID string) string {
	return fmt.Sprintf("%s/%s/state", a.prefix, frameID)
}

func (a *Announcer) calibrationTopic(frameID string) string {
	return fmt.Sprintf("%s/%s/calibration", a.prefix, frameID)
}
