// Package calib manages camera calibration metadata: the record that rides
// alongside every published image, the URL-addressed sources it is loaded
// from, and the store that persists it across restarts.
package calib

import "time"

// ROI describes the region of interest a record applies to, in un-binned
// full-resolution pixel units. RectifyValid reports whether the record's
// intrinsics can rectify images of the currently configured geometry.
type ROI struct {
	OffsetX      int  `json:"offset_x"`
	OffsetY      int  `json:"offset_y"`
	Height       int  `json:"height"`
	Width        int  `json:"width"`
	RectifyValid bool `json:"rectify_valid"`
}

// Record is one camera's calibration metadata. The geometry fields mirror
// the applied camera configuration; the intrinsics come from a calibration
// source and survive geometry merges untouched.
type Record struct {
	Name    string    `json:"name"`
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`

	Height   int `json:"height"`
	Width    int `json:"width"`
	BinningX int `json:"binning_x"`
	BinningY int `json:"binning_y"`

	ROI ROI `json:"roi"`

	DistortionModel string      `json:"distortion_model,omitempty"`
	D               []float64   `json:"d,omitempty"`
	K               [9]float64  `json:"k"`
	R               [9]float64  `json:"r"`
	P               [12]float64 `json:"p"`
}

// Calibrated reports whether the record carries loaded intrinsics rather
// than just mirrored geometry. An unloaded camera matrix has a zero focal
// length.
func (r Record) Calibrated() bool {
	return r.K[0] != 0
}
