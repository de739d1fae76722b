// Package publish carries acquired frames to downstream consumers. Frames
// cross the converter boundary to become wire images, get paired with the
// calibration record in force when they were acquired, and fan out to
// subscribers without ever blocking the acquisition path.
package publish

import (
	"time"

	"github.com/banshee-data/camerad/internal/calib"
)

// Image is one frame ready for the wire: geometry, encoding, and a private
// copy of the pixel data. FrameID and Stamp are filled by the frame bridge,
// not the converter, so a pair's image and calibration always carry the same
// values.
type Image struct {
	FrameID  string    `json:"frame_id"`
	Stamp    time.Time `json:"stamp"`
	Height   uint32    `json:"height"`
	Width    uint32    `json:"width"`
	Encoding string    `json:"encoding"`
	Step     uint32    `json:"step"`
	Data     []byte    `json:"-"`
}

// Pair is the atomic publish unit: an image and the calibration record that
// was in force when the image was acquired, stamped identically.
type Pair struct {
	Image       Image        `json:"image"`
	Calibration calib.Record `json:"calibration"`
}
