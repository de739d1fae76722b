package camera

import "fmt"

// DefaultFrameID is the identifier assumed when a configuration arrives with
// an empty frame ID. Downstream consumers key published images and
// calibration records on this value, so it must never be empty.
const DefaultFrameID = "camera"

// Config is a complete snapshot of the camera's requested settings. Snapshots
// are applied as one unit; the device never sees a partial update. ROI fields
// are expressed in un-binned full-resolution pixel units.
type Config struct {
	FrameID string `json:"frame_id"`

	Height   int `json:"height"`
	Width    int `json:"width"`
	BinningX int `json:"binning_x"`
	BinningY int `json:"binning_y"`

	ROIOffsetX int `json:"roi_offset_x"`
	ROIOffsetY int `json:"roi_offset_y"`
	ROIHeight  int `json:"roi_height"`
	ROIWidth   int `json:"roi_width"`

	CalibrationURL string `json:"calibration_url"`

	PixelFormat     string  `json:"pixel_format"`
	ExposureUS      float64 `json:"exposure_us"`
	Gain            float64 `json:"gain"`
	AcquisitionRate float64 `json:"acquisition_rate"`
}

// Normalize validates the configuration and applies defaults for any unset
// values. An empty frame ID falls back to DefaultFrameID and zero binning
// factors are floored to 1, mirroring how the device itself treats them.
func (c Config) Normalize() (Config, error) {
	cfg := c

	if cfg.FrameID == "" {
		cfg.FrameID = DefaultFrameID
	}

	if cfg.BinningX == 0 {
		cfg.BinningX = 1
	}
	if cfg.BinningY == 0 {
		cfg.BinningY = 1
	}
	if cfg.BinningX < 1 || cfg.BinningY < 1 {
		return cfg, fmt.Errorf("invalid binning %dx%d: factors must be >= 1", cfg.BinningX, cfg.BinningY)
	}

	if cfg.Height < 0 || cfg.Width < 0 {
		return cfg, fmt.Errorf("invalid dimensions %dx%d: must be >= 0", cfg.Width, cfg.Height)
	}

	if cfg.ROIOffsetX < 0 || cfg.ROIOffsetY < 0 || cfg.ROIHeight < 0 || cfg.ROIWidth < 0 {
		return cfg, fmt.Errorf("invalid ROI %dx%d+%d+%d: values must be >= 0",
			cfg.ROIWidth, cfg.ROIHeight, cfg.ROIOffsetX, cfg.ROIOffsetY)
	}

	if cfg.ExposureUS < 0 {
		return cfg, fmt.Errorf("invalid exposure %fus: must be >= 0", cfg.ExposureUS)
	}
	if cfg.AcquisitionRate < 0 {
		return cfg, fmt.Errorf("invalid acquisition rate %f: must be >= 0", cfg.AcquisitionRate)
	}

	return cfg, nil
}

// Equal reports whether two configurations describe the same camera settings
// after normalization.
func (c Config) Equal(other Config) bool {
	a, errA := c.Normalize()
	b, errB := other.Normalize()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// DiffLevel returns the disruption bundle for moving from prev to c: the OR
// of the per-field levels of every field that changed. Geometry and pixel
// format changes require the acquisition to stop; runtime scalars, the frame
// ID, and the calibration source apply to a streaming camera.
func (c Config) DiffLevel(prev Config) DisruptionLevel {
	level := LevelNone

	if c.Height != prev.Height || c.Width != prev.Width ||
		c.BinningX != prev.BinningX || c.BinningY != prev.BinningY ||
		c.ROIOffsetX != prev.ROIOffsetX || c.ROIOffsetY != prev.ROIOffsetY ||
		c.ROIHeight != prev.ROIHeight || c.ROIWidth != prev.ROIWidth ||
		c.PixelFormat != prev.PixelFormat {
		level |= LevelStop
	}

	return level
}
