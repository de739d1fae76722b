package calib

import (
	"context"

	"github.com/banshee-data/camerad/internal/camera"
	"github.com/banshee-data/camerad/internal/monitoring"
)

// Synthesizer keeps a calibration record consistent with the applied camera
// configuration. It merges operational geometry into the record, reloads
// intrinsics when the configured source URL changes, derives the
// rectification validity flag, and persists the result.
//
// The record itself is owned by the caller and passed through Apply; the
// synthesizer owns only the source-URL bookkeeping and the store handle.
type Synthesizer struct {
	store   *Store
	logf    func(format string, v ...interface{})
	lastURL string
}

// SynthOption adjusts synthesizer construction.
type SynthOption func(*Synthesizer)

// WithSynthLogger routes synthesizer logs through f.
func WithSynthLogger(f func(format string, v ...interface{})) SynthOption {
	return func(s *Synthesizer) { s.logf = f }
}

// NewSynthesizer creates a synthesizer persisting through store. A nil store
// disables persistence.
func NewSynthesizer(store *Store, opts ...SynthOption) *Synthesizer {
	s := &Synthesizer{
		store: store,
		logf:  monitoring.Logf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastURL returns the source URL most recently considered applied.
func (s *Synthesizer) LastURL() string {
	return s.lastURL
}

// Apply merges cfg into current and returns the resulting record.
//
// The record's own height and width are the calibration's native resolution
// and are not overwritten by the configured capture geometry; they change
// only when a source reload replaces the record, or when an uncalibrated
// record adopts the configured geometry as its starting point. A source URL
// that fails validation or loading is warned about and otherwise ignored,
// leaving the merged record in force.
//
// The returned error reports persistence failure only; the merged record is
// valid and should be adopted by the caller even then.
func (s *Synthesizer) Apply(ctx context.Context, current Record, cfg camera.Config) (Record, error) {
	rec := current
	rec.FrameID = cfg.FrameID
	rec.BinningX = cfg.BinningX
	rec.BinningY = cfg.BinningY
	rec.ROI.OffsetX = cfg.ROIOffsetX
	rec.ROI.OffsetY = cfg.ROIOffsetY
	rec.ROI.Height = cfg.ROIHeight
	rec.ROI.Width = cfg.ROIWidth
	if rec.Name == "" {
		rec.Name = cfg.FrameID
	}
	if rec.Height == 0 && rec.Width == 0 {
		// Never calibrated: adopt the configured geometry as the
		// native resolution so rectification stays permissive.
		rec.Height = cfg.Height
		rec.Width = cfg.Width
	}

	if cfg.CalibrationURL != s.lastURL {
		rec.Name = cfg.FrameID
		resolved := ResolveURL(cfg.CalibrationURL, cfg.FrameID)
		if err := ValidateURL(resolved); err != nil {
			s.logf("[calib] calibration URL not valid: %v", err)
		} else if loaded, err := LoadURL(ctx, resolved); err != nil {
			s.logf("[calib] failed to load calibration from %s: %v", resolved, err)
		} else {
			loaded.Name = cfg.FrameID
			loaded.FrameID = cfg.FrameID
			loaded.Stamp = current.Stamp
			rec = loaded
			s.logf("[calib] loaded calibration %q (%dx%d) from %s",
				loaded.Name, loaded.Width, loaded.Height, resolved)
		}
		s.lastURL = cfg.CalibrationURL
	}

	rec.ROI.RectifyValid = (rec.Height == cfg.ROIHeight && rec.Width == cfg.ROIWidth) ||
		(rec.Width == cfg.Width && rec.Height == cfg.Height)

	if s.store != nil {
		if err := s.store.Save(rec, s.lastURL); err != nil {
			return rec, err
		}
	}
	return rec, nil
}
