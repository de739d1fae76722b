package camera

import "testing"

func TestConfigNormalize_FrameIDFallback(t *testing.T) {
	cfg, err := Config{FrameID: ""}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if cfg.FrameID != DefaultFrameID {
		t.Errorf("FrameID = %q, want %q", cfg.FrameID, DefaultFrameID)
	}

	cfg, err = Config{FrameID: "left_optical"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if cfg.FrameID != "left_optical" {
		t.Errorf("FrameID = %q, want left_optical", cfg.FrameID)
	}
}

func TestConfigNormalize_BinningFloor(t *testing.T) {
	cfg, err := Config{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if cfg.BinningX != 1 || cfg.BinningY != 1 {
		t.Errorf("binning = %dx%d, want 1x1", cfg.BinningX, cfg.BinningY)
	}

	if _, err := (Config{BinningX: -1}).Normalize(); err == nil {
		t.Error("expected error for negative binning")
	}
}

func TestConfigNormalize_Rejections(t *testing.T) {
	bad := []Config{
		{Height: -1},
		{Width: -480},
		{ROIOffsetX: -1},
		{ROIHeight: -10},
		{ExposureUS: -5},
		{AcquisitionRate: -1},
	}
	for i, cfg := range bad {
		if _, err := cfg.Normalize(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, cfg)
		}
	}
}

func TestConfigEqual(t *testing.T) {
	a := Config{FrameID: "camera", BinningX: 1, BinningY: 1, Width: 640}
	b := Config{Width: 640} // normalizes to the same snapshot

	if !a.Equal(b) {
		t.Error("expected configs to be equal after normalization")
	}

	b.Width = 800
	if a.Equal(b) {
		t.Error("expected configs with different widths to differ")
	}
}

func TestConfigDiffLevel(t *testing.T) {
	base := Config{FrameID: "camera", Width: 640, Height: 480, BinningX: 1, BinningY: 1}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   DisruptionLevel
	}{
		{"no change", func(c *Config) {}, LevelNone},
		{"width", func(c *Config) { c.Width = 800 }, LevelStop},
		{"height", func(c *Config) { c.Height = 600 }, LevelStop},
		{"binning", func(c *Config) { c.BinningX = 2 }, LevelStop},
		{"roi offset", func(c *Config) { c.ROIOffsetY = 8 }, LevelStop},
		{"roi size", func(c *Config) { c.ROIWidth = 320 }, LevelStop},
		{"pixel format", func(c *Config) { c.PixelFormat = string(FormatMono16) }, LevelStop},
		{"frame id", func(c *Config) { c.FrameID = "rear" }, LevelNone},
		{"calibration url", func(c *Config) { c.CalibrationURL = "file:///tmp/c.yaml" }, LevelNone},
		{"exposure", func(c *Config) { c.ExposureUS = 900 }, LevelNone},
		{"gain", func(c *Config) { c.Gain = 2.5 }, LevelNone},
		{"rate", func(c *Config) { c.AcquisitionRate = 15 }, LevelNone},
	}

	for _, tc := range tests {
		cfg := base
		tc.mutate(&cfg)
		if got := cfg.DiffLevel(base); got != tc.want {
			t.Errorf("%s: DiffLevel = %v, want %v", tc.name, got, tc.want)
		}
	}
}
