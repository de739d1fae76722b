package calib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidURL indicates a calibration URL that cannot be used: empty,
// malformed, an unsupported scheme, or a missing file.
var ErrInvalidURL = errors.New("invalid calibration URL")

const (
	// maxDocumentSize caps remote calibration downloads. Calibration
	// documents are a few kilobytes; anything near the cap is garbage.
	maxDocumentSize = 1 << 20

	fetchTimeout = 10 * time.Second
)

var httpClient = &http.Client{Timeout: fetchTimeout}

// ResolveURL substitutes the ${NAME} placeholder with the camera name.
// Deployments use it to point a fleet of cameras at per-camera files
// through one configured URL.
func ResolveURL(raw, name string) string {
	return strings.ReplaceAll(raw, "${NAME}", name)
}

// ValidateURL reports whether the URL can serve a calibration document.
// file:// URLs and bare paths must name an existing regular file; http(s)
// URLs must parse with a host. Validation does not fetch.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	switch {
	case strings.HasPrefix(raw, "file://"):
		return validatePath(strings.TrimPrefix(raw, "file://"), raw)

	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		if u.Host == "" {
			return fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
		}
		return nil

	case strings.Contains(raw, "://"):
		return fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidURL, raw)
	}

	// No scheme: treat as a local path.
	return validatePath(raw, raw)
}

func validatePath(path, raw string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a regular file", ErrInvalidURL, raw)
	}
	return nil
}

// LoadURL fetches and parses the calibration document at the URL. The
// returned record carries the document's geometry and intrinsics; lifecycle
// fields like the stamp and ROI are left for the caller to fill.
func LoadURL(ctx context.Context, raw string) (Record, error) {
	data, err := fetch(ctx, raw)
	if err != nil {
		return Record{}, err
	}
	return parseDocument(data)
}

func fetch(ctx context.Context, raw string) ([]byte, error) {
	switch {
	case strings.HasPrefix(raw, "file://"):
		return os.ReadFile(strings.TrimPrefix(raw, "file://"))

	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", raw, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", raw, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))

	case strings.Contains(raw, "://"):
		return nil, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidURL, raw)
	}

	return os.ReadFile(raw)
}

type yamlMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

func (m yamlMatrix) check(name string, rows, cols int) error {
	if m.Rows != rows || m.Cols != cols {
		return fmt.Errorf("%s is %dx%d, want %dx%d", name, m.Rows, m.Cols, rows, cols)
	}
	if len(m.Data) != rows*cols {
		return fmt.Errorf("%s has %d values, want %d", name, len(m.Data), rows*cols)
	}
	return nil
}

type yamlCalibration struct {
	ImageWidth             int        `yaml:"image_width"`
	ImageHeight            int        `yaml:"image_height"`
	CameraName             string     `yaml:"camera_name"`
	CameraMatrix           yamlMatrix `yaml:"camera_matrix"`
	DistortionModel        string     `yaml:"distortion_model"`
	DistortionCoefficients yamlMatrix `yaml:"distortion_coefficients"`
	RectificationMatrix    yamlMatrix `yaml:"rectification_matrix"`
	ProjectionMatrix       yamlMatrix `yaml:"projection_matrix"`
}

func parseDocument(data []byte) (Record, error) {
	var doc yamlCalibration
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Record{}, fmt.Errorf("parse calibration document: %w", err)
	}

	if doc.ImageWidth <= 0 || doc.ImageHeight <= 0 {
		return Record{}, fmt.Errorf("calibration document has invalid geometry %dx%d",
			doc.ImageWidth, doc.ImageHeight)
	}
	if err := doc.CameraMatrix.check("camera_matrix", 3, 3); err != nil {
		return Record{}, err
	}
	if err := doc.RectificationMatrix.check("rectification_matrix", 3, 3); err != nil {
		return Record{}, err
	}
	if err := doc.ProjectionMatrix.check("projection_matrix", 3, 4); err != nil {
		return Record{}, err
	}
	if d := doc.DistortionCoefficients; len(d.Data) != d.Rows*d.Cols {
		return Record{}, fmt.Errorf("distortion_coefficients has %d values, want %d",
			len(d.Data), d.Rows*d.Cols)
	}

	rec := Record{
		Name:            doc.CameraName,
		Height:          doc.ImageHeight,
		Width:           doc.ImageWidth,
		DistortionModel: doc.DistortionModel,
		D:               doc.DistortionCoefficients.Data,
	}
	copy(rec.K[:], doc.CameraMatrix.Data)
	copy(rec.R[:], doc.RectificationMatrix.Data)
	copy(rec.P[:], doc.ProjectionMatrix.Data)
	return rec, nil
}
