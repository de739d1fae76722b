package calib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camerad/internal/testutil"
)

// TestResolveURL verifies ${NAME} substitution.
func TestResolveURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file:///etc/calib/front.yaml",
		ResolveURL("file:///etc/calib/${NAME}.yaml", "front"))
	assert.Equal(t, "file:///etc/calib/plain.yaml",
		ResolveURL("file:///etc/calib/plain.yaml", "front"))
}

// TestValidateURL covers the accepted and rejected URL shapes.
func TestValidateURL(t *testing.T) {
	t.Parallel()

	path := testutil.WriteCalibrationYAML(t, "validate", 640, 480)

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		err := ValidateURL("")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("file URL", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ValidateURL("file://"+path))
	})

	t.Run("bare path", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ValidateURL(path))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		err := ValidateURL("file:///nonexistent/calibration.yaml")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("directory is not a document", func(t *testing.T) {
		t.Parallel()
		err := ValidateURL(filepath.Dir(path))
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("http with host", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, ValidateURL("http://calib.example.com/front.yaml"))
	})

	t.Run("http without host", func(t *testing.T) {
		t.Parallel()
		err := ValidateURL("http:///front.yaml")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()
		err := ValidateURL("ftp://calib.example.com/front.yaml")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})
}

// TestLoadURL_File verifies loading and parsing a local calibration document.
func TestLoadURL_File(t *testing.T) {
	t.Parallel()

	path := testutil.WriteCalibrationYAML(t, "front_camera", 640, 480)

	rec, err := LoadURL(context.Background(), "file://"+path)
	require.NoError(t, err)

	assert.Equal(t, "front_camera", rec.Name)
	assert.Equal(t, 640, rec.Width)
	assert.Equal(t, 480, rec.Height)
	assert.Equal(t, "plumb_bob", rec.DistortionModel)
	assert.Len(t, rec.D, 5)
	assert.Equal(t, 600.0, rec.K[0])
	assert.Equal(t, 1.0, rec.R[0])
	assert.Equal(t, 600.0, rec.P[0])
	assert.True(t, rec.Calibrated())
}

// TestLoadURL_HTTP verifies loading over HTTP, including error statuses.
func TestLoadURL_HTTP(t *testing.T) {
	t.Parallel()

	path := testutil.WriteCalibrationYAML(t, "remote", 1280, 960)
	doc, err := os.ReadFile(path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/remote.yaml" {
			http.NotFound(w, r)
			return
		}
		w.Write(doc)
	}))
	defer srv.Close()

	rec, err := LoadURL(context.Background(), srv.URL+"/remote.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1280, rec.Width)
	assert.Equal(t, 960, rec.Height)

	_, err = LoadURL(context.Background(), srv.URL+"/missing.yaml")
	assert.Error(t, err)
}

// TestLoadURL_Rejections covers malformed documents.
func TestLoadURL_Rejections(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "calib.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("not yaml", func(t *testing.T) {
		t.Parallel()
		path := write(t, "{{{{")
		_, err := LoadURL(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("zero geometry", func(t *testing.T) {
		t.Parallel()
		path := write(t, "camera_name: x\nimage_width: 0\nimage_height: 480\n")
		_, err := LoadURL(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("wrong camera matrix shape", func(t *testing.T) {
		t.Parallel()
		path := write(t, `image_width: 640
image_height: 480
camera_matrix:
  rows: 2
  cols: 3
  data: [1.0, 0.0, 0.0, 0.0, 1.0, 0.0]
`)
		_, err := LoadURL(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("short projection data", func(t *testing.T) {
		t.Parallel()
		path := write(t, `image_width: 640
image_height: 480
camera_matrix:
  rows: 3
  cols: 3
  data: [1, 0, 0, 0, 1, 0, 0, 0, 1]
rectification_matrix:
  rows: 3
  cols: 3
  data: [1, 0, 0, 0, 1, 0, 0, 0, 1]
projection_matrix:
  rows: 3
  cols: 4
  data: [1, 0, 0]
`)
		_, err := LoadURL(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()
		_, err := LoadURL(context.Background(), "ftp://host/calib.yaml")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})
}
