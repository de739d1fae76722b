package testutil

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
)

// TestAssertStatusCode verifies that AssertStatusCode executes without panicking.
// Note: Testing t.Errorf/t.Fatalf calls requires a mock testing.T implementation
// which adds complexity. These helpers are best validated through integration
// tests where they're actually used.
func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestAssertStatusCode_FailurePath(t *testing.T) {
	t.Parallel()

	ok := t.Run("status mismatch", func(t *testing.T) {
		AssertStatusCode(t, http.StatusOK, http.StatusBadRequest)
	})
	if ok {
		t.Fatal("expected subtest to fail on mismatched status code")
	}
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)
}

func TestAssertNoError_FailurePath(t *testing.T) {
	t.Parallel()

	ok := t.Run("unexpected error", func(t *testing.T) {
		AssertNoError(t, errors.New("boom"))
	})
	if ok {
		t.Fatal("expected subtest to fail when error is non-nil")
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	AssertError(t, errors.New("test error"))
}

func TestAssertError_FailurePath(t *testing.T) {
	t.Parallel()

	ok := t.Run("missing expected error", func(t *testing.T) {
		AssertError(t, nil)
	})
	if ok {
		t.Fatal("expected subtest to fail when error is nil")
	}
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest("GET", "/test")
	if req.Method != "GET" {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.URL.Path != "/test" {
		t.Errorf("path = %s, want /test", req.URL.Path)
	}
}

func TestNewTestRecorder(t *testing.T) {
	t.Parallel()

	rec := NewTestRecorder()
	if rec == nil {
		t.Fatal("recorder is nil")
	}
}

func TestTempDBPath(t *testing.T) {
	t.Parallel()

	path := TempDBPath(t)
	if !strings.HasSuffix(path, "test.db") {
		t.Errorf("path = %s, want test.db suffix", path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected path not to exist yet, stat err = %v", err)
	}
}

func TestWriteCalibrationYAML(t *testing.T) {
	t.Parallel()

	path := WriteCalibrationYAML(t, "front_camera", 640, 480)
	data, err := os.ReadFile(path)
	AssertNoError(t, err)

	content := string(data)
	for _, want := range []string{
		"camera_name: front_camera",
		"image_width: 640",
		"image_height: 480",
		"distortion_model: plumb_bob",
		"projection_matrix",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("fixture missing %q", want)
		}
	}
}
