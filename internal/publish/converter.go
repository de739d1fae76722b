package publish

import (
	"errors"
	"fmt"

	"github.com/banshee-data/camerad/internal/camera"
)

var (
	// ErrUnsupportedFormat indicates a device pixel format with no wire
	// encoding. The frame is dropped.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")

	// ErrConversionFailed indicates a frame whose payload does not match
	// its declared geometry. The frame is dropped.
	ErrConversionFailed = errors.New("frame conversion failed")
)

// Converter turns an acquired frame into a wire image. Implementations that
// cannot convert a frame return an error and the frame is dropped; the
// stream continues with the next frame.
type Converter interface {
	Convert(camera.Frame) (Image, error)
}

// RawConverter passes pixel data through untouched. It maps the device
// format to its wire encoding name and copies the payload out of the
// driver's buffer; it never does pixel-level work like debayering.
type RawConverter struct{}

// Convert wraps the frame as an image. The step is derived from the payload
// size, so packed formats keep their device layout.
func (RawConverter) Convert(f camera.Frame) (Image, error) {
	encoding, ok := f.PixelFormat().Encoding()
	if !ok {
		return Image{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.PixelFormat())
	}

	data := f.Bytes()
	height := f.Height()
	if height == 0 || len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty %dx%d frame", ErrConversionFailed, f.Width(), height)
	}
	if len(data)%int(height) != 0 {
		return Image{}, fmt.Errorf("%w: %d bytes does not divide into %d rows",
			ErrConversionFailed, len(data), height)
	}

	// The driver may reuse its buffer for the next frame; take our own copy.
	payload := make([]byte, len(data))
	copy(payload, data)

	return Image{
		Height:   height,
		Width:    f.Width(),
		Encoding: encoding,
		Step:     uint32(len(data)) / height,
		Data:     payload,
	}, nil
}
