package raster

import (
	"fmt"
	"math"
)

// MaxDimension is the practical per-side cap on input images. Larger inputs
// must be downscaled or rejected before they reach the pipeline.
const MaxDimension = 8000

// Image is a flat row-major RGBA8888 pixel buffer with value semantics.
// The invariant len(Pix) == Width*Height*4 holds for every validated Image.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// DimensionError reports an image whose geometry or buffer length is unusable.
type DimensionError struct {
	Width   int
	Height  int
	BufLen  int
	Message string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("invalid image dimensions %dx%d (buffer %d bytes): %s",
		e.Width, e.Height, e.BufLen, e.Message)
}

func New(width, height int) (*Image, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}, nil
}

// FromBytes wraps an existing RGBA buffer. The buffer is owned by the
// returned Image afterwards; callers that need the original intact should
// pass a copy.
func FromBytes(width, height int, pix []uint8) (*Image, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if len(pix) != width*height*4 {
		return nil, &DimensionError{
			Width:   width,
			Height:  height,
			BufLen:  len(pix),
			Message: fmt.Sprintf("buffer length must be %d", width*height*4),
		}
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return &DimensionError{Width: width, Height: height, Message: "width and height must be positive"}
	}
	if width > MaxDimension || height > MaxDimension {
		return &DimensionError{
			Width:   width,
			Height:  height,
			Message: fmt.Sprintf("exceeds maximum dimension %d", MaxDimension),
		}
	}
	return nil
}

// Validate re-checks the buffer invariant. Stages call this on entry so a
// corrupted buffer fails fast instead of producing partial output.
func (m *Image) Validate() error {
	if m == nil {
		return &DimensionError{Message: "nil image"}
	}
	if err := checkDimensions(m.Width, m.Height); err != nil {
		return err
	}
	if len(m.Pix) != m.Width*m.Height*4 {
		return &DimensionError{
			Width:   m.Width,
			Height:  m.Height,
			BufLen:  len(m.Pix),
			Message: fmt.Sprintf("buffer length must be %d", m.Width*m.Height*4),
		}
	}
	return nil
}

func (m *Image) Clone() *Image {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Pix: pix}
}

// Offset returns the index of pixel (x, y) in Pix.
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * 4
}

func (m *Image) SameSize(other *Image) bool {
	return other != nil && m.Width == other.Width && m.Height == other.Height
}

// Luminance computes BT.601 luma for one pixel.
func Luminance(r, g, b uint8) uint8 {
	return uint8(math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)))
}

// LuminanceF is the unrounded BT.601 luma, used where later stages keep
// working in floating point.
func LuminanceF(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Grayscale returns a copy with R=G=B=luma; alpha is preserved.
func (m *Image) Grayscale() *Image {
	out := m.Clone()
	for i := 0; i < len(out.Pix); i += 4 {
		y := Luminance(out.Pix[i], out.Pix[i+1], out.Pix[i+2])
		out.Pix[i] = y
		out.Pix[i+1] = y
		out.Pix[i+2] = y
	}
	return out
}

// Clamp rounds and clips a float channel value into [0, 255].
func Clamp(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// ClampInt clips an integer channel value into [0, 255].
func ClampInt(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// BlendPixel source-over composites (r, g, b, a) onto dst, a 4-byte RGBA
// pixel slice. a == 255 replaces, a == 0 is a no-op.
func BlendPixel(dst []uint8, r, g, b, a uint8) {
	switch a {
	case 0:
		return
	case 255:
		dst[0] = r
		dst[1] = g
		dst[2] = b
		dst[3] = 255
		return
	}
	alpha := int(a)
	inv := 255 - alpha
	dst[0] = uint8((int(r)*alpha + int(dst[0])*inv) / 255)
	dst[1] = uint8((int(g)*alpha + int(dst[1])*inv) / 255)
	dst[2] = uint8((int(b)*alpha + int(dst[2])*inv) / 255)
	outA := alpha + int(dst[3])*inv/255
	if outA > 255 {
		outA = 255
	}
	dst[3] = uint8(outA)
}
