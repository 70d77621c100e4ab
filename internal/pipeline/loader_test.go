package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layerscope/internal/raster"
)

func encodePNG(t *testing.T, img image.Image) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestLoadPNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(2, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	l := NewLoader(nil)
	img, format, err := l.Load(encodePNG(t, src))
	require.NoError(t, err)

	assert.Equal(t, "png", format)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)

	off := img.Offset(0, 0)
	assert.Equal(t, uint8(10), img.Pix[off])
	assert.Equal(t, uint8(20), img.Pix[off+1])
	assert.Equal(t, uint8(30), img.Pix[off+2])

	off = img.Offset(2, 1)
	assert.Equal(t, uint8(200), img.Pix[off])
}

func TestLoadNonZeroOriginNormalized(t *testing.T) {
	// Sub-images carry a shifted Rect; loading must flatten it away.
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 30), A: 255})
		}
	}
	sub := src.SubImage(image.Rect(2, 2, 6, 6))

	l := NewLoader(nil)
	img, _, err := l.Load(encodePNG(t, sub))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 4, img.Height)
	assert.Equal(t, uint8(2*30), img.Pix[img.Offset(0, 0)])
}

func TestLoadGarbageFails(t *testing.T) {
	l := NewLoader(nil)
	_, _, err := l.Load(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestLoadOversizeRejected(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, raster.MaxDimension+1, 2))

	l := NewLoader(nil)
	_, _, err := l.Load(encodePNG(t, src))
	require.Error(t, err)

	var dimErr *raster.DimensionError
	assert.ErrorAs(t, err, &dimErr)
}

func TestLoadOversizeDownscaled(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, raster.MaxDimension+100, 4))

	l := NewLoader(nil)
	l.DownscaleOversize = true
	img, _, err := l.Load(encodePNG(t, src))
	require.NoError(t, err)

	assert.Equal(t, raster.MaxDimension, img.Width)
	assert.GreaterOrEqual(t, img.Height, 1)
	assert.LessOrEqual(t, img.Height, 4)
}
