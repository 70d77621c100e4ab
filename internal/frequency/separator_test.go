package frequency

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layerscope/internal/backend"
	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

func noisyImage(t *testing.T, width, height int) *raster.Image {
	t.Helper()
	img, err := raster.New(width, height)
	require.NoError(t, err)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := img.Offset(x, y)
			img.Pix[off] = uint8((x*37 + y*11) % 256)
			img.Pix[off+1] = uint8((x*13 + y*53) % 256)
			img.Pix[off+2] = uint8((x * y) % 256)
			img.Pix[off+3] = 255
		}
	}
	return img
}

func TestLinearLightRoundTrip(t *testing.T) {
	s := NewSeparator(nil, nil)
	img := noisyImage(t, 16, 16)

	cfg := settings.DefaultFrequency()
	cfg.BlurRadius = 4
	result, err := s.Separate(context.Background(), img, cfg)
	require.NoError(t, err)

	reconstructed, err := LinearLight(result.Low, result.Combined)
	require.NoError(t, err)

	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			diff := math.Abs(float64(img.Pix[i+c]) - float64(reconstructed.Pix[i+c]))
			require.LessOrEqual(t, diff, 1.0, "channel %d at offset %d", c, i)
		}
	}
}

func TestUnitIntensityFilteredMatchesOriginal(t *testing.T) {
	s := NewSeparator(nil, nil)
	img := noisyImage(t, 12, 12)

	cfg := settings.DefaultFrequency()
	cfg.BlurRadius = 3
	cfg.BrightIntensity = 1
	cfg.DarkIntensity = 1
	result, err := s.Separate(context.Background(), img, cfg)
	require.NoError(t, err)

	// filtered = low + diff exactly reproduces the original.
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			assert.Equal(t, img.Pix[i+c], result.Filtered.Pix[i+c])
		}
	}
}

func TestUniformImageEncodesNeutralDetail(t *testing.T) {
	s := NewSeparator(nil, nil)
	img, err := raster.New(8, 8)
	require.NoError(t, err)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 90
		img.Pix[i+1] = 90
		img.Pix[i+2] = 90
		img.Pix[i+3] = 255
	}

	result, err := s.Separate(context.Background(), img, settings.DefaultFrequency())
	require.NoError(t, err)

	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, 128, int(result.Combined.Pix[i+c]), 1)
			assert.InDelta(t, 128, int(result.Bright.Pix[i+c]), 1)
			assert.InDelta(t, 128, int(result.Dark.Pix[i+c]), 1)
			assert.InDelta(t, 90, int(result.Low.Pix[i+c]), 1)
		}
	}
}

func TestBrightAndDarkSplitBySign(t *testing.T) {
	s := NewSeparator(nil, nil)
	// A sharp bright spike on a dark field.
	img, err := raster.New(9, 9)
	require.NoError(t, err)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	off := img.Offset(4, 4)
	img.Pix[off] = 255
	img.Pix[off+1] = 255
	img.Pix[off+2] = 255

	cfg := settings.DefaultFrequency()
	cfg.BlurRadius = 3
	result, err := s.Separate(context.Background(), img, cfg)
	require.NoError(t, err)

	// The spike shows up above mid-gray in the bright layer and stays
	// neutral in the dark layer.
	assert.Greater(t, result.Bright.Pix[off], uint8(128))
	assert.Equal(t, uint8(128), result.Dark.Pix[off])

	// Blur leaks the spike into its surroundings, so next to it the
	// original sits below the base and the dark layer records detail.
	neighbor := img.Offset(4, 5)
	assert.Less(t, result.Dark.Pix[neighbor], uint8(128))
}

func TestMedianFilterMethod(t *testing.T) {
	s := NewSeparator(nil, nil)
	img := noisyImage(t, 10, 10)

	cfg := settings.DefaultFrequency()
	cfg.FilterMethod = settings.FilterMedian
	cfg.BlurRadius = 2
	result, err := s.Separate(context.Background(), img, cfg)
	require.NoError(t, err)
	require.NoError(t, result.Low.Validate())

	reconstructed, err := LinearLight(result.Low, result.Combined)
	require.NoError(t, err)
	for i := 0; i < len(img.Pix); i += 4 {
		require.InDelta(t, float64(img.Pix[i]), float64(reconstructed.Pix[i]), 1)
	}
}

func TestSeparateAcceleratedWithoutBackendFails(t *testing.T) {
	s := NewSeparator(nil, nil)
	cfg := settings.DefaultFrequency()
	cfg.UseAccelerated = true
	_, err := s.Separate(context.Background(), noisyImage(t, 8, 8), cfg)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestLinearLightSizeMismatch(t *testing.T) {
	a, err := raster.New(4, 4)
	require.NoError(t, err)
	b, err := raster.New(5, 4)
	require.NoError(t, err)
	_, err = LinearLight(a, b)
	assert.Error(t, err)
}
