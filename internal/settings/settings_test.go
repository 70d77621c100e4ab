package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocumentAppliesDefaultsForMissingFields(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"contour": {"levels": 16}}`))
	require.NoError(t, err)

	assert.Equal(t, 16, doc.Contour.Levels)
	assert.Equal(t, 100, doc.Contour.Transparency)
	assert.Equal(t, 65, doc.Contour.BrightnessThreshold)
	assert.Equal(t, 0, doc.Contour.ContourContrast)
	assert.Equal(t, 0.0, doc.Contour.MinContourDistance)
	assert.Equal(t, 50, doc.Canny.LowThreshold)
	assert.Equal(t, 150, doc.Canny.HighThreshold)
	assert.Equal(t, FilterGaussian, doc.Frequency.FilterMethod)
}

func TestDecodeDocumentEmptyInput(t *testing.T) {
	doc, err := DecodeDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDocument(), doc)
}

func TestDecodeDocumentRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeDocument([]byte(`{`))
	assert.Error(t, err)
}

func TestContourNormalizeClampsRanges(t *testing.T) {
	c := Contour{Levels: 0, Transparency: 900, MinContourDistance: -2, BrightnessThreshold: 300, ContourContrast: -5}
	c.Normalize()
	assert.Equal(t, 1, c.Levels)
	assert.Equal(t, 100, c.Transparency)
	assert.Equal(t, 0.0, c.MinContourDistance)
	assert.Equal(t, 255, c.BrightnessThreshold)
	assert.Equal(t, 0, c.ContourContrast)

	c = Contour{Levels: 100}
	c.Normalize()
	assert.Equal(t, 64, c.Levels)
}

func TestCannyNormalizeForcesSupportedAperture(t *testing.T) {
	c := Canny{LowThreshold: 10, HighThreshold: 400, ApertureSize: 7}
	c.Normalize()
	assert.Equal(t, 50, c.LowThreshold)
	assert.Equal(t, 300, c.HighThreshold)
	assert.Equal(t, 3, c.ApertureSize)
}

func TestFrequencyNormalizeFallsBackToGaussian(t *testing.T) {
	f := Frequency{FilterMethod: "bilateral", BlurRadius: -1, BrightIntensity: 9, DarkIntensity: -1}
	f.Normalize()
	assert.Equal(t, FilterGaussian, f.FilterMethod)
	assert.Equal(t, 0.0, f.BlurRadius)
	assert.Equal(t, 3.0, f.BrightIntensity)
	assert.Equal(t, 0.0, f.DarkIntensity)
}

func TestDisplayDefaults(t *testing.T) {
	d := DefaultDisplay()
	assert.True(t, d.Layers.Original)
	assert.False(t, d.Layers.Edge)
	assert.Equal(t, 100, d.FilterOpacity)
	assert.Equal(t, 100, d.EdgeOpacity)
}
