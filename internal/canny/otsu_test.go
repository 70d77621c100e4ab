package canny

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOtsuBimodalThresholdNearMidpoint(t *testing.T) {
	d := NewDetector(nil, nil)
	// Half the pixels at 30, half at 220.
	img := grayImage(t, 16, 16, func(x, y int) uint8 {
		if x < 8 {
			return 30
		}
		return 220
	})

	thresholds, err := d.OptimalThresholds(img)
	require.NoError(t, err)

	assert.Less(t, thresholds.Low, thresholds.High)
	// Between-class variance is flat across the valley; the midpoint of
	// the plateau is (30+219)/2.
	assert.InDelta(t, 125, float64(thresholds.High)/1.5, 3)
	assert.InDelta(t, 0.5*124, float64(thresholds.Low), 2)
}

func TestOtsuDeterministic(t *testing.T) {
	d := NewDetector(nil, nil)
	img := grayImage(t, 16, 16, func(x, y int) uint8 { return uint8(x*16 + y) })

	first, err := d.OptimalThresholds(img)
	require.NoError(t, err)
	second, err := d.OptimalThresholds(img)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOtsuUniformHistogramDoesNotCrash(t *testing.T) {
	// Every split has w0 == 0 or w1 == 0; all candidates are skipped.
	var histogram [256]float64
	histogram[100] = 500
	assert.Equal(t, 0, otsuThreshold(histogram[:], 500))
}

func TestOtsuEmptyHistogram(t *testing.T) {
	var histogram [256]float64
	assert.Equal(t, 0, otsuThreshold(histogram[:], 0))
}

func TestOtsuPlateauMidpoint(t *testing.T) {
	var histogram [256]float64
	histogram[30] = 100
	histogram[220] = 100
	assert.Equal(t, (30+219)/2, otsuThreshold(histogram[:], 200))
}
