package canny

import (
	"math"

	"layerscope/internal/raster"
)

// Thresholds is a low/high pair for hysteresis.
type Thresholds struct {
	Low  int
	High int
}

// OptimalThresholds estimates hysteresis thresholds from the image's
// luminance histogram using Otsu's method: the threshold t maximizing the
// between-class variance w0*w1*(mean0-mean1)^2 splits foreground from
// background, and the returned pair is low=round(0.5t), high=round(1.5t).
func (d *Detector) OptimalThresholds(img *raster.Image) (Thresholds, error) {
	if err := img.Validate(); err != nil {
		return Thresholds{}, err
	}

	var histogram [256]float64
	total := 0.0
	for i := 0; i < len(img.Pix); i += 4 {
		histogram[raster.Luminance(img.Pix[i], img.Pix[i+1], img.Pix[i+2])]++
		total++
	}

	t := otsuThreshold(histogram[:], total)
	thresholds := Thresholds{
		Low:  int(math.Round(0.5 * float64(t))),
		High: int(math.Round(1.5 * float64(t))),
	}

	d.log.Debug("CannyDetector", "optimal thresholds estimated", map[string]interface{}{
		"otsu": t,
		"low":  thresholds.Low,
		"high": thresholds.High,
	})
	return thresholds, nil
}

func otsuThreshold(histogram []float64, total float64) int {
	if total <= 0 {
		return 0
	}

	sumAll := 0.0
	for v, count := range histogram {
		sumAll += float64(v) * count
	}

	// On a clean bimodal histogram the between-class variance is flat across
	// the whole valley, so a single argmax would collapse to the valley's
	// left edge. Track the plateau and return its midpoint instead.
	const tieEpsilon = 1e-12
	firstBest, lastBest := 0, 0
	maxVariance := 0.0
	w0 := 0.0
	sum0 := 0.0
	invTotal := 1.0 / total

	for t := 0; t < len(histogram); t++ {
		w0 += histogram[t]
		sum0 += float64(t) * histogram[t]
		w1 := total - w0

		// Degenerate splits carry no class separation; skip rather than
		// divide by zero.
		if w0 == 0 || w1 == 0 {
			continue
		}

		mean0 := sum0 / w0
		mean1 := (sumAll - sum0) / w1
		meanDiff := mean0 - mean1
		variance := (w0 * invTotal) * (w1 * invTotal) * meanDiff * meanDiff

		switch {
		case variance > maxVariance+tieEpsilon:
			maxVariance = variance
			firstBest = t
			lastBest = t
		case variance >= maxVariance-tieEpsilon:
			lastBest = t
		}
	}
	return (firstBest + lastBest) / 2
}
