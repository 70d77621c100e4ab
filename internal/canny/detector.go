// Package canny implements the full edge detection pipeline from scratch:
// Gaussian smoothing, Sobel gradients, non-maximum suppression and
// double-threshold hysteresis, plus Otsu-based automatic threshold
// estimation. An optional OpenCV-accelerated path is available through an
// injected backend capability.
package canny

import (
	"context"
	"math"

	"github.com/chewxy/math32"

	"layerscope/internal/backend"
	"layerscope/internal/logger"
	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

const (
	defaultSigma = 1.4

	strongValue = 255
	// weakValue marks provisional edges between the two thresholds before
	// the relaxation pass decides their fate.
	weakValue = 75
)

type Detector struct {
	log   logger.Logger
	accel *backend.Accelerator
}

// NewDetector builds a detector. accel may be nil when no accelerated
// backend is available; requesting acceleration then fails explicitly.
func NewDetector(log logger.Logger, accel *backend.Accelerator) *Detector {
	return &Detector{log: logger.OrNop(log), accel: accel}
}

// DetectEdges runs the detection pipeline and returns an RGBA edge map:
// strong edges are white with alpha 255, everything else fully transparent.
// The same image and parameters always produce identical bytes.
func (d *Detector) DetectEdges(ctx context.Context, img *raster.Image, params settings.Canny) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	if params.UseAccelerated {
		if d.accel == nil {
			return nil, backend.ErrUnavailable
		}
		return d.accel.Canny(img, float64(params.LowThreshold), float64(params.HighThreshold), params.L2Gradient)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	width, height := img.Width, img.Height

	smoothed := smoothGrayscale(img, defaultSigma)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	magnitude, direction := sobel(smoothed, width, height, params.L2Gradient)
	suppressed := nonMaxSuppression(magnitude, direction, width, height)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	classes := doubleThreshold(suppressed, float32(params.LowThreshold), float32(params.HighThreshold))
	promoted := relaxWeakEdges(classes, width, height)

	out, err := raster.New(width, height)
	if err != nil {
		return nil, err
	}
	edgeCount := 0
	for i, v := range classes {
		if v == strongValue {
			off := i * 4
			out.Pix[off] = 255
			out.Pix[off+1] = 255
			out.Pix[off+2] = 255
			out.Pix[off+3] = 255
			edgeCount++
		}
	}

	d.log.Debug("CannyDetector", "edges detected", map[string]interface{}{
		"width":    width,
		"height":   height,
		"low":      params.LowThreshold,
		"high":     params.HighThreshold,
		"edges":    edgeCount,
		"promoted": promoted,
	})
	return out, nil
}

// smoothGrayscale converts to BT.601 grayscale inline while convolving with
// a normalized 2-D Gaussian kernel. Borders clamp to the edge pixel.
func smoothGrayscale(img *raster.Image, sigma float64) []float32 {
	kernel := raster.GaussianKernel2D(sigma)
	radius := len(kernel) / 2
	width, height := img.Width, img.Height

	gray := make([]float32, width*height)
	for i := range gray {
		off := i * 4
		gray[i] = float32(raster.LuminanceF(img.Pix[off], img.Pix[off+1], img.Pix[off+2]))
	}

	out := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var acc float64
			for ky, row := range kernel {
				sy := clamp(y+ky-radius, height)
				for kx, w := range row {
					sx := clamp(x+kx-radius, width)
					acc += float64(gray[sy*width+sx]) * w
				}
			}
			out[y*width+x] = float32(acc)
		}
	}
	return out
}

// sobel applies the 3x3 Gx/Gy kernels with clamp-extended borders and
// returns gradient magnitude and direction.
func sobel(gray []float32, width, height int, l2gradient bool) (magnitude, direction []float32) {
	magnitude = make([]float32, width*height)
	direction = make([]float32, width*height)

	at := func(x, y int) float32 {
		return gray[clamp(y, height)*width+clamp(x, width)]
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)

			i := y*width + x
			if l2gradient {
				magnitude[i] = math32.Hypot(gx, gy)
			} else {
				magnitude[i] = math32.Abs(gx) + math32.Abs(gy)
			}
			direction[i] = math32.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// nonMaxSuppression keeps only pixels that are local maxima along the
// gradient normal. Directions are bucketed into 0, 45, 90 and 135 degrees.
func nonMaxSuppression(magnitude, direction []float32, width, height int) []float32 {
	out := make([]float32, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]

			angle := float64(direction[i]) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}

			var a, b float32
			switch {
			case angle < 22.5 || angle >= 157.5:
				a = magnitude[i+1]
				b = magnitude[i-1]
			case angle < 67.5:
				a = magnitude[i+width+1]
				b = magnitude[i-width-1]
			case angle < 112.5:
				a = magnitude[i+width]
				b = magnitude[i-width]
			default:
				a = magnitude[i+width-1]
				b = magnitude[i-width+1]
			}

			if mag >= a && mag >= b {
				out[i] = mag
			}
		}
	}
	return out
}

// doubleThreshold classifies each pixel as strong, weak or discarded.
func doubleThreshold(suppressed []float32, low, high float32) []uint8 {
	classes := make([]uint8, len(suppressed))
	for i, v := range suppressed {
		switch {
		case v >= high:
			classes[i] = strongValue
		case v >= low:
			classes[i] = weakValue
		}
	}
	return classes
}

// relaxWeakEdges runs one relaxation pass: weak pixels 8-connected to a
// strong pixel are promoted, the rest are discarded. Promotion checks a
// snapshot of the strong set taken before the pass, so it is never
// transitive: chains of weak pixels beyond one hop from a strong pixel stay
// discarded regardless of scan order. Returns the number of promoted pixels.
func relaxWeakEdges(classes []uint8, width, height int) int {
	strong := make([]bool, len(classes))
	for i, v := range classes {
		strong[i] = v == strongValue
	}

	promoted := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if classes[i] != weakValue {
				continue
			}
			if hasStrongNeighbor(strong, x, y, width, height) {
				classes[i] = strongValue
				promoted++
			} else {
				classes[i] = 0
			}
		}
	}
	return promoted
}

func hasStrongNeighbor(strong []bool, x, y, width, height int) bool {
	for dy := -1; dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= height {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := x + dx
			if nx < 0 || nx >= width {
				continue
			}
			if strong[ny*width+nx] {
				return true
			}
		}
	}
	return false
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}
