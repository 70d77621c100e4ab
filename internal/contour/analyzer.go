// Package contour quantizes image brightness into discrete levels and
// extracts the pixels sitting on level boundaries.
package contour

import (
	"context"
	"math"

	"layerscope/internal/logger"
	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

// BrightnessMap is a per-pixel BT.601 luminance grid, rebuilt wholesale
// whenever the source image or settings change.
type BrightnessMap struct {
	Width  int
	Height int
	Values []uint8
}

func (m *BrightnessMap) At(x, y int) uint8 {
	return m.Values[y*m.Width+x]
}

// transparentGray is the fixed contour value used when rendering atop
// layers with no opaque base, where the adaptive gray would be invisible.
const transparentGray = 200

// Adaptive offsets applied to the averaged boundary brightness: dark lines
// on bright boundaries, bright lines on dark ones.
const (
	offsetDark   = -25
	offsetBright = 75
)

type Analyzer struct {
	log logger.Logger
}

func NewAnalyzer(log logger.Logger) *Analyzer {
	return &Analyzer{log: logger.OrNop(log)}
}

// Analyze builds the luminance map for an image.
func (a *Analyzer) Analyze(ctx context.Context, img *raster.Image) (*BrightnessMap, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	values := make([]uint8, img.Width*img.Height)
	for i := range values {
		off := i * 4
		values[i] = raster.Luminance(img.Pix[off], img.Pix[off+1], img.Pix[off+2])
	}
	return &BrightnessMap{Width: img.Width, Height: img.Height, Values: values}, nil
}

// DetectContours renders level-boundary pixels with the adaptive gray. The
// output is transparent everywhere except on contours.
func (a *Analyzer) DetectContours(ctx context.Context, m *BrightnessMap, s settings.Contour) (*raster.Image, error) {
	return a.detect(ctx, m, s, false)
}

// DetectContoursTransparent is the variant for compositing atop layer
// stacks with no opaque base: detection is identical but every contour
// pixel uses one fixed light gray for visibility.
func (a *Analyzer) DetectContoursTransparent(ctx context.Context, m *BrightnessMap, s settings.Contour) (*raster.Image, error) {
	return a.detect(ctx, m, s, true)
}

func (a *Analyzer) detect(ctx context.Context, m *BrightnessMap, s settings.Contour, fixedGray bool) (*raster.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.Normalize()

	out, err := raster.New(m.Width, m.Height)
	if err != nil {
		return nil, err
	}

	step := 255.0 / float64(s.Levels)
	alpha := uint8(255 * s.Transparency / 100)
	contrast := float64(s.ContourContrast) / 100

	count := 0
	// Interior pixels only; the 1-pixel border never carries contours.
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			b := m.At(x, y)
			level := quantLevel(b, step)

			neighbor, found := firstDifferingNeighbor(m, x, y, level, step)
			if !found {
				continue
			}
			count++

			off := out.Offset(x, y)
			if fixedGray {
				out.Pix[off] = transparentGray
				out.Pix[off+1] = transparentGray
				out.Pix[off+2] = transparentGray
				out.Pix[off+3] = alpha
				continue
			}

			adjacent := (float64(b) + float64(neighbor)) / 2
			var gray float64
			if adjacent >= float64(s.BrightnessThreshold) {
				gray = adjacent + offsetDark
				// Negative offset: pull toward black by the contrast amount.
				gray *= 1 - contrast
			} else {
				gray = adjacent + offsetBright
				// Positive offset: pull toward white.
				gray += (255 - gray) * contrast
			}
			v := raster.Clamp(gray)
			out.Pix[off] = v
			out.Pix[off+1] = v
			out.Pix[off+2] = v
			out.Pix[off+3] = alpha
		}
	}

	if s.MinContourDistance > 0 {
		count = thinByGrid(out, s.MinContourDistance)
	}

	a.log.Debug("ContourAnalyzer", "contours detected", map[string]interface{}{
		"width":  m.Width,
		"height": m.Height,
		"levels": s.Levels,
		"pixels": count,
	})
	return out, nil
}

func quantLevel(brightness uint8, step float64) int {
	return int(math.Floor(float64(brightness) / step))
}

// firstDifferingNeighbor scans the 4-connected neighbors in fixed order
// (right, left, down, up) and returns the brightness of the first one whose
// quantization level differs.
func firstDifferingNeighbor(m *BrightnessMap, x, y, level int, step float64) (uint8, bool) {
	offsets := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for _, d := range offsets {
		nb := m.At(x+d[0], y+d[1])
		if quantLevel(nb, step) != level {
			return nb, true
		}
	}
	return 0, false
}

// thinByGrid is a lossy density reduction, not true skeletonization:
// contour pixels are bucketed into uniform cells and only the first pixel
// per occupied cell survives. Returns the surviving pixel count.
func thinByGrid(img *raster.Image, minDistance float64) int {
	cell := int(math.Ceil(minDistance * 1.2))
	if cell < 2 {
		cell = 2
	}
	cols := (img.Width + cell - 1) / cell
	rows := (img.Height + cell - 1) / cell
	occupied := make([]bool, cols*rows)

	kept := 0
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			off := img.Offset(x, y)
			if img.Pix[off+3] == 0 {
				continue
			}
			key := (y/cell)*cols + x/cell
			if occupied[key] {
				img.Pix[off] = 0
				img.Pix[off+1] = 0
				img.Pix[off+2] = 0
				img.Pix[off+3] = 0
				continue
			}
			occupied[key] = true
			kept++
		}
	}
	return kept
}
