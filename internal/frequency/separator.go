// Package frequency splits an image into a low-pass base and high-pass
// detail layers that recombine losslessly under Linear Light blending.
package frequency

import (
	"context"
	"math"

	"layerscope/internal/backend"
	"layerscope/internal/logger"
	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

// midGray is the neutral Linear Light overlay value: base + 2*(128-128)
// leaves the base untouched.
const midGray = 128

// Result carries every buffer derived from one separation. Buffers are
// immutable once returned.
type Result struct {
	// Low is the blurred base layer.
	Low *raster.Image
	// Bright holds positive detail re-encoded above mid-gray, scaled by
	// BrightIntensity/2.
	Bright *raster.Image
	// Dark holds negative detail re-encoded below mid-gray, scaled by
	// DarkIntensity/2.
	Dark *raster.Image
	// Combined is the single-layer encoding 128 + diff/2; Linear Light over
	// Low reconstructs the original within integer rounding.
	Combined *raster.Image
	// Filtered is the intensity-adjusted recombination
	// low + max(0,diff)*brightIntensity - max(0,-diff)*darkIntensity,
	// i.e. the "filtered image" the compositor can stack against the
	// original. Both intensities at 1 reproduce the original exactly.
	Filtered *raster.Image
}

type Separator struct {
	log   logger.Logger
	accel *backend.Accelerator
}

// NewSeparator builds a separator. accel may be nil; accelerated requests
// then fail explicitly.
func NewSeparator(log logger.Logger, accel *backend.Accelerator) *Separator {
	return &Separator{log: logger.OrNop(log), accel: accel}
}

// Separate performs the low/high decomposition.
func (s *Separator) Separate(ctx context.Context, img *raster.Image, cfg settings.Frequency) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	cfg.Normalize()

	low, err := s.lowPass(img, cfg)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	bright, _ := raster.New(img.Width, img.Height)
	dark, _ := raster.New(img.Width, img.Height)
	combined, _ := raster.New(img.Width, img.Height)
	filtered, _ := raster.New(img.Width, img.Height)

	brightScale := cfg.BrightIntensity / 2
	darkScale := cfg.DarkIntensity / 2

	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			diff := float64(img.Pix[i+c]) - float64(low.Pix[i+c])

			pos := math.Max(0, diff)
			neg := math.Max(0, -diff)

			bright.Pix[i+c] = raster.Clamp(midGray + pos*brightScale)
			dark.Pix[i+c] = raster.Clamp(midGray - neg*darkScale)
			combined.Pix[i+c] = raster.Clamp(midGray + diff/2)
			filtered.Pix[i+c] = raster.Clamp(float64(low.Pix[i+c]) + pos*cfg.BrightIntensity - neg*cfg.DarkIntensity)
		}
		bright.Pix[i+3] = 255
		dark.Pix[i+3] = 255
		combined.Pix[i+3] = 255
		filtered.Pix[i+3] = img.Pix[i+3]
	}

	s.log.Debug("FrequencySeparator", "separation complete", map[string]interface{}{
		"width":  img.Width,
		"height": img.Height,
		"method": string(cfg.FilterMethod),
		"radius": cfg.BlurRadius,
	})
	return &Result{
		Low:      low,
		Bright:   bright,
		Dark:     dark,
		Combined: combined,
		Filtered: filtered,
	}, nil
}

func (s *Separator) lowPass(img *raster.Image, cfg settings.Frequency) (*raster.Image, error) {
	if cfg.UseAccelerated {
		if s.accel == nil {
			return nil, backend.ErrUnavailable
		}
		if cfg.FilterMethod == settings.FilterMedian {
			return s.accel.MedianBlur(img, int(math.Round(cfg.BlurRadius)))
		}
		return s.accel.GaussianBlur(img, sigmaForRadius(cfg.BlurRadius))
	}

	if cfg.FilterMethod == settings.FilterMedian {
		return img.MedianBlur(int(math.Round(cfg.BlurRadius))), nil
	}
	return img.GaussianBlur(sigmaForRadius(cfg.BlurRadius)), nil
}

// sigmaForRadius derives the Gaussian sigma from the user-facing blur
// radius; the kernel then spans three sigmas per side.
func sigmaForRadius(radius float64) float64 {
	return radius / 3
}

// LinearLight composites overlay onto base with base + 2*(overlay-128) per
// channel. With the Combined encoding this reconstructs the pre-split image
// within integer rounding.
func LinearLight(base, overlay *raster.Image) (*raster.Image, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if !base.SameSize(overlay) {
		return nil, &raster.DimensionError{
			Width:   overlay.Width,
			Height:  overlay.Height,
			Message: "overlay size does not match base",
		}
	}

	out := base.Clone()
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(base.Pix[i+c]) + 2*(int(overlay.Pix[i+c])-midGray)
			out.Pix[i+c] = raster.ClampInt(v)
		}
	}
	return out, nil
}
