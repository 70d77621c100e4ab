// Package compose merges the analysis outputs into one image buffer under
// a fixed stacking order with independently toggled layers.
package compose

import (
	"fmt"

	"layerscope/internal/frequency"
	"layerscope/internal/logger"
	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

// Inputs holds the derived buffers the renderer may stack. A nil buffer
// whose layer toggle is on is an error; buffers for disabled layers are
// ignored and may be nil.
type Inputs struct {
	Original        *raster.Image
	Filtered        *raster.Image
	Contour         *raster.Image
	FilteredContour *raster.Image
	Edges           *raster.Image
	Frequency       *frequency.Result
}

// Edge overlay colors, chosen by context: dark on a blank canvas where only
// line-art layers are visible, white over an image base.
const (
	edgeColorLight uint8 = 255
	edgeColorDark  uint8 = 40
)

type Compositor struct {
	log logger.Logger
}

func NewCompositor(log logger.Logger) *Compositor {
	return &Compositor{log: logger.OrNop(log)}
}

// Render assembles the enabled layers in fixed order: background, original/
// filtered base, contour, filtered contour, edge overlay, low frequency,
// high frequency bright, high frequency dark. Inputs are never mutated; the
// result is always a freshly allocated buffer.
func (c *Compositor) Render(in Inputs, opts settings.Display) (*raster.Image, error) {
	opts.Normalize()

	width, height, err := c.resolveSize(in, opts)
	if err != nil {
		return nil, err
	}

	out, err := raster.New(width, height)
	if err != nil {
		return nil, err
	}

	layers := opts.Layers
	hasBase := layers.Original || layers.Filtered || layers.LowFrequency

	// Background: opaque black under any base layer, fully transparent for
	// pure line-art stacks.
	if hasBase {
		for i := 3; i < len(out.Pix); i += 4 {
			out.Pix[i] = 255
		}
	}

	var contributed []string

	if layers.Original && layers.Filtered {
		c.drawOpaque(out, c.pick(in.Original, opts))
		c.drawWithOpacity(out, c.pick(in.Filtered, opts), opts.FilterOpacity)
		contributed = append(contributed, "original", "filtered")
	} else if layers.Original {
		c.drawOpaque(out, c.pick(in.Original, opts))
		contributed = append(contributed, "original")
	} else if layers.Filtered {
		c.drawOpaque(out, c.pick(in.Filtered, opts))
		contributed = append(contributed, "filtered")
	}

	if layers.Contour {
		c.drawOverlay(out, c.pick(in.Contour, opts))
		contributed = append(contributed, "contour")
	}
	if layers.FilteredContour {
		c.drawOverlay(out, c.pick(in.FilteredContour, opts))
		contributed = append(contributed, "filteredContour")
	}

	if layers.Edge {
		color := edgeColorLight
		if !hasBase {
			// Only line-art layers visible: white edges would wash out on
			// export over transparency.
			color = edgeColorDark
		}
		c.drawEdges(out, in.Edges, color, opts.EdgeOpacity)
		contributed = append(contributed, "edge")
	}

	if layers.LowFrequency {
		c.drawOpaque(out, c.pick(in.Frequency.Low, opts))
		contributed = append(contributed, "lowFrequency")
	}
	if layers.HighFrequencyBright {
		c.drawHighFrequency(out, c.pick(in.Frequency.Bright, opts), layers.LowFrequency)
		contributed = append(contributed, "highFrequencyBright")
	}
	if layers.HighFrequencyDark {
		c.drawHighFrequency(out, c.pick(in.Frequency.Dark, opts), layers.LowFrequency)
		contributed = append(contributed, "highFrequencyDark")
	}

	c.log.Debug("Compositor", "render complete", map[string]interface{}{
		"width":  width,
		"height": height,
		"layers": contributed,
	})
	return out, nil
}

// pick optionally converts a contributing layer to luminance. Inputs stay
// untouched; grayscale mode works on copies.
func (c *Compositor) pick(layer *raster.Image, opts settings.Display) *raster.Image {
	if opts.GrayscaleMode {
		return layer.Grayscale()
	}
	return layer
}

func (c *Compositor) resolveSize(in Inputs, opts settings.Display) (int, int, error) {
	type req struct {
		name    string
		enabled bool
		img     *raster.Image
	}
	var freqLow, freqBright, freqDark *raster.Image
	if in.Frequency != nil {
		freqLow = in.Frequency.Low
		freqBright = in.Frequency.Bright
		freqDark = in.Frequency.Dark
	}
	required := []req{
		{"original", opts.Layers.Original, in.Original},
		{"filtered", opts.Layers.Filtered, in.Filtered},
		{"contour", opts.Layers.Contour, in.Contour},
		{"filteredContour", opts.Layers.FilteredContour, in.FilteredContour},
		{"edge", opts.Layers.Edge, in.Edges},
		{"lowFrequency", opts.Layers.LowFrequency, freqLow},
		{"highFrequencyBright", opts.Layers.HighFrequencyBright, freqBright},
		{"highFrequencyDark", opts.Layers.HighFrequencyDark, freqDark},
	}

	width, height := 0, 0
	for _, r := range required {
		if !r.enabled {
			continue
		}
		if r.img == nil {
			return 0, 0, fmt.Errorf("layer %s is enabled but its buffer is missing", r.name)
		}
		if err := r.img.Validate(); err != nil {
			return 0, 0, fmt.Errorf("layer %s: %w", r.name, err)
		}
		if width == 0 {
			width, height = r.img.Width, r.img.Height
		} else if r.img.Width != width || r.img.Height != height {
			return 0, 0, fmt.Errorf("layer %s is %dx%d, expected %dx%d",
				r.name, r.img.Width, r.img.Height, width, height)
		}
	}
	if width == 0 {
		return 0, 0, fmt.Errorf("no layers enabled")
	}
	return width, height, nil
}

// drawOpaque replaces the RGB channels under full coverage.
func (c *Compositor) drawOpaque(dst, src *raster.Image) {
	for i := 0; i < len(dst.Pix); i += 4 {
		raster.BlendPixel(dst.Pix[i:i+4], src.Pix[i], src.Pix[i+1], src.Pix[i+2], 255)
	}
}

// drawWithOpacity blends src using a uniform opacity percentage.
func (c *Compositor) drawWithOpacity(dst, src *raster.Image, opacity int) {
	alpha := uint8(255 * opacity / 100)
	for i := 0; i < len(dst.Pix); i += 4 {
		raster.BlendPixel(dst.Pix[i:i+4], src.Pix[i], src.Pix[i+1], src.Pix[i+2], alpha)
	}
}

// drawOverlay alpha-blends src using its own per-pixel alpha.
func (c *Compositor) drawOverlay(dst, src *raster.Image) {
	for i := 0; i < len(dst.Pix); i += 4 {
		raster.BlendPixel(dst.Pix[i:i+4], src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3])
	}
}

// drawEdges paints edge pixels in the context color, modulated by the edge
// opacity.
func (c *Compositor) drawEdges(dst, edges *raster.Image, color uint8, opacity int) {
	for i := 0; i < len(dst.Pix); i += 4 {
		a := edges.Pix[i+3]
		if a == 0 {
			continue
		}
		a = uint8(int(a) * opacity / 100)
		raster.BlendPixel(dst.Pix[i:i+4], color, color, color, a)
	}
}

// drawHighFrequency composites a high-frequency detail layer: Linear Light
// when stacked on the low-frequency base, plain opaque draw as a standalone
// detail view.
func (c *Compositor) drawHighFrequency(dst, src *raster.Image, overLowFrequency bool) {
	if !overLowFrequency {
		c.drawOpaque(dst, src)
		return
	}
	for i := 0; i < len(dst.Pix); i += 4 {
		for ch := 0; ch < 3; ch++ {
			v := int(dst.Pix[i+ch]) + 2*(int(src.Pix[i+ch])-128)
			dst.Pix[i+ch] = raster.ClampInt(v)
		}
		dst.Pix[i+3] = 255
	}
}
