// Package settings holds the flat, JSON-serializable parameter objects that
// drive each pipeline stage. Decoding always starts from the documented
// defaults, so settings persisted by older versions with missing fields
// load cleanly.
package settings

import (
	"encoding/json"
	"fmt"
	"math"
)

// Contour controls brightness quantization and contour rendering.
type Contour struct {
	Levels              int     `json:"levels"`
	Transparency        int     `json:"transparency"`
	MinContourDistance  float64 `json:"minContourDistance"`
	BrightnessThreshold int     `json:"brightnessThreshold"`
	ContourContrast     int     `json:"contourContrast"`
}

func DefaultContour() Contour {
	return Contour{
		Levels:              8,
		Transparency:        100,
		MinContourDistance:  0,
		BrightnessThreshold: 65,
		ContourContrast:     0,
	}
}

// Normalize clamps every field into its documented range.
func (c *Contour) Normalize() {
	c.Levels = clampInt(c.Levels, 1, 64)
	c.Transparency = clampInt(c.Transparency, 0, 100)
	if c.MinContourDistance < 0 || math.IsNaN(c.MinContourDistance) {
		c.MinContourDistance = 0
	}
	c.BrightnessThreshold = clampInt(c.BrightnessThreshold, 0, 255)
	c.ContourContrast = clampInt(c.ContourContrast, 0, 100)
}

// Canny governs the edge detector. LowThreshold is expected to stay below
// HighThreshold for meaningful hysteresis; Normalize only clamps ranges and
// leaves the ordering to the caller (or to auto-thresholding).
type Canny struct {
	LowThreshold  int  `json:"lowThreshold"`
	HighThreshold int  `json:"highThreshold"`
	ApertureSize  int  `json:"apertureSize"`
	L2Gradient    bool `json:"L2gradient"`
	// UseAccelerated routes detection through the OpenCV backend. When the
	// backend is not ready the detector fails explicitly instead of silently
	// degrading to the pure-Go path.
	UseAccelerated bool `json:"useAccelerated"`
}

func DefaultCanny() Canny {
	return Canny{
		LowThreshold:  50,
		HighThreshold: 150,
		ApertureSize:  3,
		L2Gradient:    true,
	}
}

func (c *Canny) Normalize() {
	c.LowThreshold = clampInt(c.LowThreshold, 50, 150)
	c.HighThreshold = clampInt(c.HighThreshold, 100, 300)
	// Only the 3x3 Sobel aperture is implemented.
	c.ApertureSize = 3
}

// EdgeProcessing gates the three post-processing stages. Stages always run
// in the fixed order thin, prune, connect.
type EdgeProcessing struct {
	EnableThinning         bool `json:"enableThinning"`
	EnableShortEdgeRemoval bool `json:"enableShortEdgeRemoval"`
	ShortEdgeThreshold     int  `json:"shortEdgeThreshold"`
	EnableEdgeConnection   bool `json:"enableEdgeConnection"`
	ConnectionDistance     int  `json:"connectionDistance"`
}

func DefaultEdgeProcessing() EdgeProcessing {
	return EdgeProcessing{
		ShortEdgeThreshold: 10,
		ConnectionDistance: 5,
	}
}

func (e *EdgeProcessing) Normalize() {
	if e.ShortEdgeThreshold < 0 {
		e.ShortEdgeThreshold = 0
	}
	if e.ConnectionDistance < 0 {
		e.ConnectionDistance = 0
	}
}

// FilterMethod selects the low-pass filter for frequency separation.
type FilterMethod string

const (
	FilterGaussian FilterMethod = "gaussian"
	FilterMedian   FilterMethod = "median"
)

type Frequency struct {
	FilterMethod    FilterMethod `json:"filterMethod"`
	BlurRadius      float64      `json:"blurRadius"`
	BrightIntensity float64      `json:"brightIntensity"`
	DarkIntensity   float64      `json:"darkIntensity"`
	// UseAccelerated routes the low-pass filter through the OpenCV backend,
	// failing explicitly when it is not ready.
	UseAccelerated bool `json:"useAccelerated"`
}

func DefaultFrequency() Frequency {
	return Frequency{
		FilterMethod:    FilterGaussian,
		BlurRadius:      5,
		BrightIntensity: 1,
		DarkIntensity:   1,
	}
}

func (f *Frequency) Normalize() {
	if f.FilterMethod != FilterGaussian && f.FilterMethod != FilterMedian {
		f.FilterMethod = FilterGaussian
	}
	if f.BlurRadius < 0 || math.IsNaN(f.BlurRadius) {
		f.BlurRadius = 0
	}
	f.BrightIntensity = clampFloat(f.BrightIntensity, 0, 3)
	f.DarkIntensity = clampFloat(f.DarkIntensity, 0, 3)
}

// Layers toggles each visual contribution independently. The compositor
// merges enabled layers in one fixed stacking order regardless of how many
// are on.
type Layers struct {
	Original            bool `json:"original"`
	Filtered            bool `json:"filtered"`
	Contour             bool `json:"contour"`
	FilteredContour     bool `json:"filteredContour"`
	Edge                bool `json:"edge"`
	LowFrequency        bool `json:"lowFrequency"`
	HighFrequencyBright bool `json:"highFrequencyBright"`
	HighFrequencyDark   bool `json:"highFrequencyDark"`
}

type Display struct {
	Layers        Layers `json:"layers"`
	GrayscaleMode bool   `json:"grayscaleMode"`
	FilterOpacity int    `json:"filterOpacity"`
	EdgeOpacity   int    `json:"edgeOpacity"`
}

func DefaultDisplay() Display {
	return Display{
		Layers:        Layers{Original: true},
		FilterOpacity: 100,
		EdgeOpacity:   100,
	}
}

func (d *Display) Normalize() {
	d.FilterOpacity = clampInt(d.FilterOpacity, 0, 100)
	d.EdgeOpacity = clampInt(d.EdgeOpacity, 0, 100)
}

// Document bundles every stage's settings under stable keys, matching the
// persisted JSON layout.
type Document struct {
	Contour        Contour        `json:"contour"`
	Canny          Canny          `json:"canny"`
	EdgeProcessing EdgeProcessing `json:"edgeProcessing"`
	Frequency      Frequency      `json:"frequency"`
	Display        Display        `json:"display"`
}

func DefaultDocument() Document {
	return Document{
		Contour:        DefaultContour(),
		Canny:          DefaultCanny(),
		EdgeProcessing: DefaultEdgeProcessing(),
		Frequency:      DefaultFrequency(),
		Display:        DefaultDisplay(),
	}
}

func (d *Document) Normalize() {
	d.Contour.Normalize()
	d.Canny.Normalize()
	d.EdgeProcessing.Normalize()
	d.Frequency.Normalize()
	d.Display.Normalize()
}

// DecodeDocument parses a settings document. Missing fields keep their
// defaults and out-of-range values are clamped.
func DecodeDocument(data []byte) (Document, error) {
	doc := DefaultDocument()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("failed to decode settings document: %w", err)
		}
	}
	doc.Normalize()
	return doc, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
