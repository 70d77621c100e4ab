// Package pipeline orchestrates the analysis stages and owns the
// request-supersede semantics: starting a new analysis invalidates any
// in-flight one, and superseded results are never published.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"layerscope/internal/backend"
	"layerscope/internal/canny"
	"layerscope/internal/compose"
	"layerscope/internal/contour"
	"layerscope/internal/edgeproc"
	"layerscope/internal/frequency"
	"layerscope/internal/logger"
	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

// ErrSuperseded marks a result that lost the last-write-wins race against a
// newer analysis request. Callers discard it silently; it is not a failure.
var ErrSuperseded = errors.New("analysis superseded by a newer request")

// Outputs carries every buffer derived during one analysis. Buffers are
// owned by the caller and never shared with later analyses.
type Outputs struct {
	Generation      uint64
	Brightness      *contour.BrightnessMap
	Contour         *raster.Image
	FilteredContour *raster.Image
	Edges           *raster.Image
	EdgeStats       edgeproc.Stats
	Frequency       *frequency.Result
	Composite       *raster.Image
}

type Coordinator struct {
	log        logger.Logger
	analyzer   *contour.Analyzer
	detector   *canny.Detector
	edges      *edgeproc.Processor
	separator  *frequency.Separator
	compositor *compose.Compositor
	generation atomic.Uint64
}

// NewCoordinator wires the stages. accel may be nil when no accelerated
// backend is configured.
func NewCoordinator(log logger.Logger, accel *backend.Accelerator) *Coordinator {
	log = logger.OrNop(log)
	return &Coordinator{
		log:        log,
		analyzer:   contour.NewAnalyzer(log),
		detector:   canny.NewDetector(log, accel),
		edges:      edgeproc.NewProcessor(log),
		separator:  frequency.NewSeparator(log, accel),
		compositor: compose.NewCompositor(log),
	}
}

// Detector exposes the edge detector, e.g. for automatic threshold
// estimation ahead of an analysis.
func (c *Coordinator) Detector() *canny.Detector {
	return c.detector
}

// Analyze runs every stage required by the enabled layers and composites
// the result. Stages whose layers are all disabled are skipped entirely.
// If Analyze is called again before a previous call finishes, the earlier
// call returns ErrSuperseded instead of a stale result.
func (c *Coordinator) Analyze(ctx context.Context, img *raster.Image, doc settings.Document) (*Outputs, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	doc.Normalize()

	gen := c.generation.Add(1)
	startTime := time.Now()
	layers := doc.Display.Layers
	out := &Outputs{Generation: gen}

	hasBase := layers.Original || layers.Filtered || layers.LowFrequency

	needFrequency := layers.Filtered || layers.FilteredContour ||
		layers.LowFrequency || layers.HighFrequencyBright || layers.HighFrequencyDark
	if needFrequency {
		result, err := c.separator.Separate(ctx, img, doc.Frequency)
		if err != nil {
			return nil, err
		}
		out.Frequency = result
		if err := c.checkCurrent(ctx, gen); err != nil {
			return nil, err
		}
	}

	if layers.Contour {
		brightness, err := c.analyzer.Analyze(ctx, img)
		if err != nil {
			return nil, err
		}
		out.Brightness = brightness
		out.Contour, err = c.detectContours(ctx, brightness, doc.Contour, hasBase)
		if err != nil {
			return nil, err
		}
		if err := c.checkCurrent(ctx, gen); err != nil {
			return nil, err
		}
	}

	if layers.FilteredContour {
		// The filtered contour derives from the filtered image's own
		// brightness map, not the original's.
		filteredBrightness, err := c.analyzer.Analyze(ctx, out.Frequency.Filtered)
		if err != nil {
			return nil, err
		}
		out.FilteredContour, err = c.detectContours(ctx, filteredBrightness, doc.Contour, hasBase)
		if err != nil {
			return nil, err
		}
		if err := c.checkCurrent(ctx, gen); err != nil {
			return nil, err
		}
	}

	if layers.Edge {
		edges, err := c.detector.DetectEdges(ctx, img, doc.Canny)
		if err != nil {
			return nil, err
		}
		edges, stats, err := c.edges.Process(ctx, edges, doc.EdgeProcessing)
		if err != nil {
			return nil, err
		}
		out.Edges = edges
		out.EdgeStats = stats
		if err := c.checkCurrent(ctx, gen); err != nil {
			return nil, err
		}
	}

	inputs := compose.Inputs{
		Original:        img,
		Contour:         out.Contour,
		FilteredContour: out.FilteredContour,
		Edges:           out.Edges,
		Frequency:       out.Frequency,
	}
	if out.Frequency != nil {
		inputs.Filtered = out.Frequency.Filtered
	}

	composite, err := c.compositor.Render(inputs, doc.Display)
	if err != nil {
		return nil, err
	}
	out.Composite = composite

	// Publish only if still the newest request.
	if err := c.checkCurrent(ctx, gen); err != nil {
		return nil, err
	}

	c.log.Info("PipelineCoordinator", "analysis complete", map[string]interface{}{
		"generation": gen,
		"width":      img.Width,
		"height":     img.Height,
		"time":       time.Since(startTime).String(),
	})
	return out, nil
}

func (c *Coordinator) detectContours(ctx context.Context, m *contour.BrightnessMap, s settings.Contour, hasBase bool) (*raster.Image, error) {
	if hasBase {
		return c.analyzer.DetectContours(ctx, m, s)
	}
	return c.analyzer.DetectContoursTransparent(ctx, m, s)
}

func (c *Coordinator) checkCurrent(ctx context.Context, gen uint64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if c.generation.Load() != gen {
		return ErrSuperseded
	}
	return nil
}
