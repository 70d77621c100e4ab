// Package edgeproc refines binary edge maps: Zhang-Suen skeletonization,
// connected-component pruning of short edges, and nearest-endpoint bridging.
package edgeproc

import (
	"context"

	"layerscope/internal/logger"
	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

// Stats reports what the enabled stages did to the edge map.
type Stats struct {
	OriginalPixels  int
	ProcessedPixels int
	RemovedPixels   int
	ConnectedPairs  int
}

type Processor struct {
	log logger.Logger
}

func NewProcessor(log logger.Logger) *Processor {
	return &Processor{log: logger.OrNop(log)}
}

// Process runs the enabled stages in fixed order: thin, prune, connect.
// The input edge map is never mutated.
func (p *Processor) Process(ctx context.Context, edges *raster.Image, s settings.EdgeProcessing) (*raster.Image, Stats, error) {
	if err := edges.Validate(); err != nil {
		return nil, Stats{}, err
	}
	select {
	case <-ctx.Done():
		return nil, Stats{}, ctx.Err()
	default:
	}
	s.Normalize()

	grid := newGrid(edges)
	stats := Stats{OriginalPixels: grid.count()}

	if s.EnableThinning {
		grid.thin()
	}

	select {
	case <-ctx.Done():
		return nil, Stats{}, ctx.Err()
	default:
	}

	if s.EnableShortEdgeRemoval {
		stats.RemovedPixels = grid.removeShortEdges(s.ShortEdgeThreshold)
	}

	if s.EnableEdgeConnection {
		stats.ConnectedPairs = grid.connectEndpoints(s.ConnectionDistance)
	}

	stats.ProcessedPixels = grid.count()

	p.log.Debug("EdgeProcessor", "post-processing complete", map[string]interface{}{
		"original":  stats.OriginalPixels,
		"processed": stats.ProcessedPixels,
		"removed":   stats.RemovedPixels,
		"connected": stats.ConnectedPairs,
	})
	return grid.toImage(), stats, nil
}

// grid is a dense binary view of an edge map.
type grid struct {
	width  int
	height int
	cells  []bool
}

func newGrid(edges *raster.Image) *grid {
	g := &grid{
		width:  edges.Width,
		height: edges.Height,
		cells:  make([]bool, edges.Width*edges.Height),
	}
	for i := range g.cells {
		g.cells[i] = edges.Pix[i*4+3] > 0
	}
	return g
}

func (g *grid) at(x, y int) bool {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return false
	}
	return g.cells[y*g.width+x]
}

func (g *grid) count() int {
	n := 0
	for _, v := range g.cells {
		if v {
			n++
		}
	}
	return n
}

func (g *grid) toImage() *raster.Image {
	out, _ := raster.New(g.width, g.height)
	for i, v := range g.cells {
		if v {
			off := i * 4
			out.Pix[off] = 255
			out.Pix[off+1] = 255
			out.Pix[off+2] = 255
			out.Pix[off+3] = 255
		}
	}
	return out
}

// neighborRing returns the 8 neighbors in Zhang-Suen order
// P2..P9 (clockwise from the pixel above).
func (g *grid) neighborRing(x, y int) [8]bool {
	return [8]bool{
		g.at(x, y-1),   // P2
		g.at(x+1, y-1), // P3
		g.at(x+1, y),   // P4
		g.at(x+1, y+1), // P5
		g.at(x, y+1),   // P6
		g.at(x-1, y+1), // P7
		g.at(x-1, y),   // P8
		g.at(x-1, y-1), // P9
	}
}
