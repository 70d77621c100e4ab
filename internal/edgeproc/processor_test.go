package edgeproc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layerscope/internal/raster"
	"layerscope/internal/settings"
)

func edgeImage(t *testing.T, width, height int, set func(x, y int) bool) *raster.Image {
	t.Helper()
	img, err := raster.New(width, height)
	require.NoError(t, err)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if set(x, y) {
				off := img.Offset(x, y)
				img.Pix[off] = 255
				img.Pix[off+1] = 255
				img.Pix[off+2] = 255
				img.Pix[off+3] = 255
			}
		}
	}
	return img
}

func edgeSet(img *raster.Image) map[[2]int]bool {
	set := make(map[[2]int]bool)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if img.Pix[img.Offset(x, y)+3] > 0 {
				set[[2]int{x, y}] = true
			}
		}
	}
	return set
}

func TestProcessDisabledStagesAreNoOps(t *testing.T) {
	p := NewProcessor(nil)
	img := edgeImage(t, 8, 8, func(x, y int) bool { return y == 4 })

	out, stats, err := p.Process(context.Background(), img, settings.EdgeProcessing{})
	require.NoError(t, err)
	assert.Equal(t, stats.OriginalPixels, stats.ProcessedPixels)
	assert.Equal(t, edgeSet(img), edgeSet(out))
}

func TestThinningDiskConverges(t *testing.T) {
	// A filled disk must monotonically shrink per iteration and settle in
	// well under the cap.
	g := &grid{width: 20, height: 20, cells: make([]bool, 400)}
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			dx, dy := x-10, y-10
			if dx*dx+dy*dy <= 36 {
				g.cells[y*20+x] = true
			}
		}
	}
	before := g.count()

	prev := before
	iterations := 0
	for iterations < maxThinningIterations {
		removed := g.thinSubIteration(0)
		removed += g.thinSubIteration(1)
		iterations++
		if removed == 0 {
			break
		}
		count := g.count()
		assert.Less(t, count, prev, "pixel count must decrease each iteration")
		prev = count
	}

	assert.Less(t, iterations, maxThinningIterations)
	after := g.count()
	assert.Greater(t, after, 0, "skeleton must survive")
	assert.Less(t, after, before)
}

func TestThinningViaProcess(t *testing.T) {
	p := NewProcessor(nil)
	img := edgeImage(t, 16, 16, func(x, y int) bool {
		return x >= 3 && x <= 12 && y >= 5 && y <= 10
	})

	out, stats, err := p.Process(context.Background(), img, settings.EdgeProcessing{EnableThinning: true})
	require.NoError(t, err)
	assert.Less(t, stats.ProcessedPixels, stats.OriginalPixels)
	assert.Greater(t, stats.ProcessedPixels, 0)
	assert.Len(t, edgeSet(out), stats.ProcessedPixels)
}

func TestShortEdgeRemoval(t *testing.T) {
	p := NewProcessor(nil)
	// One isolated pixel and one 5-pixel line.
	img := edgeImage(t, 12, 12, func(x, y int) bool {
		if x == 2 && y == 2 {
			return true
		}
		return y == 8 && x >= 3 && x <= 7
	})

	s := settings.EdgeProcessing{EnableShortEdgeRemoval: true, ShortEdgeThreshold: 2}
	out, stats, err := p.Process(context.Background(), img, s)
	require.NoError(t, err)

	set := edgeSet(out)
	assert.False(t, set[[2]int{2, 2}], "isolated pixel removed")
	for x := 3; x <= 7; x++ {
		assert.True(t, set[[2]int{x, 8}], "line preserved unchanged")
	}
	assert.Equal(t, 1, stats.RemovedPixels)
	assert.Equal(t, 5, stats.ProcessedPixels)
}

func TestShortEdgeRemovalKeepsComponentAtThreshold(t *testing.T) {
	p := NewProcessor(nil)
	img := edgeImage(t, 8, 8, func(x, y int) bool {
		return y == 3 && (x == 2 || x == 3)
	})

	s := settings.EdgeProcessing{EnableShortEdgeRemoval: true, ShortEdgeThreshold: 2}
	_, stats, err := p.Process(context.Background(), img, s)
	require.NoError(t, err)
	assert.Zero(t, stats.RemovedPixels)
	assert.Equal(t, 2, stats.ProcessedPixels)
}

func TestEdgeConnectionBridgesEndpoints(t *testing.T) {
	p := NewProcessor(nil)
	// Two horizontal segments, each longer than the connection distance so
	// a segment's own endpoints never pair with each other; only the
	// facing endpoints across the 3-pixel gap are within range.
	img := edgeImage(t, 21, 8, func(x, y int) bool {
		return y == 4 && (x >= 1 && x <= 8 || x >= 12 && x <= 19)
	})

	s := settings.EdgeProcessing{EnableEdgeConnection: true, ConnectionDistance: 5}
	out, stats, err := p.Process(context.Background(), img, s)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConnectedPairs)
	set := edgeSet(out)
	for x := 8; x <= 12; x++ {
		assert.True(t, set[[2]int{x, 4}], "gap pixel (%d,4) bridged", x)
	}
}

func TestEdgeConnectionRespectsDistance(t *testing.T) {
	p := NewProcessor(nil)
	img := edgeImage(t, 30, 8, func(x, y int) bool {
		return y == 4 && (x >= 0 && x <= 7 || x >= 20 && x <= 27)
	})

	s := settings.EdgeProcessing{EnableEdgeConnection: true, ConnectionDistance: 5}
	out, stats, err := p.Process(context.Background(), img, s)
	require.NoError(t, err)
	assert.Zero(t, stats.ConnectedPairs)
	assert.False(t, edgeSet(out)[[2]int{14, 4}])
}

func TestBresenhamDiagonal(t *testing.T) {
	g := &grid{width: 8, height: 8, cells: make([]bool, 64)}
	g.drawLine(0, 0, 7, 7)
	for i := 0; i < 8; i++ {
		assert.True(t, g.cells[i*8+i])
	}

	g = &grid{width: 8, height: 8, cells: make([]bool, 64)}
	g.drawLine(7, 2, 0, 2)
	for x := 0; x < 8; x++ {
		assert.True(t, g.cells[2*8+x])
	}
}

func TestProcessNeverMutatesInput(t *testing.T) {
	p := NewProcessor(nil)
	img := edgeImage(t, 8, 8, func(x, y int) bool { return x == y })
	original := img.Clone()

	s := settings.EdgeProcessing{
		EnableThinning:         true,
		EnableShortEdgeRemoval: true,
		ShortEdgeThreshold:     3,
		EnableEdgeConnection:   true,
		ConnectionDistance:     4,
	}
	_, _, err := p.Process(context.Background(), img, s)
	require.NoError(t, err)
	assert.Equal(t, original.Pix, img.Pix)
}
