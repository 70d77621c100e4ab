package edgeproc

// maxThinningIterations caps the Zhang-Suen loop. A well-formed blob
// converges much earlier; the cap guards pathological inputs.
const maxThinningIterations = 100

// thin applies iterative Zhang-Suen skeletonization until no pixel is
// removed or the iteration cap is hit.
func (g *grid) thin() int {
	iterations := 0
	for iterations < maxThinningIterations {
		removed := g.thinSubIteration(0)
		removed += g.thinSubIteration(1)
		iterations++
		if removed == 0 {
			break
		}
	}
	return iterations
}

// thinSubIteration removes one wave of boundary pixels. phase 0 uses the
// east/south conditions, phase 1 the west/north ones.
func (g *grid) thinSubIteration(phase int) int {
	type point struct{ x, y int }
	var marked []point

	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			if !g.cells[y*g.width+x] {
				continue
			}
			ring := g.neighborRing(x, y)

			count := 0
			for _, v := range ring {
				if v {
					count++
				}
			}
			if count < 2 || count > 6 {
				continue
			}

			if transitions(ring) != 1 {
				continue
			}

			p2, p4, p6, p8 := ring[0], ring[2], ring[4], ring[6]
			if phase == 0 {
				// P2*P4*P6 == 0 and P4*P6*P8 == 0
				if (p2 && p4 && p6) || (p4 && p6 && p8) {
					continue
				}
			} else {
				// P2*P4*P8 == 0 and P2*P6*P8 == 0
				if (p2 && p4 && p8) || (p2 && p6 && p8) {
					continue
				}
			}

			marked = append(marked, point{x, y})
		}
	}

	for _, p := range marked {
		g.cells[p.y*g.width+p.x] = false
	}
	return len(marked)
}

// transitions counts 0->1 transitions around the neighbor ring.
func transitions(ring [8]bool) int {
	n := 0
	for i := 0; i < 8; i++ {
		if !ring[i] && ring[(i+1)%8] {
			n++
		}
	}
	return n
}
