package edgeproc

// connectEndpoints bridges endpoint pairs within maxDistance by drawing a
// Bresenham line between them. The pairwise scan is O(endpoints^2), fine
// for sparse edge maps but a known scalability limit on dense ones.
// Returns the number of bridges drawn.
func (g *grid) connectEndpoints(maxDistance int) int {
	if maxDistance <= 0 {
		return 0
	}

	type point struct{ x, y int }
	var endpoints []point
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.cells[y*g.width+x] && g.edgeNeighbors(x, y) == 1 {
				endpoints = append(endpoints, point{x, y})
			}
		}
	}

	maxSq := maxDistance * maxDistance
	connected := 0
	for i := 0; i < len(endpoints); i++ {
		for j := i + 1; j < len(endpoints); j++ {
			dx := endpoints[j].x - endpoints[i].x
			dy := endpoints[j].y - endpoints[i].y
			if dx*dx+dy*dy > maxSq {
				continue
			}
			g.drawLine(endpoints[i].x, endpoints[i].y, endpoints[j].x, endpoints[j].y)
			connected++
		}
	}
	return connected
}

// edgeNeighbors counts set pixels among the 8 neighbors. An endpoint has
// exactly one.
func (g *grid) edgeNeighbors(x, y int) int {
	count := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if g.at(x+dx, y+dy) {
				count++
			}
		}
	}
	return count
}

// drawLine marks every pixel on the Bresenham line from (x0,y0) to (x1,y1).
func (g *grid) drawLine(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		g.cells[y0*g.width+x0] = true
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
