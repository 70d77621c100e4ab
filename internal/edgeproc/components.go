package edgeproc

// removeShortEdges erases every 8-connected component with fewer pixels
// than threshold. Returns the number of erased pixels.
func (g *grid) removeShortEdges(threshold int) int {
	if threshold <= 0 {
		return 0
	}

	visited := make([]bool, len(g.cells))
	component := make([]int, 0, 256)
	stack := make([]int, 0, 256)
	removed := 0

	for start := range g.cells {
		if !g.cells[start] || visited[start] {
			continue
		}

		// Stack-based flood fill; recursion would blow up on long edges.
		component = component[:0]
		stack = append(stack[:0], start)
		visited[start] = true

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, idx)

			x := idx % g.width
			y := idx / g.width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= g.width || ny < 0 || ny >= g.height {
						continue
					}
					nIdx := ny*g.width + nx
					if g.cells[nIdx] && !visited[nIdx] {
						visited[nIdx] = true
						stack = append(stack, nIdx)
					}
				}
			}
		}

		if len(component) < threshold {
			for _, idx := range component {
				g.cells[idx] = false
			}
			removed += len(component)
		}
	}
	return removed
}
