package raster

import "math"

// GaussianKernel1D builds a normalized 1-D Gaussian kernel for the given
// sigma. Kernel length is ceil(sigma*3)*2+1 so the tails cover three
// standard deviations on each side.
func GaussianKernel1D(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(math.Ceil(sigma * 3))
	size := radius*2 + 1
	kernel := make([]float64, size)
	sum := 0.0
	twoSigmaSq := 2 * sigma * sigma
	for i := 0; i < size; i++ {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / twoSigmaSq)
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianKernel2D builds a normalized 2-D Gaussian kernel, same sizing rule
// as the 1-D variant.
func GaussianKernel2D(sigma float64) [][]float64 {
	if sigma <= 0 {
		return [][]float64{{1}}
	}
	radius := int(math.Ceil(sigma * 3))
	size := radius*2 + 1
	kernel := make([][]float64, size)
	sum := 0.0
	twoSigmaSq := 2 * sigma * sigma
	for y := 0; y < size; y++ {
		kernel[y] = make([]float64, size)
		for x := 0; x < size; x++ {
			dx := float64(x - radius)
			dy := float64(y - radius)
			kernel[y][x] = math.Exp(-(dx*dx + dy*dy) / twoSigmaSq)
			sum += kernel[y][x]
		}
	}
	for y := range kernel {
		for x := range kernel[y] {
			kernel[y][x] /= sum
		}
	}
	return kernel
}

func clampCoord(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

// GaussianBlur applies a separable Gaussian blur to all four channels.
// Borders sample the clamped edge pixel. Returns a new image.
func (m *Image) GaussianBlur(sigma float64) *Image {
	kernel := GaussianKernel1D(sigma)
	if len(kernel) == 1 {
		return m.Clone()
	}
	radius := len(kernel) / 2

	tmp, _ := New(m.Width, m.Height)
	out, _ := New(m.Width, m.Height)

	// Horizontal pass
	for y := 0; y < m.Height; y++ {
		row := y * m.Width * 4
		for x := 0; x < m.Width; x++ {
			var acc [4]float64
			for k, w := range kernel {
				sx := clampCoord(x+k-radius, m.Width)
				off := row + sx*4
				acc[0] += float64(m.Pix[off]) * w
				acc[1] += float64(m.Pix[off+1]) * w
				acc[2] += float64(m.Pix[off+2]) * w
				acc[3] += float64(m.Pix[off+3]) * w
			}
			off := row + x*4
			for c := 0; c < 4; c++ {
				tmp.Pix[off+c] = Clamp(acc[c])
			}
		}
	}

	// Vertical pass
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			var acc [4]float64
			for k, w := range kernel {
				sy := clampCoord(y+k-radius, m.Height)
				off := (sy*m.Width + x) * 4
				acc[0] += float64(tmp.Pix[off]) * w
				acc[1] += float64(tmp.Pix[off+1]) * w
				acc[2] += float64(tmp.Pix[off+2]) * w
				acc[3] += float64(tmp.Pix[off+3]) * w
			}
			off := (y*m.Width + x) * 4
			for c := 0; c < 4; c++ {
				out.Pix[off+c] = Clamp(acc[c])
			}
		}
	}

	return out
}

// MedianBlur applies a per-channel median filter over a square window of
// the given radius. Borders sample the clamped edge pixel.
func (m *Image) MedianBlur(radius int) *Image {
	if radius <= 0 {
		return m.Clone()
	}
	out, _ := New(m.Width, m.Height)
	side := radius*2 + 1
	window := make([]uint8, 0, side*side)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			off := (y*m.Width + x) * 4
			for c := 0; c < 3; c++ {
				window = window[:0]
				for dy := -radius; dy <= radius; dy++ {
					sy := clampCoord(y+dy, m.Height)
					for dx := -radius; dx <= radius; dx++ {
						sx := clampCoord(x+dx, m.Width)
						window = append(window, m.Pix[(sy*m.Width+sx)*4+c])
					}
				}
				out.Pix[off+c] = medianOf(window)
			}
			out.Pix[off+3] = m.Pix[off+3]
		}
	}
	return out
}

// medianOf selects the median via a 256-bin counting pass; the window is
// small but revisited for every pixel, so avoid sort allocations.
func medianOf(window []uint8) uint8 {
	var hist [256]int
	for _, v := range window {
		hist[v]++
	}
	mid := len(window) / 2
	count := 0
	for v := 0; v < 256; v++ {
		count += hist[v]
		if count > mid {
			return uint8(v)
		}
	}
	return 255
}
