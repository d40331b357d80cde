package imaging

// EqualizeAdaptive returns a new image holding img after
// contrast-limited(-free) adaptive histogram equalization; img itself
// is not modified. kernel is the
// contextual-region edge length. The image is partitioned into a grid
// of up to kernel x kernel regions; each region gets its own
// histogram-equalization mapping, and a pixel's output value is
// bilinearly interpolated between the mappings of the (up to four)
// regions nearest its center. This is the textbook CLAHE
// interpolation scheme, without a clip limit.
//
// Per spec §4.A / §9, this is always called on an isolated tile or
// thumbnail with no access to neighboring tiles, so equalization seams
// can appear at tile boundaries — a known, preserved limitation, not a
// bug in this function.
func EqualizeAdaptive(img *Gray8, kernel int) *Gray8 {
	if img.Width == 0 || img.Height == 0 {
		return img
	}
	if kernel <= 0 {
		kernel = 1024
	}

	nx := ceilDiv(img.Width, kernel)
	ny := ceilDiv(img.Height, kernel)
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}

	// One cumulative-histogram mapping per region.
	maps := make([][256]uint8, nx*ny)
	centers := make([][2]float64, nx*ny)
	for gy := 0; gy < ny; gy++ {
		y0 := gy * img.Height / ny
		y1 := (gy + 1) * img.Height / ny
		for gx := 0; gx < nx; gx++ {
			x0 := gx * img.Width / nx
			x1 := (gx + 1) * img.Width / nx
			idx := gy*nx + gx
			maps[idx] = histogramEqualizeMap(img, x0, y0, x1, y1)
			centers[idx] = [2]float64{(float64(x0) + float64(x1)) / 2, (float64(y0) + float64(y1)) / 2}
		}
	}

	out := NewGray8(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		// Locate the region grid cell whose center precedes (y, x),
		// then blend with its right/below neighbors.
		gy := locate(float64(y), img.Height, ny)
		for x := 0; x < img.Width; x++ {
			gx := locate(float64(x), img.Width, nx)
			v := bilinearMap(maps, centers, nx, ny, gx, gy, float64(x), float64(y), img.At(x, y))
			out.Set(x, y, v)
		}
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// histogramEqualizeMap computes the standard cumulative-histogram
// equalization lookup table for the region [x0,y0)-[x1,y1).
func histogramEqualizeMap(img *Gray8, x0, y0, x1, y1 int) [256]uint8 {
	var hist [256]int
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[img.At(x, y)]++
			n++
		}
	}
	var table [256]uint8
	if n == 0 {
		for i := range table {
			table[i] = uint8(i)
		}
		return table
	}
	var cum int
	for i := 0; i < 256; i++ {
		cum += hist[i]
		v := (cum*255 + n/2) / n
		if v > 255 {
			v = 255
		}
		table[i] = uint8(v)
	}
	return table
}

// locate returns the index of the grid cell (out of n cells spanning
// extent) containing coordinate v.
func locate(v float64, extent, n int) int {
	if n <= 1 {
		return 0
	}
	cell := int(v) * n / extent
	if cell >= n {
		cell = n - 1
	}
	if cell < 0 {
		cell = 0
	}
	return cell
}

// bilinearMap blends the region mapping at (gx,gy) with its neighbors
// toward (x,y), weighting by distance to each region's center.
func bilinearMap(maps [][256]uint8, centers [][2]float64, nx, ny, gx, gy int, x, y float64, v uint8) uint8 {
	gx1 := gx
	if x > centers[gy*nx+gx][0] && gx+1 < nx {
		gx1 = gx + 1
	} else if x < centers[gy*nx+gx][0] && gx-1 >= 0 {
		gx1 = gx - 1
	}
	gy1 := gy
	if y > centers[gy*nx+gx][1] && gy+1 < ny {
		gy1 = gy + 1
	} else if y < centers[gy*nx+gx][1] && gy-1 >= 0 {
		gy1 = gy - 1
	}

	idx00 := gy*nx + gx
	idx10 := gy*nx + gx1
	idx01 := gy1*nx + gx
	idx11 := gy1*nx + gx1

	wx := axisWeight(x, centers[idx00][0], centers[idx10][0])
	wy := axisWeight(y, centers[idx00][1], centers[idx01][1])

	v00 := float64(maps[idx00][v])
	v10 := float64(maps[idx10][v])
	v01 := float64(maps[idx01][v])
	v11 := float64(maps[idx11][v])

	top := v00*(1-wx) + v10*wx
	bot := v01*(1-wx) + v11*wx
	out := top*(1-wy) + bot*wy
	if out < 0 {
		out = 0
	}
	if out > 255 {
		out = 255
	}
	return uint8(out + 0.5)
}

func axisWeight(v, c0, c1 float64) float64 {
	if c1 == c0 {
		return 0
	}
	w := (v - c0) / (c1 - c0)
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	return w
}
