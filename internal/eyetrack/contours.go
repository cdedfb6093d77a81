package eyetrack

// Point is a pixel coordinate within a sub-image: x grows right, y down.
type Point struct {
	X int
	Y int
}

// Contour is an ordered sequence of boundary pixels forming a closed border
// in a thresholded sub-image.
type Contour []Point

// borderDirs is the 8-neighborhood in clockwise order starting east, with y
// growing down. Increasing index rotates clockwise on screen.
var borderDirs = [8]Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func dirIndex(dx, dy int) int {
	for i, d := range borderDirs {
		if d.X == dx && d.Y == dy {
			return i
		}
	}
	return 0
}

// FindContours extracts every closed border from a binary mask by
// Suzuki-Abe border following: outer borders of foreground components and
// the borders of holes inside them. mask holds one byte per pixel, nonzero
// meaning foreground, row-major w x h.
func FindContours(mask []uint8, w, h int) []Contour {
	if w <= 0 || h <= 0 || len(mask) != w*h {
		return nil
	}

	// Working copy: border following marks visited border pixels with the
	// border number (negated when the pixel closes the border to the east),
	// which stops the raster scan from tracing the same border twice.
	f := make([]int32, w*h)
	for i, m := range mask {
		if m != 0 {
			f[i] = 1
		}
	}
	at := func(x, y int) int32 {
		if x < 0 || x >= w || y < 0 || y >= h {
			return 0
		}
		return f[y*w+x]
	}

	var contours []Contour
	nbd := int32(1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := f[y*w+x]
			if v == 0 {
				continue
			}
			var from Point
			switch {
			case v == 1 && at(x-1, y) == 0:
				// New outer border starts here.
				from = Point{x - 1, y}
			case v >= 1 && at(x+1, y) == 0:
				// New hole border starts here.
				from = Point{x + 1, y}
			default:
				continue
			}
			nbd++
			contours = append(contours, followBorder(f, at, w, Point{x, y}, from, nbd))
		}
	}
	return contours
}

// followBorder traces one closed border starting at start, with from the
// background neighbor that triggered the scan.
func followBorder(f []int32, at func(x, y int) int32, w int, start, from Point, nbd int32) Contour {
	i0 := dirIndex(from.X-start.X, from.Y-start.Y)

	// Clockwise sweep from the trigger pixel for the first border neighbor.
	first := Point{}
	found := false
	for k := 1; k <= 8; k++ {
		d := borderDirs[(i0+k)%8]
		if at(start.X+d.X, start.Y+d.Y) != 0 {
			first = Point{start.X + d.X, start.Y + d.Y}
			found = true
			break
		}
	}
	if !found {
		// Isolated pixel forms its own single-point border.
		f[start.Y*w+start.X] = -nbd
		return Contour{start}
	}

	contour := Contour{}
	prev := first
	cur := start
	for {
		// Counterclockwise sweep around cur, starting just past prev.
		j0 := dirIndex(prev.X-cur.X, prev.Y-cur.Y)
		var next Point
		eastZero := false
		for k := 1; k <= 8; k++ {
			j := ((j0-k)%8 + 8) % 8
			d := borderDirs[j]
			if at(cur.X+d.X, cur.Y+d.Y) != 0 {
				next = Point{cur.X + d.X, cur.Y + d.Y}
				break
			}
			if j == 0 {
				eastZero = true
			}
		}

		idx := cur.Y*w + cur.X
		if eastZero {
			f[idx] = -nbd
		} else if f[idx] == 1 {
			f[idx] = nbd
		}
		contour = append(contour, cur)

		if next == start && cur == first {
			return contour
		}
		prev = cur
		cur = next
	}
}
