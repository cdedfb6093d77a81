package eyetrack

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Frame is one decoded grayscale video frame. Pixels are stored row-major
// with the origin at the top-left corner, x growing right and y growing down.
type Frame struct {
	Pix []uint8
	W   int
	H   int
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(w, h int) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("frame dimensions must be positive, got %dx%d", w, h)
	}
	return &Frame{Pix: make([]uint8, w*h), W: w, H: h}, nil
}

// FrameFromPix wraps an existing pixel buffer as a frame. The buffer length
// must match w*h exactly.
func FrameFromPix(pix []uint8, w, h int) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("frame dimensions must be positive, got %dx%d", w, h)
	}
	if len(pix) != w*h {
		return nil, fmt.Errorf("pixel buffer length %d does not match %dx%d", len(pix), w, h)
	}
	return &Frame{Pix: pix, W: w, H: h}, nil
}

// At returns the pixel value at (x, y). Callers must stay in bounds.
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.W+x]
}

// Set writes the pixel value at (x, y). Callers must stay in bounds.
func (f *Frame) Set(x, y int, v uint8) {
	f.Pix[y*f.W+x] = v
}

// Intensity returns the population standard deviation of all pixel values.
// This is the contrast measure gating the tracking loop.
func (f *Frame) Intensity() float64 {
	xs := make([]float64, len(f.Pix))
	for i, p := range f.Pix {
		xs[i] = float64(p)
	}
	return stat.PopStdDev(xs, nil)
}

// Crop copies the region selected by roi into a new frame. The roi must
// already be validated against this frame's bounds.
func (f *Frame) Crop(roi ROI) *Frame {
	w, h := roi.Width(), roi.Height()
	out := &Frame{Pix: make([]uint8, w*h), W: w, H: h}
	for y := 0; y < h; y++ {
		src := (roi.Row0+y)*f.W + roi.Col0
		copy(out.Pix[y*w:(y+1)*w], f.Pix[src:src+w])
	}
	return out
}

// ROI selects the half-open pixel ranges [Row0,Row1) x [Col0,Col1) of a
// frame: rows are y coordinates, columns are x coordinates. It is fixed
// before tracking starts and immutable for the whole run.
type ROI struct {
	Row0, Row1 int
	Col0, Col1 int
}

// Width returns the number of selected columns.
func (r ROI) Width() int { return r.Col1 - r.Col0 }

// Height returns the number of selected rows.
func (r ROI) Height() int { return r.Row1 - r.Row0 }

// Validate checks the roi is non-empty and inside a w x h frame.
func (r ROI) Validate(w, h int) error {
	if r.Row0 < 0 || r.Col0 < 0 || r.Row1 > h || r.Col1 > w {
		return fmt.Errorf("roi %s outside frame bounds %dx%d", r, w, h)
	}
	if r.Row1 <= r.Row0 || r.Col1 <= r.Col0 {
		return fmt.Errorf("roi %s selects an empty region", r)
	}
	return nil
}

// String renders the roi in the "row0:row1,col0:col1" form accepted by ParseROI.
func (r ROI) String() string {
	return fmt.Sprintf("%d:%d,%d:%d", r.Row0, r.Row1, r.Col0, r.Col1)
}

// ParseROI parses "row0:row1,col0:col1" into an ROI. Bounds checking against
// a frame is left to Validate since the frame size is not known here.
func ParseROI(s string) (ROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return ROI{}, fmt.Errorf("roi %q: want two comma-separated ranges", s)
	}
	var vals [4]int
	for i, part := range parts {
		bounds := strings.Split(part, ":")
		if len(bounds) != 2 {
			return ROI{}, fmt.Errorf("roi range %q: want start:end", part)
		}
		for j, b := range bounds {
			v, err := strconv.Atoi(strings.TrimSpace(b))
			if err != nil {
				return ROI{}, fmt.Errorf("roi range %q: %w", part, err)
			}
			vals[i*2+j] = v
		}
	}
	return ROI{Row0: vals[0], Row1: vals[1], Col0: vals[2], Col1: vals[3]}, nil
}
