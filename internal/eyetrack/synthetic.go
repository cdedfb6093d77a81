package eyetrack

import (
	"fmt"
	"io"
	"math"
	"math/rand"
)

// SyntheticSource generates eye-like frames for tests and demos: a dark
// pupil ellipse orbiting slowly over a bright background. Individual frames
// can be forced flat (low contrast) or broken (decode failure).
type SyntheticSource struct {
	W, H   int
	Frames int

	// Configuration
	PupilRX    float64 // pupil semi-axis along x, pixels
	PupilRY    float64 // pupil semi-axis along y, pixels
	PathRadius float64 // orbit radius around the frame center, pixels
	StepRad    float64 // orbit angle advance per frame, radians
	Background uint8
	PupilLevel uint8
	Noise      uint8 // uniform background noise amplitude

	// LowContrast and Broken hold 1-based frame ids rendered flat gray or
	// failing to decode, respectively.
	LowContrast map[int]bool
	Broken      map[int]bool

	// Internal state
	next int
	rng  *rand.Rand
}

// NewSyntheticSource creates a generator with workable defaults. The seed
// fixes the background noise so runs are reproducible.
func NewSyntheticSource(w, h, frames int, seed int64) *SyntheticSource {
	return &SyntheticSource{
		W:           w,
		H:           h,
		Frames:      frames,
		PupilRX:     float64(w) / 8,
		PupilRY:     float64(w) / 9,
		PathRadius:  float64(w) / 20,
		StepRad:     0.02,
		Background:  200,
		PupilLevel:  25,
		Noise:       6,
		LowContrast: map[int]bool{},
		Broken:      map[int]bool{},
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Len returns the declared frame count.
func (g *SyntheticSource) Len() int { return g.Frames }

// Center returns the pupil center the generator uses for the given 1-based
// frame id, in frame-absolute pixel coordinates.
func (g *SyntheticSource) Center(frameID int) (float64, float64) {
	angle := float64(frameID) * g.StepRad
	cx := float64(g.W)/2 + g.PathRadius*math.Cos(angle)
	cy := float64(g.H)/2 + g.PathRadius*math.Sin(angle)
	return cx, cy
}

// Next renders the next frame. It returns io.EOF past the declared count
// and a decode error for frames listed in Broken.
func (g *SyntheticSource) Next() (*Frame, error) {
	if g.next >= g.Frames {
		return nil, io.EOF
	}
	g.next++
	id := g.next

	if g.Broken[id] {
		return nil, fmt.Errorf("synthetic decode failure at frame %d", id)
	}

	frame := &Frame{Pix: make([]uint8, g.W*g.H), W: g.W, H: g.H}
	if g.LowContrast[id] {
		for i := range frame.Pix {
			frame.Pix[i] = g.Background
		}
		return frame, nil
	}

	for i := range frame.Pix {
		v := int(g.Background) - int(g.Noise) + g.rng.Intn(2*int(g.Noise)+1)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		frame.Pix[i] = uint8(v)
	}

	cx, cy := g.Center(id)
	x0 := int(math.Floor(cx - g.PupilRX - 1))
	x1 := int(math.Ceil(cx + g.PupilRX + 1))
	y0 := int(math.Floor(cy - g.PupilRY - 1))
	y1 := int(math.Ceil(cy + g.PupilRY + 1))
	for y := max(y0, 0); y <= min(y1, g.H-1); y++ {
		for x := max(x0, 0); x <= min(x1, g.W-1); x++ {
			dx := (float64(x) - cx) / g.PupilRX
			dy := (float64(y) - cy) / g.PupilRY
			if dx*dx+dy*dy <= 1 {
				frame.Pix[y*g.W+x] = g.PupilLevel
			}
		}
	}
	return frame, nil
}
