// Package roi turns pointer events into a validated tracking region. It is
// a pure state machine: any UI can feed it press/move/release events in
// image coordinates and read the resulting region, so selection logic stays
// testable without a display.
package roi

import (
	"errors"
	"math"

	"github.com/visionrig-data/pupil.report/internal/eyetrack"
)

// Kind identifies a pointer event type.
type Kind int

const (
	// Press starts a drag.
	Press Kind = iota
	// Move updates the pointer position.
	Move
	// Release ends a drag.
	Release
)

// Event is one pointer event in image coordinates, x right and y down.
// Valid is false when the pointer had no usable position, such as leaving
// the image surface before release.
type Event struct {
	Kind  Kind
	X, Y  float64
	Valid bool
}

// ErrIncomplete reports that no full press/release pair has been observed.
var ErrIncomplete = errors.New("roi selection incomplete")

// Selector accumulates pointer events into a rectangular region over a
// frame of known size. The zero value is not usable; call NewSelector.
type Selector struct {
	frameW, frameH int

	start   *position
	current *position
	end     *position
	pressed bool
}

type position struct {
	x, y float64
}

// NewSelector builds a selector for frames of the given pixel size.
func NewSelector(frameW, frameH int) *Selector {
	return &Selector{frameW: frameW, frameH: frameH}
}

// Handle consumes one pointer event.
//
// A press without a position is ignored. A release without a position falls
// back to the last observed move position, matching drags that end outside
// the image.
func (s *Selector) Handle(e Event) {
	switch e.Kind {
	case Press:
		if !e.Valid {
			return
		}
		s.pressed = true
		s.start = &position{e.X, e.Y}
	case Move:
		if !e.Valid {
			return
		}
		s.current = &position{e.X, e.Y}
	case Release:
		if e.Valid {
			s.end = &position{e.X, e.Y}
		} else {
			s.end = s.current
		}
		s.pressed = false
	}
}

// Dragging reports whether a press has been seen without its release.
func (s *Selector) Dragging() bool { return s.pressed }

// Region converts the current press/release pair into a half-open region
// clamped to the frame bounds. The corner order does not matter: dragging
// up-left and down-right produce the same region. The dragged rectangle is
// covered fully, so the min corner floors and the max corner ceils.
func (s *Selector) Region() (eyetrack.ROI, error) {
	if s.start == nil || s.end == nil {
		return eyetrack.ROI{}, ErrIncomplete
	}

	r := eyetrack.ROI{
		Row0: clamp(int(math.Floor(math.Min(s.start.y, s.end.y))), 0, s.frameH),
		Row1: clamp(int(math.Ceil(math.Max(s.start.y, s.end.y))), 0, s.frameH),
		Col0: clamp(int(math.Floor(math.Min(s.start.x, s.end.x))), 0, s.frameW),
		Col1: clamp(int(math.Ceil(math.Max(s.start.x, s.end.x))), 0, s.frameW),
	}
	if err := r.Validate(s.frameW, s.frameH); err != nil {
		return eyetrack.ROI{}, err
	}
	return r, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
