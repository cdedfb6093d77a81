package eyetrack

import "math"

// TrackState is the cross-frame continuity memory: the previously accepted
// detection's normalized center and major radius. The zero value means
// unknown, which makes the continuity terms zero and criteria 6-7 trivially
// pass.
type TrackState struct {
	Known      bool
	PrevX      float64
	PrevY      float64
	PrevRadius float64
}

// Reset forgets the previous detection.
func (s *TrackState) Reset() { *s = TrackState{} }

// Update stores an accepted detection's normalized center and major radius.
func (s *TrackState) Update(nx, ny, r float64) {
	s.Known = true
	s.PrevX = nx
	s.PrevY = ny
	s.PrevRadius = r
}

// ScoredCandidate pairs a contour with its fitted ellipse and the metrics
// the selector gates on. Center coordinates are normalized to the sub-image.
type ScoredCandidate struct {
	Contour Contour
	Ellipse Ellipse
	Ratio   float64
	Area    float64
	RMSE    float64
	CenterX float64
	CenterY float64
	DX      float64
	DR      float64
}

// EllipseScorer fits ellipses to candidate contours and computes the
// selection metrics, including the continuity terms against the previous
// accepted detection.
type EllipseScorer struct {
	params *Params
}

// NewEllipseScorer builds a scorer over validated parameters.
func NewEllipseScorer(params *Params) *EllipseScorer {
	return &EllipseScorer{params: params}
}

// Score fits an ellipse to the contour and derives the selection metrics
// for a sub-image of subW x subH pixels. It reports ok=false for contours
// that cannot produce a structurally valid candidate: too few points, a
// degenerate fit, or a zero minor axis.
//
// Area is the raw axis product over the sub-image area, without the pi/4
// ellipse-area factor; the relative_area_threshold values in circulation
// were tuned against this convention.
func (s *EllipseScorer) Score(contour Contour, subW, subH int, prev TrackState) (ScoredCandidate, bool) {
	if len(contour) < s.params.GetMinContourLen() {
		return ScoredCandidate{}, false
	}
	ell, err := FitEllipse(contour)
	if err != nil {
		return ScoredCandidate{}, false
	}
	if ell.Minor == 0 {
		return ScoredCandidate{}, false
	}

	cand := ScoredCandidate{
		Contour: contour,
		Ellipse: ell,
		Ratio:   ell.Major / ell.Minor,
		Area:    ell.Major * ell.Minor / (float64(subW) * float64(subH)),
		RMSE:    goodnessOfFit(contour, ell),
		CenterX: ell.CX / float64(subW),
		CenterY: ell.CY / float64(subH),
	}
	if prev.Known {
		cand.DX = math.Hypot(cand.CenterX-prev.PrevX, cand.CenterY-prev.PrevY)
		cand.DR = math.Abs(ell.Major-prev.PrevRadius) / prev.PrevRadius
	}
	return cand, true
}

// goodnessOfFit measures how tightly the contour hugs the fitted ellipse:
// each point is rotated into the ellipse frame and evaluated against the
// implicit equation with full axis lengths, so a point exactly on the
// boundary contributes zero.
func goodnessOfFit(contour Contour, e Ellipse) float64 {
	angle := e.AngleDeg * math.Pi / 180
	sin, cos := math.Sincos(-angle)
	var sum float64
	for _, p := range contour {
		dx := float64(p.X) - e.CX
		dy := float64(p.Y) - e.CY
		px := dx*cos - dy*sin
		py := dx*sin + dy*cos
		v := (px/e.Major)*(px/e.Major) + (py/e.Minor)*(py/e.Minor) - 0.25
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(contour)))
}
