package eyetrack

import "math"

// selectionCriteria is the number of gates a candidate must fully satisfy
// to be selectable. Partial passes never win.
const selectionCriteria = 7

// PassCount returns how many of the seven selection gates the candidate
// satisfies under the given parameters.
func PassCount(c ScoredCandidate, p *Params) int {
	n := 0
	if c.Ratio <= p.GetRatioThreshold() {
		n++
	}
	if c.Area >= p.GetRelativeAreaThreshold() {
		n++
	}
	if c.RMSE < p.GetErrorThreshold() {
		n++
	}
	m := p.GetMargin()
	if m < c.CenterX && c.CenterX < 1-m {
		n++
	}
	if m < c.CenterY && c.CenterY < 1-m {
		n++
	}
	if c.DX < p.GetSpeedThreshold() {
		n++
	}
	if c.DR < p.GetDrThreshold() {
		n++
	}
	return n
}

// CandidateSelector picks at most one winner per frame.
type CandidateSelector struct {
	params *Params
}

// NewCandidateSelector builds a selector over validated parameters.
func NewCandidateSelector(params *Params) *CandidateSelector {
	return &CandidateSelector{params: params}
}

// Select returns the full-pass candidate with the lowest rmse, or ok=false
// when no candidate passes all seven gates. The strict less-than comparison
// keeps the first encountered of equal-rmse candidates, so the result is
// deterministic in scan order.
func (s *CandidateSelector) Select(cands []ScoredCandidate) (ScoredCandidate, bool) {
	var best ScoredCandidate
	bestErr := math.Inf(1)
	ok := false
	for _, c := range cands {
		if PassCount(c, s.params) != selectionCriteria {
			continue
		}
		if c.RMSE < bestErr {
			best = c
			bestErr = c.RMSE
			ok = true
		}
	}
	return best, ok
}
