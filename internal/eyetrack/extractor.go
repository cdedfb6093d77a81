package eyetrack

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CandidateExtractor turns one frame plus an ROI into candidate contours:
// crop, smooth, percentile-blend threshold, binarize, border following. It
// is a pure function of frame, roi and parameters.
type CandidateExtractor struct {
	params *Params
}

// NewCandidateExtractor builds an extractor over validated parameters.
func NewCandidateExtractor(params *Params) *CandidateExtractor {
	return &CandidateExtractor{params: params}
}

// Extract runs the candidate pipeline over the roi of frame. The roi must
// already be validated against the frame bounds.
func (e *CandidateExtractor) Extract(frame *Frame, roi ROI) []Contour {
	sub := frame.Crop(roi)
	blur := gaussianBlur(sub)
	th := e.threshold(blur)
	mask := binarize(blur, th)
	contours := FindContours(mask, blur.W, blur.H)
	Diagf("extract: roi=%s threshold=%.2f contours=%d", roi, th, len(contours))
	return contours
}

// threshold blends the configured high and low percentiles of the smoothed
// sub-image intensities into one cut value.
func (e *CandidateExtractor) threshold(sub *Frame) float64 {
	xs := make([]float64, len(sub.Pix))
	for i, p := range sub.Pix {
		xs[i] = float64(p)
	}
	sort.Float64s(xs)
	w := e.params.GetPercWeight()
	pHigh := stat.Quantile(e.params.GetPercHigh()/100, stat.LinInterp, xs, nil)
	pLow := stat.Quantile(e.params.GetPercLow()/100, stat.LinInterp, xs, nil)
	return (1-w)*pHigh + w*pLow
}

// binarize marks pixels at or below the cut value as foreground: the pupil
// is the dark region.
func binarize(sub *Frame, th float64) []uint8 {
	mask := make([]uint8, len(sub.Pix))
	for i, p := range sub.Pix {
		if float64(p) <= th {
			mask[i] = 1
		}
	}
	return mask
}
