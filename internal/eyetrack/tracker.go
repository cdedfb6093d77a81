package eyetrack

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Outcome classifies what one frame produced.
type Outcome int

const (
	// OutcomeDecodeFailure marks a frame that could not be read from the
	// source. It carries no intensity and leaves the continuity state alone.
	OutcomeDecodeFailure Outcome = iota
	// OutcomeLowContrast marks a frame whose full-frame intensity fell below
	// the contrast floor. The continuity state is left alone.
	OutcomeLowContrast
	// OutcomeNoDetection marks a frame where no candidate passed all seven
	// gates. The continuity state is reset.
	OutcomeNoDetection
	// OutcomeDetected marks an accepted detection.
	OutcomeDetected
)

// String names the outcome for logs and persistence.
func (o Outcome) String() string {
	switch o {
	case OutcomeDecodeFailure:
		return "decode_failure"
	case OutcomeLowContrast:
		return "low_contrast"
	case OutcomeNoDetection:
		return "no_detection"
	case OutcomeDetected:
		return "detected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// OutcomeFromString is the inverse of Outcome.String; unknown names report
// an error so stored traces round-trip exactly.
func OutcomeFromString(s string) (Outcome, error) {
	switch s {
	case "decode_failure":
		return OutcomeDecodeFailure, nil
	case "low_contrast":
		return OutcomeLowContrast, nil
	case "no_detection":
		return OutcomeNoDetection, nil
	case "detected":
		return OutcomeDetected, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", s)
	}
}

// Detection holds the success fields of a frame record. Center coordinates
// are frame-absolute pixels; RotatedRect stays in ROI-relative coordinates
// as (cx, cy, minor, major, angle).
type Detection struct {
	CenterX     float64
	CenterY     float64
	MajorRadius float64
	RotatedRect [5]float64
	Contour     Contour
}

// FrameRecord is one output unit of the tracking loop: exactly one per
// consumed frame, in frame order, never mutated once appended. FrameID is
// 1-based. FrameIntensity is meaningless when Outcome is
// OutcomeDecodeFailure; Detection is non-nil exactly when Outcome is
// OutcomeDetected.
type FrameRecord struct {
	FrameID        int
	Outcome        Outcome
	FrameIntensity float64
	Detection      *Detection
}

// Failed reports whether the record is a failure record of any kind.
func (r FrameRecord) Failed() bool { return r.Outcome != OutcomeDetected }

// RunStatus reports how a tracking run ended.
type RunStatus int

const (
	// RunCompleted means the declared frame count was consumed or the
	// stream ended first.
	RunCompleted RunStatus = iota
	// RunAborted means cancellation stopped the loop early; the records
	// accumulated so far are still valid.
	RunAborted
)

// String names the status for logs and persistence.
func (s RunStatus) String() string {
	if s == RunAborted {
		return "aborted"
	}
	return "completed"
}

// Trace is the ordered output of one tracking run.
type Trace struct {
	Records []FrameRecord
	Status  RunStatus
}

// Detections counts the accepted detections in the trace.
func (t *Trace) Detections() int {
	n := 0
	for _, r := range t.Records {
		if r.Outcome == OutcomeDetected {
			n++
		}
	}
	return n
}

// Failures counts the failure records of any kind in the trace.
func (t *Trace) Failures() int { return len(t.Records) - t.Detections() }

// FrameSource yields decoded grayscale frames in stream order and knows its
// declared frame count.
//
// Next returns io.EOF once the stream is exhausted. Any other error means
// the current frame failed to decode but the stream may continue; the
// tracking loop records it and moves on.
type FrameSource interface {
	Next() (*Frame, error)
	Len() int
}

// ErrTrackingAborted reports cooperative cancellation before the declared
// frame count was consumed. The partial trace accompanies the error.
var ErrTrackingAborted = errors.New("tracking aborted")

// progressInterval is how many frames pass between progress log lines.
const progressInterval = 500

// PupilTracker drives the per-frame detection pipeline across a video and
// accumulates the result trace.
type PupilTracker struct {
	params    *Params
	extractor *CandidateExtractor
	scorer    *EllipseScorer
	selector  *CandidateSelector
}

// NewPupilTracker validates params and builds the tracker. Incomplete or
// out-of-range parameters fail here, before any frame is read.
func NewPupilTracker(params *Params) (*PupilTracker, error) {
	if params == nil {
		return nil, &ConfigurationError{Problems: []string{"missing parameters"}}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &PupilTracker{
		params:    params,
		extractor: NewCandidateExtractor(params),
		scorer:    NewEllipseScorer(params),
		selector:  NewCandidateSelector(params),
	}, nil
}

// Track consumes up to total frames from source, runs detection on each and
// appends exactly one FrameRecord per consumed frame. The roi must fit
// every frame. Cancellation is checked once per frame; on abort the partial
// trace is returned together with an error wrapping ErrTrackingAborted.
//
// Low-contrast frames leave the continuity state untouched while
// no-detection frames reset it. The asymmetry is deliberate: it reproduces
// the behavior the selection thresholds were tuned against.
func (t *PupilTracker) Track(ctx context.Context, source FrameSource, total int, roi ROI) (*Trace, error) {
	trace := &Trace{Status: RunCompleted}
	var state TrackState

	Opsf("tracking start: %d frames, roi=%s", total, roi)
	for frameID := 1; frameID <= total; frameID++ {
		if err := ctx.Err(); err != nil {
			trace.Status = RunAborted
			Opsf("tracking aborted after %d of %d frames", frameID-1, total)
			return trace, fmt.Errorf("%w after %d of %d frames: %v", ErrTrackingAborted, frameID-1, total, err)
		}

		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			Opsf("frame stream exhausted after %d of %d frames", frameID-1, total)
			break
		}
		if err != nil {
			trace.Records = append(trace.Records, FrameRecord{FrameID: frameID, Outcome: OutcomeDecodeFailure})
			Tracef("frame %d: decode failure: %v", frameID, err)
			continue
		}
		if frameID%progressInterval == 0 {
			Opsf("frame (%d/%d)", frameID, total)
		}
		if err := roi.Validate(frame.W, frame.H); err != nil {
			trace.Records = append(trace.Records, FrameRecord{FrameID: frameID, Outcome: OutcomeDecodeFailure})
			return trace, fmt.Errorf("frame %d: %w", frameID, err)
		}

		intensity := frame.Intensity()
		if intensity < t.params.GetContrastThreshold() {
			trace.Records = append(trace.Records, FrameRecord{
				FrameID:        frameID,
				Outcome:        OutcomeLowContrast,
				FrameIntensity: intensity,
			})
			Tracef("frame %d: low contrast %.3f", frameID, intensity)
			continue
		}

		contours := t.extractor.Extract(frame, roi)
		subW, subH := roi.Width(), roi.Height()
		cands := make([]ScoredCandidate, 0, len(contours))
		for _, c := range contours {
			if cand, ok := t.scorer.Score(c, subW, subH, state); ok {
				cands = append(cands, cand)
			}
		}

		best, ok := t.selector.Select(cands)
		if !ok {
			trace.Records = append(trace.Records, FrameRecord{
				FrameID:        frameID,
				Outcome:        OutcomeNoDetection,
				FrameIntensity: intensity,
			})
			state.Reset()
			Tracef("frame %d: no detection among %d candidates", frameID, len(cands))
			continue
		}

		trace.Records = append(trace.Records, FrameRecord{
			FrameID:        frameID,
			Outcome:        OutcomeDetected,
			FrameIntensity: intensity,
			Detection: &Detection{
				CenterX:     float64(roi.Col0) + best.Ellipse.CX,
				CenterY:     float64(roi.Row0) + best.Ellipse.CY,
				MajorRadius: best.Ellipse.Major,
				RotatedRect: [5]float64{
					best.Ellipse.CX, best.Ellipse.CY,
					best.Ellipse.Minor, best.Ellipse.Major,
					best.Ellipse.AngleDeg,
				},
				Contour: best.Contour,
			},
		})
		state.Update(best.CenterX, best.CenterY, best.Ellipse.Major)
		Tracef("frame %d: detected center=(%.1f, %.1f) r=%.1f rmse=%.4f",
			frameID, float64(roi.Col0)+best.Ellipse.CX, float64(roi.Row0)+best.Ellipse.CY,
			best.Ellipse.Major, best.RMSE)
	}

	Opsf("tracking done: %d records, %d detections, %d failures",
		len(trace.Records), trace.Detections(), trace.Failures())
	return trace, nil
}
