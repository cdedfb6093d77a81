package eyetrack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
)

// scriptedSource plays back a fixed sequence of frames and errors.
type scriptedSource struct {
	frames []*Frame
	errs   []error
	next   int
}

func (s *scriptedSource) Len() int { return len(s.frames) }

func (s *scriptedSource) Next() (*Frame, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	i := s.next
	s.next++
	if s.errs != nil && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.frames[i], nil
}

// pupilFrame renders a round dark pupil at (cx, cy) on a bright background.
func pupilFrame(cx, cy float64) *Frame {
	return diskFrame(64, 64, cx, cy, 10, 200, 20)
}

// flatFrame is a zero-contrast frame.
func flatFrame() *Frame {
	f, _ := NewFrame(64, 64)
	for i := range f.Pix {
		f.Pix[i] = 200
	}
	return f
}

// barFrame has contrast but nothing pupil-shaped: a thin dark bar whose
// fitted ellipse fails the ratio gate.
func barFrame() *Frame {
	f, _ := NewFrame(64, 64)
	for i := range f.Pix {
		f.Pix[i] = 200
	}
	for y := 30; y < 33; y++ {
		for x := 10; x < 54; x++ {
			f.Set(x, y, 20)
		}
	}
	return f
}

func fullROI() ROI { return ROI{Row0: 0, Row1: 64, Col0: 0, Col1: 64} }

func newTestTracker(t *testing.T) *PupilTracker {
	t.Helper()
	tr, err := NewPupilTracker(DefaultParams())
	if err != nil {
		t.Fatalf("NewPupilTracker error: %v", err)
	}
	return tr
}

func checkFrameIDs(t *testing.T, trace *Trace) {
	t.Helper()
	for i, r := range trace.Records {
		if r.FrameID != i+1 {
			t.Errorf("record %d has FrameID %d, want %d", i, r.FrameID, i+1)
		}
	}
}

func TestTrackCleanRun(t *testing.T) {
	tr := newTestTracker(t)

	var frames []*Frame
	for i := 0; i < 6; i++ {
		frames = append(frames, pupilFrame(32+0.5*float64(i), 32))
	}
	src := &scriptedSource{frames: frames}

	trace, err := tr.Track(context.Background(), src, len(frames), fullROI())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if trace.Status != RunCompleted {
		t.Errorf("Status = %v, want RunCompleted", trace.Status)
	}
	if len(trace.Records) != 6 {
		t.Fatalf("records = %d, want 6", len(trace.Records))
	}
	checkFrameIDs(t, trace)
	if trace.Detections() != 6 || trace.Failures() != 0 {
		t.Errorf("Detections, Failures = %d, %d, want 6, 0", trace.Detections(), trace.Failures())
	}

	for i, r := range trace.Records {
		if r.Outcome != OutcomeDetected {
			t.Fatalf("record %d outcome = %v, want detected", i, r.Outcome)
		}
		if r.Failed() {
			t.Errorf("record %d reports Failed() for a detection", i)
		}
		if r.Detection == nil {
			t.Fatalf("record %d has nil Detection", i)
		}
		if r.FrameIntensity <= 0 {
			t.Errorf("record %d FrameIntensity = %v, want positive", i, r.FrameIntensity)
		}

		wantX := 32 + 0.5*float64(i)
		if math.Abs(r.Detection.CenterX-wantX) > 2 {
			t.Errorf("record %d CenterX = %.2f, want ~%.2f", i, r.Detection.CenterX, wantX)
		}
		if math.Abs(r.Detection.CenterY-32) > 2 {
			t.Errorf("record %d CenterY = %.2f, want ~32", i, r.Detection.CenterY)
		}
		if r.Detection.MajorRadius < 14 || r.Detection.MajorRadius > 24 {
			t.Errorf("record %d MajorRadius = %.2f, want near the 20px axis", i, r.Detection.MajorRadius)
		}
		if r.Detection.RotatedRect[3] != r.Detection.MajorRadius {
			t.Errorf("record %d RotatedRect major %.2f != MajorRadius %.2f",
				i, r.Detection.RotatedRect[3], r.Detection.MajorRadius)
		}
		if len(r.Detection.Contour) == 0 {
			t.Errorf("record %d has empty contour", i)
		}
	}
}

func TestTrackLowContrastKeepsState(t *testing.T) {
	tr := newTestTracker(t)

	// A flat frame interrupts the stream; the pupil hardly moves, so the
	// frame after it must still be accepted against the pre-gap state.
	src := &scriptedSource{frames: []*Frame{
		pupilFrame(32, 32),
		pupilFrame(32.5, 32),
		flatFrame(),
		pupilFrame(33, 32),
	}}

	trace, err := tr.Track(context.Background(), src, 4, fullROI())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if len(trace.Records) != 4 {
		t.Fatalf("records = %d, want 4", len(trace.Records))
	}
	checkFrameIDs(t, trace)

	wantOutcomes := []Outcome{OutcomeDetected, OutcomeDetected, OutcomeLowContrast, OutcomeDetected}
	for i, want := range wantOutcomes {
		if trace.Records[i].Outcome != want {
			t.Errorf("record %d outcome = %v, want %v", i, trace.Records[i].Outcome, want)
		}
	}

	lc := trace.Records[2]
	if lc.Detection != nil {
		t.Error("low-contrast record carries a Detection")
	}
	if lc.FrameIntensity != 0 {
		t.Errorf("flat frame FrameIntensity = %v, want 0", lc.FrameIntensity)
	}
	if !lc.Failed() {
		t.Error("low-contrast record does not report Failed()")
	}
}

func TestTrackLowContrastVersusNoDetectionReset(t *testing.T) {
	tr := newTestTracker(t)

	// After the low-contrast gap the pupil reappears far away: the retained
	// state makes the jump fail the speed gate, so frame 4 is a
	// no-detection. That resets the state, and the same far position is
	// accepted on frame 5. The asymmetry between the two failure kinds is
	// the whole point.
	far := 14.0
	src := &scriptedSource{frames: []*Frame{
		pupilFrame(46, 32),
		pupilFrame(46, 32),
		flatFrame(),
		pupilFrame(far, 32),
		pupilFrame(far, 32),
	}}

	trace, err := tr.Track(context.Background(), src, 5, fullROI())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if len(trace.Records) != 5 {
		t.Fatalf("records = %d, want 5", len(trace.Records))
	}

	wantOutcomes := []Outcome{
		OutcomeDetected,
		OutcomeDetected,
		OutcomeLowContrast,
		OutcomeNoDetection,
		OutcomeDetected,
	}
	for i, want := range wantOutcomes {
		if trace.Records[i].Outcome != want {
			t.Errorf("record %d outcome = %v, want %v", i, trace.Records[i].Outcome, want)
		}
	}

	nd := trace.Records[3]
	if nd.Detection != nil {
		t.Error("no-detection record carries a Detection")
	}
	if nd.FrameIntensity <= 0 {
		t.Errorf("no-detection FrameIntensity = %v, want the measured contrast", nd.FrameIntensity)
	}
}

func TestTrackDecodeFailureKeepsState(t *testing.T) {
	tr := newTestTracker(t)

	src := &scriptedSource{
		frames: []*Frame{pupilFrame(32, 32), nil, pupilFrame(32.5, 32)},
		errs:   []error{nil, fmt.Errorf("corrupt frame payload"), nil},
	}

	trace, err := tr.Track(context.Background(), src, 3, fullROI())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if len(trace.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(trace.Records))
	}
	checkFrameIDs(t, trace)

	df := trace.Records[1]
	if df.Outcome != OutcomeDecodeFailure {
		t.Errorf("record 1 outcome = %v, want decode failure", df.Outcome)
	}
	if df.Detection != nil || df.FrameIntensity != 0 {
		t.Errorf("decode-failure record = %+v, want bare frame id", df)
	}

	// State survived the bad frame: the small move is accepted.
	if trace.Records[2].Outcome != OutcomeDetected {
		t.Errorf("record 2 outcome = %v, want detected after decode failure", trace.Records[2].Outcome)
	}
}

func TestTrackNoDetectionResets(t *testing.T) {
	tr := newTestTracker(t)

	// The bar frame has contrast but no pupil-shaped candidate. It must
	// reset the state so the following large jump is accepted.
	src := &scriptedSource{frames: []*Frame{
		pupilFrame(46, 32),
		barFrame(),
		pupilFrame(14, 32),
	}}

	trace, err := tr.Track(context.Background(), src, 3, fullROI())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}

	wantOutcomes := []Outcome{OutcomeDetected, OutcomeNoDetection, OutcomeDetected}
	for i, want := range wantOutcomes {
		if trace.Records[i].Outcome != want {
			t.Errorf("record %d outcome = %v, want %v", i, trace.Records[i].Outcome, want)
		}
	}
}

func TestTrackAbort(t *testing.T) {
	tr := newTestTracker(t)

	ctx, cancel := context.WithCancel(context.Background())
	var frames []*Frame
	for i := 0; i < 5; i++ {
		frames = append(frames, pupilFrame(32, 32))
	}
	src := &cancelAfterSource{inner: &scriptedSource{frames: frames}, cancelAt: 2, cancel: cancel}

	trace, err := tr.Track(ctx, src, 5, fullROI())
	if err == nil {
		t.Fatal("Track after cancellation returned nil error")
	}
	if !errors.Is(err, ErrTrackingAborted) {
		t.Errorf("error = %v, want ErrTrackingAborted", err)
	}
	if !strings.Contains(err.Error(), "after 2 of 5") {
		t.Errorf("error = %q, want progress position in message", err.Error())
	}
	if trace == nil {
		t.Fatal("Track returned nil trace on abort")
	}
	if trace.Status != RunAborted {
		t.Errorf("Status = %v, want RunAborted", trace.Status)
	}
	// The partial trace keeps everything processed before the abort.
	if len(trace.Records) != 2 {
		t.Errorf("records = %d, want 2", len(trace.Records))
	}
	checkFrameIDs(t, trace)
}

// cancelAfterSource cancels the run's context after yielding cancelAt frames.
type cancelAfterSource struct {
	inner    *scriptedSource
	cancelAt int
	cancel   context.CancelFunc
	yielded  int
}

func (s *cancelAfterSource) Len() int { return s.inner.Len() }

func (s *cancelAfterSource) Next() (*Frame, error) {
	f, err := s.inner.Next()
	if err == nil {
		s.yielded++
		if s.yielded == s.cancelAt {
			s.cancel()
		}
	}
	return f, err
}

func TestTrackAbortBeforeFirstFrame(t *testing.T) {
	tr := newTestTracker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &scriptedSource{frames: []*Frame{pupilFrame(32, 32)}}
	trace, err := tr.Track(ctx, src, 1, fullROI())
	if !errors.Is(err, ErrTrackingAborted) {
		t.Errorf("error = %v, want ErrTrackingAborted", err)
	}
	if len(trace.Records) != 0 {
		t.Errorf("records = %d, want 0", len(trace.Records))
	}
	if trace.Status != RunAborted {
		t.Errorf("Status = %v, want RunAborted", trace.Status)
	}
}

func TestTrackROIMismatch(t *testing.T) {
	tr := newTestTracker(t)

	small, _ := NewFrame(32, 32)
	src := &scriptedSource{frames: []*Frame{pupilFrame(32, 32), small}}

	trace, err := tr.Track(context.Background(), src, 2, fullROI())
	if err == nil {
		t.Fatal("Track with mismatched frame size returned nil error")
	}
	if errors.Is(err, ErrTrackingAborted) {
		t.Error("dimension mismatch reported as abort")
	}
	if !strings.Contains(err.Error(), "frame 2") {
		t.Errorf("error = %q, want the offending frame named", err.Error())
	}
	if len(trace.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(trace.Records))
	}
	if trace.Records[1].Outcome != OutcomeDecodeFailure {
		t.Errorf("record 1 outcome = %v, want decode failure", trace.Records[1].Outcome)
	}
}

func TestTrackShortStream(t *testing.T) {
	tr := newTestTracker(t)

	// The source runs dry before the declared total: the loop stops at EOF
	// and the run still counts as completed.
	src := &scriptedSource{frames: []*Frame{pupilFrame(32, 32), pupilFrame(32, 32)}}
	trace, err := tr.Track(context.Background(), src, 10, fullROI())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if len(trace.Records) != 2 {
		t.Errorf("records = %d, want 2", len(trace.Records))
	}
	if trace.Status != RunCompleted {
		t.Errorf("Status = %v, want RunCompleted", trace.Status)
	}
}

func TestTrackZeroTotal(t *testing.T) {
	tr := newTestTracker(t)

	src := &scriptedSource{}
	trace, err := tr.Track(context.Background(), src, 0, fullROI())
	if err != nil {
		t.Fatalf("Track error: %v", err)
	}
	if len(trace.Records) != 0 || trace.Status != RunCompleted {
		t.Errorf("trace = %+v, want empty completed run", trace)
	}
}

func TestNewPupilTrackerValidatesParams(t *testing.T) {
	if _, err := NewPupilTracker(nil); err == nil {
		t.Error("NewPupilTracker(nil) expected error")
	}

	bad := DefaultParams()
	bad.Margin = nil
	bad.RatioThreshold = ptrFloat64(-1)
	_, err := NewPupilTracker(bad)
	if err == nil {
		t.Fatal("NewPupilTracker with bad params expected error")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %T, want *ConfigurationError", err)
	}
	if len(cfgErr.Problems) != 2 {
		t.Errorf("Problems = %v, want both problems reported", cfgErr.Problems)
	}
}

func TestOutcomeStringRoundTrip(t *testing.T) {
	for _, o := range []Outcome{OutcomeDecodeFailure, OutcomeLowContrast, OutcomeNoDetection, OutcomeDetected} {
		back, err := OutcomeFromString(o.String())
		if err != nil {
			t.Errorf("OutcomeFromString(%q) error: %v", o.String(), err)
		}
		if back != o {
			t.Errorf("round trip %v -> %q -> %v", o, o.String(), back)
		}
	}

	if _, err := OutcomeFromString("glitch"); err == nil {
		t.Error("OutcomeFromString(unknown) expected error")
	}
}

func TestRunStatusString(t *testing.T) {
	if RunCompleted.String() != "completed" {
		t.Errorf("RunCompleted = %q", RunCompleted.String())
	}
	if RunAborted.String() != "aborted" {
		t.Errorf("RunAborted = %q", RunAborted.String())
	}
}
