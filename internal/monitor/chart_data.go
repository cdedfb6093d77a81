// Package monitor serves the HTTP interface for browsing persisted pupil
// tracking runs: run listings, JSON APIs, HTML trace reports and archival
// trace plots. This file separates chart data preparation from eCharts
// rendering for improved testability.
package monitor

import (
	"fmt"
	"time"

	"github.com/visionrig-data/pupil.report/internal/db"
	"github.com/visionrig-data/pupil.report/internal/eyetrack"
)

// CenterSeries holds the frame-indexed pupil center coordinates of the
// detected frames in a trace. Failed frames carry no center and are
// skipped, so the three slices are always the same length.
type CenterSeries struct {
	FrameIDs []int     `json:"frame_ids"`
	Xs       []float64 `json:"xs"`
	Ys       []float64 `json:"ys"`
}

// RadiusSeries holds the frame-indexed pupil major-axis lengths of the
// detected frames in a trace.
type RadiusSeries struct {
	FrameIDs []int     `json:"frame_ids"`
	Radii    []float64 `json:"radii"`
}

// OutcomePoint is one frame of the outcome strip. Code is the numeric
// outcome (0 decode_failure through 3 detected) used for chart coloring.
type OutcomePoint struct {
	FrameID int    `json:"frame_id"`
	Code    int    `json:"code"`
	Label   string `json:"label"`
}

// OutcomeStrip holds the per-frame outcome sequence plus aggregate counts
// keyed by outcome name.
type OutcomeStrip struct {
	Points []OutcomePoint `json:"points"`
	Counts map[string]int `json:"counts"`
}

// TraceSummary aggregates a run and its trace for report headers and the
// summary chart.
type TraceSummary struct {
	RunID         string   `json:"run_id"`
	Source        string   `json:"source"`
	ROI           string   `json:"roi"`
	Status        string   `json:"status"`
	FramesTotal   int      `json:"frames_total"`
	FramesRead    int      `json:"frames_read"`
	Detections    int      `json:"detections"`
	Failures      int      `json:"failures"`
	DetectionRate float64  `json:"detection_rate_pct"`
	MeanRadius    float64  `json:"mean_radius"`
	VideoSeconds  *float64 `json:"video_seconds"`
	WallSeconds   float64  `json:"wall_seconds"`
	Started       string   `json:"started"`
}

// PrepareCenterSeries extracts the detected centers from a trace in frame
// order.
func PrepareCenterSeries(trace *eyetrack.Trace) *CenterSeries {
	series := &CenterSeries{
		FrameIDs: []int{},
		Xs:       []float64{},
		Ys:       []float64{},
	}
	if trace == nil {
		return series
	}
	for _, rec := range trace.Records {
		if rec.Detection == nil {
			continue
		}
		series.FrameIDs = append(series.FrameIDs, rec.FrameID)
		series.Xs = append(series.Xs, rec.Detection.CenterX)
		series.Ys = append(series.Ys, rec.Detection.CenterY)
	}
	return series
}

// PrepareRadiusSeries extracts the detected major-axis lengths from a trace
// in frame order.
func PrepareRadiusSeries(trace *eyetrack.Trace) *RadiusSeries {
	series := &RadiusSeries{
		FrameIDs: []int{},
		Radii:    []float64{},
	}
	if trace == nil {
		return series
	}
	for _, rec := range trace.Records {
		if rec.Detection == nil {
			continue
		}
		series.FrameIDs = append(series.FrameIDs, rec.FrameID)
		series.Radii = append(series.Radii, rec.Detection.MajorRadius)
	}
	return series
}

// PrepareOutcomeStrip maps every record of a trace to an outcome point and
// tallies the outcome counts.
func PrepareOutcomeStrip(trace *eyetrack.Trace) *OutcomeStrip {
	strip := &OutcomeStrip{
		Points: []OutcomePoint{},
		Counts: map[string]int{},
	}
	if trace == nil {
		return strip
	}
	for _, rec := range trace.Records {
		label := rec.Outcome.String()
		strip.Points = append(strip.Points, OutcomePoint{
			FrameID: rec.FrameID,
			Code:    int(rec.Outcome),
			Label:   label,
		})
		strip.Counts[label]++
	}
	return strip
}

// ComputeTraceSummary derives the report header values from a run row and
// its trace. The trace may be nil when only stored counters are wanted.
func ComputeTraceSummary(run *db.TrackRun, trace *eyetrack.Trace) *TraceSummary {
	if run == nil {
		return &TraceSummary{}
	}

	sum := &TraceSummary{
		RunID:        run.ID,
		Source:       run.Source,
		ROI:          run.ROI,
		Status:       run.Status,
		FramesTotal:  run.FramesTotal,
		FramesRead:   run.FramesRead,
		Detections:   run.Detections,
		Failures:     run.Failures,
		VideoSeconds: run.VideoSeconds,
		WallSeconds:  run.FinishedAt.Sub(run.StartedAt).Seconds(),
		Started:      run.StartedAt.UTC().Format(time.RFC3339),
	}
	if sum.FramesRead > 0 {
		sum.DetectionRate = float64(sum.Detections) / float64(sum.FramesRead) * 100.0
	}

	if trace != nil {
		total := 0.0
		n := 0
		for _, rec := range trace.Records {
			if rec.Detection == nil {
				continue
			}
			total += rec.Detection.MajorRadius
			n++
		}
		if n > 0 {
			sum.MeanRadius = total / float64(n)
		}
	}
	return sum
}

// Subtitle renders the summary as a compact multi-line chart subtitle.
func (s *TraceSummary) Subtitle() string {
	duration := fmt.Sprintf("%.1fs wall", s.WallSeconds)
	if s.VideoSeconds != nil {
		duration = fmt.Sprintf("%.2fs video, %s", *s.VideoSeconds, duration)
	}
	return fmt.Sprintf(
		"run=%s source=%s roi=%s status=%s\nframes=%d/%d detections=%d (%.1f%%) failures=%d\nstarted=%s duration=%s",
		s.RunID, s.Source, s.ROI, s.Status,
		s.FramesRead, s.FramesTotal, s.Detections, s.DetectionRate, s.Failures,
		s.Started, duration,
	)
}
