package monitor

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/visionrig-data/pupil.report/internal/db"
)

// chartTestRun pairs testTrace with a matching run row without touching a
// store.
func chartTestRun() *db.TrackRun {
	started := time.Unix(1724563200, 0)
	return &db.TrackRun{
		ID:          "chart-run",
		Source:      "frames/",
		ROI:         "10:60,20:90",
		Status:      "completed",
		FramesTotal: 5,
		FramesRead:  5,
		Detections:  2,
		Failures:    3,
		StartedAt:   started,
		FinishedAt:  started.Add(time.Second),
	}
}

func TestNewCenterChart(t *testing.T) {
	chart := NewCenterChart(PrepareCenterSeries(testTrace()), "chart-run")

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		t.Fatalf("failed to render center chart: %v", err)
	}

	body := buf.String()
	for _, want := range []string{"Pupil Center", "center x", "center y", "echarts", "chart-run"} {
		if !strings.Contains(body, want) {
			t.Errorf("center chart missing %q", want)
		}
	}
}

func TestNewRadiusChart(t *testing.T) {
	chart := NewRadiusChart(PrepareRadiusSeries(testTrace()), "chart-run")

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		t.Fatalf("failed to render radius chart: %v", err)
	}

	body := buf.String()
	for _, want := range []string{"Pupil Radius", "major axis", "echarts"} {
		if !strings.Contains(body, want) {
			t.Errorf("radius chart missing %q", want)
		}
	}
}

func TestNewOutcomeChart(t *testing.T) {
	chart := NewOutcomeChart(PrepareOutcomeStrip(testTrace()), "chart-run")

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		t.Fatalf("failed to render outcome chart: %v", err)
	}

	body := buf.String()
	for _, want := range []string{"Frame Outcomes", "visualMap", outcomePalette[0], outcomePalette[3]} {
		if !strings.Contains(body, want) {
			t.Errorf("outcome chart missing %q", want)
		}
	}
}

func TestNewSummaryChart(t *testing.T) {
	run := chartTestRun()
	sum := ComputeTraceSummary(run, testTrace())
	chart := NewSummaryChart(sum, PrepareOutcomeStrip(testTrace()))

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		t.Fatalf("failed to render summary chart: %v", err)
	}

	body := buf.String()
	for _, want := range []string{"Run Summary", "detected", "decode_failure", "run=chart-run"} {
		if !strings.Contains(body, want) {
			t.Errorf("summary chart missing %q", want)
		}
	}
}

func TestWriteReportPage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReportPage(&buf, chartTestRun(), testTrace()); err != nil {
		t.Fatalf("failed to write report page: %v", err)
	}

	body := buf.String()
	for _, want := range []string{"Run Summary", "Pupil Center", "Pupil Radius", "Frame Outcomes"} {
		if !strings.Contains(body, want) {
			t.Errorf("report page missing chart %q", want)
		}
	}
}

func TestWriteReportPageNilArgs(t *testing.T) {
	var buf bytes.Buffer

	if err := WriteReportPage(&buf, nil, testTrace()); err == nil {
		t.Error("expected error for nil run")
	}

	if err := WriteReportPage(&buf, chartTestRun(), nil); err == nil {
		t.Error("expected error for nil trace")
	}
}
