package monitor

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/visionrig-data/pupil.report/internal/db"
	"github.com/visionrig-data/pupil.report/internal/eyetrack"
)

// echartsAssetsHost is where rendered chart pages load the echarts runtime
// from.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// outcomePalette colors the outcome strip from decode_failure (dark) to
// detected (bright), matching the numeric outcome codes 0..3.
var outcomePalette = []string{"#440154", "#31688e", "#35b779", "#fde725"}

// NewSummaryChart renders the outcome counts of a run as a labelled bar
// chart with the run metadata in the subtitle.
func NewSummaryChart(sum *TraceSummary, strip *OutcomeStrip) *charts.Bar {
	x := []string{"detected", "no_detection", "low_contrast", "decode_failure"}
	y := make([]opts.BarData, 0, len(x))
	for _, name := range x {
		y = append(y, opts.BarData{Value: strip.Counts[name]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Summary", Theme: "dark", Width: "1200px", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Run Summary", Subtitle: sum.Subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("frames", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// NewCenterChart renders the pupil center x/y coordinates of the detected
// frames as two line series over the frame index.
func NewCenterChart(series *CenterSeries, runID string) *charts.Line {
	xData := make([]opts.LineData, 0, len(series.Xs))
	yData := make([]opts.LineData, 0, len(series.Ys))
	for i := range series.Xs {
		xData = append(xData, opts.LineData{Value: series.Xs[i]})
		yData = append(yData, opts.LineData{Value: series.Ys[i]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pupil Center", Theme: "dark", Width: "1200px", Height: "500px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Pupil Center", Subtitle: fmt.Sprintf("run=%s detected=%d", runID, len(series.FrameIDs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(series.FrameIDs).
		AddSeries("center x", xData).
		AddSeries("center y", yData)
	return line
}

// NewRadiusChart renders the pupil major-axis length of the detected frames
// as a line series over the frame index.
func NewRadiusChart(series *RadiusSeries, runID string) *charts.Line {
	data := make([]opts.LineData, 0, len(series.Radii))
	for _, r := range series.Radii {
		data = append(data, opts.LineData{Value: r})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pupil Radius", Theme: "dark", Width: "1200px", Height: "500px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Pupil Radius", Subtitle: fmt.Sprintf("run=%s detected=%d", runID, len(series.FrameIDs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "major axis (px)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(series.FrameIDs).
		AddSeries("major axis", data)
	return line
}

// NewOutcomeChart renders the per-frame outcome codes as a colored scatter
// strip so failure clusters stand out.
func NewOutcomeChart(strip *OutcomeStrip, runID string) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(strip.Points))
	for _, p := range strip.Points {
		data = append(data, opts.ScatterData{Value: []interface{}{p.FrameID, p.Code, p.Code}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Frame Outcomes", Theme: "dark", Width: "1200px", Height: "360px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Frame Outcomes", Subtitle: fmt.Sprintf("run=%s frames=%d", runID, len(strip.Points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -0.5, Max: 3.5, Name: "outcome", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        3,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: outcomePalette},
		}),
	)
	scatter.AddSeries("outcome", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

// WriteReportPage renders the full trace report (summary, center, radius
// and outcome charts) as a single standalone HTML page. The monitor report
// endpoint and the trace-report tool share this builder.
func WriteReportPage(w io.Writer, run *db.TrackRun, trace *eyetrack.Trace) error {
	if run == nil || trace == nil {
		return fmt.Errorf("nil run or trace")
	}

	sum := ComputeTraceSummary(run, trace)
	strip := PrepareOutcomeStrip(trace)
	centers := PrepareCenterSeries(trace)
	radii := PrepareRadiusSeries(trace)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(
		NewSummaryChart(sum, strip),
		NewCenterChart(centers, run.ID),
		NewRadiusChart(radii, run.ID),
		NewOutcomeChart(strip, run.ID),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report page: %w", err)
	}
	return nil
}
