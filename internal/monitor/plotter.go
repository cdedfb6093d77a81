package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/visionrig-data/pupil.report/internal/eyetrack"
	"github.com/visionrig-data/pupil.report/internal/fsutil"
)

var (
	centerColor  = color.RGBA{R: 53, G: 183, B: 121, A: 255}
	radiusColor  = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	failureColor = color.RGBA{R: 255, G: 82, B: 82, A: 255}
)

// TracePlotter renders archival PNG diagnostics for a finished trace: the
// pupil center path and the per-frame radius timeline with failure markers.
type TracePlotter struct {
	fs fsutil.FileSystem
}

// NewTracePlotter creates a plotter writing through the given filesystem.
// A nil filesystem selects the real one.
func NewTracePlotter(fsys fsutil.FileSystem) *TracePlotter {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &TracePlotter{fs: fsys}
}

// SaveTracePlots creates PNG files for the trace in outputDir and returns
// the paths written. The center path plot is skipped when the trace holds
// no detections; the radius timeline is always written.
func (tp *TracePlotter) SaveTracePlots(trace *eyetrack.Trace, outputDir string) ([]string, error) {
	if trace == nil || len(trace.Records) == 0 {
		return nil, fmt.Errorf("empty trace")
	}
	if err := tp.fs.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var written []string

	if trace.Detections() > 0 {
		p, err := centerPathPlot(trace)
		if err != nil {
			return written, fmt.Errorf("center path plot: %w", err)
		}
		path := filepath.Join(outputDir, "center_path.png")
		if err := tp.savePNG(p, 8*vg.Inch, 8*vg.Inch, path); err != nil {
			return written, fmt.Errorf("save center path plot: %w", err)
		}
		written = append(written, path)
	}

	p, err := radiusPlot(trace)
	if err != nil {
		return written, fmt.Errorf("radius plot: %w", err)
	}
	path := filepath.Join(outputDir, "radius.png")
	if err := tp.savePNG(p, 14*vg.Inch, 6*vg.Inch, path); err != nil {
		return written, fmt.Errorf("save radius plot: %w", err)
	}
	written = append(written, path)

	return written, nil
}

// centerPathPlot draws the detected pupil centers as a connected path in
// image coordinates.
func centerPathPlot(trace *eyetrack.Trace) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Pupil Center Path"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	pts := make(plotter.XYs, 0, len(trace.Records))
	for _, rec := range trace.Records {
		if rec.Detection == nil {
			continue
		}
		pts = append(pts, plotter.XY{X: rec.Detection.CenterX, Y: rec.Detection.CenterY})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = centerColor
	line.Width = vg.Points(1)
	p.Add(line)

	points, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	points.GlyphStyle.Color = centerColor
	points.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(points)

	p.Legend.Add("center", line)
	p.Legend.Top = true
	return p, nil
}

// radiusPlot draws the major-axis length per frame with failed frames
// marked at zero.
func radiusPlot(trace *eyetrack.Trace) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Pupil Radius"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Major axis (px)"

	radii := make(plotter.XYs, 0, len(trace.Records))
	failures := make(plotter.XYs, 0)
	for _, rec := range trace.Records {
		if rec.Detection != nil {
			radii = append(radii, plotter.XY{X: float64(rec.FrameID), Y: rec.Detection.MajorRadius})
		} else {
			failures = append(failures, plotter.XY{X: float64(rec.FrameID), Y: 0})
		}
	}

	if len(radii) > 0 {
		line, err := plotter.NewLine(radii)
		if err != nil {
			return nil, err
		}
		line.Color = radiusColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("major axis", line)
	}

	if len(failures) > 0 {
		marks, err := plotter.NewScatter(failures)
		if err != nil {
			return nil, err
		}
		marks.GlyphStyle.Color = failureColor
		marks.GlyphStyle.Radius = vg.Points(2)
		p.Add(marks)
		p.Legend.Add("failure", marks)
	}

	p.Legend.Top = true
	return p, nil
}

// savePNG routes the rendered plot through the configured filesystem so
// tests can capture output in memory.
func (tp *TracePlotter) savePNG(p *plot.Plot, w, h vg.Length, path string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return err
	}
	f, err := tp.fs.Create(path)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
