package monitor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/visionrig-data/pupil.report/internal/eyetrack"
	"github.com/visionrig-data/pupil.report/internal/fsutil"
)

var (
	roiColor   = color.RGBA{R: 158, G: 158, B: 158, A: 255}
	crossColor = color.RGBA{R: 253, G: 231, B: 37, A: 255}
)

// RenderOverlay draws a detection over its grayscale frame: the ROI bounds,
// the accepted contour, the fitted ellipse outline and a cross at the
// center. A nil detection renders just the frame and ROI. The returned
// image has the frame's dimensions.
func RenderOverlay(frame *eyetrack.Frame, roi eyetrack.ROI, det *eyetrack.Detection) *image.RGBA {
	gray := &image.Gray{Pix: frame.Pix, Stride: frame.W, Rect: image.Rect(0, 0, frame.W, frame.H)}
	img := image.NewRGBA(gray.Rect)
	draw.Draw(img, gray.Rect, gray, image.Point{}, draw.Src)

	drawROI(img, roi)

	if det == nil {
		return img
	}

	// Contour points are ROI-relative.
	for _, pt := range det.Contour {
		setPixel(img, roi.Col0+pt.X, roi.Row0+pt.Y, centerColor)
	}

	// RotatedRect is ROI-relative with full axis lengths.
	cx := float64(roi.Col0) + det.RotatedRect[0]
	cy := float64(roi.Row0) + det.RotatedRect[1]
	a := det.RotatedRect[3] / 2
	b := det.RotatedRect[2] / 2
	theta := det.RotatedRect[4] * math.Pi / 180
	drawEllipse(img, cx, cy, a, b, theta, failureColor)

	drawCross(img, int(math.Round(det.CenterX)), int(math.Round(det.CenterY)), 3, crossColor)

	return img
}

// WriteOverlayPNG encodes the overlay image to path through the given
// filesystem. A nil filesystem selects the real one.
func WriteOverlayPNG(fsys fsutil.FileSystem, path string, img image.Image) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create overlay file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return f.Close()
}

// drawROI outlines the half-open ROI rectangle.
func drawROI(img *image.RGBA, roi eyetrack.ROI) {
	for x := roi.Col0; x < roi.Col1; x++ {
		setPixel(img, x, roi.Row0, roiColor)
		setPixel(img, x, roi.Row1-1, roiColor)
	}
	for y := roi.Row0; y < roi.Row1; y++ {
		setPixel(img, roi.Col0, y, roiColor)
		setPixel(img, roi.Col1-1, y, roiColor)
	}
}

// drawEllipse samples the rotated ellipse boundary densely enough that
// adjacent samples land on neighboring pixels.
func drawEllipse(img *image.RGBA, cx, cy, a, b, theta float64, c color.RGBA) {
	n := int(math.Ceil(2*math.Pi*math.Max(a, b))) * 2
	if n < 32 {
		n = 32
	}
	sinT, cosT := math.Sin(theta), math.Cos(theta)
	for i := 0; i < n; i++ {
		phi := 2 * math.Pi * float64(i) / float64(n)
		sinP, cosP := math.Sin(phi), math.Cos(phi)
		x := cx + a*cosP*cosT - b*sinP*sinT
		y := cy + a*cosP*sinT + b*sinP*cosT
		setPixel(img, int(math.Round(x)), int(math.Round(y)), c)
	}
}

// drawCross marks a point with a small axis-aligned cross.
func drawCross(img *image.RGBA, x, y, arm int, c color.RGBA) {
	for d := -arm; d <= arm; d++ {
		setPixel(img, x+d, y, c)
		setPixel(img, x, y+d, c)
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Rect) {
		img.SetRGBA(x, y, c)
	}
}
