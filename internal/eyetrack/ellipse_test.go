package eyetrack

import (
	"math"
	"testing"
)

// ellipsePoints samples n rasterized points of the ellipse with center
// (cx, cy), semi-axes a >= b and major-axis direction thetaDeg, in screen
// coordinates with y growing down.
func ellipsePoints(cx, cy, a, b, thetaDeg float64, n int) Contour {
	sin, cos := math.Sincos(thetaDeg * math.Pi / 180)
	c := make(Contour, 0, n)
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		ex := a * math.Cos(t)
		ey := b * math.Sin(t)
		px := cx + ex*cos - ey*sin
		py := cy + ex*sin + ey*cos
		c = append(c, Point{int(math.Round(px)), int(math.Round(py))})
	}
	return c
}

// angleDiff measures angular distance modulo 180 degrees.
func angleDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	d = math.Mod(d, 180)
	if d > 90 {
		d = 180 - d
	}
	return d
}

func TestFitEllipseAxisAligned(t *testing.T) {
	c := ellipsePoints(50, 40, 20, 12, 0, 72)
	e, err := FitEllipse(c)
	if err != nil {
		t.Fatalf("FitEllipse error: %v", err)
	}
	if math.Abs(e.CX-50) > 0.2 || math.Abs(e.CY-40) > 0.2 {
		t.Errorf("center = (%.3f, %.3f), want (50, 40)", e.CX, e.CY)
	}
	if math.Abs(e.Major-40) > 0.5 {
		t.Errorf("Major = %.3f, want 40", e.Major)
	}
	if math.Abs(e.Minor-24) > 0.5 {
		t.Errorf("Minor = %.3f, want 24", e.Minor)
	}
	if angleDiff(e.AngleDeg, 0) > 1 {
		t.Errorf("AngleDeg = %.3f, want ~0", e.AngleDeg)
	}
}

func TestFitEllipseRotated(t *testing.T) {
	tests := []struct {
		name  string
		theta float64
	}{
		{"30 degrees", 30},
		{"45 degrees", 45},
		{"120 degrees", 120},
		{"170 degrees", 170},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ellipsePoints(60, 55, 25, 15, tt.theta, 90)
			e, err := FitEllipse(c)
			if err != nil {
				t.Fatalf("FitEllipse error: %v", err)
			}
			if math.Abs(e.CX-60) > 0.2 || math.Abs(e.CY-55) > 0.2 {
				t.Errorf("center = (%.3f, %.3f), want (60, 55)", e.CX, e.CY)
			}
			if math.Abs(e.Major-50) > 0.6 {
				t.Errorf("Major = %.3f, want 50", e.Major)
			}
			if math.Abs(e.Minor-30) > 0.6 {
				t.Errorf("Minor = %.3f, want 30", e.Minor)
			}
			if angleDiff(e.AngleDeg, tt.theta) > 1 {
				t.Errorf("AngleDeg = %.3f, want ~%v", e.AngleDeg, tt.theta)
			}
			if e.AngleDeg < 0 || e.AngleDeg >= 180 {
				t.Errorf("AngleDeg = %.3f outside [0, 180)", e.AngleDeg)
			}
		})
	}
}

func TestFitEllipseCircle(t *testing.T) {
	c := ellipsePoints(32, 32, 15, 15, 0, 60)
	e, err := FitEllipse(c)
	if err != nil {
		t.Fatalf("FitEllipse error: %v", err)
	}
	if math.Abs(e.Major-30) > 0.5 || math.Abs(e.Minor-30) > 0.5 {
		t.Errorf("axes = (%.3f, %.3f), want (30, 30)", e.Minor, e.Major)
	}
	if e.Minor > e.Major {
		t.Errorf("Minor %.3f > Major %.3f", e.Minor, e.Major)
	}
	if e.Major/e.Minor > 1.05 {
		t.Errorf("circle ratio = %.3f, want ~1", e.Major/e.Minor)
	}
}

func TestFitEllipseAxisOrder(t *testing.T) {
	// Swapping which geometric axis is longer must not break Minor <= Major.
	for _, theta := range []float64{0, 60, 90, 150} {
		c := ellipsePoints(40, 40, 18, 9, theta, 64)
		e, err := FitEllipse(c)
		if err != nil {
			t.Fatalf("theta %v: FitEllipse error: %v", theta, err)
		}
		if e.Minor > e.Major {
			t.Errorf("theta %v: Minor %.3f > Major %.3f", theta, e.Minor, e.Major)
		}
	}
}

func TestConicToEllipseSignConvention(t *testing.T) {
	// 25x^2 + 100y^2 - 2500 = 0 is the ellipse with semi-axes (10, 5),
	// translated to center (3, -2). The eigenproblem hands conicToEllipse
	// this conic with arbitrary overall sign; both signs must produce the
	// same geometry, with the major axis on the longer direction.
	coeffs := [6]float64{25, 0, 100, -150, 400, -1875}

	for _, sign := range []float64{1, -1} {
		a, b, c := sign*coeffs[0], sign*coeffs[1], sign*coeffs[2]
		d, e, f := sign*coeffs[3], sign*coeffs[4], sign*coeffs[5]

		ell, err := conicToEllipse(a, b, c, d, e, f, 0, 0)
		if err != nil {
			t.Fatalf("sign %v: conicToEllipse error: %v", sign, err)
		}
		if math.Abs(ell.CX-3) > 1e-9 || math.Abs(ell.CY+2) > 1e-9 {
			t.Errorf("sign %v: center = (%.6f, %.6f), want (3, -2)", sign, ell.CX, ell.CY)
		}
		if math.Abs(ell.Major-20) > 1e-9 {
			t.Errorf("sign %v: Major = %.6f, want 20", sign, ell.Major)
		}
		if math.Abs(ell.Minor-10) > 1e-9 {
			t.Errorf("sign %v: Minor = %.6f, want 10", sign, ell.Minor)
		}
		if angleDiff(ell.AngleDeg, 0) > 1e-6 {
			t.Errorf("sign %v: AngleDeg = %.6f, want ~0", sign, ell.AngleDeg)
		}
	}
}

func TestFitEllipseTooFewPoints(t *testing.T) {
	c := Contour{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if _, err := FitEllipse(c); err == nil {
		t.Error("FitEllipse with 4 points expected error, got nil")
	}
}

func TestFitEllipseCollinear(t *testing.T) {
	var c Contour
	for i := 0; i < 12; i++ {
		c = append(c, Point{i, 2 * i})
	}
	if _, err := FitEllipse(c); err == nil {
		t.Error("FitEllipse on a line expected error, got nil")
	}

	var horizontal Contour
	for i := 0; i < 12; i++ {
		horizontal = append(horizontal, Point{i, 7})
	}
	if _, err := FitEllipse(horizontal); err == nil {
		t.Error("FitEllipse on a horizontal line expected error, got nil")
	}
}

func TestFitEllipseFarFromOrigin(t *testing.T) {
	// Mean-centering keeps the fit stable when coordinates are large.
	c := ellipsePoints(1900, 1450, 22, 14, 75, 80)
	e, err := FitEllipse(c)
	if err != nil {
		t.Fatalf("FitEllipse error: %v", err)
	}
	if math.Abs(e.CX-1900) > 0.3 || math.Abs(e.CY-1450) > 0.3 {
		t.Errorf("center = (%.3f, %.3f), want (1900, 1450)", e.CX, e.CY)
	}
	if angleDiff(e.AngleDeg, 75) > 1 {
		t.Errorf("AngleDeg = %.3f, want ~75", e.AngleDeg)
	}
}
