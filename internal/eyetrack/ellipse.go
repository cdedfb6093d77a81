package eyetrack

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ellipse is a fitted shape descriptor: center in sub-image pixel
// coordinates, full axis lengths with Minor <= Major, and the major-axis
// direction in degrees within [0, 180).
type Ellipse struct {
	CX       float64
	CY       float64
	Minor    float64
	Major    float64
	AngleDeg float64
}

// errNoEllipse reports a contour whose least-squares conic has no ellipse
// solution, such as collinear or otherwise degenerate point sets.
var errNoEllipse = errors.New("no ellipse fits the contour")

// FitEllipse fits an ellipse to the contour by stable direct least squares
// (the Halir-Flusser formulation of the Fitzgibbon method). At least five
// points are required; degenerate inputs return errNoEllipse.
func FitEllipse(contour Contour) (Ellipse, error) {
	n := len(contour)
	if n < 5 {
		return Ellipse{}, fmt.Errorf("ellipse fit needs at least 5 points, got %d", n)
	}

	// Work on mean-centered points for conditioning; only the fitted center
	// needs shifting back at the end.
	var mx, my float64
	for _, p := range contour {
		mx += float64(p.X)
		my += float64(p.Y)
	}
	mx /= float64(n)
	my /= float64(n)

	d1 := mat.NewDense(n, 3, nil) // quadratic design block: x^2, xy, y^2
	d2 := mat.NewDense(n, 3, nil) // linear design block: x, y, 1
	for i, p := range contour {
		x := float64(p.X) - mx
		y := float64(p.Y) - my
		d1.Set(i, 0, x*x)
		d1.Set(i, 1, x*y)
		d1.Set(i, 2, y*y)
		d2.Set(i, 0, x)
		d2.Set(i, 1, y)
		d2.Set(i, 2, 1)
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(d1.T(), d1)
	s2.Mul(d1.T(), d2)
	s3.Mul(d2.T(), d2)

	var s3inv mat.Dense
	if err := s3inv.Inverse(&s3); err != nil {
		return Ellipse{}, errNoEllipse
	}

	var t mat.Dense
	t.Mul(&s3inv, s2.T())
	t.Scale(-1, &t)

	var m mat.Dense
	m.Mul(&s2, &t)
	m.Add(&s1, &m)

	// Reduced 3x3 eigenproblem: premultiply by the inverse constraint
	// matrix so the ellipse solution appears as an eigenvector.
	red := mat.NewDense(3, 3, nil)
	for c := 0; c < 3; c++ {
		red.Set(0, c, m.At(2, c)/2)
		red.Set(1, c, -m.At(1, c))
		red.Set(2, c, m.At(0, c)/2)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(red, mat.EigenRight); !ok {
		return Ellipse{}, errNoEllipse
	}
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	// Exactly one eigenvector satisfies the ellipse constraint 4ac-b^2 > 0.
	var a1 [3]float64
	found := false
	for j := 0; j < 3; j++ {
		a := real(vecs.At(0, j))
		b := real(vecs.At(1, j))
		c := real(vecs.At(2, j))
		if 4*a*c-b*b > 0 {
			a1 = [3]float64{a, b, c}
			found = true
			break
		}
	}
	if !found {
		return Ellipse{}, errNoEllipse
	}

	a2 := mat.NewVecDense(3, nil)
	a2.MulVec(&t, mat.NewVecDense(3, a1[:]))

	return conicToEllipse(a1[0], a1[1], a1[2], a2.AtVec(0), a2.AtVec(1), a2.AtVec(2), mx, my)
}

// conicToEllipse converts conic coefficients ax^2+bxy+cy^2+dx+ey+f=0 in
// mean-centered coordinates into geometric ellipse parameters, shifting the
// center back by (mx, my).
func conicToEllipse(a, b, c, d, e, f, mx, my float64) (Ellipse, error) {
	// The eigenvector carrying the conic has arbitrary sign and the
	// ellipse constraint 4ac-b^2 > 0 cannot tell the two apart, so force
	// the convention a+c > 0 before reading off eigenvalues. Without it a
	// negated conic swaps the axis roles and rotates the angle by 90.
	if a+c < 0 {
		a, b, c, d, e, f = -a, -b, -c, -d, -e, -f
	}
	den := 4*a*c - b*b
	if den <= 0 {
		return Ellipse{}, errNoEllipse
	}
	cx := (b*e - 2*c*d) / den
	cy := (b*d - 2*a*e) / den

	// Constant term with the conic translated to its center.
	fc := a*cx*cx + b*cx*cy + c*cy*cy + d*cx + e*cy + f

	// Principal axes from the quadratic-form eigenvalues; the smaller
	// eigenvalue carries the major axis.
	half := (a + c) / 2
	diff := math.Hypot((a-c)/2, b/2)
	lMin := half - diff
	lMax := half + diff
	if lMin == 0 || lMax == 0 {
		return Ellipse{}, errNoEllipse
	}
	major2 := -fc / lMin
	minor2 := -fc / lMax
	if major2 <= 0 || minor2 <= 0 || math.IsNaN(major2) || math.IsNaN(minor2) {
		return Ellipse{}, errNoEllipse
	}

	deg := math.Atan2(lMin-a, b/2) * 180 / math.Pi
	deg = math.Mod(deg, 180)
	if deg < 0 {
		deg += 180
	}

	return Ellipse{
		CX:       cx + mx,
		CY:       cy + my,
		Minor:    2 * math.Sqrt(minor2),
		Major:    2 * math.Sqrt(major2),
		AngleDeg: deg,
	}, nil
}
