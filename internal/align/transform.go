package align

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
	"gocv.io/x/gocv"
)

// Transform is a row-major 2x3 affine matrix mapping layer coordinates onto the
// reference layer: x' = T[0]*x + T[1]*y + T[2], y' = T[3]*x + T[4]*y + T[5].
type Transform f64.Aff3

// Identity returns the transform carried by the reference layer.
func Identity() Transform {
	return Transform{1, 0, 0, 0, 1, 0}
}

// Apply maps a point through the transform.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t[0]*x + t[1]*y + t[2], t[3]*x + t[4]*y + t[5]
}

// IsIdentity reports whether every coefficient is within tol of the identity.
func (t Transform) IsIdentity(tol float64) bool {
	id := Identity()
	for i := range t {
		if math.Abs(t[i]-id[i]) > tol {
			return false
		}
	}
	return true
}

// Translation returns the offset part of the transform.
func (t Transform) Translation() (float64, float64) {
	return t[2], t[5]
}

// Mat builds the CV_64F 2x3 matrix expected by WarpAffine. The caller closes it.
func (t Transform) Mat() gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, t[r*3+c])
		}
	}
	return m
}

func (t Transform) String() string {
	return fmt.Sprintf("[%.4f %.4f %.2f; %.4f %.4f %.2f]", t[0], t[1], t[2], t[3], t[4], t[5])
}

func transformFromMat(m gocv.Mat) (Transform, error) {
	if m.Empty() || m.Rows() != 2 || m.Cols() != 3 {
		return Transform{}, fmt.Errorf("expected 2x3 matrix, got %dx%d", m.Rows(), m.Cols())
	}
	var t Transform
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			t[r*3+c] = m.GetDoubleAt(r, c)
		}
	}
	for _, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Transform{}, fmt.Errorf("non-finite transform %v", t)
		}
	}
	return t, nil
}
