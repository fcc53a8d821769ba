// Package sharpness measures per-pixel focus as the local variance of the Laplacian.
package sharpness

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"focus-stacker/internal/raster"
)

// ErrInvalidKernel is returned for apertures or windows OpenCV cannot use.
var ErrInvalidKernel = errors.New("invalid kernel size")

// Estimator computes sharpness maps. Aperture is the Laplacian kernel size and
// Window the side of the square over which the variance is taken.
type Estimator struct {
	Aperture int
	Window   int
}

// Validate checks both kernel sizes.
func (e Estimator) Validate() error {
	if e.Aperture < 1 || e.Aperture > 31 || e.Aperture%2 == 0 {
		return fmt.Errorf("laplacian aperture %d: %w", e.Aperture, ErrInvalidKernel)
	}
	if e.Window < 1 || e.Window%2 == 0 {
		return fmt.Errorf("variance window %d: %w", e.Window, ErrInvalidKernel)
	}
	return nil
}

// Estimate returns a CV_64FC1 map of the same size as img where every value is
// the non-negative local variance of the Laplacian response.
func (e Estimator) Estimate(img gocv.Mat) (gocv.Mat, error) {
	if err := e.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("sharpness of empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 3:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported channel count %d", img.Channels())
	}

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, e.Aperture, 1, 0, gocv.BorderDefault)

	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(lap, lap, &sq)

	window := image.Pt(e.Window, e.Window)
	mean := gocv.NewMat()
	defer mean.Close()
	gocv.Blur(lap, &mean, window)

	meanSq := gocv.NewMat()
	defer meanSq.Close()
	gocv.Blur(sq, &meanSq, window)

	meanOfSq := gocv.NewMat()
	defer meanOfSq.Close()
	gocv.Multiply(mean, mean, &meanOfSq)

	variance := gocv.NewMat()
	gocv.Subtract(meanSq, meanOfSq, &variance)

	data, err := raster.Float64s(variance)
	if err != nil {
		variance.Close()
		return gocv.NewMat(), fmt.Errorf("variance map: %w", err)
	}
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}

	return variance, nil
}
