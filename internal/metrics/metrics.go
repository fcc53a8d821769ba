// Image quality metrics used to score a finished stack
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"focus-stacker/internal/raster"
)

// Metric compares a reference image with a processed one
type Metric interface {
	Calculate(reference, processed gocv.Mat) (float64, error)
	GetName() string
	GetDescription() string
	GetRange() (float64, float64)
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("psnr", NewPSNR())
	e.Register("ssim", NewSSIM())
	e.Register("mse", NewMSE())
	e.Register("sharpness_gain", NewSharpnessGain())
}

func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

func (e *Evaluator) Calculate(name string, reference, processed gocv.Mat) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(reference, processed)
}

// CalculateAll runs every registered metric, skipping those that fail.
func (e *Evaluator) CalculateAll(reference, processed gocv.Mat) map[string]float64 {
	results := make(map[string]float64)
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(reference, processed); err == nil {
			results[name] = value
		}
	}
	return results
}

// Names returns the registered metric names in sorted order.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeMetric maps a value into 0..1 where 1 is best
func (e *Evaluator) normalizeMetric(name string, value float64) float64 {
	metric, exists := e.metrics[name]
	if !exists {
		return 0
	}

	lo, hi := metric.GetRange()
	value = math.Max(lo, math.Min(hi, value))
	if hi == lo {
		return 1.0
	}

	normalized := (value - lo) / (hi - lo)
	if !metric.IsHigherBetter() {
		normalized = 1.0 - normalized
	}
	return normalized
}

func checkPair(a, b gocv.Mat) error {
	if a.Empty() || b.Empty() {
		return fmt.Errorf("empty images")
	}
	if !raster.SameSize(a, b) {
		return fmt.Errorf("dimension mismatch")
	}
	return nil
}

// grayscale returns a single-channel view of m and whether the caller must close it
func grayscale(m gocv.Mat) (gocv.Mat, bool) {
	if m.Channels() == 1 {
		return m, false
	}
	g := gocv.NewMat()
	gocv.CvtColor(m, &g, gocv.ColorBGRToGray)
	return g, true
}

// PSNR using GoCV built-in functions
type PSNR struct{}

func NewPSNR() *PSNR { return &PSNR{} }

func (p *PSNR) Calculate(reference, processed gocv.Mat) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}

	gray1, owned1 := grayscale(reference)
	if owned1 {
		defer gray1.Close()
	}
	gray2, owned2 := grayscale(processed)
	if owned2 {
		defer gray2.Close()
	}

	psnr := gocv.PSNR(gray1, gray2)
	if math.IsInf(psnr, 1) || psnr > 100 {
		return 100.0, nil // identical images
	}
	return psnr, nil
}

func (p *PSNR) GetName() string              { return "PSNR" }
func (p *PSNR) GetDescription() string       { return "Peak Signal-to-Noise Ratio" }
func (p *PSNR) GetRange() (float64, float64) { return 0, 100 }
func (p *PSNR) IsHigherBetter() bool         { return true }

// SSIM over the whole image, computed from global statistics
type SSIM struct{}

func NewSSIM() *SSIM { return &SSIM{} }

func (s *SSIM) Calculate(reference, processed gocv.Mat) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}

	x, err := grayValues(reference)
	if err != nil {
		return 0, err
	}
	y, err := grayValues(processed)
	if err != nil {
		return 0, err
	}

	// Constants for an 8-bit dynamic range
	const c1, c2 = 6.5025, 58.5225

	muX := stat.Mean(x, nil)
	muY := stat.Mean(y, nil)
	sigmaX := stat.Variance(x, nil)
	sigmaY := stat.Variance(y, nil)
	sigmaXY := stat.Covariance(x, y, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den == 0 {
		return 1.0, nil
	}
	return num / den, nil
}

func (s *SSIM) GetName() string              { return "SSIM" }
func (s *SSIM) GetDescription() string       { return "Structural Similarity Index" }
func (s *SSIM) GetRange() (float64, float64) { return 0, 1 }
func (s *SSIM) IsHigherBetter() bool         { return true }

// MSE using GoCV optimized functions
type MSE struct{}

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Calculate(reference, processed gocv.Mat) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}

	gray1, owned1 := grayscale(reference)
	if owned1 {
		defer gray1.Close()
	}
	gray2, owned2 := grayscale(processed)
	if owned2 {
		defer gray2.Close()
	}

	f1, f2 := gocv.NewMat(), gocv.NewMat()
	defer f1.Close()
	defer f2.Close()
	gray1.ConvertTo(&f1, gocv.MatTypeCV64F)
	gray2.ConvertTo(&f2, gocv.MatTypeCV64F)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(f1, f2, &diff)

	diffSq := gocv.NewMat()
	defer diffSq.Close()
	gocv.Multiply(diff, diff, &diffSq)

	return diffSq.Mean().Val1, nil
}

func (m *MSE) GetName() string              { return "MSE" }
func (m *MSE) GetDescription() string       { return "Mean Squared Error" }
func (m *MSE) GetRange() (float64, float64) { return 0, 65025 }
func (m *MSE) IsHigherBetter() bool         { return false }

// SharpnessGain is the ratio of the processed image's Laplacian variance to the
// reference's. Values above 1 mean the processed image carries more detail.
type SharpnessGain struct{}

func NewSharpnessGain() *SharpnessGain { return &SharpnessGain{} }

func (s *SharpnessGain) Calculate(reference, processed gocv.Mat) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}
	ref, err := LaplacianVariance(reference)
	if err != nil {
		return 0, err
	}
	proc, err := LaplacianVariance(processed)
	if err != nil {
		return 0, err
	}
	if ref == 0 {
		return 1.0, nil
	}
	return proc / ref, nil
}

func (s *SharpnessGain) GetName() string              { return "Sharpness gain" }
func (s *SharpnessGain) GetDescription() string       { return "Laplacian variance relative to the reference" }
func (s *SharpnessGain) GetRange() (float64, float64) { return 0, 2 }
func (s *SharpnessGain) IsHigherBetter() bool         { return true }

// LaplacianVariance is the global focus measure of an image.
func LaplacianVariance(m gocv.Mat) (float64, error) {
	gray, owned := grayscale(m)
	if owned {
		defer gray.Close()
	}

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	data, err := raster.Float64s(lap)
	if err != nil {
		return 0, err
	}
	return stat.PopVariance(data, nil), nil
}

func grayValues(m gocv.Mat) ([]float64, error) {
	gray, owned := grayscale(m)
	if owned {
		defer gray.Close()
	}
	f := gocv.NewMat()
	defer f.Close()
	gray.ConvertTo(&f, gocv.MatTypeCV64F)

	data, err := raster.Float64s(f)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}
