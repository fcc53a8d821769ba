// Edge-preserving and plain smoothing filters for float depth maps
package algorithms

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// BilateralFilter implements bilateral filter
type BilateralFilter struct{}

// NewBilateralFilter creates a new bilateral filter algorithm
func NewBilateralFilter() *BilateralFilter {
	return &BilateralFilter{}
}

func (b *BilateralFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}
	if err := b.Validate(params); err != nil {
		return gocv.NewMat(), err
	}

	d := intParam(params, ParamKernelSize, 17)
	strength := floatParam(params, ParamStrength, 100)

	// The same strength drives both the value and the spatial sigma
	output := gocv.NewMat()
	gocv.BilateralFilter(input, &output, d, strength, strength)

	return output, nil
}

func (b *BilateralFilter) GetDefaultParams() map[string]interface{} {
	return SmoothingParams(17, 100)
}

func (b *BilateralFilter) GetName() string {
	return "Bilateral Filter"
}

func (b *BilateralFilter) GetDescription() string {
	return "Edge-preserving smoothing; strength is used as both color and space sigma"
}

func (b *BilateralFilter) Validate(params map[string]interface{}) error {
	if d := intParam(params, ParamKernelSize, 17); d < 1 {
		return fmt.Errorf("kernel_size must be positive, got %d", d)
	}
	if s := floatParam(params, ParamStrength, 100); s <= 0 {
		return fmt.Errorf("strength must be positive, got %g", s)
	}
	return nil
}

// GaussianFilter implements Gaussian blur filter
type GaussianFilter struct{}

// NewGaussianFilter creates a new Gaussian filter algorithm
func NewGaussianFilter() *GaussianFilter {
	return &GaussianFilter{}
}

func (g *GaussianFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}
	if err := g.Validate(params); err != nil {
		return gocv.NewMat(), err
	}

	kernelSize := intParam(params, ParamKernelSize, 5)

	// Ensure kernel size is odd
	if kernelSize%2 == 0 {
		kernelSize++
	}

	// Sigma 0 lets OpenCV derive it from the kernel size
	output := gocv.NewMat()
	gocv.GaussianBlur(input, &output, image.Pt(kernelSize, kernelSize), 0, 0, gocv.BorderDefault)

	return output, nil
}

func (g *GaussianFilter) GetDefaultParams() map[string]interface{} {
	return SmoothingParams(5, 0)
}

func (g *GaussianFilter) GetName() string {
	return "Gaussian Filter"
}

func (g *GaussianFilter) GetDescription() string {
	return "Gaussian blur; ignores strength, sigma follows the kernel size"
}

func (g *GaussianFilter) Validate(params map[string]interface{}) error {
	if k := intParam(params, ParamKernelSize, 5); k < 1 {
		return fmt.Errorf("kernel_size must be positive, got %d", k)
	}
	return nil
}

// MedianFilter implements median filter
type MedianFilter struct{}

// NewMedianFilter creates a new median filter algorithm
func NewMedianFilter() *MedianFilter {
	return &MedianFilter{}
}

func (m *MedianFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}
	if err := m.Validate(params); err != nil {
		return gocv.NewMat(), err
	}

	kernelSize := intParam(params, ParamKernelSize, 5)
	if kernelSize%2 == 0 {
		kernelSize++
	}

	output := gocv.NewMat()
	gocv.MedianBlur(input, &output, kernelSize)

	return output, nil
}

func (m *MedianFilter) GetDefaultParams() map[string]interface{} {
	return SmoothingParams(5, 0)
}

func (m *MedianFilter) GetName() string {
	return "Median Filter"
}

func (m *MedianFilter) GetDescription() string {
	return "Median filter to remove salt-and-pepper layer noise; ignores strength"
}

// Validate limits the kernel to what OpenCV's median blur accepts on float input.
func (m *MedianFilter) Validate(params map[string]interface{}) error {
	k := intParam(params, ParamKernelSize, 5)
	if k < 3 || k > 5 {
		return fmt.Errorf("kernel_size must be 3 or 5 for float depth maps, got %d", k)
	}
	return nil
}

func intParam(params map[string]interface{}, key string, def int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return def
}

func floatParam(params map[string]interface{}, key string, def float64) float64 {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return def
}
