// Morphological depth map cleanup
package algorithms

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MorphologyFilter removes small islands from a depth map with an opening
// followed by a closing
type MorphologyFilter struct{}

func NewMorphologyFilter() *MorphologyFilter {
	return &MorphologyFilter{}
}

func (m *MorphologyFilter) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}
	if err := m.Validate(params); err != nil {
		return gocv.NewMat(), err
	}

	kernelSize := intParam(params, ParamKernelSize, 5)
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(input, &opened, gocv.MorphOpen, kernel)

	output := gocv.NewMat()
	gocv.MorphologyEx(opened, &output, gocv.MorphClose, kernel)

	return output, nil
}

func (m *MorphologyFilter) GetDefaultParams() map[string]interface{} {
	return SmoothingParams(5, 0)
}

func (m *MorphologyFilter) GetName() string {
	return "Open-Close"
}

func (m *MorphologyFilter) GetDescription() string {
	return "Morphological opening then closing to remove isolated depth islands; ignores strength"
}

func (m *MorphologyFilter) Validate(params map[string]interface{}) error {
	if k := intParam(params, ParamKernelSize, 5); k < 1 || k > 63 {
		return fmt.Errorf("kernel_size must be between 1 and 63, got %d", k)
	}
	return nil
}
