// Named filter registry used to smooth depth maps
package algorithms

import (
	"fmt"
	"sort"

	"gocv.io/x/gocv"
)

// Parameter keys understood by every registered filter.
const (
	ParamKernelSize = "kernel_size"
	ParamStrength   = "strength"
)

// Algorithm defines the interface for single-channel float filters
type Algorithm interface {
	Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error)
	GetDefaultParams() map[string]interface{}
	GetName() string
	GetDescription() string
	Validate(params map[string]interface{}) error
}

var algorithms = make(map[string]Algorithm)

func Register(name string, algorithm Algorithm) {
	algorithms[name] = algorithm
}

func Get(name string) (Algorithm, bool) {
	algorithm, exists := algorithms[name]
	return algorithm, exists
}

func Apply(name string, input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	algorithm, exists := algorithms[name]
	if !exists {
		return gocv.NewMat(), fmt.Errorf("algorithm not found: %s", name)
	}

	return algorithm.Apply(input, params)
}

func ValidateParameters(name string, params map[string]interface{}) error {
	algorithm, exists := algorithms[name]
	if !exists {
		return fmt.Errorf("algorithm not found: %s", name)
	}

	return algorithm.Validate(params)
}

func IsValidAlgorithm(name string) bool {
	_, exists := algorithms[name]
	return exists
}

// Names returns the registered algorithm names in sorted order.
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SmoothingParams builds the parameter map for one smoothing pass.
func SmoothingParams(kernelSize int, strength float64) map[string]interface{} {
	return map[string]interface{}{
		ParamKernelSize: float64(kernelSize),
		ParamStrength:   strength,
	}
}

func init() {
	Register("bilateral", NewBilateralFilter())
	Register("gaussian", NewGaussianFilter())
	Register("median", NewMedianFilter())
	Register("morphology", NewMorphologyFilter())
}
