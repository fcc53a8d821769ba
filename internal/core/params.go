package core

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"focus-stacker/internal/algorithms"
	"focus-stacker/internal/align"
	"focus-stacker/internal/depth"
)

// Parameters controls one stacking run
type Parameters struct {
	LaplaceKernelSize int     `yaml:"laplace_kernel_size" toml:"laplace_kernel_size"`
	LaplacianAperture int     `yaml:"laplacian_aperture" toml:"laplacian_aperture"`
	SmoothKernelSize  int     `yaml:"smooth_kernel_size" toml:"smooth_kernel_size"`
	SmoothStrength    float64 `yaml:"smooth_strength" toml:"smooth_strength"`
	SmoothIterations  int     `yaml:"smooth_iterations" toml:"smooth_iterations"`
	BlendLayers       bool    `yaml:"blend_layers" toml:"blend_layers"`
	SmoothingFilter   string  `yaml:"smoothing_filter" toml:"smoothing_filter"`
	TransformModel    string  `yaml:"transform_model" toml:"transform_model"`
	RatioThreshold    float64 `yaml:"ratio_threshold" toml:"ratio_threshold"`
	MinMatches        int     `yaml:"min_matches" toml:"min_matches"`
	Workers           int     `yaml:"workers" toml:"workers"`
	PreviewMaxSize    int     `yaml:"preview_max_size" toml:"preview_max_size"`
}

func DefaultParameters() Parameters {
	return Parameters{
		LaplaceKernelSize: 3,
		LaplacianAperture: 5,
		SmoothKernelSize:  17,
		SmoothStrength:    100,
		SmoothIterations:  5,
		BlendLayers:       true,
		SmoothingFilter:   "bilateral",
		TransformModel:    string(align.ModelPartial),
		RatioThreshold:    0.75,
		MinMatches:        4,
	}
}

// Normalize returns a copy with positive even kernel sizes bumped to the next
// odd value. Every correction is logged.
func (p Parameters) Normalize(logger logrus.FieldLogger) Parameters {
	fix := func(name string, v *int) {
		if *v > 0 && *v%2 == 0 {
			logger.WithFields(logrus.Fields{
				"parameter": name,
				"from":      *v,
				"to":        *v + 1,
			}).Warn("Kernel size must be odd, adjusting")
			*v++
		}
	}
	fix("laplace_kernel_size", &p.LaplaceKernelSize)
	fix("laplacian_aperture", &p.LaplacianAperture)
	fix("smooth_kernel_size", &p.SmoothKernelSize)
	return p
}

// Validate checks every field. Errors wrap ErrUnsupportedParameter.
func (p Parameters) Validate() error {
	switch {
	case p.LaplaceKernelSize < 1 || p.LaplaceKernelSize%2 == 0:
		return fmt.Errorf("%w: laplace kernel size %d must be odd and positive", ErrUnsupportedParameter, p.LaplaceKernelSize)
	case p.LaplacianAperture < 1 || p.LaplacianAperture > 31 || p.LaplacianAperture%2 == 0:
		return fmt.Errorf("%w: laplacian aperture %d must be odd in 1..31", ErrUnsupportedParameter, p.LaplacianAperture)
	case p.SmoothKernelSize < 1 || p.SmoothKernelSize%2 == 0:
		return fmt.Errorf("%w: smooth kernel size %d must be odd and positive", ErrUnsupportedParameter, p.SmoothKernelSize)
	case p.SmoothStrength <= 0:
		return fmt.Errorf("%w: smooth strength %g must be positive", ErrUnsupportedParameter, p.SmoothStrength)
	case p.SmoothIterations < 0:
		return fmt.Errorf("%w: smooth iterations %d must not be negative", ErrUnsupportedParameter, p.SmoothIterations)
	case !algorithms.IsValidAlgorithm(p.SmoothingFilter):
		return fmt.Errorf("%w: unknown smoothing filter %q", ErrUnsupportedParameter, p.SmoothingFilter)
	case p.TransformModel != string(align.ModelPartial) && p.TransformModel != string(align.ModelFull):
		return fmt.Errorf("%w: unknown transform model %q", ErrUnsupportedParameter, p.TransformModel)
	case p.RatioThreshold <= 0 || p.RatioThreshold > 1:
		return fmt.Errorf("%w: ratio threshold %g must be in (0, 1]", ErrUnsupportedParameter, p.RatioThreshold)
	case p.MinMatches < 3:
		return fmt.Errorf("%w: min matches %d must be at least 3", ErrUnsupportedParameter, p.MinMatches)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers %d must not be negative", ErrUnsupportedParameter, p.Workers)
	case p.PreviewMaxSize < 0:
		return fmt.Errorf("%w: preview size %d must not be negative", ErrUnsupportedParameter, p.PreviewMaxSize)
	}

	if p.SmoothIterations > 0 {
		params := algorithms.SmoothingParams(p.SmoothKernelSize, p.SmoothStrength)
		if err := algorithms.ValidateParameters(p.SmoothingFilter, params); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedParameter, err)
		}
	}
	return nil
}

func (p Parameters) alignOptions() align.Options {
	return align.Options{
		RatioThreshold: p.RatioThreshold,
		MinMatches:     p.MinMatches,
		Model:          align.Model(p.TransformModel),
		Workers:        p.Workers,
		PreviewMaxSize: p.PreviewMaxSize,
	}
}

func (p Parameters) depthOptions() depth.Options {
	return depth.Options{
		LaplaceKernelSize: p.LaplaceKernelSize,
		LaplacianAperture: p.LaplacianAperture,
		SmoothKernelSize:  p.SmoothKernelSize,
		SmoothStrength:    p.SmoothStrength,
		SmoothIterations:  p.SmoothIterations,
		Filter:            p.SmoothingFilter,
		Workers:           p.Workers,
		PreviewMaxSize:    p.PreviewMaxSize,
	}
}
