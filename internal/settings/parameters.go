package settings

import (
	"focus-stacker/internal/core"
)

// Names of the stored parameters
const (
	NameLaplaceKernel     = "Laplacian Kernel size"
	NameSmoothKernel      = "Smooth Kernel size"
	NameSmoothStrength    = "Smooth strength"
	NameSmoothIterations  = "Smooth iterations"
	NameBlendLayers       = "Blend layers"
	NameLaplacianAperture = "Laplacian aperture"
)

// FromParameters extracts the persisted subset of p
func FromParameters(p core.Parameters) Params {
	return Params{
		NameLaplaceKernel:     IntValue(p.LaplaceKernelSize),
		NameSmoothKernel:      IntValue(p.SmoothKernelSize),
		NameSmoothStrength:    FloatValue(p.SmoothStrength),
		NameSmoothIterations:  IntValue(p.SmoothIterations),
		NameBlendLayers:       BoolValue(p.BlendLayers),
		NameLaplacianAperture: IntValue(p.LaplacianAperture),
	}
}

// Apply overlays the stored values on base. Unknown names and values of an
// unexpected type are ignored.
func (ps Params) Apply(base core.Parameters) core.Parameters {
	ints := map[string]*int{
		NameLaplaceKernel:     &base.LaplaceKernelSize,
		NameSmoothKernel:      &base.SmoothKernelSize,
		NameSmoothIterations:  &base.SmoothIterations,
		NameLaplacianAperture: &base.LaplacianAperture,
	}
	for name, dst := range ints {
		if v, ok := ps[name]; ok {
			if n, ok := v.AsInt(); ok {
				*dst = n
			}
		}
	}

	if v, ok := ps[NameSmoothStrength]; ok {
		if f, ok := v.AsFloat(); ok {
			base.SmoothStrength = f
		}
	}
	if v, ok := ps[NameBlendLayers]; ok {
		if b, ok := v.AsBool(); ok {
			base.BlendLayers = b
		}
	}
	return base
}

// SaveParameters writes the persisted subset of p to path
func SaveParameters(path string, p core.Parameters) error {
	return Save(path, FromParameters(p))
}

// LoadParameters reads path and overlays it on base
func LoadParameters(path string, base core.Parameters) (core.Parameters, error) {
	ps, err := Load(path)
	if err != nil {
		return base, err
	}
	return ps.Apply(base), nil
}
