// Stacking parameter controls
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"focus-stacker/internal/algorithms"
	"focus-stacker/internal/align"
	"focus-stacker/internal/core"
)

// snapOdd rounds v to the nearest odd integer not below 1
func snapOdd(v float64) int {
	n := int(v + 0.5)
	if n < 1 {
		return 1
	}
	if n%2 == 0 {
		n++
	}
	return n
}

type paramSlider struct {
	slider *widget.Slider
	value  *widget.Label
	odd    bool
}

func newParamSlider(min, max float64, odd bool, format string) *paramSlider {
	ps := &paramSlider{
		slider: widget.NewSlider(min, max),
		value:  widget.NewLabel(""),
		odd:    odd,
	}
	ps.slider.Step = 1
	ps.slider.OnChanged = func(v float64) {
		if ps.odd {
			if n := float64(snapOdd(v)); n != v {
				v = n
				ps.slider.SetValue(v)
			}
		}
		ps.value.SetText(fmt.Sprintf(format, v))
	}
	return ps
}

func (ps *paramSlider) set(v float64) {
	ps.slider.SetValue(v)
	ps.slider.OnChanged(ps.slider.Value)
}

func (ps *paramSlider) int() int {
	if ps.odd {
		return snapOdd(ps.slider.Value)
	}
	return int(ps.slider.Value + 0.5)
}

// ParametersPanel edits the core.Parameters of the next run
type ParametersPanel struct {
	window fyne.Window
	logger logrus.FieldLogger

	// base carries the fields without a control
	base core.Parameters

	laplace    *paramSlider
	aperture   *paramSlider
	kernel     *paramSlider
	strength   *paramSlider
	iterations *paramSlider
	blend      *widget.Check
	filter     *widget.Select
	transform  *widget.Select

	container *fyne.Container
}

func NewParametersPanel(window fyne.Window, logger logrus.FieldLogger) *ParametersPanel {
	pp := &ParametersPanel{
		window:     window,
		logger:     logger,
		laplace:    newParamSlider(1, 31, true, "%.0f"),
		aperture:   newParamSlider(1, 31, true, "%.0f"),
		kernel:     newParamSlider(1, 61, true, "%.0f"),
		strength:   newParamSlider(1, 300, false, "%.0f"),
		iterations: newParamSlider(0, 20, false, "%.0f"),
		blend:      widget.NewCheck("Blend neighbouring layers", nil),
		filter:     widget.NewSelect(algorithms.Names(), nil),
		transform:  widget.NewSelect([]string{string(align.ModelPartial), string(align.ModelFull)}, nil),
	}

	row := func(label string, ps *paramSlider) fyne.CanvasObject {
		return container.NewBorder(nil, nil, widget.NewLabel(label), ps.value, ps.slider)
	}

	defaults := widget.NewButton("Defaults", func() {
		pp.Set(core.DefaultParameters())
		pp.logger.Debug("Parameters reset to defaults")
	})

	pp.container = container.NewVBox(
		widget.NewCard("Depth map", "", container.NewVBox(
			row("Laplace kernel", pp.laplace),
			row("Laplacian aperture", pp.aperture),
		)),
		widget.NewCard("Smoothing", "", container.NewVBox(
			container.NewBorder(nil, nil, widget.NewLabel("Filter"), nil, pp.filter),
			row("Kernel", pp.kernel),
			row("Strength", pp.strength),
			row("Iterations", pp.iterations),
		)),
		widget.NewCard("Alignment", "", container.NewBorder(nil, nil, widget.NewLabel("Transform"), nil, pp.transform)),
		widget.NewCard("Composite", "", pp.blend),
		defaults,
	)

	pp.Set(core.DefaultParameters())
	return pp
}

// Get returns the parameters shown in the panel
func (pp *ParametersPanel) Get() core.Parameters {
	p := pp.base
	p.LaplaceKernelSize = pp.laplace.int()
	p.LaplacianAperture = pp.aperture.int()
	p.SmoothKernelSize = pp.kernel.int()
	p.SmoothStrength = pp.strength.slider.Value
	p.SmoothIterations = pp.iterations.int()
	p.BlendLayers = pp.blend.Checked
	p.SmoothingFilter = pp.filter.Selected
	p.TransformModel = pp.transform.Selected
	return p
}

// Set shows p in the panel
func (pp *ParametersPanel) Set(p core.Parameters) {
	pp.base = p
	pp.laplace.set(float64(p.LaplaceKernelSize))
	pp.aperture.set(float64(p.LaplacianAperture))
	pp.kernel.set(float64(p.SmoothKernelSize))
	pp.strength.set(p.SmoothStrength)
	pp.iterations.set(float64(p.SmoothIterations))
	pp.blend.SetChecked(p.BlendLayers)
	pp.filter.SetSelected(p.SmoothingFilter)
	pp.transform.SetSelected(p.TransformModel)
}

func (pp *ParametersPanel) GetContainer() fyne.CanvasObject {
	return pp.container
}
