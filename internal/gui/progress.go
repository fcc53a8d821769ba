package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ProgressPanel shows the current phase and how far it got
type ProgressPanel struct {
	label     *widget.Label
	bar       *widget.ProgressBar
	container *fyne.Container
}

func NewProgressPanel() *ProgressPanel {
	p := &ProgressPanel{
		label: widget.NewLabel("Idle"),
		bar:   widget.NewProgressBar(),
	}
	p.container = container.NewBorder(nil, nil, p.label, nil, p.bar)
	return p
}

// Update shows value out of max for the named phase
func (p *ProgressPanel) Update(label string, value, max int) {
	p.label.SetText(label)
	if max <= 0 {
		// Nothing to do in this phase
		p.bar.Max = 1
		p.bar.SetValue(1)
		return
	}
	p.bar.Max = float64(max)
	p.bar.SetValue(float64(value))
}

func (p *ProgressPanel) Reset() {
	p.label.SetText("Idle")
	p.bar.Max = 1
	p.bar.SetValue(0)
}

func (p *ProgressPanel) GetContainer() fyne.CanvasObject {
	return p.container
}
