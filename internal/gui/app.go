// Main application window for the focus stacker
package gui

import (
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"focus-stacker/internal/core"
	"focus-stacker/internal/io"
)

// Application represents the main application
type Application struct {
	app       fyne.App
	window    fyne.Window
	logger    logrus.FieldLogger
	debugMode bool

	// Core components
	stack    *core.Stack
	pipeline *core.Pipeline
	loader   *io.ImageLoader
	outcomes chan core.Outcome

	// GUI components
	layerPanel  *LayerPanel
	params      *ParametersPanel
	progress    *ProgressPanel
	workspace   *Workspace
	menuHandler *MenuHandler
	stackBtn    *widget.Button
	statusCard  *widget.Card

	// result is only touched on the UI goroutine
	result *core.Result
}

func NewApplication(app fyne.App, logger logrus.FieldLogger, debugMode bool) *Application {
	window := app.NewWindow("Focus Stacker")
	window.Resize(fyne.NewSize(1400, 900))
	window.CenterOnScreen()

	a := &Application{
		app:       app,
		window:    window,
		logger:    logger,
		debugMode: debugMode,
		outcomes:  make(chan core.Outcome, 1),
	}

	a.initializeCore()
	a.initializeGUI()
	a.setupLayout()
	go a.watchOutcomes()

	return a
}

func (a *Application) initializeCore() {
	a.stack = core.NewStack()
	a.pipeline = core.NewPipeline(a.logger)
	a.loader = io.NewImageLoader(a.logger)
}

func (a *Application) initializeGUI() {
	a.layerPanel = NewLayerPanel(a.stack, a.loader, a.window, a.logger)
	a.params = NewParametersPanel(a.window, a.logger)
	a.progress = NewProgressPanel()
	a.workspace = NewWorkspace()
	a.menuHandler = NewMenuHandler(a)

	a.stackBtn = widget.NewButton("Stack", a.startStack)
	a.stackBtn.Importance = widget.HighImportance

	a.layerPanel.SetOnChanged(a.onLayersChanged)
	a.layerPanel.SetOnSelected(func(i int) {
		img, err := a.stack.Image(i)
		if err != nil {
			a.logger.WithError(err).Debug("Layer preview unavailable")
			return
		}
		a.workspace.ShowLayer(img)
	})
	a.onLayersChanged()
}

func (a *Application) setupLayout() {
	a.statusCard = widget.NewCard("Status", "", widget.NewLabel("Add images to start"))

	left := container.NewVSplit(
		a.layerPanel.GetContainer(),
		container.NewScroll(a.params.GetContainer()),
	)
	left.SetOffset(0.45)

	bottom := container.NewVBox(
		widget.NewSeparator(),
		container.NewBorder(nil, nil, nil, a.stackBtn, a.progress.GetContainer()),
		a.statusCard,
	)

	center := container.NewBorder(nil, bottom, nil, nil, a.workspace.GetContainer())

	split := container.NewHSplit(left, center)
	split.SetOffset(0.3)

	a.window.SetMainMenu(a.menuHandler.GetMainMenu())
	a.window.SetContent(split)
}

func (a *Application) onLayersChanged() {
	count := a.stack.Len()
	if count == 0 || a.pipeline.IsProcessing() {
		a.stackBtn.Disable()
	} else {
		a.stackBtn.Enable()
	}
	if a.statusCard != nil {
		a.updateStatusMessage(fmt.Sprintf("%d layer(s) loaded", count))
	}
}

// startStack submits the loaded layers to the pipeline
func (a *Application) startStack() {
	if a.stack.Len() == 0 {
		a.showError("Nothing to stack", core.ErrEmptyInput)
		return
	}
	if !a.stack.SameSize() {
		a.showError("Size mismatch", fmt.Errorf("all images must have the same dimensions: %w", core.ErrDimensionMismatch))
		return
	}

	params := a.params.Get()
	if err := params.Normalize(a.logger).Validate(); err != nil {
		a.showError("Invalid parameters", err)
		return
	}

	a.progress.Reset()
	layers := a.stack.Clones()
	reporter := newUIReporter(a.progress, a.workspace, a.logger)
	if err := a.pipeline.Start(layers, params, reporter, a.outcomes); err != nil {
		for i := range layers {
			layers[i].Close()
		}
		a.showError("Cannot start", err)
		return
	}

	a.stackBtn.Disable()
	a.layerPanel.Disable()
	a.updateStatusMessage(fmt.Sprintf("Stacking %d layers...", len(layers)))
	a.logger.WithField("layers", len(layers)).Info("Stack requested")
}

// watchOutcomes forwards finished runs to the UI goroutine
func (a *Application) watchOutcomes() {
	for out := range a.outcomes {
		fyne.Do(func() {
			a.onOutcome(out)
		})
	}
}

func (a *Application) onOutcome(out core.Outcome) {
	a.layerPanel.Enable()
	a.onLayersChanged()

	if out.Err != nil {
		a.progress.Reset()
		a.showError("Stacking failed", out.Err)
		return
	}

	if a.result != nil {
		a.result.Close()
	}
	a.result = out.Result
	if a.debugMode {
		for stage, d := range out.Result.Timings {
			a.logger.WithFields(logrus.Fields{"stage": stage, "duration": d}).Debug("Stage timing")
		}
	}
	a.menuHandler.SetResultAvailable(true)

	if err := a.workspace.ShowResult(out.Result); err != nil {
		a.logger.WithError(err).Warn("Cannot display result")
	}

	msg := fmt.Sprintf("Done: %d of %d layers used, quality %s (%.0f)",
		len(out.Result.Indices), a.stack.Len(), out.Result.Report.QualityLevel, out.Result.Report.OverallScore)
	if len(out.Result.Warnings) > 0 {
		dialog.ShowError(errors.Join(out.Result.Warnings...), a.window)
	}
	a.updateStatusMessage(msg)
}

// Result returns the last successful result, or nil
func (a *Application) Result() *core.Result {
	return a.result
}

func (a *Application) updateStatusMessage(message string) {
	if a.statusCard != nil {
		a.statusCard.SetContent(widget.NewLabel(message))
	}
}

func (a *Application) ShowAndRun() {
	a.logger.Info("Showing main application window")

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}

func (a *Application) cleanup() {
	a.logger.Info("Cleaning up application resources")
	a.pipeline.Close()
	close(a.outcomes)
	if a.result != nil {
		a.result.Close()
		a.result = nil
	}
	a.stack.Close()
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	dialog.ShowError(err, a.window)
	a.updateStatusMessage(fmt.Sprintf("Error: %s", err.Error()))
}

// AddPaths loads image files and folders into the stack
func (a *Application) AddPaths(paths []string) {
	a.layerPanel.AddPaths(paths)
}
