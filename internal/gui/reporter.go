package gui

import (
	"image"

	"fyne.io/fyne/v2"
	"github.com/sirupsen/logrus"

	"focus-stacker/internal/report"
)

// newUIReporter forwards pipeline notifications to the widgets on the UI goroutine
func newUIReporter(progress *ProgressPanel, workspace *Workspace, logger logrus.FieldLogger) report.Reporter {
	// Only the worker goroutine touches lastLabel
	var lastLabel string

	return report.Funcs{
		Progress: func(label string, value, max int) {
			if label != lastLabel {
				logger.WithField("phase", label).Debug("Pipeline phase started")
				lastLabel = label
			}
			fyne.Do(func() {
				progress.Update(label, value, max)
			})
		},
		Preview: func(preview image.Image, grayscale bool) {
			fyne.Do(func() {
				workspace.ShowPreview(preview, grayscale)
			})
		},
	}
}
