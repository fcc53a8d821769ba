package gui

import (
	"fmt"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"focus-stacker/internal/io"
	"focus-stacker/internal/settings"
	"focus-stacker/internal/visualize"
)

// MenuHandler builds the main menu and runs its file actions
type MenuHandler struct {
	app    *Application
	window fyne.Window
	logger logrus.FieldLogger

	exportResult *fyne.MenuItem
	exportDepth  *fyne.MenuItem
	mainMenu     *fyne.MainMenu
}

func NewMenuHandler(app *Application) *MenuHandler {
	mh := &MenuHandler{
		app:    app,
		window: app.window,
		logger: app.logger,
	}
	mh.build()
	return mh
}

func (mh *MenuHandler) build() {
	mh.exportResult = fyne.NewMenuItem("Export Result...", mh.saveResult)
	mh.exportDepth = fyne.NewMenuItem("Export Depth Map...", mh.saveDepthMap)
	mh.exportResult.Disabled = true
	mh.exportDepth.Disabled = true

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Add Images...", func() { mh.app.layerPanel.ShowAddFiles() }),
		fyne.NewMenuItem("Add Folder...", func() { mh.app.layerPanel.ShowAddFolder() }),
		fyne.NewMenuItemSeparator(),
		mh.exportResult,
		mh.exportDepth,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Load Parameters...", mh.loadParameters),
		fyne.NewMenuItem("Save Parameters...", mh.saveParameters),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("Help", mh.showHelp),
		fyne.NewMenuItem("About", mh.showAbout),
	)

	mh.mainMenu = fyne.NewMainMenu(fileMenu, helpMenu)
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	return mh.mainMenu
}

// SetResultAvailable toggles the export entries
func (mh *MenuHandler) SetResultAvailable(ok bool) {
	mh.exportResult.Disabled = !ok
	mh.exportDepth.Disabled = !ok
	mh.mainMenu.Refresh()
}

func (mh *MenuHandler) saveResult() {
	res := mh.app.Result()
	if res == nil {
		return
	}

	quality := widget.NewSlider(1, 100)
	quality.Step = 1
	quality.SetValue(io.DefaultJPEGQuality)
	qualityLabel := widget.NewLabel(fmt.Sprintf("%d", io.DefaultJPEGQuality))
	quality.OnChanged = func(v float64) {
		qualityLabel.SetText(fmt.Sprintf("%.0f", v))
	}

	form := container.NewBorder(nil, nil, widget.NewLabel("JPEG quality"), qualityLabel, quality)
	dialog.ShowCustomConfirm("Export Result", "Continue", "Cancel", form, func(ok bool) {
		if !ok {
			return
		}
		q := int(quality.Value)

		fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil {
				mh.showError("File Dialog Error", err)
				return
			}
			if writer == nil {
				return
			}
			path := writer.URI().Path()
			// SaveImage writes the file itself
			writer.Close()

			if err := mh.app.loader.SaveImage(res.Composite, path, q); err != nil {
				mh.showError("Failed to Save Image", err)
				return
			}
			mh.app.updateStatusMessage(fmt.Sprintf("Saved %s", filepath.Base(path)))
		}, mh.window)

		fileDialog.SetFileName("stacked.jpg")
		fileDialog.SetFilter(storage.NewExtensionFileFilter(io.SupportedExtensions()))
		fileDialog.Show()
	}, mh.window)
}

func (mh *MenuHandler) saveDepthMap() {
	res := mh.app.Result()
	if res == nil {
		return
	}

	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			mh.showError("File Dialog Error", err)
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()
		writer.Close()
		if !strings.EqualFold(filepath.Ext(path), ".png") {
			path += ".png"
		}

		title := fmt.Sprintf("Depth map, %d layers", len(res.Indices))
		if err := visualize.WriteDepthPNG(res.DepthMap, len(res.Indices), true, title, path); err != nil {
			mh.showError("Failed to Save Depth Map", err)
			return
		}
		mh.logger.WithField("filepath", path).Info("Depth map saved")
		mh.app.updateStatusMessage(fmt.Sprintf("Saved %s", filepath.Base(path)))
	}, mh.window)

	fileDialog.SetFileName("depthmap.png")
	fileDialog.SetFilter(storage.NewExtensionFileFilter([]string{".png"}))
	fileDialog.Show()
}

func (mh *MenuHandler) loadParameters() {
	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			mh.showError("File Dialog Error", err)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		params, err := settings.LoadParameters(path, mh.app.params.Get())
		if err != nil {
			mh.showError("Failed to Load Parameters", err)
			return
		}
		mh.app.params.Set(params)
		mh.logger.WithField("filepath", path).Info("Parameters loaded")
	}, mh.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter([]string{".param"}))
	fileDialog.Show()
}

func (mh *MenuHandler) saveParameters() {
	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			mh.showError("File Dialog Error", err)
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()
		writer.Close()

		if err := settings.SaveParameters(path, mh.app.params.Get()); err != nil {
			mh.showError("Failed to Save Parameters", err)
			return
		}
		mh.logger.WithField("filepath", path).Info("Parameters saved")
	}, mh.window)

	fileDialog.SetFileName("focus.param")
	fileDialog.SetFilter(storage.NewExtensionFileFilter([]string{".param"}))
	fileDialog.Show()
}

func (mh *MenuHandler) showHelp() {
	content := widget.NewLabel(strings.Join([]string{
		"1. Add the images of one scene, nearest focus first.",
		"2. Adjust the parameters if needed.",
		"3. Press Stack and wait for the result.",
		"",
		"Laplace kernel and aperture control how sharpness is measured.",
		"The smoothing filter removes noise from the depth map.",
		"Blending mixes the two nearest layers instead of picking one.",
	}, "\n"))

	helpDialog := dialog.NewCustom("Help", "Close", content, mh.window)
	helpDialog.Resize(fyne.NewSize(460, 300))
	helpDialog.Show()
}

func (mh *MenuHandler) showAbout() {
	content := container.NewVBox(
		widget.NewLabel("Focus Stacker"),
		widget.NewSeparator(),
		widget.NewLabel("Combines differently focused photos of one scene"),
		widget.NewLabel("into a single image that is sharp throughout."),
		widget.NewSeparator(),
		widget.NewLabel("Built with Go, Fyne and OpenCV"),
	)

	aboutDialog := dialog.NewCustom("About", "Close", content, mh.window)
	aboutDialog.Resize(fyne.NewSize(400, 250))
	aboutDialog.Show()
}

func (mh *MenuHandler) showError(title string, err error) {
	mh.logger.WithError(err).Error(title)
	dialog.ShowError(err, mh.window)
}
