// Layer list with loading and reordering controls
package gui

import (
	"fmt"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"focus-stacker/internal/core"
	"focus-stacker/internal/io"
)

// LayerPanel lists the stack in focus order
type LayerPanel struct {
	stack  *core.Stack
	loader *io.ImageLoader
	window fyne.Window
	logger logrus.FieldLogger

	list      *widget.List
	info      []core.LayerInfo
	selected  int
	buttons   []*widget.Button
	container *fyne.Container

	onChanged  func()
	onSelected func(int)
}

func NewLayerPanel(stack *core.Stack, loader *io.ImageLoader, window fyne.Window, logger logrus.FieldLogger) *LayerPanel {
	lp := &LayerPanel{
		stack:    stack,
		loader:   loader,
		window:   window,
		logger:   logger,
		selected: -1,
	}
	lp.build()
	return lp
}

func (lp *LayerPanel) build() {
	lp.list = widget.NewList(
		func() int {
			return len(lp.info)
		},
		func() fyne.CanvasObject {
			return container.NewBorder(nil, nil, nil, widget.NewLabel("0000x0000"), widget.NewLabel("layer.jpg"))
		},
		func(id widget.ListItemID, item fyne.CanvasObject) {
			if id >= len(lp.info) {
				return
			}
			info := lp.info[id]
			row := item.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(fmt.Sprintf("%d. %s", id+1, filepath.Base(info.Path)))
			row.Objects[1].(*widget.Label).SetText(fmt.Sprintf("%dx%d", info.Width, info.Height))
		},
	)
	lp.list.OnSelected = func(id widget.ListItemID) {
		lp.selected = id
		if lp.onSelected != nil {
			lp.onSelected(id)
		}
	}
	lp.list.OnUnselected = func(widget.ListItemID) {
		lp.selected = -1
	}

	addBtn := widget.NewButtonWithIcon("Add", theme.ContentAddIcon(), lp.ShowAddFiles)
	addBtn.Importance = widget.HighImportance
	folderBtn := widget.NewButtonWithIcon("Folder", theme.FolderOpenIcon(), lp.ShowAddFolder)
	removeBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), lp.removeSelected)
	upBtn := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() { lp.moveSelected(-1) })
	downBtn := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() { lp.moveSelected(1) })
	clearBtn := widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), lp.confirmClear)
	clearBtn.Importance = widget.DangerImportance
	lp.buttons = []*widget.Button{addBtn, folderBtn, removeBtn, upBtn, downBtn, clearBtn}

	toolbar := container.NewHBox(addBtn, folderBtn, removeBtn, upBtn, downBtn, clearBtn)
	card := widget.NewCard("Layers", "Nearest focus first", lp.list)
	lp.container = container.NewBorder(nil, toolbar, nil, nil, card)
}

func (lp *LayerPanel) SetOnChanged(fn func())     { lp.onChanged = fn }
func (lp *LayerPanel) SetOnSelected(fn func(int)) { lp.onSelected = fn }

func (lp *LayerPanel) GetContainer() fyne.CanvasObject {
	return lp.container
}

// Refresh reloads the list from the stack
func (lp *LayerPanel) Refresh() {
	lp.info = lp.stack.Info()
	if lp.selected >= len(lp.info) {
		lp.selected = -1
		lp.list.UnselectAll()
	}
	lp.list.Refresh()
	if lp.onChanged != nil {
		lp.onChanged()
	}
}

func (lp *LayerPanel) Enable() {
	for _, b := range lp.buttons {
		b.Enable()
	}
}

func (lp *LayerPanel) Disable() {
	for _, b := range lp.buttons {
		b.Disable()
	}
}

func (lp *LayerPanel) ShowAddFiles() {
	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			lp.showError(err)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		lp.AddPaths([]string{path})
	}, lp.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter(io.SupportedExtensions()))
	fileDialog.Show()
}

func (lp *LayerPanel) ShowAddFolder() {
	folderDialog := dialog.NewFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil {
			lp.showError(err)
			return
		}
		if dir == nil {
			return
		}
		lp.AddPaths([]string{dir.Path()})
	}, lp.window)
	folderDialog.Show()
}

// AddPaths loads files and directories in the background and appends them in
// name order
func (lp *LayerPanel) AddPaths(paths []string) {
	lp.Disable()
	go func() {
		files, err := io.CollectFiles(paths...)
		if err == nil {
			files, err = io.OrderFiles(files, io.OrderName)
		}
		var failed []error
		if err == nil {
			for _, path := range files {
				mat, lerr := lp.loader.LoadImage(path)
				if lerr != nil {
					failed = append(failed, lerr)
					continue
				}
				if aerr := lp.stack.Add(mat, path); aerr != nil {
					failed = append(failed, aerr)
				}
				mat.Close()
			}
			lp.logger.WithFields(logrus.Fields{
				"files":  len(files),
				"failed": len(failed),
			}).Info("Layers added")
		}

		fyne.Do(func() {
			lp.Enable()
			lp.Refresh()
			if err != nil {
				lp.showError(err)
			} else if len(failed) > 0 {
				lp.showError(fmt.Errorf("%d file(s) could not be added: %w", len(failed), failed[0]))
			}
		})
	}()
}

func (lp *LayerPanel) removeSelected() {
	if lp.selected < 0 {
		return
	}
	if err := lp.stack.Remove(lp.selected); err != nil {
		lp.showError(err)
		return
	}
	lp.list.UnselectAll()
	lp.selected = -1
	lp.Refresh()
}

func (lp *LayerPanel) moveSelected(delta int) {
	if lp.selected < 0 {
		return
	}
	to := lp.selected + delta
	if to < 0 || to >= lp.stack.Len() {
		return
	}
	if err := lp.stack.Move(lp.selected, to); err != nil {
		lp.showError(err)
		return
	}
	lp.Refresh()
	lp.list.Select(to)
}

func (lp *LayerPanel) confirmClear() {
	if lp.stack.Len() == 0 {
		return
	}
	dialog.ShowConfirm("Clear Layers", "Remove all loaded layers?", func(ok bool) {
		if !ok {
			return
		}
		lp.stack.Clear()
		lp.list.UnselectAll()
		lp.selected = -1
		lp.Refresh()
	}, lp.window)
}

func (lp *LayerPanel) showError(err error) {
	lp.logger.WithError(err).Error("Layer operation failed")
	dialog.ShowError(err, lp.window)
}
