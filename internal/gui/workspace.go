package gui

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"focus-stacker/internal/core"
	"focus-stacker/internal/visualize"
)

// Workspace shows previews, the composite and the depth map in tabs
type Workspace struct {
	preview  *canvas.Image
	result   *canvas.Image
	depthMap *canvas.Image
	report   *widget.Label
	tabs     *container.AppTabs

	previewTab *container.TabItem
	resultTab  *container.TabItem
}

func newImageView() *canvas.Image {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleSmooth
	img.SetMinSize(fyne.NewSize(400, 300))
	return img
}

func NewWorkspace() *Workspace {
	w := &Workspace{
		preview:  newImageView(),
		result:   newImageView(),
		depthMap: newImageView(),
		report:   widget.NewLabel("No result yet"),
	}
	w.report.TextStyle = fyne.TextStyle{Monospace: true}

	w.previewTab = container.NewTabItem("Preview", w.preview)
	w.resultTab = container.NewTabItem("Result", w.result)
	w.tabs = container.NewAppTabs(
		w.previewTab,
		w.resultTab,
		container.NewTabItem("Depth map", w.depthMap),
		container.NewTabItem("Report", container.NewScroll(w.report)),
	)
	return w
}

func (w *Workspace) GetContainer() fyne.CanvasObject {
	return w.tabs
}

// ShowLayer displays a loaded layer in the preview tab
func (w *Workspace) ShowLayer(img image.Image) {
	w.showPreview(img)
}

// ShowPreview displays an intermediate pipeline image
func (w *Workspace) ShowPreview(img image.Image, grayscale bool) {
	title := "Preview"
	if grayscale {
		title = "Preview (grayscale)"
	}
	if w.previewTab.Text != title {
		w.previewTab.Text = title
		w.tabs.Refresh()
	}
	w.showPreview(img)
}

func (w *Workspace) showPreview(img image.Image) {
	w.preview.Image = img
	w.preview.Refresh()
	w.tabs.Select(w.previewTab)
}

// ShowResult displays the composite, its depth map and quality report
func (w *Workspace) ShowResult(res *core.Result) error {
	img, err := res.Composite.ToImage()
	if err != nil {
		return fmt.Errorf("convert composite: %w", err)
	}
	w.result.Image = img
	w.result.Refresh()

	depthImg, err := visualize.FalseColor(res.DepthMap, len(res.Indices))
	if err != nil {
		return fmt.Errorf("render depth map: %w", err)
	}
	w.depthMap.Image = depthImg
	w.depthMap.Refresh()

	w.report.SetText(formatReport(res))
	w.tabs.Select(w.resultTab)
	return nil
}

func formatReport(res *core.Result) string {
	var b strings.Builder
	rep := res.Report

	fmt.Fprintf(&b, "Quality:  %s (%.1f)\n", rep.QualityLevel, rep.OverallScore)
	fmt.Fprintf(&b, "Layers:   %v\n", res.Indices)
	if rep.Timestamp != "" {
		fmt.Fprintf(&b, "Created:  %s\n", rep.Timestamp)
	}

	names := make([]string, 0, len(rep.Metrics))
	for name := range rep.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("\nMetrics\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-22s %.4f\n", name, rep.Metrics[name])
	}

	d := rep.Depth
	b.WriteString("\nDepth map\n")
	fmt.Fprintf(&b, "  mean %.2f  std %.2f  median %.2f  range %.2f..%.2f\n", d.Mean, d.StdDev, d.Median, d.Min, d.Max)
	for i, usage := range d.LayerUsage {
		fmt.Fprintf(&b, "  layer %-3d %5.1f%%\n", i, usage*100)
	}

	if len(res.Timings) > 0 {
		stages := make([]string, 0, len(res.Timings))
		for stage := range res.Timings {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		b.WriteString("\nTimings\n")
		for _, stage := range stages {
			fmt.Fprintf(&b, "  %-22s %v\n", stage, res.Timings[stage])
		}
	}

	if len(res.Warnings) > 0 {
		b.WriteString("\nWarnings\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "  %v\n", w)
		}
	}
	return b.String()
}
