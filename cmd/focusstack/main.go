// Command focusstack merges a focus bracket into one sharp image
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"focus-stacker/internal/algorithms"
	"focus-stacker/internal/config"
	"focus-stacker/internal/core"
	"focus-stacker/internal/io"
	"focus-stacker/internal/report"
	"focus-stacker/internal/settings"
	"focus-stacker/internal/visualize"
)

var (
	fOutput         string
	fConfig         string
	fLaplace        int
	fAperture       int
	fSmoothKernel   int
	fSmoothStrength float64
	fIterations     int
	fBlend          bool
	fFilter         string
	fTransform      string
	fOrder          string
	fQuality        int
	fDepthMap       string
	fParams         string
	fSaveParams     string
	fDebug          bool
)

func init() {
	d := config.Default()

	flag.StringVar(&fOutput, "o", "stacked.jpg", "output image")
	flag.StringVar(&fConfig, "config", "", "YAML or TOML run file; flags given explicitly override it")
	flag.IntVar(&fLaplace, "laplace", d.LaplaceKernelSize, "sharpness variance window (odd)")
	flag.IntVar(&fAperture, "aperture", d.LaplacianAperture, "Laplacian aperture (odd, 1..31)")
	flag.IntVar(&fSmoothKernel, "smooth-kernel", d.SmoothKernelSize, "depth map smoothing kernel (odd)")
	flag.Float64Var(&fSmoothStrength, "smooth-strength", d.SmoothStrength, "depth map smoothing strength")
	flag.IntVar(&fIterations, "iterations", d.SmoothIterations, "depth map smoothing passes")
	flag.BoolVar(&fBlend, "blend", d.BlendLayers, "blend the two nearest layers")
	flag.StringVar(&fFilter, "filter", d.SmoothingFilter, filterUsage())
	flag.StringVar(&fTransform, "transform", d.TransformModel, "alignment model: partial or full")
	flag.StringVar(&fOrder, "order", d.Order, "layer order: name, exif or none")
	flag.IntVar(&fQuality, "quality", d.Quality, "JPEG quality (1..100)")
	flag.StringVar(&fDepthMap, "depthmap", "", "also write the depth map to this PNG")
	flag.StringVar(&fParams, "params", "", "load parameters from a .param file")
	flag.StringVar(&fSaveParams, "save-params", "", "save the effective parameters to a .param file")
	flag.BoolVar(&fDebug, "debug", false, "verbose logging")
}

func filterUsage() string {
	return "smoothing filter: " + strings.Join(algorithms.Names(), ", ")
}

func main() {
	flag.Parse()
	logger := initLogger(fDebug)

	if err := run(logger); err != nil {
		logger.WithError(err).Error("Stacking failed")
		os.Exit(1)
	}
}

// buildRun merges defaults, the run file, a .param file and explicit flags, in that order
func buildRun(logger logrus.FieldLogger) (config.Run, error) {
	r := config.Default()
	if fConfig != "" {
		loaded, err := config.Load(fConfig)
		if err != nil {
			return r, err
		}
		r = loaded
	}
	if fParams != "" {
		p, err := settings.LoadParameters(fParams, r.Parameters)
		if err != nil {
			return r, err
		}
		r.Parameters = p
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["o"] || r.Output == "" {
		r.Output = fOutput
	}
	if set["laplace"] {
		r.LaplaceKernelSize = fLaplace
	}
	if set["aperture"] {
		r.LaplacianAperture = fAperture
	}
	if set["smooth-kernel"] {
		r.SmoothKernelSize = fSmoothKernel
	}
	if set["smooth-strength"] {
		r.SmoothStrength = fSmoothStrength
	}
	if set["iterations"] {
		r.SmoothIterations = fIterations
	}
	if set["blend"] {
		r.BlendLayers = fBlend
	}
	if set["filter"] {
		r.SmoothingFilter = fFilter
	}
	if set["transform"] {
		r.TransformModel = fTransform
	}
	if set["order"] {
		r.Order = fOrder
	}
	if set["quality"] {
		r.Quality = fQuality
	}
	if set["depthmap"] {
		r.DepthMap = fDepthMap
	}
	if flag.NArg() > 0 {
		r.Inputs = flag.Args()
	}

	r.Parameters = r.Parameters.Normalize(logger)
	if err := r.Parameters.Validate(); err != nil {
		return r, err
	}
	if r.Quality < 1 || r.Quality > 100 {
		return r, fmt.Errorf("%w: quality %d must be in 1..100", core.ErrUnsupportedParameter, r.Quality)
	}
	return r, nil
}

func run(logger *logrus.Logger) error {
	r, err := buildRun(logger)
	if err != nil {
		return err
	}
	if fDebug {
		if out, err := config.Marshal(r); err == nil {
			logger.Debugf("Effective configuration:\n%s", out)
		}
	}
	if fSaveParams != "" {
		if err := settings.SaveParameters(fSaveParams, r.Parameters); err != nil {
			return err
		}
		logger.WithField("filepath", fSaveParams).Info("Parameters saved")
	}

	if len(r.Inputs) == 0 {
		return fmt.Errorf("no input images given: %w", core.ErrEmptyInput)
	}
	order, err := io.ParseOrder(r.Order)
	if err != nil {
		return err
	}
	files, err := io.CollectFiles(r.Inputs...)
	if err != nil {
		return err
	}
	if files, err = io.OrderFiles(files, order); err != nil {
		return err
	}

	loader := io.NewImageLoader(logger)
	layers, err := loader.LoadLayers(files)
	if err != nil {
		return err
	}
	defer func() {
		for i := range layers {
			layers[i].Close()
		}
	}()

	pipeline := core.NewPipeline(logger)
	defer pipeline.Close()

	events := report.NewChannel(256)
	logged := make(chan struct{})
	go logProgress(logger, events.Events(), logged)

	res, err := pipeline.Run(layers, r.Parameters, events)
	events.Close()
	<-logged
	if n := events.Dropped(); n > 0 {
		logger.WithField("dropped", n).Debug("Progress events dropped")
	}
	if err != nil {
		return err
	}
	defer res.Close()

	for _, w := range res.Warnings {
		logger.WithError(w).Warn("Layer skipped")
	}

	if err := loader.SaveImage(res.Composite, r.Output, r.Quality); err != nil {
		return err
	}
	if r.DepthMap != "" {
		title := fmt.Sprintf("Depth map, %d layers", len(res.Indices))
		if err := visualize.WriteDepthPNG(res.DepthMap, len(res.Indices), true, title, r.DepthMap); err != nil {
			return err
		}
	}

	printReport(res, files)
	return nil
}

// logProgress logs each phase start at Info and every step at Debug until
// events is closed
func logProgress(logger logrus.FieldLogger, events <-chan report.Event, done chan<- struct{}) {
	defer close(done)

	var current string
	previews := 0
	for ev := range events {
		if ev.Kind == report.KindPreview {
			previews++
			continue
		}
		if ev.Label != current {
			current = ev.Label
			logger.WithField("phase", ev.Label).Info("Phase started")
		}
		logger.WithFields(logrus.Fields{
			"phase": ev.Label,
			"value": ev.Value,
			"max":   ev.Max,
		}).Debug("Progress")
	}
	logger.WithField("previews", previews).Debug("Progress stream closed")
}

func printReport(res *core.Result, files []string) {
	rep := res.Report
	fmt.Printf("Used %d of %d layers\n", len(res.Indices), len(files))
	fmt.Printf("Quality: %s (%.1f)\n", rep.QualityLevel, rep.OverallScore)

	names := make([]string, 0, len(rep.Metrics))
	for name := range rep.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-22s %.4f\n", name, rep.Metrics[name])
	}
	for i, usage := range rep.Depth.LayerUsage {
		if i >= len(res.Indices) {
			break
		}
		fmt.Printf("  %-22s %5.1f%%\n", files[res.Indices[i]], usage*100)
	}
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
