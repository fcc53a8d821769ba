// Package depth builds the per-pixel layer index map of a focus stack and
// smooths it.
package depth

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"focus-stacker/internal/algorithms"
	"focus-stacker/internal/raster"
	"focus-stacker/internal/report"
	"focus-stacker/internal/sharpness"
	"focus-stacker/internal/visualize"
)

const (
	GenerateLabel = "Generating depth map."
	SmoothLabel   = "Smoothening depth map."
)

// Options configures a Builder
type Options struct {
	LaplaceKernelSize int // side of the variance window
	LaplacianAperture int
	SmoothKernelSize  int
	SmoothStrength    float64
	SmoothIterations  int
	Filter            string
	Workers           int
	PreviewMaxSize    int
}

func DefaultOptions() Options {
	return Options{
		LaplaceKernelSize: 3,
		LaplacianAperture: 5,
		SmoothKernelSize:  17,
		SmoothStrength:    100,
		SmoothIterations:  5,
		Filter:            "bilateral",
	}
}

// Map holds the raw and smoothed depth maps, both CV_32FC1.
type Map struct {
	Raw      gocv.Mat
	Smoothed gocv.Mat
}

func (m *Map) Close() {
	m.Raw.Close()
	m.Smoothed.Close()
}

type Builder struct {
	opts      Options
	estimator sharpness.Estimator
	logger    logrus.FieldLogger
}

func New(opts Options, logger logrus.FieldLogger) (*Builder, error) {
	est := sharpness.Estimator{Aperture: opts.LaplacianAperture, Window: opts.LaplaceKernelSize}
	if err := est.Validate(); err != nil {
		return nil, err
	}
	if opts.SmoothIterations < 0 {
		return nil, fmt.Errorf("smooth iterations must not be negative, got %d", opts.SmoothIterations)
	}
	if !algorithms.IsValidAlgorithm(opts.Filter) {
		return nil, fmt.Errorf("unknown smoothing filter %q", opts.Filter)
	}
	if opts.SmoothIterations > 0 {
		params := algorithms.SmoothingParams(opts.SmoothKernelSize, opts.SmoothStrength)
		if err := algorithms.ValidateParameters(opts.Filter, params); err != nil {
			return nil, fmt.Errorf("smoothing filter %s: %w", opts.Filter, err)
		}
	}
	return &Builder{opts: opts, estimator: est, logger: logger}, nil
}

// Build runs BuildRaw followed by Smooth.
func (b *Builder) Build(layers []gocv.Mat, r report.Reporter) (*Map, error) {
	raw, err := b.BuildRaw(layers, r)
	if err != nil {
		return nil, err
	}
	smoothed, err := b.Smooth(raw, r)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return &Map{Raw: raw, Smoothed: smoothed}, nil
}

// BuildRaw returns a CV_32FC1 map holding, for every pixel, the index of the
// sharpest layer. Ties go to the later layer.
func (b *Builder) BuildRaw(layers []gocv.Mat, r report.Reporter) (gocv.Mat, error) {
	if len(layers) == 0 {
		return gocv.NewMat(), errors.New("no layers for depth map")
	}
	if r == nil {
		r = report.Nop{}
	}

	start := time.Now()
	rows, cols := layers[0].Rows(), layers[0].Cols()
	n := len(layers)
	r.OnProgress(GenerateLabel, 0, n)

	zero := gocv.NewScalar(0, 0, 0, 0)
	best := gocv.NewMatWithSizeFromScalar(zero, rows, cols, gocv.MatTypeCV64F)
	defer best.Close()
	bestData, err := raster.Float64s(best)
	if err != nil {
		return gocv.NewMat(), err
	}

	depth := gocv.NewMatWithSizeFromScalar(zero, rows, cols, gocv.MatTypeCV32F)
	depthData, err := raster.Float32s(depth)
	if err != nil {
		depth.Close()
		return gocv.NewMat(), err
	}

	for i, layer := range layers {
		if !raster.SameSize(layer, layers[0]) {
			depth.Close()
			return gocv.NewMat(), fmt.Errorf("layer %d is %dx%d, expected %dx%d", i, layer.Cols(), layer.Rows(), cols, rows)
		}

		s, err := b.estimator.Estimate(layer)
		if err != nil {
			depth.Close()
			return gocv.NewMat(), fmt.Errorf("sharpness of layer %d: %w", i, err)
		}
		sData, err := raster.Float64s(s)
		if err != nil {
			s.Close()
			depth.Close()
			return gocv.NewMat(), err
		}

		index := float32(i)
		raster.ParallelRows(rows, b.opts.Workers, func(startRow, endRow int) {
			for p := startRow * cols; p < endRow*cols; p++ {
				if sData[p] >= bestData[p] {
					bestData[p] = sData[p]
					depthData[p] = index
				}
			}
		})
		s.Close()

		r.OnProgress(GenerateLabel, i+1, n)
		if err := visualize.Emit(r, depth, true, b.opts.PreviewMaxSize); err != nil {
			b.logger.WithError(err).Debug("Depth preview skipped")
		}
		b.logger.WithField("layer", i).Debug("Layer sharpness accumulated")
	}

	b.logger.WithFields(logrus.Fields{
		"layers":   n,
		"duration": time.Since(start),
	}).Info("Raw depth map generated")

	return depth, nil
}

// Smooth applies the configured filter SmoothIterations times, each pass
// feeding the next. With zero iterations the result is a copy of raw.
func (b *Builder) Smooth(raw gocv.Mat, r report.Reporter) (gocv.Mat, error) {
	if raw.Empty() {
		return gocv.NewMat(), errors.New("no depth map to smooth")
	}
	if r == nil {
		r = report.Nop{}
	}

	start := time.Now()
	iters := b.opts.SmoothIterations
	r.OnProgress(SmoothLabel, 0, iters)

	current := raw.Clone()
	params := algorithms.SmoothingParams(b.opts.SmoothKernelSize, b.opts.SmoothStrength)
	for i := 0; i < iters; i++ {
		next, err := algorithms.Apply(b.opts.Filter, current, params)
		current.Close()
		if err != nil {
			next.Close()
			return gocv.NewMat(), fmt.Errorf("smoothing pass %d: %w", i+1, err)
		}
		current = next

		r.OnProgress(SmoothLabel, i+1, iters)
		if err := visualize.Emit(r, current, true, b.opts.PreviewMaxSize); err != nil {
			b.logger.WithError(err).Debug("Smoothing preview skipped")
		}
	}

	b.logger.WithFields(logrus.Fields{
		"filter":     b.opts.Filter,
		"iterations": iters,
		"duration":   time.Since(start),
	}).Info("Depth map smoothed")

	return current, nil
}
