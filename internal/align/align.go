// Package align registers every layer of a stack onto the first one using SIFT
// features, FLANN ratio matching and a RANSAC affine estimate.
package align

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"focus-stacker/internal/report"
	"focus-stacker/internal/visualize"
)

const ProgressLabel = "Aligning images."

// ErrUnderdetermined means too few reliable correspondences to estimate a transform.
var ErrUnderdetermined = errors.New("alignment underdetermined")

// LayerError describes a layer that was dropped from the stack.
type LayerError struct {
	Index   int
	Matches int
	Err     error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %d dropped (%d matches): %v", e.Index, e.Matches, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

type Model string

const (
	// ModelPartial estimates rotation, uniform scale and translation.
	ModelPartial Model = "partial"
	// ModelFull estimates a general 6-dof affine transform.
	ModelFull Model = "full"
)

// Options configures an Aligner
type Options struct {
	RatioThreshold float64
	MinMatches     int
	Model          Model
	Workers        int
	PreviewMaxSize int
}

func DefaultOptions() Options {
	return Options{
		RatioThreshold: 0.75,
		MinMatches:     4,
		Model:          ModelPartial,
	}
}

// Result of one alignment pass. Layers, Indices and Transforms are parallel.
type Result struct {
	Layers     []gocv.Mat
	Indices    []int
	Transforms []Transform
	Failures   []*LayerError
}

// Close releases the aligned layers.
func (r *Result) Close() {
	for i := range r.Layers {
		r.Layers[i].Close()
	}
	r.Layers = nil
}

type Aligner struct {
	opts   Options
	logger logrus.FieldLogger
}

func New(opts Options, logger logrus.FieldLogger) (*Aligner, error) {
	if opts.RatioThreshold <= 0 || opts.RatioThreshold > 1 {
		return nil, fmt.Errorf("ratio threshold must be in (0, 1], got %g", opts.RatioThreshold)
	}
	if opts.MinMatches < 3 {
		return nil, fmt.Errorf("at least 3 matches are needed for an affine estimate, got %d", opts.MinMatches)
	}
	switch opts.Model {
	case ModelPartial, ModelFull:
	default:
		return nil, fmt.Errorf("unknown transform model %q", opts.Model)
	}
	return &Aligner{opts: opts, logger: logger}, nil
}

// Align registers layers[1:] onto layers[0]. The input Mats are not modified;
// the Result owns fresh copies. Layers that cannot be registered are reported in
// Result.Failures and left out of the output.
func (a *Aligner) Align(layers []gocv.Mat, r report.Reporter) (*Result, error) {
	if len(layers) == 0 {
		return nil, errors.New("no layers to align")
	}
	if r == nil {
		r = report.Nop{}
	}

	start := time.Now()
	total := len(layers) - 1
	r.OnProgress(ProgressLabel, 0, total)

	feats := detectAll(layers, a.opts.Workers)
	defer func() {
		for _, f := range feats {
			f.Close()
		}
	}()

	ref := layers[0]
	result := &Result{
		Layers:     []gocv.Mat{ref.Clone()},
		Indices:    []int{0},
		Transforms: []Transform{Identity()},
	}

	matcher := gocv.NewFlannBasedMatcher()
	defer matcher.Close()

	for i := 1; i < len(layers); i++ {
		aligned, t, lerr := a.alignOne(&matcher, feats[0], feats[i], layers[i], ref)
		if lerr != nil {
			lerr.Index = i
			result.Failures = append(result.Failures, lerr)
			a.logger.WithFields(logrus.Fields{
				"layer":   i,
				"matches": lerr.Matches,
			}).Warn("Dropping layer that could not be aligned")
		} else {
			result.Layers = append(result.Layers, aligned)
			result.Indices = append(result.Indices, i)
			result.Transforms = append(result.Transforms, t)
			a.logger.WithFields(logrus.Fields{
				"layer":     i,
				"transform": t.String(),
			}).Debug("Layer aligned")

			if err := visualize.Emit(r, aligned, false, a.opts.PreviewMaxSize); err != nil {
				a.logger.WithError(err).Debug("Alignment preview skipped")
			}
		}
		r.OnProgress(ProgressLabel, i, total)
	}

	a.logger.WithFields(logrus.Fields{
		"layers":   len(layers),
		"aligned":  len(result.Layers),
		"dropped":  len(result.Failures),
		"duration": time.Since(start),
	}).Info("Alignment completed")

	return result, nil
}

func (a *Aligner) alignOne(matcher *gocv.FlannBasedMatcher, refFeat, curFeat *features, cur, ref gocv.Mat) (gocv.Mat, Transform, *LayerError) {
	if refFeat.empty() || curFeat.empty() {
		return gocv.NewMat(), Transform{}, &LayerError{Err: fmt.Errorf("no features detected: %w", ErrUnderdetermined)}
	}

	refPts, curPts := ratioMatches(matcher, refFeat, curFeat, a.opts.RatioThreshold)
	if len(refPts) < a.opts.MinMatches {
		return gocv.NewMat(), Transform{}, &LayerError{
			Matches: len(refPts),
			Err:     fmt.Errorf("need %d matches: %w", a.opts.MinMatches, ErrUnderdetermined),
		}
	}

	from := gocv.NewPoint2fVectorFromPoints(curPts)
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints(refPts)
	defer to.Close()

	var m gocv.Mat
	if a.opts.Model == ModelFull {
		m = gocv.EstimateAffine2D(from, to)
	} else {
		m = gocv.EstimateAffinePartial2D(from, to)
	}
	defer m.Close()

	t, err := transformFromMat(m)
	if err != nil {
		return gocv.NewMat(), Transform{}, &LayerError{
			Matches: len(refPts),
			Err:     fmt.Errorf("estimate failed (%v): %w", err, ErrUnderdetermined),
		}
	}

	warpMat := t.Mat()
	defer warpMat.Close()

	aligned := gocv.NewMat()
	gocv.WarpAffineWithParams(cur, &aligned, warpMat, image.Pt(ref.Cols(), ref.Rows()),
		gocv.InterpolationCubic, gocv.BorderReplicate, color.RGBA{})

	return aligned, t, nil
}
