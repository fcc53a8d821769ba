// Focus stacking pipeline: alignment, depth map, composite and quality report
package core

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"focus-stacker/internal/align"
	"focus-stacker/internal/composite"
	"focus-stacker/internal/depth"
	"focus-stacker/internal/metrics"
	"focus-stacker/internal/report"
)

var errClosed = errors.New("pipeline is closed")

// Result of a successful run. The caller owns the Mats and must Close the Result.
type Result struct {
	Composite gocv.Mat
	// DepthMap is the smoothed CV_32F depth map over the kept layers
	DepthMap gocv.Mat
	// Indices maps each kept layer to its position in the input
	Indices  []int
	Warnings []error
	Report   metrics.Report
	Timings  map[string]time.Duration
}

func (r *Result) Close() {
	r.Composite.Close()
	r.DepthMap.Close()
}

// Outcome is the single terminal event of an asynchronous run
type Outcome struct {
	Result *Result
	Err    error
}

type job struct {
	layers   []gocv.Mat
	params   Parameters
	reporter report.Reporter
	done     chan<- Outcome
}

// Pipeline runs stacking requests, at most one at a time. Asynchronous
// requests execute on a single dedicated worker goroutine.
type Pipeline struct {
	mu         sync.Mutex
	processing bool
	closed     bool

	jobs        chan job
	wg          sync.WaitGroup
	logger      logrus.FieldLogger
	metricsEval *metrics.Evaluator
}

func NewPipeline(logger logrus.FieldLogger) *Pipeline {
	p := &Pipeline{
		jobs:        make(chan job, 1),
		logger:      logger,
		metricsEval: metrics.NewEvaluator(),
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

// IsProcessing reports whether a run is in flight
func (p *Pipeline) IsProcessing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processing
}

func (p *Pipeline) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	if p.processing {
		return ErrBusy
	}
	p.processing = true
	return nil
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.processing = false
	p.mu.Unlock()
}

// Run stacks layers on the calling goroutine. The layers are borrowed and left
// untouched.
func (p *Pipeline) Run(layers []gocv.Mat, params Parameters, r report.Reporter) (*Result, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	return p.run(layers, params, r)
}

// Start queues a run on the worker goroutine and returns immediately. On
// success the pipeline owns layers and closes them when the run ends; the
// outcome is sent on done. When Start returns an error the caller keeps
// ownership and nothing is sent.
func (p *Pipeline) Start(layers []gocv.Mat, params Parameters, r report.Reporter, done chan<- Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	if p.processing {
		return ErrBusy
	}
	p.processing = true

	// The buffer holds the only job that can be outstanding, so this never blocks
	p.jobs <- job{layers: layers, params: params, reporter: r, done: done}
	return nil
}

// Close stops the worker after any in-flight run finishes.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	for j := range p.jobs {
		res, err := p.run(j.layers, j.params, j.reporter)
		for i := range j.layers {
			j.layers[i].Close()
		}
		p.release()

		if j.done == nil {
			if res != nil {
				res.Close()
			}
			continue
		}
		j.done <- Outcome{Result: res, Err: err}
	}
}

func (p *Pipeline) run(layers []gocv.Mat, params Parameters, r report.Reporter) (*Result, error) {
	if len(layers) == 0 {
		return nil, ErrEmptyInput
	}
	if r == nil {
		r = report.Nop{}
	}

	start := time.Now()
	stages := newStageLog(p.logger)

	stageStart := time.Now()
	params = params.Normalize(p.logger)
	err := params.Validate()
	if err == nil {
		err = ValidateStack(layers)
	}
	stages.record("validate", stageStart, logrus.Fields{"layers": len(layers)}, err)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"layers":     len(layers),
		"width":      layers[0].Cols(),
		"height":     layers[0].Rows(),
		"filter":     params.SmoothingFilter,
		"iterations": params.SmoothIterations,
		"blend":      params.BlendLayers,
	}).Info("Starting focus stack")

	stageStart = time.Now()
	aligner, err := align.New(params.alignOptions(), p.logger)
	if err != nil {
		return nil, err
	}
	aligned, err := aligner.Align(layers, r)
	if err != nil {
		stages.record("align", stageStart, nil, err)
		return nil, err
	}
	defer aligned.Close()

	warnings := make([]error, 0, len(aligned.Failures))
	for _, f := range aligned.Failures {
		warnings = append(warnings, f)
	}
	stages.record("align", stageStart, logrus.Fields{
		"kept":    len(aligned.Layers),
		"dropped": len(aligned.Failures),
	}, nil)

	stageStart = time.Now()
	builder, err := depth.New(params.depthOptions(), p.logger)
	if err != nil {
		return nil, err
	}
	depthMap, err := builder.Build(aligned.Layers, r)
	stages.record("depth", stageStart, nil, err)
	if err != nil {
		return nil, err
	}
	depthMap.Raw.Close()

	stageStart = time.Now()
	out, err := composite.Composite(aligned.Layers, depthMap.Smoothed, params.BlendLayers, params.Workers)
	stages.record("composite", stageStart, logrus.Fields{"blend": params.BlendLayers}, err)
	if err != nil {
		depthMap.Smoothed.Close()
		return nil, err
	}

	result := &Result{
		Composite: out,
		DepthMap:  depthMap.Smoothed,
		Indices:   aligned.Indices,
		Warnings:  warnings,
	}

	stageStart = time.Now()
	rep, err := p.metricsEval.GenerateReport(aligned.Layers[0], out, depthMap.Smoothed, len(aligned.Layers))
	stages.record("report", stageStart, nil, err)
	if err != nil {
		p.logger.WithError(err).Warn("Quality report unavailable")
	} else {
		result.Report = rep
	}
	result.Timings = stages.timings()

	p.logger.WithFields(logrus.Fields{
		"kept":     len(result.Indices),
		"warnings": len(result.Warnings),
		"score":    result.Report.OverallScore,
		"duration": time.Since(start),
	}).Info("Focus stack completed")

	return result, nil
}
