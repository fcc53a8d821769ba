package core

import (
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"focus-stacker/internal/align"
	"focus-stacker/internal/depth"
	"focus-stacker/internal/raster"
	"focus-stacker/internal/report"
)

func texture(t *testing.T, seed int64) gocv.Mat {
	t.Helper()
	const rows, cols = 240, 320
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, rows*cols*3)
	rng.Read(buf)
	noise, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, buf)
	require.NoError(t, err)
	defer noise.Close()

	out := gocv.NewMat()
	gocv.GaussianBlur(noise, &out, image.Pt(7, 7), 1.5, 1.5, gocv.BorderReflect101)
	return out
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	logger, _ := test.NewNullLogger()
	p := NewPipeline(logger)
	t.Cleanup(p.Close)
	return p
}

func mustBytes(t *testing.T, m gocv.Mat) []uint8 {
	t.Helper()
	b, err := raster.Bytes(m)
	require.NoError(t, err)
	return b
}

// blockingReporter parks the first progress notification until released.
type blockingReporter struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingReporter() *blockingReporter {
	return &blockingReporter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingReporter) OnProgress(string, int, int) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
}

func (b *blockingReporter) OnPreview(image.Image, bool) {}

func TestRunEmptyInput(t *testing.T) {
	p := newPipeline(t)
	rec := &report.Recorder{}

	res, err := p.Run(nil, DefaultParameters(), rec)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Nil(t, res)
	assert.Empty(t, rec.Events())
	assert.False(t, p.IsProcessing())
}

func TestRunDimensionMismatch(t *testing.T) {
	p := newPipeline(t)
	a := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 1, 1, 0), 20, 20, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 1, 1, 0), 20, 24, gocv.MatTypeCV8UC3)
	defer b.Close()

	rec := &report.Recorder{}
	_, err := p.Run([]gocv.Mat{a, b}, DefaultParameters(), rec)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Empty(t, rec.Events())
}

func TestRunRejectsParameters(t *testing.T) {
	p := newPipeline(t)
	a := texture(t, 1)
	defer a.Close()

	params := DefaultParameters()
	params.SmoothStrength = -1
	_, err := p.Run([]gocv.Mat{a}, params, nil)
	assert.ErrorIs(t, err, ErrUnsupportedParameter)
}

func TestRunSingleLayer(t *testing.T) {
	p := newPipeline(t)
	layer := texture(t, 2)
	defer layer.Close()
	before := append([]uint8(nil), mustBytes(t, layer)...)

	rec := &report.Recorder{}
	res, err := p.Run([]gocv.Mat{layer}, DefaultParameters(), rec)
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, []int{0}, res.Indices)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, before, mustBytes(t, res.Composite))
	assert.Equal(t, before, mustBytes(t, layer), "input is borrowed, not modified")

	_, maxDepth, _, _ := gocv.MinMaxLoc(res.DepthMap)
	assert.InDelta(t, 0, maxDepth, 1e-6)

	assert.NotEmpty(t, rec.Progress(align.ProgressLabel))
	assert.NotEmpty(t, rec.Progress(depth.GenerateLabel))
	assert.Len(t, rec.Progress(depth.SmoothLabel), 6)
	assert.Contains(t, res.Timings, "composite")
}

func TestRunIdenticalLayers(t *testing.T) {
	p := newPipeline(t)
	base := texture(t, 3)
	layers := []gocv.Mat{base, base.Clone()}
	defer func() {
		for i := range layers {
			layers[i].Close()
		}
	}()

	params := DefaultParameters()
	params.BlendLayers = true
	res, err := p.Run(layers, params, nil)
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, []int{0, 1}, res.Indices)
	assert.Equal(t, mustBytes(t, base), mustBytes(t, res.Composite))
	assert.Equal(t, gocv.MatTypeCV32F, res.DepthMap.Type())
	assert.Len(t, res.Report.Depth.LayerUsage, 2)
}

func TestRunDropsUnalignableLayer(t *testing.T) {
	p := newPipeline(t)
	base := texture(t, 4)
	flat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), base.Rows(), base.Cols(), gocv.MatTypeCV8UC3)
	layers := []gocv.Mat{base, flat}
	defer func() {
		for i := range layers {
			layers[i].Close()
		}
	}()

	res, err := p.Run(layers, DefaultParameters(), nil)
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, []int{0}, res.Indices)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], align.ErrUnderdetermined)
}

func TestStartDeliversOutcome(t *testing.T) {
	p := newPipeline(t)
	layer := texture(t, 5)

	done := make(chan Outcome, 1)
	require.NoError(t, p.Start([]gocv.Mat{layer}, DefaultParameters(), nil, done))

	select {
	case out := <-done:
		require.NoError(t, out.Err)
		defer out.Result.Close()
		assert.Equal(t, []int{0}, out.Result.Indices)
	case <-time.After(time.Minute):
		t.Fatal("run did not finish")
	}
	assert.False(t, p.IsProcessing())
}

func TestStartEmptyInputReportsError(t *testing.T) {
	p := newPipeline(t)
	done := make(chan Outcome, 1)
	require.NoError(t, p.Start(nil, DefaultParameters(), nil, done))

	out := <-done
	assert.ErrorIs(t, out.Err, ErrEmptyInput)
	assert.Nil(t, out.Result)
}

func TestBusyRejection(t *testing.T) {
	p := newPipeline(t)
	layer := texture(t, 6)
	blocker := newBlockingReporter()

	done := make(chan Outcome, 1)
	require.NoError(t, p.Start([]gocv.Mat{layer}, DefaultParameters(), blocker, done))
	<-blocker.entered

	assert.True(t, p.IsProcessing())

	other := texture(t, 7)
	defer other.Close()
	_, err := p.Run([]gocv.Mat{other}, DefaultParameters(), nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, p.Start([]gocv.Mat{other}, DefaultParameters(), nil, done), ErrBusy)

	close(blocker.release)
	out := <-done
	require.NoError(t, out.Err)
	out.Result.Close()

	res, err := p.Run([]gocv.Mat{other}, DefaultParameters(), nil)
	require.NoError(t, err)
	res.Close()
}

func TestClosedPipelineRejects(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := NewPipeline(logger)
	p.Close()
	p.Close()

	layer := texture(t, 8)
	defer layer.Close()
	_, err := p.Run([]gocv.Mat{layer}, DefaultParameters(), nil)
	assert.Error(t, err)
}
