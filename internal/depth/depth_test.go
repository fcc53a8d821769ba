package depth

import (
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"focus-stacker/internal/raster"
	"focus-stacker/internal/report"
)

func noise(t *testing.T, rows, cols int, seed int64) gocv.Mat {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, rows*cols*3)
	rng.Read(buf)
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, buf)
	require.NoError(t, err)
	return m
}

func flat(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func builder(t *testing.T, mutate func(*Options)) *Builder {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	logger, _ := test.NewNullLogger()
	b, err := New(opts, logger)
	require.NoError(t, err)
	return b
}

func values(t *testing.T, m gocv.Mat) []float32 {
	t.Helper()
	data, err := raster.Float32s(m)
	require.NoError(t, err)
	return data
}

func TestRawDepthWithinLayerRange(t *testing.T) {
	layers := []gocv.Mat{noise(t, 30, 40, 1), noise(t, 30, 40, 2), noise(t, 30, 40, 3), noise(t, 30, 40, 4)}
	defer func() {
		for i := range layers {
			layers[i].Close()
		}
	}()

	raw, err := builder(t, nil).BuildRaw(layers, nil)
	require.NoError(t, err)
	defer raw.Close()

	assert.Equal(t, gocv.MatTypeCV32F, raw.Type())
	for _, v := range values(t, raw) {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(3))
		assert.Equal(t, float32(int(v)), v)
	}
}

func TestTexturedLayerWinsEverywhere(t *testing.T) {
	layers := []gocv.Mat{flat(24, 24), noise(t, 24, 24, 9)}
	defer layers[0].Close()
	defer layers[1].Close()

	rec := &report.Recorder{}
	raw, err := builder(t, func(o *Options) { o.Workers = 3 }).BuildRaw(layers, rec)
	require.NoError(t, err)
	defer raw.Close()

	for _, v := range values(t, raw) {
		require.Equal(t, float32(1), v)
	}

	progress := rec.Progress(GenerateLabel)
	require.Len(t, progress, 3)
	assert.Equal(t, 0, progress[0].Value)
	assert.Equal(t, 2, progress[2].Value)
	assert.Equal(t, 2, progress[2].Max)

	previews := rec.Previews()
	require.Len(t, previews, 2)
	assert.True(t, previews[0].Grayscale)
}

func TestSingleLayerGivesZeroDepth(t *testing.T) {
	layer := noise(t, 16, 16, 5)
	defer layer.Close()

	m, err := builder(t, nil).Build([]gocv.Mat{layer}, nil)
	require.NoError(t, err)
	defer m.Close()

	for _, v := range values(t, m.Raw) {
		require.Equal(t, float32(0), v)
	}
	for _, v := range values(t, m.Smoothed) {
		require.InDelta(t, 0, v, 1e-6)
	}
}

func TestZeroIterationsKeepsRaw(t *testing.T) {
	layers := []gocv.Mat{noise(t, 20, 20, 11), noise(t, 20, 20, 12)}
	defer layers[0].Close()
	defer layers[1].Close()

	rec := &report.Recorder{}
	m, err := builder(t, func(o *Options) { o.SmoothIterations = 0 }).Build(layers, rec)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, values(t, m.Raw), values(t, m.Smoothed))
	assert.Len(t, rec.Progress(SmoothLabel), 1)
}

func TestSmoothingEmitsPerPass(t *testing.T) {
	layers := []gocv.Mat{noise(t, 20, 20, 21), noise(t, 20, 20, 22)}
	defer layers[0].Close()
	defer layers[1].Close()

	rec := &report.Recorder{}
	m, err := builder(t, func(o *Options) { o.SmoothIterations = 2 }).Build(layers, rec)
	require.NoError(t, err)
	defer m.Close()

	progress := rec.Progress(SmoothLabel)
	require.Len(t, progress, 3)
	assert.Equal(t, 2, progress[2].Value)
	assert.Equal(t, 2, progress[2].Max)

	for _, v := range values(t, m.Smoothed) {
		assert.GreaterOrEqual(t, v, float32(-1e-3))
		assert.LessOrEqual(t, v, float32(1+1e-3))
	}
}

func TestBuildRawRejectsMismatchedLayers(t *testing.T) {
	a := noise(t, 10, 10, 1)
	defer a.Close()
	b := noise(t, 12, 10, 2)
	defer b.Close()

	_, err := builder(t, nil).BuildRaw([]gocv.Mat{a, b}, nil)
	assert.Error(t, err)
}

func TestNewRejectsBadOptions(t *testing.T) {
	logger, _ := test.NewNullLogger()

	opts := DefaultOptions()
	opts.Filter = "sharpen"
	_, err := New(opts, logger)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.SmoothIterations = -1
	_, err = New(opts, logger)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.LaplaceKernelSize = 4
	_, err = New(opts, logger)
	assert.Error(t, err)
}
