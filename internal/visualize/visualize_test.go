package visualize

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"focus-stacker/internal/report"
)

func depthRamp(t *testing.T, rows, cols int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.SetFloatAt(y, x, float32(x%3))
		}
	}
	return m
}

func TestNormalizeForDisplayStretchesRange(t *testing.T) {
	m := depthRamp(t, 4, 6)
	defer m.Close()

	out, err := NormalizeForDisplay(m)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, gocv.MatTypeCV8U, out.Type())
	minVal, maxVal, _, _ := gocv.MinMaxLoc(out)
	assert.Equal(t, float32(0), minVal)
	assert.Equal(t, float32(255), maxVal)
}

func TestThumbnailKeepsAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	th := Thumbnail(img, 100)
	assert.Equal(t, 100, th.Bounds().Dx())
	assert.Equal(t, 50, th.Bounds().Dy())

	assert.Same(t, img, Thumbnail(img, 0))
	assert.Same(t, img, Thumbnail(img, 1000))
}

func TestEmitGrayscalePreview(t *testing.T) {
	m := depthRamp(t, 5, 5)
	defer m.Close()

	var rec report.Recorder
	require.NoError(t, Emit(&rec, m, true, 0))

	previews := rec.Previews()
	require.Len(t, previews, 1)
	assert.True(t, previews[0].Grayscale)
	_, isGray := previews[0].Image.(*image.Gray)
	assert.True(t, isGray)
}

func TestFalseColorEnds(t *testing.T) {
	m := depthRamp(t, 1, 3)
	defer m.Close()

	img, err := FalseColor(m, 3)
	require.NoError(t, err)
	near := img.RGBAAt(0, 0)
	far := img.RGBAAt(2, 0)
	assert.Greater(t, near.B, near.R)
	assert.Greater(t, far.R, far.B)
}

func TestFalseColorTreatsNaNAsNearest(t *testing.T) {
	m := gocv.NewMatWithSize(1, 2, gocv.MatTypeCV32F)
	defer m.Close()
	m.SetFloatAt(0, 0, float32(math.NaN()))
	m.SetFloatAt(0, 1, 0)

	img, err := FalseColor(m, 3)
	require.NoError(t, err)
	assert.Equal(t, img.RGBAAt(1, 0), img.RGBAAt(0, 0))
}

func TestWriteDepthPNG(t *testing.T) {
	m := depthRamp(t, 30, 40)
	defer m.Close()

	path := filepath.Join(t.TempDir(), "depth.png")
	require.NoError(t, WriteDepthPNG(m, 3, true, "depth", path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
