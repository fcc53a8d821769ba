package io

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newLoader() *ImageLoader {
	logger, _ := test.NewNullLogger()
	return NewImageLoader(logger)
}

func noise(t *testing.T) gocv.Mat {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	buf := make([]byte, 64*64*3)
	rng.Read(buf)
	m, err := gocv.NewMatFromBytes(64, 64, gocv.MatTypeCV8UC3, buf)
	require.NoError(t, err)
	return m
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a/b/IMG_001.JPG"))
	assert.True(t, IsSupported("x.tiff"))
	assert.False(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported("noext"))
	assert.Contains(t, SupportedExtensions(), ".png")
}

func TestSaveAndLoadPNG(t *testing.T) {
	img := noise(t)
	defer img.Close()
	path := filepath.Join(t.TempDir(), "layer.png")

	l := newLoader()
	require.NoError(t, l.SaveImage(img, path, 0))

	loaded, err := l.LoadImage(path)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, img.ToBytes(), loaded.ToBytes())
}

func TestSaveJPEGQuality(t *testing.T) {
	img := noise(t)
	defer img.Close()
	dir := t.TempDir()
	low := filepath.Join(dir, "low.jpg")
	high := filepath.Join(dir, "high.jpg")

	l := newLoader()
	require.NoError(t, l.SaveImage(img, low, 10))
	require.NoError(t, l.SaveImage(img, high, 100))

	lowInfo, err := os.Stat(low)
	require.NoError(t, err)
	highInfo, err := os.Stat(high)
	require.NoError(t, err)
	assert.Less(t, lowInfo.Size(), highInfo.Size())

	assert.Error(t, l.SaveImage(img, high, 101))
}

func TestSaveAndLoadErrors(t *testing.T) {
	l := newLoader()
	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, l.SaveImage(empty, filepath.Join(t.TempDir(), "x.png"), 0))

	img := noise(t)
	defer img.Close()
	assert.Error(t, l.SaveImage(img, filepath.Join(t.TempDir(), "x.gif"), 0))

	_, err := l.LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
	_, err = l.LoadImage("layer.txt")
	assert.Error(t, err)
}

func TestLoadLayersReleasesOnFailure(t *testing.T) {
	img := noise(t)
	defer img.Close()
	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")

	l := newLoader()
	require.NoError(t, l.SaveImage(img, good, 0))

	layers, err := l.LoadLayers([]string{good, filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
	assert.Nil(t, layers)

	layers, err = l.LoadLayers([]string{good, good})
	require.NoError(t, err)
	assert.Len(t, layers, 2)
	for i := range layers {
		layers[i].Close()
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.jpg"))
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "readme.txt"))
	touch(t, filepath.Join(dir, "sub", "c.tif"))
	single := filepath.Join(t.TempDir(), "z.bmp")
	touch(t, single)

	files, err := CollectFiles(dir, single)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "sub", "c.tif"),
		single,
	}, files)

	_, err = CollectFiles(filepath.Join(dir, "readme.txt"))
	assert.Error(t, err)
	_, err = CollectFiles(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestOrderFiles(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "c.png"), filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	for _, p := range paths {
		touch(t, p)
	}

	got, err := OrderFiles(paths, OrderNone)
	require.NoError(t, err)
	assert.Equal(t, paths, got)

	want := []string{paths[1], paths[2], paths[0]}
	got, err = OrderFiles(paths, OrderName)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No EXIF anywhere: capture-time order falls back to names
	got, err = OrderFiles(paths, OrderExif)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = OrderFiles(paths, "size")
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("exif")
	require.NoError(t, err)
	assert.Equal(t, OrderExif, o)

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderNone, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}

func TestCaptureTimeWithoutExif(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plain.png")
	touch(t, p)
	_, ok := CaptureTime(p)
	assert.False(t, ok)
}
