package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solid(rows, cols int, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestValidateStack(t *testing.T) {
	a := solid(10, 10, 1)
	defer a.Close()
	b := solid(10, 12, 1)
	defer b.Close()
	empty := gocv.NewMat()
	defer empty.Close()
	float := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV32FC3)
	defer float.Close()

	assert.ErrorIs(t, ValidateStack(nil), ErrEmptyInput)
	assert.NoError(t, ValidateStack([]gocv.Mat{a, a}))
	assert.ErrorIs(t, ValidateStack([]gocv.Mat{a, b}), ErrDimensionMismatch)
	assert.ErrorIs(t, ValidateStack([]gocv.Mat{a, empty}), ErrDimensionMismatch)
	assert.ErrorIs(t, ValidateStack([]gocv.Mat{float}), ErrUnsupportedParameter)
}

func TestStackContainer(t *testing.T) {
	s := NewStack()
	defer s.Close()

	a := solid(8, 8, 10)
	defer a.Close()
	b := solid(8, 8, 20)
	defer b.Close()
	c := solid(4, 8, 30)
	defer c.Close()

	require.NoError(t, s.Add(a, "/tmp/a.JPG"))
	require.NoError(t, s.Add(b, "/tmp/b.png"))
	assert.True(t, s.SameSize())
	require.NoError(t, s.Add(c, "/tmp/c.tif"))
	assert.False(t, s.SameSize())

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, s.Add(empty, "/tmp/empty.png"))

	info := s.Info()
	require.Len(t, info, 3)
	assert.Equal(t, "jpg", info[0].Format)
	assert.Equal(t, 4, info[2].Height)

	require.NoError(t, s.Move(2, 0))
	assert.Equal(t, "/tmp/c.tif", s.Info()[0].Path)
	assert.Equal(t, "/tmp/a.JPG", s.Info()[1].Path)

	require.NoError(t, s.Remove(0))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.SameSize())
	assert.Error(t, s.Remove(5))

	clones := s.Clones()
	require.Len(t, clones, 2)
	assert.Equal(t, uint8(10), clones[0].GetUCharAt(0, 0))
	for i := range clones {
		clones[i].Close()
	}

	img, err := s.Image(1)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}
