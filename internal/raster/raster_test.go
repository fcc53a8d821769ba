package raster

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestParallelRowsCoversEveryRowOnce(t *testing.T) {
	for _, tc := range []struct {
		rows, workers int
	}{
		{0, 4}, {1, 4}, {7, 3}, {100, 8}, {5, 1}, {9, 0},
	} {
		hits := make([]int32, tc.rows)
		ParallelRows(tc.rows, tc.workers, func(start, end int) {
			for r := start; r < end; r++ {
				atomic.AddInt32(&hits[r], 1)
			}
		})
		for r, h := range hits {
			assert.Equal(t, int32(1), h, "rows=%d workers=%d row=%d", tc.rows, tc.workers, r)
		}
	}
}

func TestFloat32sAliasesMat(t *testing.T) {
	m := gocv.NewMatWithSize(3, 4, gocv.MatTypeCV32F)
	defer m.Close()

	data, err := Float32s(m)
	require.NoError(t, err)
	require.Len(t, data, 12)
	data[5] = 2.5
	assert.Equal(t, float32(2.5), m.GetFloatAt(1, 1))
}

func TestEmptyMatRejected(t *testing.T) {
	m := gocv.NewMat()
	defer m.Close()
	_, err := Bytes(m)
	assert.Error(t, err)
}
