// Direct pixel access and row-parallel loops over gocv Mats
package raster

import (
	"fmt"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// Float64s returns the backing data of a continuous CV_64F Mat. The slice aliases
// the Mat and is only valid until the Mat is closed.
func Float64s(m gocv.Mat) ([]float64, error) {
	if err := checkContinuous(m); err != nil {
		return nil, err
	}
	return m.DataPtrFloat64()
}

// Float32s returns the backing data of a continuous CV_32F Mat.
func Float32s(m gocv.Mat) ([]float32, error) {
	if err := checkContinuous(m); err != nil {
		return nil, err
	}
	return m.DataPtrFloat32()
}

// Bytes returns the backing data of a continuous 8-bit Mat, channels interleaved.
func Bytes(m gocv.Mat) ([]uint8, error) {
	if err := checkContinuous(m); err != nil {
		return nil, err
	}
	return m.DataPtrUint8()
}

func checkContinuous(m gocv.Mat) error {
	if m.Empty() {
		return fmt.Errorf("mat is empty")
	}
	if !m.IsContinuous() {
		return fmt.Errorf("mat %dx%d is not continuous", m.Cols(), m.Rows())
	}
	return nil
}

// SameSize reports whether two Mats have equal width and height.
func SameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}

// Workers resolves a worker count, 0 or less meaning one per CPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// ParallelRows splits [0, rows) into contiguous bands and calls fn once per band
// from a pool of goroutines. fn must only write to rows inside its band.
func ParallelRows(rows, workers int, fn func(start, end int)) {
	workers = Workers(workers)
	if workers > rows {
		workers = rows
	}
	if workers <= 1 {
		if rows > 0 {
			fn(0, rows)
		}
		return
	}

	band := (rows + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < rows; start += band {
		end := start + band
		if end > rows {
			end = rows
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
