// Package composite synthesises the all-in-focus image from aligned layers and
// a depth map.
package composite

import (
	"errors"
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"focus-stacker/internal/raster"
)

// Composite picks, for every pixel, the layer named by depth. With blend the two
// layers around a fractional depth are mixed linearly. Depth values are clamped
// to [0, len(layers)-1] and halves round away from zero. Rows are split over
// workers goroutines (0 means GOMAXPROCS). The returned Mat has the layers' size
// and type.
func Composite(layers []gocv.Mat, depth gocv.Mat, blend bool, workers int) (gocv.Mat, error) {
	if len(layers) == 0 {
		return gocv.NewMat(), errors.New("no layers to composite")
	}
	if depth.Empty() || depth.Type() != gocv.MatTypeCV32F {
		return gocv.NewMat(), errors.New("depth map must be a non-empty CV_32FC1 mat")
	}

	rows, cols := layers[0].Rows(), layers[0].Cols()
	typ := layers[0].Type()
	channels := layers[0].Channels()
	if !raster.SameSize(depth, layers[0]) {
		return gocv.NewMat(), fmt.Errorf("depth map is %dx%d, layers are %dx%d", depth.Cols(), depth.Rows(), cols, rows)
	}

	src := make([][]uint8, len(layers))
	for i, l := range layers {
		if !raster.SameSize(l, layers[0]) || l.Type() != typ {
			return gocv.NewMat(), fmt.Errorf("layer %d does not match layer 0 in size or type", i)
		}
		data, err := raster.Bytes(l)
		if err != nil {
			return gocv.NewMat(), fmt.Errorf("layer %d: %w", i, err)
		}
		if len(data) != rows*cols*channels {
			return gocv.NewMat(), fmt.Errorf("layer %d is not 8-bit", i)
		}
		src[i] = data
	}

	d, err := raster.Float32s(depth)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("depth map: %w", err)
	}

	out := gocv.NewMatWithSize(rows, cols, typ)
	dst, err := raster.Bytes(out)
	if err != nil {
		out.Close()
		return gocv.NewMat(), err
	}

	top := float64(len(layers) - 1)
	raster.ParallelRows(rows, workers, func(start, end int) {
		for p := start * cols; p < end*cols; p++ {
			v := clamp(float64(d[p]), top)
			base := p * channels

			if !blend {
				layer := src[int(math.Round(v))]
				copy(dst[base:base+channels], layer[base:base+channels])
				continue
			}

			lower := math.Floor(v)
			w := v - lower
			lo := src[int(lower)]
			hi := src[int(math.Ceil(v))]
			for c := base; c < base+channels; c++ {
				dst[c] = saturate((1-w)*float64(lo[c]) + w*float64(hi[c]))
			}
		}
	})

	return out, nil
}

func clamp(v, top float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > top:
		return top
	}
	return v
}

func saturate(v float64) uint8 {
	v = math.RoundToEven(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
