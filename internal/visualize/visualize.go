// Display helpers: normalised previews, thumbnails and depth-map renderings
package visualize

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"

	"focus-stacker/internal/raster"
	"focus-stacker/internal/report"
)

// NormalizeForDisplay stretches a single-channel Mat to the full 0..255 range
// (min-max) and returns it as CV_8U. A constant input maps to all zeros.
func NormalizeForDisplay(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), fmt.Errorf("cannot normalize empty mat")
	}
	if src.Channels() != 1 {
		return gocv.NewMat(), fmt.Errorf("normalize expects 1 channel, got %d", src.Channels())
	}

	asFloat := gocv.NewMat()
	defer asFloat.Close()
	src.ConvertTo(&asFloat, gocv.MatTypeCV32F)

	stretched := gocv.NewMat()
	defer stretched.Close()
	gocv.Normalize(asFloat, &stretched, 0, 255, gocv.NormMinMax)

	out := gocv.NewMat()
	stretched.ConvertTo(&out, gocv.MatTypeCV8U)
	return out, nil
}

// Thumbnail scales img down so that neither side exceeds maxSize, keeping the
// aspect ratio. maxSize <= 0 or an already small image returns img unchanged.
func Thumbnail(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
		return img
	}

	w, h := maxSize, maxSize
	if b.Dx() >= b.Dy() {
		h = max(1, b.Dy()*maxSize/b.Dx())
	} else {
		w = max(1, b.Dx()*maxSize/b.Dy())
	}

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Emit converts m into a Go image snapshot and hands it to r. Grayscale Mats of
// any depth are normalised to the display range first.
func Emit(r report.Reporter, m gocv.Mat, grayscale bool, maxSize int) error {
	if r == nil {
		return nil
	}

	src := m
	if grayscale {
		normalized, err := NormalizeForDisplay(m)
		if err != nil {
			return err
		}
		defer normalized.Close()
		src = normalized
	}

	img, err := src.ToImage()
	if err != nil {
		return fmt.Errorf("convert preview: %w", err)
	}
	r.OnPreview(Thumbnail(img, maxSize), grayscale)
	return nil
}

// FalseColor renders a CV_32F depth map with a blue (near index 0) to red
// (index layers-1) hue ramp.
func FalseColor(depth gocv.Mat, layers int) (*image.RGBA, error) {
	if depth.Type() != gocv.MatTypeCV32F {
		return nil, fmt.Errorf("false color expects CV_32F depth map")
	}
	values, err := raster.Float32s(depth)
	if err != nil {
		return nil, err
	}

	span := float64(layers - 1)
	rows, cols := depth.Rows(), depth.Cols()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			t := 0.0
			if span > 0 {
				t = clamp01(float64(values[y*cols+x]) / span)
			}
			r, g, b := colorful.Hsv(240*(1-t), 1, 1).RGB255()
			img.SetRGBA(x, y, color.RGBA{r, g, b, 0xff})
		}
	}
	return img, nil
}

// WriteDepthPNG saves a depth map as PNG with title drawn in the top left corner.
func WriteDepthPNG(depth gocv.Mat, layers int, falseColor bool, title, filename string) error {
	var img image.Image
	if falseColor {
		colored, err := FalseColor(depth, layers)
		if err != nil {
			return err
		}
		img = colored
	} else {
		gray, err := NormalizeForDisplay(depth)
		if err != nil {
			return err
		}
		defer gray.Close()
		if img, err = gray.ToImage(); err != nil {
			return fmt.Errorf("convert depth map: %w", err)
		}
	}

	dc := gg.NewContextForImage(img)
	if title != "" {
		dc.SetRGB(1, 1, 1)
		dc.DrawString(title, 10, 20)
	}
	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("write '%s': %w", filename, err)
	}
	return nil
}

// clamp01 maps NaN to 0 like the composite does
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
