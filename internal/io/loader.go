// Image loading and saving for focus stacks
package io

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used when no export quality is given
const DefaultJPEGQuality = 95

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

// ImageLoader handles image file operations
type ImageLoader struct {
	logger logrus.FieldLogger
}

func NewImageLoader(logger logrus.FieldLogger) *ImageLoader {
	return &ImageLoader{
		logger: logger,
	}
}

func (il *ImageLoader) LoadImage(path string) (gocv.Mat, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !IsSupported(path) {
		return gocv.NewMat(), fmt.Errorf("unsupported image format: %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("failed to load image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image loaded successfully")

	return mat, nil
}

// LoadLayers loads every path in order. On failure the already loaded layers
// are released.
func (il *ImageLoader) LoadLayers(paths []string) ([]gocv.Mat, error) {
	layers := make([]gocv.Mat, 0, len(paths))
	for _, p := range paths {
		mat, err := il.LoadImage(p)
		if err != nil {
			for i := range layers {
				layers[i].Close()
			}
			return nil, err
		}
		layers = append(layers, mat)
	}
	return layers, nil
}

// SaveImage writes mat to path. JPEG files use quality (1..100); 0 selects
// DefaultJPEGQuality. Other formats ignore it.
func (il *ImageLoader) SaveImage(mat gocv.Mat, path string, quality int) error {
	il.logger.WithField("filepath", path).Debug("Saving image")

	if mat.Empty() {
		return fmt.Errorf("cannot save empty image")
	}

	if !IsSupported(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}

	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	if quality < 1 || quality > 100 {
		return fmt.Errorf("jpeg quality %d out of range 1..100", quality)
	}

	var success bool
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		success = gocv.IMWriteWithParams(path, mat, []int{gocv.IMWriteJpegQuality, quality})
	default:
		success = gocv.IMWrite(path, mat)
	}
	if !success {
		return fmt.Errorf("failed to save image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"quality":  quality,
	}).Info("Image saved successfully")

	return nil
}

// IsSupported reports whether the file extension is a readable image format
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// SupportedExtensions returns the accepted extensions, including the dot
func SupportedExtensions() []string {
	return append([]string(nil), supportedFormats...)
}
