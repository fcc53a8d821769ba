// Layer validation and a thread-safe container for loaded layers
package core

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ValidateImage validates an OpenCV Mat for basic requirements
func ValidateImage(mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("image is empty")
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", mat.Cols(), mat.Rows())
	}

	channels := mat.Channels()
	if channels != 1 && channels != 3 && channels != 4 {
		return fmt.Errorf("unsupported channel count: %d", channels)
	}

	// Check for reasonable size limits (prevent memory issues)
	const maxDimension = 16384
	if mat.Cols() > maxDimension || mat.Rows() > maxDimension {
		return fmt.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), maxDimension)
	}

	return nil
}

func is8Bit(t gocv.MatType) bool {
	return t == gocv.MatTypeCV8UC1 || t == gocv.MatTypeCV8UC3 || t == gocv.MatTypeCV8UC4
}

// ValidateStack checks that layers is non-empty and that every layer is a valid
// 8-bit image with the size and type of the first one.
func ValidateStack(layers []gocv.Mat) error {
	if len(layers) == 0 {
		return ErrEmptyInput
	}

	first := layers[0]
	for i, l := range layers {
		if err := ValidateImage(l); err != nil {
			return fmt.Errorf("layer %d: %v: %w", i, err, ErrDimensionMismatch)
		}
		if !is8Bit(l.Type()) {
			return fmt.Errorf("layer %d has type %v, expected 8-bit: %w", i, l.Type(), ErrUnsupportedParameter)
		}
		if l.Rows() != first.Rows() || l.Cols() != first.Cols() || l.Type() != first.Type() {
			return fmt.Errorf("layer %d is %dx%d, layer 0 is %dx%d: %w",
				i, l.Cols(), l.Rows(), first.Cols(), first.Rows(), ErrDimensionMismatch)
		}
	}
	return nil
}

// LayerInfo describes a loaded layer
type LayerInfo struct {
	Path     string
	Width    int
	Height   int
	Channels int
	Format   string
}

// Stack holds the loaded layers in focus order with thread safety
type Stack struct {
	mu     sync.RWMutex
	layers []gocv.Mat
	info   []LayerInfo
}

func NewStack() *Stack {
	return &Stack{}
}

// Add validates mat and appends a copy of it. The caller keeps ownership of mat.
func (s *Stack) Add(mat gocv.Mat, path string) error {
	if err := ValidateImage(mat); err != nil {
		return fmt.Errorf("cannot add %s: %w", filepath.Base(path), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.layers = append(s.layers, mat.Clone())
	s.info = append(s.info, LayerInfo{
		Path:     path,
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Format:   getFormatFromPath(path),
	})
	return nil
}

// Remove drops the layer at index i
func (s *Stack) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.layers) {
		return fmt.Errorf("layer index %d out of range", i)
	}
	s.layers[i].Close()
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	s.info = append(s.info[:i], s.info[i+1:]...)
	return nil
}

// Move shifts the layer at index from to index to, keeping the others in order
func (s *Stack) Move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.layers)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("layer move %d -> %d out of range", from, to)
	}
	layer, info := s.layers[from], s.info[from]
	s.layers = append(s.layers[:from], s.layers[from+1:]...)
	s.info = append(s.info[:from], s.info[from+1:]...)

	s.layers = append(s.layers[:to], append([]gocv.Mat{layer}, s.layers[to:]...)...)
	s.info = append(s.info[:to], append([]LayerInfo{info}, s.info[to:]...)...)
	return nil
}

func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Info returns a copy of the layer descriptions
func (s *Stack) Info() []LayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LayerInfo(nil), s.info...)
}

// SameSize reports whether all layers share the dimensions of the first one.
func (s *Stack) SameSize() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, info := range s.info {
		if info.Width != s.info[0].Width || info.Height != s.info[0].Height {
			return false
		}
	}
	return true
}

// Clones returns copies of all layers. The caller owns them.
func (s *Stack) Clones() []gocv.Mat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gocv.Mat, len(s.layers))
	for i, l := range s.layers {
		out[i] = l.Clone()
	}
	return out
}

// Image returns a Go image snapshot of layer i
func (s *Stack) Image(i int) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.layers) {
		return nil, fmt.Errorf("layer index %d out of range", i)
	}
	return s.layers[i].ToImage()
}

// Clear clears all layers
func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.layers {
		s.layers[i].Close()
	}
	s.layers = nil
	s.info = nil
}

// Close releases all resources
func (s *Stack) Close() {
	s.Clear()
}

// getFormatFromPath extracts image format from file path
func getFormatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}
