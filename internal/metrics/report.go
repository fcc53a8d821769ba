package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"focus-stacker/internal/raster"
)

// DepthStats summarises a depth map
type DepthStats struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	// LayerUsage[i] is the fraction of pixels whose nearest layer is i
	LayerUsage []float64 `json:"layer_usage" yaml:"layer_usage"`
}

// Report contains the quality assessment of a stacking run
type Report struct {
	OverallScore float64            `json:"overall_score" yaml:"overall_score"`
	Metrics      map[string]float64 `json:"metrics" yaml:"metrics"`
	Depth        DepthStats         `json:"depth" yaml:"depth"`
	QualityLevel string             `json:"quality_level" yaml:"quality_level"` // "excellent", "good", "fair", "poor"
	Timestamp    string             `json:"timestamp" yaml:"timestamp"`
}

// GenerateReport compares the composite against the reference layer and
// summarises the depth map for a stack of the given number of layers.
func (e *Evaluator) GenerateReport(reference, composite, depth gocv.Mat, layers int) (Report, error) {
	depthStats, err := DepthStatistics(depth, layers)
	if err != nil {
		return Report{}, err
	}

	values := e.CalculateAll(reference, composite)
	score := e.calculateOverallScore(values)

	return Report{
		OverallScore: score,
		Metrics:      values,
		Depth:        depthStats,
		QualityLevel: qualityLevel(score),
		Timestamp:    time.Now().Format("2006-01-02 15:04:05"),
	}, nil
}

// calculateOverallScore calculates a weighted overall quality score
func (e *Evaluator) calculateOverallScore(values map[string]float64) float64 {
	weights := map[string]float64{
		"psnr":           0.2,
		"ssim":           0.3,
		"sharpness_gain": 0.5,
	}

	totalWeight := 0.0
	weightedSum := 0.0
	for name, weight := range weights {
		if value, exists := values[name]; exists {
			weightedSum += e.normalizeMetric(name, value) * weight
			totalWeight += weight
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return (weightedSum / totalWeight) * 100
}

func qualityLevel(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 60:
		return "fair"
	default:
		return "poor"
	}
}

// DepthStatistics computes summary statistics of a CV_32F depth map. Values are
// clamped to [0, layers-1] first.
func DepthStatistics(depth gocv.Mat, layers int) (DepthStats, error) {
	if layers < 1 {
		return DepthStats{}, fmt.Errorf("layer count must be positive, got %d", layers)
	}
	raw, err := raster.Float32s(depth)
	if err != nil {
		return DepthStats{}, fmt.Errorf("depth map: %w", err)
	}

	top := float64(layers - 1)
	values := make([]float64, len(raw))
	for i, v := range raw {
		values[i] = math.Max(0, math.Min(top, float64(v)))
	}
	sort.Float64s(values)

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}

	// Bin edges sit halfway between layer indices so each bin holds the
	// pixels that round to that layer.
	dividers := make([]float64, layers+1)
	for i := range dividers {
		dividers[i] = float64(i) - 0.5
	}
	counts := stat.Histogram(nil, dividers, values, nil)
	usage := make([]float64, layers)
	for i, c := range counts {
		usage[i] = c / float64(len(values))
	}

	return DepthStats{
		Mean:       mean,
		StdDev:     std,
		Median:     stat.Quantile(0.5, stat.Empirical, values, nil),
		Min:        values[0],
		Max:        values[len(values)-1],
		LayerUsage: usage,
	}, nil
}
