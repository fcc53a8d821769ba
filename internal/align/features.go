package align

import (
	"sync"

	"gocv.io/x/gocv"

	"focus-stacker/internal/raster"
)

// features holds the SIFT keypoints and descriptors of one layer.
type features struct {
	keypoints   []gocv.KeyPoint
	descriptors gocv.Mat
}

func (f *features) empty() bool {
	return len(f.keypoints) == 0 || f.descriptors.Empty()
}

func (f *features) Close() {
	f.descriptors.Close()
}

// detectAll runs detection for every layer on a bounded pool. Each worker owns
// its SIFT instance; results are indexed by layer so order never depends on
// scheduling.
func detectAll(layers []gocv.Mat, workers int) []*features {
	out := make([]*features, len(layers))
	jobs := make(chan int)

	workers = raster.Workers(workers)
	if workers > len(layers) {
		workers = len(layers)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sift := gocv.NewSIFT()
			defer sift.Close()

			for i := range jobs {
				out[i] = detect(&sift, layers[i])
			}
		}()
	}

	for i := range layers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}

func detect(sift *gocv.SIFT, layer gocv.Mat) *features {
	gray := gocv.NewMat()
	defer gray.Close()
	if layer.Channels() == 1 {
		layer.CopyTo(&gray)
	} else {
		gocv.CvtColor(layer, &gray, gocv.ColorBGRToGray)
	}

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := sift.DetectAndCompute(equalized, mask)
	return &features{keypoints: kps, descriptors: desc}
}

// ratioMatches pairs reference and layer keypoints that pass the ratio test.
// Returned slices are parallel: ref[i] corresponds to cur[i].
func ratioMatches(matcher *gocv.FlannBasedMatcher, ref, cur *features, ratio float64) (refPts, curPts []gocv.Point2f) {
	knn := matcher.KnnMatch(ref.descriptors, cur.descriptors, 2)
	for _, m := range knn {
		if len(m) < 2 {
			continue
		}
		if m[0].Distance < ratio*m[1].Distance {
			rk := ref.keypoints[m[0].QueryIdx]
			ck := cur.keypoints[m[0].TrainIdx]
			refPts = append(refPts, gocv.Point2f{X: float32(rk.X), Y: float32(rk.Y)})
			curPts = append(curPts, gocv.Point2f{X: float32(ck.X), Y: float32(ck.Y)})
		}
	}
	return refPts, curPts
}
