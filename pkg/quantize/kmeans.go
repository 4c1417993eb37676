package quantize

import (
	"fmt"
	"math"
	"math/rand"
)

// kmeansConfig controls the k-means++ training run inside ProductQuantizer.
type kmeansConfig struct {
	iterations int
	seed       int64
}

func defaultKMeansConfig() kmeansConfig {
	return kmeansConfig{iterations: 25, seed: 42}
}

func euclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// kMeansPlusPlus clusters vectors into k centroids using k-means++
// initialization followed by Lloyd iterations.
func kMeansPlusPlus(vectors [][]float32, k int, cfg kmeansConfig) ([][]float32, error) {
	if len(vectors) < k {
		return nil, fmt.Errorf("quantize: not enough vectors (%d) for %d clusters", len(vectors), k)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("quantize: empty training vectors")
	}

	dim := len(vectors[0])
	centroids := make([][]float32, k)
	r := rand.New(rand.NewSource(cfg.seed))

	first := r.Intn(len(vectors))
	centroids[0] = append([]float32(nil), vectors[first]...)

	for c := 1; c < k; c++ {
		distances := make([]float32, len(vectors))
		var total float32
		for i, vec := range vectors {
			minDist := float32(math.MaxFloat32)
			for j := 0; j < c; j++ {
				if d := euclidean(vec, centroids[j]); d < minDist {
					minDist = d
				}
			}
			distances[i] = minDist * minDist
			total += distances[i]
		}

		if total > 0 {
			target := r.Float32() * total
			var cumulative float32
			for i, d := range distances {
				cumulative += d
				if cumulative >= target {
					centroids[c] = append([]float32(nil), vectors[i]...)
					break
				}
			}
		} else {
			idx := r.Intn(len(vectors))
			centroids[c] = append([]float32(nil), vectors[idx]...)
		}
	}

	for iter := 0; iter < cfg.iterations; iter++ {
		clusters := make([][][]float32, k)
		for _, vec := range vectors {
			minDist := float32(math.MaxFloat32)
			minCluster := 0
			for c, centroid := range centroids {
				if d := euclidean(vec, centroid); d < minDist {
					minDist = d
					minCluster = c
				}
			}
			clusters[minCluster] = append(clusters[minCluster], vec)
		}

		converged := true
		for c := range centroids {
			if len(clusters[c]) == 0 {
				continue
			}
			next := make([]float32, dim)
			for _, vec := range clusters[c] {
				for d := 0; d < dim; d++ {
					next[d] += vec[d]
				}
			}
			for d := 0; d < dim; d++ {
				next[d] /= float32(len(clusters[c]))
			}
			if euclidean(centroids[c], next) > 1e-6 {
				converged = false
			}
			centroids[c] = next
		}
		if converged {
			break
		}
	}

	return centroids, nil
}
