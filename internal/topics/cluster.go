package topics

import (
	"fmt"
	"math"
	"reflect"

	"github.com/humilityai/hdbscan"
)

// Cluster is one density cluster over title embeddings.
type Cluster struct {
	Centroid []float64
	Points   []int // indices into the input data
}

// Clusterer groups embeddings into density clusters.
type Clusterer interface {
	Cluster(data [][]float64, minClusterSize int) ([]Cluster, error)
}

// HDBSCANClusterer clusters with HDBSCAN over cosine distance. Euclidean
// distance degrades badly at 768 dimensions.
type HDBSCANClusterer struct{}

func (HDBSCANClusterer) Cluster(data [][]float64, minClusterSize int) ([]Cluster, error) {
	clustering, err := hdbscan.NewClustering(data, minClusterSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create clustering: %w", err)
	}
	clustering = clustering.OutlierDetection()

	if err := clustering.Run(cosineDistance, hdbscan.VarianceScore, true); err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}

	return extractClusters(clustering), nil
}

// extractClusters reads cluster assignments out of the library's unexported
// cluster struct via reflection; it exposes no accessor for them.
func extractClusters(clustering *hdbscan.Clustering) []Cluster {
	v := reflect.ValueOf(clustering).Elem()
	clustersField := v.FieldByName("Clusters")
	if !clustersField.IsValid() {
		return nil
	}

	result := make([]Cluster, 0, clustersField.Len())
	for i := 0; i < clustersField.Len(); i++ {
		cv := clustersField.Index(i)
		if cv.Kind() == reflect.Ptr {
			cv = cv.Elem()
		}

		var c Cluster
		if f := cv.FieldByName("Centroid"); f.IsValid() && f.Kind() == reflect.Slice {
			c.Centroid = make([]float64, f.Len())
			for j := 0; j < f.Len(); j++ {
				c.Centroid[j] = f.Index(j).Float()
			}
		}
		if f := cv.FieldByName("Points"); f.IsValid() && f.Kind() == reflect.Slice {
			c.Points = make([]int, f.Len())
			for j := 0; j < f.Len(); j++ {
				c.Points[j] = int(f.Index(j).Int())
			}
		}
		result = append(result, c)
	}
	return result
}

// cosineDistance is 1 - cosine similarity, clamped into [0, 2].
func cosineDistance(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		return 1.0
	}

	var dot, mag1, mag2 float64
	for i := range x1 {
		dot += x1[i] * x2[i]
		mag1 += x1[i] * x1[i]
		mag2 += x2[i] * x2[i]
	}
	if mag1 == 0 || mag2 == 0 {
		return 1.0
	}

	similarity := dot / (math.Sqrt(mag1) * math.Sqrt(mag2))
	if similarity > 1.0 {
		similarity = 1.0
	} else if similarity < -1.0 {
		similarity = -1.0
	}
	return 1.0 - similarity
}
