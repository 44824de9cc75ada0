package vectorindex

import (
	"math"
	"sort"
)

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineDistance maps cosine similarity [-1,1] onto a [0,1] distance.
func cosineDistance(a, b []float32) float64 {
	return (1 - cosineSimilarity(a, b)) / 2
}

// sortMatches orders matches by ascending distance, ties broken by
// qualified_name ascending for determinism.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Record.QualifiedName < matches[j].Record.QualifiedName
	})
}
