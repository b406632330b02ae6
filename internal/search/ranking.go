package search

import (
	"math"
	"sort"
)

// DefaultRRFK is the rank offset used by reciprocal rank fusion.
const DefaultRRFK = 60

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector has zero norm.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Fused is one entry of a fused ranking.
type Fused struct {
	ID    string
	Score float64
}

// ReciprocalRankFusion sums 1/(k+rank) over every list an id appears in
// (rank is 1-based) and returns the ids by descending score. Ties keep the
// order in which ids were first seen.
func ReciprocalRankFusion(lists [][]string, k int) []Fused {
	index := make(map[string]int)
	var fused []Fused
	for _, list := range lists {
		for i, id := range list {
			score := 1 / float64(k+i+1)
			if j, ok := index[id]; ok {
				fused[j].Score += score
				continue
			}
			index[id] = len(fused)
			fused = append(fused, Fused{ID: id, Score: score})
		}
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}
