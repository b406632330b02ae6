package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-3, 0}), 1e-12)

	assert.Zero(t, CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}), "length mismatch")
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 1}), "zero norm")
	assert.Zero(t, CosineSimilarity(nil, nil))
}

func TestReciprocalRankFusion_SharedIDsWin(t *testing.T) {
	fused := ReciprocalRankFusion([][]string{
		{"a", "b", "c"},
		{"c", "d"},
	}, DefaultRRFK)

	require.Len(t, fused, 4)
	assert.Equal(t, "c", fused[0].ID, "an id in both lists outranks ids in one")
	assert.InDelta(t, 1.0/63+1.0/61, fused[0].Score, 1e-12)
	assert.Equal(t, "a", fused[1].ID)
	assert.InDelta(t, 1.0/61, fused[1].Score, 1e-12)
}

func TestReciprocalRankFusion_TiesKeepFirstSeenOrder(t *testing.T) {
	fused := ReciprocalRankFusion([][]string{{"x"}, {"y"}}, DefaultRRFK)

	require.Len(t, fused, 2)
	assert.Equal(t, "x", fused[0].ID)
	assert.Equal(t, "y", fused[1].ID)
	assert.Equal(t, fused[0].Score, fused[1].Score)

	again := ReciprocalRankFusion([][]string{{"x"}, {"y"}}, DefaultRRFK)
	assert.Equal(t, fused, again)
}

func TestReciprocalRankFusion_Empty(t *testing.T) {
	assert.Empty(t, ReciprocalRankFusion(nil, DefaultRRFK))
	assert.Empty(t, ReciprocalRankFusion([][]string{{}, {}}, DefaultRRFK))
}
