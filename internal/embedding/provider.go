// Package embedding turns chunk text into vectors and keeps the
// chunk_embeddings table filled for the active provider.
package embedding

import (
	"context"
	"math"
	"unicode/utf16"

	"github.com/HendryAvila/chatrecall/internal/textutil"
)

// Provider embeds a batch of texts. The returned slice has one vector per
// input, in input order.
type Provider interface {
	Model() string
	Dimensions() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

const (
	HashModel      = "hash-embedding-v1"
	HashDimensions = 384
)

// hashSeeds and hashWeights place each token into three positions with
// decreasing weight.
var (
	hashSeeds   = [3]uint32{17, 131, 521}
	hashWeights = [3]float64{1, 0.6, 0.3}
)

// HashProvider is a deterministic local provider. It needs no network and
// gives a usable lexical-semantic signal for small archives.
type HashProvider struct{}

// NewHashProvider returns the local hash provider.
func NewHashProvider() *HashProvider { return &HashProvider{} }

func (*HashProvider) Model() string   { return HashModel }
func (*HashProvider) Dimensions() int { return HashDimensions }

// Embed never fails.
func (p *HashProvider) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t)
	}
	return out, nil
}

func hashEmbed(text string) []float64 {
	vec := make([]float64, HashDimensions)
	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	for _, token := range tokens {
		units := utf16.Encode([]rune(token))
		weight := 1 / math.Sqrt(float64(len(units)))
		for i, seed := range hashSeeds {
			vec[hashToken(units, seed)%HashDimensions] += weight * hashWeights[i]
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// hashToken is a multiplicative string hash over UTF-16 code units.
func hashToken(units []uint16, seed uint32) uint32 {
	h := seed
	for _, u := range units {
		h = h*31 + uint32(u)
	}
	return h
}
