package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// FallbackProvider produces deterministic pseudo-embeddings from
// repeated hashing of the input text. The vectors carry no real
// semantics, but identical text always yields the identical unit
// vector, which keeps the pipeline (and local development without
// credentials) fully functional.
type FallbackProvider struct{}

func NewFallbackProvider() *FallbackProvider { return &FallbackProvider{} }

func (f *FallbackProvider) Model() string { return "fallback-hash" }

func (f *FallbackProvider) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = hashVector(text)
	}
	return out, nil
}

func hashVector(text string) []float64 {
	vec := make([]float64, Dimension)
	seed := sha256.Sum256([]byte(text))

	var counter [8]byte
	var norm float64
	for i := 0; i < Dimension; i += 4 {
		binary.BigEndian.PutUint64(counter[:], uint64(i))
		block := sha256.Sum256(append(seed[:], counter[:]...))
		for j := 0; j < 4 && i+j < Dimension; j++ {
			v := binary.BigEndian.Uint64(block[j*8 : j*8+8])
			// Map onto [-1, 1).
			vec[i+j] = float64(int64(v)) / math.MaxInt64
			norm += vec[i+j] * vec[i+j]
		}
	}

	if norm > 0 {
		scale := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
