// Package mock provides a deterministic test double for embeddings.Provider.
//
// Without a fixed Vector, every text maps to its own stable pseudo-random
// vector, so equal sentences embed equally and different ones do not.
package mock

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sync"

	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// Dims is the vector length reported and produced.
	Dims int

	// Model is returned by ModelID. Default: "mock-embed".
	Model string

	// Vector, if set, is returned (copied) for every text.
	Vector []float32

	// Err, if non-nil, fails every Embed.
	Err error

	// Texts records every embedded text in order.
	Texts []string
}

// Embed records text and returns Vector, a hash-seeded vector, or Err.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Vector != nil {
		return append([]float32(nil), p.Vector...), nil
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	out := make([]float32, p.Dims)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out, nil
}

// Dimensions returns Dims.
func (p *Provider) Dimensions() int { return p.Dims }

// ModelID returns Model.
func (p *Provider) ModelID() string {
	if p.Model == "" {
		return "mock-embed"
	}
	return p.Model
}

// CallCount returns the number of Embed calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Texts)
}

var _ embeddings.Provider = (*Provider)(nil)
