// Package embeddings defines the Provider interface for sentence embedding
// backends.
//
// The emotion pipeline appends one sentence embedding of the recognised text
// to the acoustic feature vector, and the emotion log stores the same vector
// for similarity search. Both uses require every vector from one Provider to
// share the dimensionality reported by Dimensions.
//
// Implementations must be safe for concurrent use.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch marks a provider whose vectors do not have the length
// the caller is sized for.
var ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")

// DimensionError reports that provider name produces got-length vectors where
// want was expected.
func DimensionError(name string, got, want int) error {
	return fmt.Errorf("%w: %s produces %d dimensions, want %d", ErrDimensionMismatch, name, got, want)
}

// Provider is the abstraction over any text-embedding backend.
type Provider interface {
	// Embed computes the embedding vector for a single text. The text is passed
	// through verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider.
	Dimensions() int

	// ModelID returns the provider-specific model identifier.
	ModelID() string
}
