// Package sentiment defines the Provider interface for lightweight text
// sentiment classifiers.
//
// The streaming path asks a sentiment provider about every final transcript
// before running the expensive acoustic pipeline; a neutral verdict short
// circuits to the "neutrality" emotion.
//
// Implementations must be safe for concurrent use.
package sentiment

import (
	"context"
	"slices"
)

// DefaultNeutralLabel is the label the Korean sentiment model uses for
// neutral text.
const DefaultNeutralLabel = "중립"

// Label is the top-scoring class for a text.
type Label struct {
	Name  string
	Score float64
}

// Provider is the abstraction over any text sentiment backend.
type Provider interface {
	// Classify returns the highest-scoring label for text.
	Classify(ctx context.Context, text string) (Label, error)
}

// IsNeutral reports whether l is one of the neutral labels. With no labels
// given, DefaultNeutralLabel is used.
func IsNeutral(l Label, neutral ...string) bool {
	if len(neutral) == 0 {
		return l.Name == DefaultNeutralLabel
	}
	return slices.Contains(neutral, l.Name)
}
