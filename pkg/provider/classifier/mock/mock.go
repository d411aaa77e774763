// Package mock provides a test double for the classifier.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
)

// Provider is a mock implementation of classifier.Provider.
type Provider struct {
	mu sync.Mutex

	// Scores is returned by Predict.
	Scores []float64

	// PredictErr, if non-nil, is returned by Predict.
	PredictErr error

	// ReadyErr is returned by Ready.
	ReadyErr error

	// Inputs records a copy of every feature vector passed to Predict.
	Inputs [][]float64
}

// Predict records the call and returns Scores, PredictErr.
func (p *Provider) Predict(_ context.Context, features []float64) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in := make([]float64, len(features))
	copy(in, features)
	p.Inputs = append(p.Inputs, in)
	if p.PredictErr != nil {
		return nil, p.PredictErr
	}
	out := make([]float64, len(p.Scores))
	copy(out, p.Scores)
	return out, nil
}

// Ready returns ReadyErr.
func (p *Provider) Ready(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ReadyErr
}

// CallCount returns the number of Predict calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Inputs)
}

var _ classifier.Provider = (*Provider)(nil)
