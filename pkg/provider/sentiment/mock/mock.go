// Package mock provides a test double for the sentiment.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

// Provider is a mock implementation of sentiment.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Classify unless ByText has an entry for the text.
	Result sentiment.Label

	// ByText maps specific texts to labels.
	ByText map[string]sentiment.Label

	// Err, if non-nil, is returned by Classify.
	Err error

	// Texts records the text of every Classify call in order.
	Texts []string
}

// Classify records the call and returns the scripted label.
func (p *Provider) Classify(_ context.Context, text string) (sentiment.Label, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return sentiment.Label{}, p.Err
	}
	if l, ok := p.ByText[text]; ok {
		return l, nil
	}
	return p.Result, nil
}

// CallCount returns the number of Classify calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Texts)
}

var _ sentiment.Provider = (*Provider)(nil)
