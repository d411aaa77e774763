// Package llmsentiment classifies text sentiment by prompting a general
// purpose LLM. It is the fallback when the dedicated classifier is
// unavailable.
package llmsentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/soundwatch/pkg/provider/llm"
	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

const systemPrompt = `You label the sentiment of short Korean utterances from a household voice monitor.
Reply with exactly one label and nothing else.
If the utterance carries no clear emotion, reply with %q.
Otherwise reply with a single Korean emotion word such as 기쁨, 슬픔, 분노, 불안, 당황 or 상처.`

var _ sentiment.Provider = (*Provider)(nil)

// Provider implements sentiment.Provider on top of an llm.Provider.
type Provider struct {
	llm     llm.Provider
	neutral string
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithNeutralLabel sets the label the model is told to use for neutral text.
func WithNeutralLabel(label string) Option {
	return func(p *Provider) { p.neutral = label }
}

// New wraps model.
func New(model llm.Provider, opts ...Option) *Provider {
	p := &Provider{llm: model, neutral: sentiment.DefaultNeutralLabel}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Classify implements sentiment.Provider. The score is always 1; LLMs do not
// report calibrated probabilities.
func (p *Provider) Classify(ctx context.Context, text string) (sentiment.Label, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPrompt, p.neutral),
		Messages:     []llm.Message{{Role: "user", Content: text}},
		Temperature:  0.01,
		MaxTokens:    8,
	})
	if err != nil {
		return sentiment.Label{}, fmt.Errorf("llmsentiment: %w", err)
	}
	if resp == nil {
		return sentiment.Label{}, errors.New("llmsentiment: empty response")
	}
	label := normalize(resp.Content)
	if label == "" {
		return sentiment.Label{}, errors.New("llmsentiment: empty label")
	}
	return sentiment.Label{Name: label, Score: 1}, nil
}

// normalize keeps the first line of the reply and strips quotes and
// punctuation models like to add.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, " \t\"'`.。!")
}
