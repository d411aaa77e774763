// Package huggingface provides a sentiment provider backed by the Hugging
// Face inference API, or a self-hosted server accepting the same request,
// running a text-classification model.
//
// The default model is nlp04/korean_sentiment_analysis_dataset3_best, whose
// neutral class is labelled "중립".
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/soundwatch/pkg/provider/sentiment"
)

const (
	// DefaultBaseURL is the hosted inference API.
	DefaultBaseURL = "https://api-inference.huggingface.co/models"

	// DefaultModel is the Korean sentiment model the service was built around.
	DefaultModel = "nlp04/korean_sentiment_analysis_dataset3_best"
)

var _ sentiment.Provider = (*Provider)(nil)

// Provider implements sentiment.Provider over the inference HTTP API.
type Provider struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// New creates a Provider authenticating with token. An empty token is allowed
// for self-hosted servers.
func New(token string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type classifyRequest struct {
	Inputs string `json:"inputs"`
}

type scoredLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify implements sentiment.Provider.
func (p *Provider) Classify(ctx context.Context, text string) (sentiment.Label, error) {
	body, err := json.Marshal(classifyRequest{Inputs: text})
	if err != nil {
		return sentiment.Label{}, fmt.Errorf("huggingface: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+p.model, bytes.NewReader(body))
	if err != nil {
		return sentiment.Label{}, fmt.Errorf("huggingface: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return sentiment.Label{}, fmt.Errorf("huggingface: classify: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return sentiment.Label{}, fmt.Errorf("huggingface: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return sentiment.Label{}, fmt.Errorf("huggingface: status %d: %s", resp.StatusCode, truncate(raw, 256))
	}

	labels, err := parseLabels(raw)
	if err != nil {
		return sentiment.Label{}, fmt.Errorf("huggingface: %w", err)
	}
	return top(labels)
}

// parseLabels accepts both the nested [[{label,score}...]] shape of the
// hosted API and the flat [{label,score}...] shape of self-hosted servers.
func parseLabels(raw []byte) ([]scoredLabel, error) {
	var nested [][]scoredLabel
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}
	var flat []scoredLabel
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	return flat, nil
}

func top(labels []scoredLabel) (sentiment.Label, error) {
	if len(labels) == 0 {
		return sentiment.Label{}, errors.New("huggingface: empty label list")
	}
	best := labels[0]
	for _, l := range labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return sentiment.Label{Name: best.Label, Score: best.Score}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
