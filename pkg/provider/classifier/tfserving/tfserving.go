// Package tfserving provides a classifier backed by the TensorFlow Serving
// REST API.
//
// Predict posts {"instances": [[[x0], [x1], ...]]} to
// /v1/models/{model}:predict and reads the first row of "predictions".
// Ready queries /v1/models/{model} and requires an AVAILABLE version.
package tfserving

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

	"github.com/MrWong99/soundwatch/pkg/provider/classifier"
)

// DefaultModel is the served model name.
const DefaultModel = "emotion"

var _ classifier.Provider = (*Provider)(nil)

// Provider implements classifier.Provider over TF Serving REST.
type Provider struct {
	baseURL    string
	model      string
	version    string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithVersion pins a model version instead of the latest one.
func WithVersion(v string) Option {
	return func(p *Provider) { p.version = v }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// New creates a Provider for the server at baseURL, e.g. http://tfserving:8501.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("tfserving: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) modelURL() string {
	u := p.baseURL + "/v1/models/" + p.model
	if p.version != "" {
		u += "/versions/" + p.version
	}
	return u
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

// Predict implements classifier.Provider.
func (p *Provider) Predict(ctx context.Context, features []float64) ([]float64, error) {
	if len(features) == 0 {
		return nil, errors.New("tfserving: empty feature vector")
	}
	column := make([][]float64, len(features))
	for i, v := range features {
		column[i] = []float64{v}
	}
	body, err := json.Marshal(predictRequest{Instances: [][][]float64{column}})
	if err != nil {
		return nil, fmt.Errorf("tfserving: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.modelURL()+":predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tfserving: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tfserving: predict: %w", err)
	}
	defer resp.Body.Close()

	var pr predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&pr); err != nil {
		return nil, fmt.Errorf("tfserving: decode (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tfserving: status %d: %s", resp.StatusCode, pr.Error)
	}
	if len(pr.Predictions) == 0 || len(pr.Predictions[0]) == 0 {
		return nil, errors.New("tfserving: empty predictions")
	}
	return pr.Predictions[0], nil
}

type statusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Ready implements classifier.Provider.
func (p *Provider) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.modelURL(), nil)
	if err != nil {
		return fmt.Errorf("tfserving: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tfserving: status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tfserving: status %d", resp.StatusCode)
	}
	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fmt.Errorf("tfserving: decode status: %w", err)
	}
	for _, v := range sr.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("tfserving: model %q has no available version", p.model)
}
