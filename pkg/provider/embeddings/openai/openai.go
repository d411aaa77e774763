// Package openai embeds sentences through the OpenAI embeddings API or any
// server exposing a compatible /v1/embeddings route, such as Hugging Face
// text-embeddings-inference serving jhgan/ko-sroberta-sts.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/soundwatch/pkg/provider/embeddings"
)

// DefaultModel is used when no model is configured.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// ErrEmptyText is returned for an empty input; the API rejects it anyway.
var ErrEmptyText = errors.New("openai embeddings: empty text")

// knownModels maps a model name fragment to its native vector length. The
// first match wins.
var knownModels = []struct {
	fragment   string
	dimensions int
	shortens   bool
}{
	{"text-embedding-3-large", 3072, true},
	{"text-embedding-3-small", 1536, true},
	{"text-embedding-ada-002", 1536, false},
	{"ko-sroberta", 768, false},
	{"ko-sbert", 768, false},
}

const fallbackDimensions = 1536

// nativeDimensions returns the vector length model produces unshortened and
// whether the API accepts a dimensions parameter for it.
func nativeDimensions(model string) (int, bool) {
	lower := strings.ToLower(model)
	for _, m := range knownModels {
		if strings.Contains(lower, m.fragment) {
			return m.dimensions, m.shortens
		}
	}
	return fallbackDimensions, false
}

// Provider implements embeddings.Provider.
type Provider struct {
	client oai.Client
	model  string
	dims   int
	// shorten is set when dims differs from the native length and the model
	// accepts the dimensions parameter.
	shorten bool
}

var _ embeddings.Provider = (*Provider)(nil)

type settings struct {
	baseURL      string
	organization string
	timeout      time.Duration
	dimensions   int
}

// Option configures a Provider.
type Option func(*settings)

// WithBaseURL points the client at an OpenAI-compatible server. Such servers
// usually run without an API key.
func WithBaseURL(url string) Option { return func(s *settings) { s.baseURL = url } }

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option { return func(s *settings) { s.organization = org } }

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

// WithDimensions fixes the vector length. text-embedding-3 models are asked
// to shorten their output to it; other models must already produce it.
func WithDimensions(n int) Option { return func(s *settings) { s.dimensions = n } }

// New returns a Provider for model, or [DefaultModel] when model is empty.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	if apiKey == "" && s.baseURL == "" {
		return nil, errors.New("openai embeddings: an API key is required without a base URL")
	}
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(s.organization))
	}
	if s.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}

	native, shortens := nativeDimensions(model)
	dims := native
	if s.dimensions > 0 {
		dims = s.dimensions
	}
	return &Provider{
		client:  oai.NewClient(reqOpts...),
		model:   model,
		dims:    dims,
		shorten: shortens && dims != native,
	}, nil
}

// Embed returns the embedding of text. A response of the wrong length is an
// [embeddings.ErrDimensionMismatch].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	params := oai.EmbeddingNewParams{
		Model: p.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	}
	if p.shorten {
		params.Dimensions = param.NewOpt(int64(p.dims))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: response has no data")
	}
	raw := resp.Data[0].Embedding
	if len(raw) != p.dims {
		return nil, embeddings.DimensionError(p.model, len(raw), p.dims)
	}
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions reports the configured vector length.
func (p *Provider) Dimensions() int { return p.dims }

// ModelID reports the model name.
func (p *Provider) ModelID() string { return p.model }
