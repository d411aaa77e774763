// Package mock provides a scripted test double for llm.Provider.
//
//	p := &mock.Provider{Replies: []string{"중립", "기쁨"}}
//
// answers "중립" to the first request, "기쁨" to the second and repeats the
// last reply after that.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/soundwatch/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Replies are returned in order as the completion content; the last one
	// repeats. With no replies, Complete returns a nil response.
	Replies []string

	// Err, if non-nil, is returned instead of a reply.
	Err error

	// Requests records every request in order.
	Requests []llm.CompletionRequest
}

// Complete records req and returns the next scripted reply or Err.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.Requests)
	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Replies) == 0 {
		return nil, nil
	}
	reply := p.Replies[min(n, len(p.Replies)-1)]
	return &llm.CompletionResponse{Content: reply}, nil
}

// CallCount returns the number of Complete calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// LastRequest returns the most recent request, or the zero value.
func (p *Provider) LastRequest() llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return llm.CompletionRequest{}
	}
	return p.Requests[len(p.Requests)-1]
}

var _ llm.Provider = (*Provider)(nil)
