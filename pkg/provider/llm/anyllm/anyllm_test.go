package anyllm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/soundwatch/pkg/provider/llm"
)

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Answer with one label.",
		Messages:     []llm.Message{{Role: "user", Content: "오늘 너무 좋아"}},
	})
	if params.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if got := params.Messages[1].ContentString(); got != "오늘 너무 좋아" {
		t.Errorf("user content = %q", got)
	}
}

func TestBuildParams_OptionalFields(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "x"}}})
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("zero temperature and max tokens should be left unset")
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "x"}},
		Temperature: 0.2,
		MaxTokens:   8,
	})
	if params.Temperature == nil || *params.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 8 {
		t.Errorf("max tokens = %v, want 8", params.MaxTokens)
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		model    string
	}{
		{"empty provider", "", "gpt-4o"},
		{"empty model", "openai", ""},
		{"unsupported provider", "fakecloud", "some-model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.provider, tt.model, anyllmlib.WithAPIKey("dummy")); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_Backends(t *testing.T) {
	t.Parallel()

	if got := Backends(); len(got) != 9 || got[0] != "anthropic" {
		t.Errorf("Backends() = %v, want nine sorted names", got)
	}
	for _, name := range []string{"openai", "Anthropic", "ollama", "llamacpp", "llamafile"} {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, "some-model", anyllmlib.WithAPIKey("sk-test"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.model != "some-model" {
				t.Errorf("model = %q", p.model)
			}
		})
	}
}

// ── Complete ──────────────────────────────────────────────────────────────────

func TestComplete_OpenAICompatibleServer(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "기쁨"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 2, "total_tokens": 14}
		}`)
	}))
	t.Cleanup(srv.Close)

	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"), anyllmlib.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "오늘 너무 좋아"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "기쁨" {
		t.Errorf("content = %q, want 기쁨", resp.Content)
	}
	if resp.Usage.TotalTokens != 14 {
		t.Errorf("total tokens = %d, want 14", resp.Usage.TotalTokens)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", gotBody["model"])
	}
}

func TestComplete_Replies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{"trims whitespace", "  중립\n", "중립", nil},
		{"blank reply", "   ", "", ErrEmptyReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id": "cmpl-2", "object": "chat.completion", "created": 1, "model": "m",
					"choices": []map[string]any{{
						"index": 0, "finish_reason": "stop",
						"message": map[string]any{"role": "assistant", "content": tt.content},
					}},
				})
			}))
			t.Cleanup(srv.Close)

			p, err := New("openai", "m", anyllmlib.WithAPIKey("sk-test"), anyllmlib.WithBaseURL(srv.URL))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			resp, err := p.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: "user", Content: "그냥 그래"}},
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if resp.Content != tt.want {
				t.Errorf("content = %q, want %q", resp.Content, tt.want)
			}
		})
	}
}

func TestComplete_NoMessages(t *testing.T) {
	t.Parallel()

	p := &Provider{name: "openai", model: "m"}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
