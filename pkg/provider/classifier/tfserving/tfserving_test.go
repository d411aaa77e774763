package tfserving_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/soundwatch/pkg/provider/classifier/tfserving"
)

func TestPredict(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotShape [3]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Instances [][][]float64 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
			return
		}
		gotShape = [3]int{len(req.Instances), len(req.Instances[0]), len(req.Instances[0][0])}
		_, _ = w.Write([]byte(`{"predictions":[[0.1,0.0,0.0,0.7,0.1,0.05,0.05]]}`))
	}))
	t.Cleanup(srv.Close)

	p, err := tfserving.New(srv.URL+"/", tfserving.WithModel("emo"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	scores, err := p.Predict(context.Background(), []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(scores) != 7 || scores[3] != 0.7 {
		t.Errorf("scores = %v", scores)
	}
	if gotPath != "/v1/models/emo:predict" {
		t.Errorf("path = %q", gotPath)
	}
	if gotShape != [3]int{1, 4, 1} {
		t.Errorf("instance shape = %v, want [1 4 1]", gotShape)
	}
}

func TestPredict_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadRequest, `{"error":"shape mismatch"}`},
		{"empty predictions", http.StatusOK, `{"predictions":[]}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			p, _ := tfserving.New(srv.URL)
			if _, err := p.Predict(context.Background(), []float64{1}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPredict_EmptyInput(t *testing.T) {
	t.Parallel()
	p, _ := tfserving.New("http://unused")
	if _, err := p.Predict(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty features")
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"available", `{"model_version_status":[{"version":"1","state":"AVAILABLE"}]}`, false},
		{"loading", `{"model_version_status":[{"version":"1","state":"LOADING"}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			p, _ := tfserving.New(srv.URL, tfserving.WithVersion("1"))
			err := p.Ready(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Ready() = %v, wantErr %v", err, tt.wantErr)
			}
			if gotPath != "/v1/models/emotion/versions/1" {
				t.Errorf("path = %q", gotPath)
			}
		})
	}
}

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := tfserving.New(""); err == nil {
		t.Fatal("expected error")
	}
}
