package api

import (
	"net/http"
	"time"

	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/internal/push"
	"github.com/MrWong99/soundwatch/internal/store"
)

type realtimeRequest struct {
	Timemap string `json:"timemap"`
	Label   string `json:"label"`
	Decibel int    `json:"decibel"`
}

// realtimeInsert stores a classified sound and alerts permitted devices when
// the label is dangerous.
func (s *Server) realtimeInsert(w http.ResponseWriter, r *http.Request) {
	var req realtimeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Timemap == "" || req.Label == "" {
		writeError(w, http.StatusUnprocessableEntity, "timemap and label are required")
		return
	}

	ev, err := s.cfg.Store.InsertNoise(r.Context(), store.NoiseEvent{
		Timemap: req.Timemap,
		Label:   req.Label,
		Decibel: req.Decibel,
	})
	if err != nil {
		writeStoreError(w, r, err, "noise event not found")
		return
	}
	s.cfg.Metrics.RecordNoiseEvent(r.Context(), ev.Label)

	if n, ok := push.AlertFor(ev.Label); ok {
		observe.Logger(r.Context()).Info("api: dangerous noise", "label", ev.Label, "decibel", ev.Decibel)
		_ = s.broadcast(r.Context(), "alert", push.Permitted, n)
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) noiseAll(w http.ResponseWriter, r *http.Request) {
	s.writeNoise(w, r, store.NoiseFilter{})
}

// noiseWindow lists the events inserted during the last window.
func (s *Server) noiseWindow(window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeNoise(w, r, store.NoiseFilter{Since: s.now().Add(-window)})
	}
}

func (s *Server) writeNoise(w http.ResponseWriter, r *http.Request, f store.NoiseFilter) {
	events, err := s.cfg.Store.ListNoise(r.Context(), f)
	if err != nil {
		writeStoreError(w, r, err, "noise event not found")
		return
	}
	if events == nil {
		events = []store.NoiseEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
