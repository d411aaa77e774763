package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/soundwatch/internal/emotion"
	"github.com/MrWong99/soundwatch/internal/observe"
	"github.com/MrWong99/soundwatch/internal/store"
	"github.com/MrWong99/soundwatch/pkg/audio"
	"github.com/MrWong99/soundwatch/pkg/features"
)

// Emotion log page sizes.
const (
	defaultLogLimit = 20
	maxLogLimit     = 200
)

type emotionResponse struct {
	PredictedEmotion emotion.Label `json:"predicted_emotion"`
}

type textEmotionResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// emotion classifies an uploaded WAV file together with its transcript.
// The multipart form carries the audio as "file" and the text as "text".
func (s *Server) emotion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required: "+err.Error())
		return
	}
	defer f.Close()
	wav, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file: "+err.Error())
		return
	}
	text := r.FormValue("text")
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return
	}

	res, err := s.cfg.Analyzer.Analyze(ctx, wav, text)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, audio.ErrInvalidWAV) || errors.Is(err, features.ErrEmptySignal) {
			status = http.StatusUnprocessableEntity
		}
		observe.Logger(ctx).Warn("api: batch emotion failed", "status", status, "err", err)
		writeError(w, status, err.Error())
		return
	}

	s.cfg.Metrics.RecordEmotion(ctx, string(res.Label), "batch")
	if _, err := s.cfg.Store.AppendEmotion(ctx, store.EmotionEntry{
		Source:    store.SourceBatch,
		Text:      text,
		Emotion:   string(res.Label),
		Embedding: res.Embedding,
	}); err != nil {
		observe.Logger(ctx).Warn("api: emotion log append failed", "err", err)
	}
	writeJSON(w, http.StatusOK, emotionResponse{PredictedEmotion: res.Label})
}

// textEmotion runs only the sentiment classifier. The text comes from the
// "text" query parameter or form field.
func (s *Server) textEmotion(w http.ResponseWriter, r *http.Request) {
	text := r.FormValue("text")
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return
	}
	l, err := s.cfg.Sentiment.Classify(r.Context(), text)
	if err != nil {
		observe.Logger(r.Context()).Warn("api: sentiment failed", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, textEmotionResponse{Label: l.Name, Score: l.Score})
}

// parseLimit reads the "limit" query parameter, clamped to maxLogLimit.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLogLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxLogLimit), true
}

func (s *Server) emotionLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return
	}
	entries, err := s.cfg.Store.RecentEmotions(r.Context(), limit)
	if err != nil {
		writeStoreError(w, r, err, "no emotion entries")
		return
	}
	if entries == nil {
		entries = []store.EmotionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// emotionSimilar embeds the "text" query parameter and returns the logged
// utterances closest to it.
func (s *Server) emotionSimilar(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return
	}
	vec, err := s.cfg.Embedder.Embed(r.Context(), text)
	if err != nil {
		observe.Logger(r.Context()).Warn("api: embed query failed", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	matches, err := s.cfg.Store.SimilarEmotions(r.Context(), vec, limit)
	if err != nil {
		writeStoreError(w, r, err, "no emotion entries")
		return
	}
	if matches == nil {
		matches = []store.EmotionMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}
