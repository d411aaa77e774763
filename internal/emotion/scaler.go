package emotion

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Scaler standardises a feature vector with the per-feature mean and scale
// fitted when the classifier was trained. A nil *Scaler passes vectors
// through unchanged.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a scaler from a JSON file holding "mean" and "scale"
// arrays.
func LoadScaler(path string) (*Scaler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("emotion: open scaler: %w", err)
	}
	defer f.Close()
	return ParseScaler(f)
}

// ParseScaler decodes a scaler from r.
func ParseScaler(r io.Reader) (*Scaler, error) {
	var s Scaler
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("emotion: decode scaler: %w", err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("emotion: scaler has %d means and %d scales", len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

// Size reports the vector length the scaler was fitted on, or 0 for a nil
// scaler.
func (s *Scaler) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Mean)
}

// Transform returns (x-mean)/scale for every element. Zero scales are
// treated as one, matching constant training features.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if s == nil {
		return x, nil
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("emotion: scaler expects %d features, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}
