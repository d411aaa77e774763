// Package classifier defines the Provider interface for the remote emotion
// model.
//
// The model is a 1-D convolutional network trained offline; it is served by
// a model server and consumes one scaled feature vector shaped
// (1, features, 1). It answers with one score per emotion class.
//
// Implementations must be safe for concurrent use.
package classifier

import "context"

// Provider is the abstraction over any model-serving backend.
type Provider interface {
	// Predict returns the class scores for one feature vector.
	Predict(ctx context.Context, features []float64) ([]float64, error)

	// Ready reports whether the model is loaded and serving.
	Ready(ctx context.Context) error
}
