// Package inference - Model inference behind a small Predictor interface.
package inference

import (
	"context"
	"image"

	"gorgonia.org/tensor"
)

// Predictor runs the pose model on one image that already has the model's
// input size and returns the raw [1, C, N] output tensor.
type Predictor interface {
	Predict(ctx context.Context, img image.Image) (tensor.Tensor, error)
}

// PredictorFunc adapts a plain function to the Predictor interface.
type PredictorFunc func(ctx context.Context, img image.Image) (tensor.Tensor, error)

// Predict calls f.
func (f PredictorFunc) Predict(ctx context.Context, img image.Image) (tensor.Tensor, error) {
	return f(ctx, img)
}
