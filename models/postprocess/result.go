// Package postprocess - Postprocessing utilities for pose model output.
package postprocess

import "github.com/nvr-ai/go-posetrack/images"

// Candidate is a single above-threshold anchor decoded from the model output.
type Candidate struct {
	// The anchor cell the candidate was read from. Later stages use it to
	// re-read keypoints for exactly this anchor.
	AnchorIndex int `json:"anchor_index"`
	// The person confidence score of the candidate.
	Confidence float32 `json:"confidence"`
	// The bounding box of the candidate in model-input pixels.
	Box images.Rect `json:"box"`
}
