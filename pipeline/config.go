// Package pipeline - Per-frame pose detection and torso reprojection.
package pipeline

import (
	"github.com/nvr-ai/go-posetrack/models/pose"
	"github.com/pkg/errors"
)

// Config holds the pipeline settings. It is read-only once a Processor or
// Scheduler has been built from it.
type Config struct {
	// ConfidenceThreshold is the minimum person score, in (0, 1].
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold" koanf:"confidence_threshold"`
	// NMSIoUThreshold is the suppression overlap threshold, in [0, 1].
	NMSIoUThreshold float32 `json:"nms_iou_threshold" yaml:"nms_iou_threshold" koanf:"nms_iou_threshold"`
	// InputWidth and InputHeight are the model input size.
	InputWidth  int `json:"input_width" yaml:"input_width" koanf:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height" koanf:"input_height"`
	// FrameSkip admits only every FrameSkip-th capture. Must be at least 1.
	FrameSkip int `json:"frame_skip" yaml:"frame_skip" koanf:"frame_skip"`
	// KeypointCount is K in the [1, 5+3K, N] tensor layout.
	KeypointCount int `json:"keypoint_count" yaml:"keypoint_count" koanf:"keypoint_count"`
	// SkeletonEdges are the keypoint index pairs drawn as limbs.
	SkeletonEdges [][2]int `json:"skeleton_edges" yaml:"skeleton_edges" koanf:"skeleton_edges"`
}

// DefaultConfig returns the settings used for yolov8n-pose on a phone-class
// camera feed.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.75,
		NMSIoUThreshold:     0.5,
		InputWidth:          640,
		InputHeight:         640,
		FrameSkip:           2,
		KeypointCount:       pose.COCOKeypointCount,
		SkeletonEdges:       pose.SkeletonEdges(),
	}
}

// Validate checks every field range.
func (c Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence_threshold must be in (0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.NMSIoUThreshold < 0 || c.NMSIoUThreshold > 1 {
		return errors.Errorf("nms_iou_threshold must be in [0, 1], got %v", c.NMSIoUThreshold)
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.FrameSkip < 1 {
		return errors.Errorf("frame_skip must be at least 1, got %d", c.FrameSkip)
	}
	if c.KeypointCount <= 0 {
		return errors.Errorf("keypoint_count must be positive, got %d", c.KeypointCount)
	}
	for _, e := range c.SkeletonEdges {
		if e[0] < 0 || e[1] < 0 || e[0] >= c.KeypointCount || e[1] >= c.KeypointCount {
			return errors.Errorf("skeleton edge %v references a keypoint outside [0, %d)", e, c.KeypointCount)
		}
	}

	return nil
}
