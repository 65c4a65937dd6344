// Package postprocess - provides Non-Maximum Suppression for pose candidates.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-posetrack/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
}

// DefaultNMSConfig returns the suppression settings used for single-class
// person detection.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{IoUThreshold: 0.5}
}

// SortByConfidence returns a copy of candidates ordered by descending
// confidence. Equal confidences keep their decode order.
func SortByConfidence(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	return sorted
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Candidates are visited in descending confidence order. Each one that is
// still active is accepted and then deactivates every later active candidate
// whose IoU with it exceeds the threshold.
//
// Arguments:
//   - candidates: Candidates in decode order. The slice is not modified.
//   - config: NMS configuration. A nil config uses DefaultNMSConfig.
//
// Returns:
//   - Surviving candidates in descending confidence order, or nil if there
//     were none.
func ApplyGreedyNMS(candidates []Candidate, config *NMSConfig) []Candidate {
	n := len(candidates)
	if n == 0 {
		return nil
	}
	if config == nil {
		config = DefaultNMSConfig()
	}

	sorted := SortByConfidence(candidates)
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}

	filtered := make([]Candidate, 0, n)

	for i := 0; i < n; i++ {
		if !active[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)

		for j := i + 1; j < n; j++ {
			if !active[j] {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				active[j] = false
			}
		}
	}

	return filtered
}
