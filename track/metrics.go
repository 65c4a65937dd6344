package track

import "time"

// FrameMetrics is the timing of one frame that completed the full pipeline.
type FrameMetrics struct {
	Timestamp                time.Time `json:"timestamp"`
	CaptureToRenderLatencyMs float64   `json:"capture_to_render_latency_ms"`
	ModelProcessingMs        float64   `json:"model_processing_ms"`
	RenderingMs              float64   `json:"rendering_ms"`
	PersonCount              int       `json:"person_count"`
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
