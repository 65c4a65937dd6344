package depth

import "github.com/pkg/errors"

// Maps is a dense depth map and its matching per-pixel confidence map, both
// stored row-major at the same resolution.
type Maps struct {
	Width      int
	Height     int
	Depth      []float32
	Confidence []uint8
}

// NewMaps validates buffer lengths and returns Maps.
func NewMaps(width, height int, depth []float32, confidence []uint8) (*Maps, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth map size %dx%d", width, height)
	}
	if len(depth) != width*height {
		return nil, errors.Errorf("depth buffer has %d values, want %d", len(depth), width*height)
	}
	if len(confidence) != width*height {
		return nil, errors.Errorf("confidence buffer has %d values, want %d", len(confidence), width*height)
	}

	return &Maps{Width: width, Height: height, Depth: depth, Confidence: confidence}, nil
}

// In reports whether (x, y) is a valid pixel.
func (m *Maps) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// At samples depth and raw confidence at (x, y). The caller must check In.
func (m *Maps) At(x, y int) (float32, uint8) {
	i := y*m.Width + x
	return m.Depth[i], m.Confidence[i]
}
