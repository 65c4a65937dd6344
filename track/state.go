// Package track - Append-only history of reprojected positions and frame timing.
package track

import (
	"sync"
	"time"

	"github.com/nvr-ai/go-posetrack/depth"
)

// PositionRecord is one resolved torso position. PersonIndex starts at 1; a
// record with PersonIndex 0 and a zero position is a pause mark stamped with
// the time of the pause.
type PositionRecord struct {
	PersonIndex int                 `json:"person_index"`
	Timestamp   time.Time           `json:"timestamp"`
	Position    depth.WorldPosition `json:"position"`
}

// IsPauseMark reports whether r separates two recording segments.
func (r PositionRecord) IsPauseMark() bool {
	return r.PersonIndex == 0 && r.Position == (depth.WorldPosition{})
}

// Marker is a position materialized into the visible track.
type Marker struct {
	PersonIndex int                 `json:"person_index"`
	Position    depth.WorldPosition `json:"position"`
}

// State holds position history, visible markers and frame metrics.
//
// Records are only appended, except by Reset. All methods are safe for
// concurrent use; readers never observe a partially applied Reset.
type State struct {
	mu       sync.RWMutex
	records  []PositionRecord
	markers  []Marker
	metrics  []FrameMetrics
	tracking bool
	persist  bool
}

// NewState returns an empty State with tracking off.
func NewState() *State {
	return &State{}
}

// RecordPosition appends a position. When tracking is on the position is also
// materialized as a marker.
func (s *State) RecordPosition(personIndex int, ts time.Time, pos depth.WorldPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, PositionRecord{PersonIndex: personIndex, Timestamp: ts, Position: pos})
	if s.tracking {
		s.markers = append(s.markers, Marker{PersonIndex: personIndex, Position: pos})
	}
}

// AddPauseMark appends a pause mark sentinel taken at ts.
func (s *State) AddPauseMark(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, PositionRecord{Timestamp: ts})
}

// BeginFrame clears the previous frame's markers unless they persist.
func (s *State) BeginFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracking && !s.persist {
		s.markers = nil
	}
}

// StartTracking turns on marker materialization.
func (s *State) StartTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracking = true
}

// Tracking reports whether tracking mode is on.
func (s *State) Tracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tracking
}

// SetPersist toggles whether markers accumulate across frames. Turning it off
// clears markers but keeps history.
func (s *State) SetPersist(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persist = on
	if !on {
		s.markers = nil
	}
}

// Persist reports whether markers accumulate across frames.
func (s *State) Persist() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.persist
}

// RecordMetrics appends one frame's timing.
func (s *State) RecordMetrics(m FrameMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
}

// Reset clears position history and markers and turns tracking off. Frame
// metrics are kept.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.markers = nil
	s.tracking = false
}

// Positions returns a copy of the position history.
func (s *State) Positions() []PositionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]PositionRecord(nil), s.records...)
}

// Markers returns a copy of the visible markers.
func (s *State) Markers() []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Marker(nil), s.markers...)
}

// Metrics returns a copy of the frame metrics.
func (s *State) Metrics() []FrameMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]FrameMetrics(nil), s.metrics...)
}
