package pipeline

import (
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/nvr-ai/go-posetrack/images"
	"github.com/nvr-ai/go-posetrack/models/pose"
)

// Frame is one captured image with its optional depth and camera pose.
type Frame struct {
	// ID correlates the frame across the scheduler's bookkeeping.
	ID uuid.UUID
	// Seq is the capture sequence number, starting at 1.
	Seq uint64
	// Image is the sensor image.
	Image image.Image
	// Depth is nil when the frame has no depth data; persons are then
	// detected but not reprojected.
	Depth *depth.Maps
	// Camera is the intrinsics and pose at capture time.
	Camera depth.Camera
	// CapturedAt is when the sensor produced the frame.
	CapturedAt time.Time
}

// NewFrame stamps img with a fresh correlation id.
func NewFrame(seq uint64, img image.Image, capturedAt time.Time) Frame {
	return Frame{
		ID:         uuid.New(),
		Seq:        seq,
		Image:      img,
		CapturedAt: capturedAt,
	}
}

// Person is one detected person with its optional world position.
type Person struct {
	// Index is the person's position in the frame's detection order.
	Index     int            `json:"index"`
	Detection pose.Detection `json:"detection"`
	// Torso is the torso anchor in model-input pixels, nil when the torso
	// keypoints are missing.
	Torso *images.Point `json:"torso,omitempty"`
	// Position is nil when the person could not be reprojected.
	Position *depth.WorldPosition `json:"position,omitempty"`
}

// Result is everything the pipeline produced for one frame.
type Result struct {
	FrameID    uuid.UUID
	CapturedAt time.Time
	// Letterbox is the transform used for this frame only.
	Letterbox images.Letterbox
	// Sensor is the original image size.
	Sensor  images.Size
	Persons []Person
	// ProcessingStarted and ProcessingEnded bracket the worker stage.
	ProcessingStarted time.Time
	ProcessingEnded   time.Time
}

// Detections returns the detections of every person.
func (r *Result) Detections() []pose.Detection {
	out := make([]pose.Detection, len(r.Persons))
	for i, p := range r.Persons {
		out[i] = p.Detection
	}
	return out
}

// Positions returns the persons that were reprojected.
func (r *Result) Positions() []Person {
	var out []Person
	for _, p := range r.Persons {
		if p.Position != nil {
			out = append(out, p)
		}
	}
	return out
}

// Mapper returns a Mapper from this frame's model space onto a canvas.
func (r *Result) Mapper(canvas images.Size) images.Mapper {
	return images.NewMapper(r.Letterbox, r.Sensor, canvas)
}
