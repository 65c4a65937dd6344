package pipeline

import (
	"image/color"

	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/nvr-ai/go-posetrack/images"
)

// Segment is a limb between two canvas points.
type Segment struct {
	From, To images.Point
}

// Marker is a torso anchor on the canvas.
type Marker struct {
	At    images.Point
	Color color.RGBA
}

// PersonOverlay is one person mapped onto a canvas.
type PersonOverlay struct {
	Box       images.Rect
	Keypoints []images.Point
	Skeleton  []Segment
	Torso     *Marker
}

// Overlay is everything a renderer draws for one frame.
type Overlay struct {
	Canvas  images.Size
	Persons []PersonOverlay
}

// BuildOverlay maps a frame's boxes, keypoints, limbs and torso anchors onto
// a canvas. Every coordinate goes through the frame's single Mapper.
//
// Arguments:
//   - r: The frame result.
//   - canvas: The output canvas size.
//   - edges: Keypoint index pairs to connect. Pairs outside the keypoint
//     range are ignored.
//
// Returns:
//   - Overlay: Canvas-space geometry.
func BuildOverlay(r *Result, canvas images.Size, edges [][2]int) Overlay {
	m := r.Mapper(canvas)
	out := Overlay{Canvas: canvas, Persons: make([]PersonOverlay, 0, len(r.Persons))}

	for _, p := range r.Persons {
		po := PersonOverlay{
			Box:       m.MapRect(p.Detection.Box),
			Keypoints: make([]images.Point, len(p.Detection.Keypoints)),
		}
		for k, kp := range p.Detection.Keypoints {
			po.Keypoints[k] = m.ToViewSpace(kp.Point())
		}
		for _, e := range edges {
			if e[0] < 0 || e[1] < 0 || e[0] >= len(po.Keypoints) || e[1] >= len(po.Keypoints) {
				continue
			}
			po.Skeleton = append(po.Skeleton, Segment{From: po.Keypoints[e[0]], To: po.Keypoints[e[1]]})
		}
		if p.Torso != nil {
			marker := &Marker{At: m.ToViewSpace(*p.Torso), Color: depth.Low.Color()}
			if p.Position != nil {
				marker.Color = p.Position.Confidence.Color()
			}
			po.Torso = marker
		}
		out.Persons = append(out.Persons, po)
	}

	return out
}
