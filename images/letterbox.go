package images

import "github.com/chewxy/math32"

// Letterbox is the affine transform from sensor image space into the fixed,
// square model-input space: model = original*Scale + offset.
//
// A Letterbox is computed once per admitted frame and passed by value through
// every stage that needs it, so a later frame can never alter the transform an
// earlier frame is still using.
type Letterbox struct {
	Scale   float32 `json:"scale"`
	XOffset float32 `json:"x_offset"`
	YOffset float32 `json:"y_offset"`
}

// Identity is a letterbox that leaves coordinates unchanged.
var Identity = Letterbox{Scale: 1}

// NewLetterbox computes the uniform scale and centering offsets that fit an
// image of size src into dst without distortion.
//
// Arguments:
//   - src: The dimensions of the original sensor image.
//   - dst: The dimensions of the model input.
//
// Returns:
//   - Letterbox: The transform. A zero-sized src yields Identity.
func NewLetterbox(src, dst Size) Letterbox {
	if src.Empty() || dst.Empty() {
		return Identity
	}

	scale := math32.Min(dst.W/src.W, dst.H/src.H)

	return Letterbox{
		Scale:   scale,
		XOffset: (dst.W - src.W*scale) / 2,
		YOffset: (dst.H - src.H*scale) / 2,
	}
}

// ToSensor undoes the letterbox, mapping a model-space point to sensor space.
func (l Letterbox) ToSensor(p Point) Point {
	return Point{
		X: (p.X - l.XOffset) / l.Scale,
		Y: (p.Y - l.YOffset) / l.Scale,
	}
}

// ToModel applies the letterbox, mapping a sensor-space point to model space.
func (l Letterbox) ToModel(p Point) Point {
	return Point{
		X: p.X*l.Scale + l.XOffset,
		Y: p.Y*l.Scale + l.YOffset,
	}
}

// Mapper converts coordinates between model-input space and an arbitrary
// output canvas. The sensor-to-canvas stretch is applied independently per
// axis and is unrelated to the letterbox scale.
//
// Every box, keypoint and anchor drawn on a canvas must go through the same
// Mapper so overlays stay aligned.
type Mapper struct {
	Letterbox Letterbox
	Sensor    Size
	Canvas    Size
}

// NewMapper returns a Mapper for one frame.
func NewMapper(letterbox Letterbox, sensor, canvas Size) Mapper {
	return Mapper{Letterbox: letterbox, Sensor: sensor, Canvas: canvas}
}

func (m Mapper) ratio() (float32, float32) {
	if m.Sensor.Empty() {
		return 1, 1
	}
	return m.Canvas.W / m.Sensor.W, m.Canvas.H / m.Sensor.H
}

// ToViewSpace maps a model-space point onto the canvas.
func (m Mapper) ToViewSpace(p Point) Point {
	rx, ry := m.ratio()
	s := m.Letterbox.ToSensor(p)
	return Point{X: s.X * rx, Y: s.Y * ry}
}

// ToModelSpace maps a canvas point back into model space. It is the inverse
// of ToViewSpace.
func (m Mapper) ToModelSpace(p Point) Point {
	rx, ry := m.ratio()
	return m.Letterbox.ToModel(Point{X: p.X / rx, Y: p.Y / ry})
}

// MapRect maps a model-space rectangle onto the canvas. The origin is mapped
// as a point and the extent is scaled by the same per-axis ratios.
func (m Mapper) MapRect(r Rect) Rect {
	rx, ry := m.ratio()
	origin := m.ToViewSpace(Point{X: r.X, Y: r.Y})
	return Rect{
		X: origin.X,
		Y: origin.Y,
		W: r.W / m.Letterbox.Scale * rx,
		H: r.H / m.Letterbox.Scale * ry,
	}
}
