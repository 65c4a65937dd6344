package depth

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/nvr-ai/go-posetrack/images"
	"github.com/pkg/errors"
)

var (
	// ErrOutOfBounds is returned when a point falls outside the depth map.
	ErrOutOfBounds = errors.New("point outside depth map")
	// ErrInvalidDepth is returned when the sampled depth is NaN or not positive.
	ErrInvalidDepth = errors.New("invalid depth sample")
)

// WorldPosition is a reprojected point in the tracking session's world frame.
type WorldPosition struct {
	X          float32         `json:"x"`
	Y          float32         `json:"y"`
	Z          float32         `json:"z"`
	Confidence ConfidenceClass `json:"confidence"`
}

// Vec3 returns the position as an mgl32 vector.
func (w WorldPosition) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{w.X, w.Y, w.Z}
}

func (w WorldPosition) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f) %s", w.X, w.Y, w.Z, w.Confidence)
}

// CameraSpace back-projects a sensor pixel at the given depth through the
// pinhole model. The vertical axis is flipped so +y points up.
//
// Arguments:
//   - u: The point in sensor image pixels.
//   - sensorHeight: The sensor image height used for the flip.
//   - d: The depth in scene units.
//   - cam: Supplies fx, fy, cx and cy.
//
// Returns:
//   - mgl32.Vec3: (x, y, z) with z = d.
func CameraSpace(u images.Point, sensorHeight, d float32, cam Camera) mgl32.Vec3 {
	fx, fy := cam.Focal()
	cx, cy := cam.Principal()

	return mgl32.Vec3{
		(u.X - cx) * d / fx,
		(sensorHeight - u.Y - cy) * d / fy,
		d,
	}
}

// Reproject lifts a model-space torso point into world coordinates.
//
// The point is un-letterboxed into sensor pixels, rescaled per axis to the
// depth map resolution and floored to a pixel. Depth and confidence are
// sampled there, back-projected into camera space and transformed by the
// camera-to-world matrix. The camera looks down -z.
//
// Arguments:
//   - torso: The anchor in model-input pixels.
//   - letterbox: The frame's letterbox transform.
//   - sensor: The sensor image size.
//   - maps: The frame's depth and confidence maps.
//   - cam: The frame's camera.
//
// Returns:
//   - WorldPosition: The world-space point and its confidence class.
//   - error: ErrOutOfBounds or ErrInvalidDepth. Both only affect this point.
func Reproject(torso images.Point, letterbox images.Letterbox, sensor images.Size, maps *Maps, cam Camera) (WorldPosition, error) {
	if maps == nil || sensor.Empty() {
		return WorldPosition{}, errors.Wrap(ErrOutOfBounds, "no depth map")
	}

	u := letterbox.ToSensor(torso)

	px := int(math32.Floor(u.X * float32(maps.Width) / sensor.W))
	py := int(math32.Floor(u.Y * float32(maps.Height) / sensor.H))
	if !maps.In(px, py) {
		return WorldPosition{}, errors.Wrapf(ErrOutOfBounds, "pixel (%d, %d) outside %dx%d", px, py, maps.Width, maps.Height)
	}

	d, raw := maps.At(px, py)
	if math32.IsNaN(d) || d <= 0 {
		return WorldPosition{}, errors.Wrapf(ErrInvalidDepth, "depth %v at (%d, %d)", d, px, py)
	}

	c := CameraSpace(u, sensor.H, d, cam)
	w := cam.CameraToWorld.Mul4x1(mgl32.Vec4{c.X(), c.Y(), -c.Z(), 1})

	return WorldPosition{
		X:          w.X(),
		Y:          w.Y(),
		Z:          w.Z(),
		Confidence: ConfidenceFromByte(raw),
	}, nil
}
