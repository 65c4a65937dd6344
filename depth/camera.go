// Package depth - Depth sampling and pinhole back-projection into world space.
package depth

import "github.com/go-gl/mathgl/mgl32"

// Camera holds the per-frame pose of the capturing camera.
type Camera struct {
	// Intrinsics is the 3x3 pinhole matrix [fx 0 cx; 0 fy cy; 0 0 1].
	Intrinsics mgl32.Mat3
	// CameraToWorld maps homogeneous camera-space points into world space.
	CameraToWorld mgl32.Mat4
}

// NewCamera builds a Camera from focal lengths and principal point, with an
// identity camera-to-world transform.
func NewCamera(fx, fy, cx, cy float32) Camera {
	return Camera{
		// mgl32 matrices are column-major.
		Intrinsics: mgl32.Mat3{
			fx, 0, 0,
			0, fy, 0,
			cx, cy, 1,
		},
		CameraToWorld: mgl32.Ident4(),
	}
}

// Focal returns fx and fy.
func (c Camera) Focal() (float32, float32) {
	return c.Intrinsics.At(0, 0), c.Intrinsics.At(1, 1)
}

// Principal returns cx and cy.
func (c Camera) Principal() (float32, float32) {
	return c.Intrinsics.At(0, 2), c.Intrinsics.At(1, 2)
}
