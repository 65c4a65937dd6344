// Package images - Geometry primitives and coordinate mapping for frame processing.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Point is a 2D coordinate in some pixel space (model, sensor or view).
type Point struct {
	X, Y float32
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float32) Point {
	return Point{X: x, Y: y}
}

// Midpoint returns the point halfway between p and o.
func (p Point) Midpoint(o Point) Point {
	return Point{X: (p.X + o.X) / 2, Y: (p.Y + o.Y) / 2}
}

// ImagePoint rounds p to the nearest integer pixel.
func (p Point) ImagePoint() image.Point {
	return image.Pt(int(math32.Round(p.X)), int(math32.Round(p.Y)))
}

// Size is a width/height pair.
type Size struct {
	W, H float32
}

// SizeOf returns the dimensions of an image.Rectangle as a Size.
func SizeOf(r image.Rectangle) Size {
	return Size{W: float32(r.Dx()), H: float32(r.Dy())}
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Rect is a lightweight axis-aligned box anchored at its top-left corner.
type Rect struct {
	X, Y, W, H float32
}

// RectFromCenter builds a Rect from a center point and its dimensions, the
// layout detection heads emit boxes in.
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

// MaxX is the right edge of the rectangle.
func (r Rect) MaxX() float32 { return r.X + r.W }

// MaxY is the bottom edge of the rectangle.
func (r Rect) MaxY() float32 { return r.Y + r.H }

// Area returns W*H, or zero for degenerate rectangles.
func (r Rect) Area() float32 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Intersect returns the overlapping region of r and o and whether one exists.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.MaxX(), o.MaxX())
	y2 := min(r.MaxY(), o.MaxY())
	if x2 < x1 || y2 < y1 {
		return Rect{}, false
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}, true
}

// Union returns the smallest rectangle enclosing both r and o.
func (r Rect) Union(o Rect) Rect {
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.MaxX(), o.MaxX())
	y2 := max(r.MaxY(), o.MaxY())
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// ImageRect converts r to an integer image.Rectangle, rounding each edge.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(
		int(math32.Round(r.X)),
		int(math32.Round(r.Y)),
		int(math32.Round(r.MaxX())),
		int(math32.Round(r.MaxY())),
	).Canon()
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f) %.2fx%.2f", r.X, r.Y, r.W, r.H)
}

// CalculateIoU measures how much two boxes overlap, returning a value in [0, 1].
//
// The denominator is the area of the bounding box that encloses both
// rectangles rather than the inclusion-exclusion union. For boxes that are
// offset diagonally this yields a lower score than the textbook formula, which
// is the behavior the suppression thresholds were tuned against.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: 0 when the rectangles do not intersect, otherwise
//     intersection area / enclosing area.
//
// Example:
//
// ```go
//
//	a := Rect{X: 0, Y: 0, W: 10, H: 10}
//	b := Rect{X: 0, Y: 5, W: 10, H: 10}
//	iou := CalculateIoU(a, b) // 50 / 150 = 0.333
//
// ```
func CalculateIoU(r, o Rect) float32 {
	inter, ok := r.Intersect(o)
	if !ok {
		return 0
	}
	interArea := inter.Area()
	if interArea == 0 {
		return 0
	}
	unionArea := r.Union(o).Area()
	if unionArea == 0 {
		return 0
	}
	return interArea / unionArea
}
