package images

import (
	"math/rand"
	"testing"
)

// BenchmarkIoU_NonOverlapping returns through the empty-intersection path.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	r1 := Rect{X: 0, Y: 0, W: 100, H: 100}
	r2 := Rect{X: 200, Y: 200, W: 100, H: 100}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_PartialOverlap is the common case of two detections of the
// same person.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := Rect{X: 0, Y: 0, W: 100, H: 200}
	r2 := Rect{X: 20, Y: 10, W: 100, H: 200}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_Random compares random boxes inside a 640x640 model input.
func BenchmarkIoU_Random(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	rects := make([]Rect, 1024)
	for i := range rects {
		rects[i] = RectFromCenter(rng.Float32()*640, rng.Float32()*640, 20+rng.Float32()*200, 40+rng.Float32()*300)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rects[i%len(rects)], rects[(i+1)%len(rects)])
	}
}

func BenchmarkLetterboxResizer_Resize(b *testing.B) {
	img := getTestImage(1280, 720)
	r := NewLetterboxResizer()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := r.Resize(img, 640, 640); err != nil {
			b.Fatal(err)
		}
	}
}
