package images

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned when a source image is nil or has no pixels.
var ErrEmptyImage = errors.New("image is empty")

// PadColor is the neutral gray YOLO-family models are trained with for
// letterbox padding.
var PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// LetterboxResizer scales images into a fixed model-input canvas while
// preserving aspect ratio, padding the remainder with PadColor.
type LetterboxResizer struct {
	// Interpolation is the resampling kernel passed to nfnt/resize.
	Interpolation resize.InterpolationFunction
	// Pad fills the area outside the scaled image.
	Pad color.Color
}

// NewLetterboxResizer returns a resizer with bilinear interpolation and the
// default gray padding.
func NewLetterboxResizer() *LetterboxResizer {
	return &LetterboxResizer{
		Interpolation: resize.Bilinear,
		Pad:           PadColor,
	}
}

// Resize letterboxes img into a width x height canvas.
//
// Arguments:
//   - img: The sensor image.
//   - width: The model input width.
//   - height: The model input height.
//
// Returns:
//   - image.Image: An *image.RGBA of exactly width x height.
//   - Letterbox: The transform that maps sensor coordinates into the result.
//     Its offsets are the whole-pixel position the scaled image is drawn at.
//   - error: ErrEmptyImage when img has no pixels.
func (r *LetterboxResizer) Resize(img image.Image, width, height int) (image.Image, Letterbox, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, Letterbox{}, ErrEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, Letterbox{}, errors.Errorf("invalid target size %dx%d", width, height)
	}

	src := SizeOf(img.Bounds())
	lb := NewLetterbox(src, Size{W: float32(width), H: float32(height)})

	scaledW := max(1, int(math32.Round(src.W*lb.Scale)))
	scaledH := max(1, int(math32.Round(src.H*lb.Scale)))
	scaled := resize.Resize(uint(scaledW), uint(scaledH), img, r.Interpolation)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	pad := r.Pad
	if pad == nil {
		pad = PadColor
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(pad), image.Point{}, draw.Src)

	offset := image.Pt((width-scaledW)/2, (height-scaledH)/2)
	lb.XOffset = float32(offset.X)
	lb.YOffset = float32(offset.Y)
	draw.Draw(dst, scaled.Bounds().Sub(scaled.Bounds().Min).Add(offset), scaled, scaled.Bounds().Min, draw.Src)

	return dst, lb, nil
}
