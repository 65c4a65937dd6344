package inference

import (
	"image"

	"github.com/pkg/errors"
)

// PrepareInput writes img into dst as planar CHW float32 RGB scaled to [0, 1],
// the layout YOLO exports expect.
//
// The image must already be width x height; letterboxing is the caller's job.
//
// Arguments:
//   - img: The model-sized image.
//   - dst: The destination buffer, at least 3*width*height long.
//   - width: The model input width.
//   - height: The model input height.
//
// Returns:
//   - error: An error if the image or buffer has the wrong size.
func PrepareInput(img image.Image, dst []float32, width, height int) error {
	if img == nil {
		return errors.New("nil image")
	}

	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return errors.Errorf("image is %dx%d, model expects %dx%d", b.Dx(), b.Dy(), width, height)
	}

	channelSize := width * height
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}

	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	if rgba, ok := img.(*image.RGBA); ok {
		i := 0
		for y := 0; y < height; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := 0; x < width; x++ {
				p := row[(x+b.Min.X-rgba.Rect.Min.X)*4:]
				red[i] = float32(p[0]) / 255.0
				green[i] = float32(p[1]) / 255.0
				blue[i] = float32(p[2]) / 255.0
				i++
			}
		}
		return nil
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}

	return nil
}
