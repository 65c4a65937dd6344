package main

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/nvr-ai/go-posetrack/images"
	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/nvr-ai/go-posetrack/track"
	"gocv.io/x/gocv"
)

var (
	boxColor      = color.RGBA{0, 0, 255, 0}
	limbColor     = color.RGBA{0, 255, 255, 0}
	keypointColor = color.RGBA{255, 0, 255, 0}
	textColor     = color.RGBA{255, 255, 255, 0}
)

// overlaySink keeps the latest result so the display loop can draw it on
// whatever frame it is currently showing.
type overlaySink struct {
	edges [][2]int

	mu      sync.Mutex
	result  *pipeline.Result
	metrics track.FrameMetrics
}

func newOverlaySink(edges [][2]int) *overlaySink {
	return &overlaySink{edges: edges}
}

func (o *overlaySink) Render(result *pipeline.Result) {
	o.mu.Lock()
	o.result = result
	o.mu.Unlock()
}

func (o *overlaySink) Observe(m track.FrameMetrics) {
	o.mu.Lock()
	o.metrics = m
	o.mu.Unlock()
}

func (o *overlaySink) latest() (*pipeline.Result, track.FrameMetrics) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.result, o.metrics
}

// draw paints the latest overlay and a status line onto canvas.
func (o *overlaySink) draw(canvas *gocv.Mat, state *track.State, fps float64) {
	result, metrics := o.latest()

	if result != nil {
		size := images.Size{W: float32(canvas.Cols()), H: float32(canvas.Rows())}
		overlay := pipeline.BuildOverlay(result, size, o.edges)

		for i, p := range overlay.Persons {
			gocv.Rectangle(canvas, p.Box.ImageRect(), boxColor, 2)
			for _, s := range p.Skeleton {
				gocv.Line(canvas, s.From.ImagePoint(), s.To.ImagePoint(), limbColor, 2)
			}
			for _, k := range p.Keypoints {
				gocv.Circle(canvas, k.ImagePoint(), 3, keypointColor, -1)
			}
			if p.Torso == nil {
				continue
			}
			gocv.Circle(canvas, p.Torso.At.ImagePoint(), 8, p.Torso.Color, -1)
			if pos := result.Persons[i].Position; pos != nil {
				at := p.Torso.At.ImagePoint().Add(image.Pt(10, -10))
				gocv.PutText(canvas, pos.String(), at, gocv.FontHersheyPlain, 1.2, p.Torso.Color, 2)
			}
		}
	}

	status := fmt.Sprintf("FPS: %.1f | persons: %d | latency: %.0fms | tracking: %t | persist: %t",
		fps, metrics.PersonCount, metrics.CaptureToRenderLatencyMs, state.Tracking(), state.Persist())
	gocv.PutText(canvas, status, image.Pt(10, 20), gocv.FontHersheyPlain, 1.2, textColor, 1)
}
