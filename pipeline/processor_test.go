package pipeline

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/nvr-ai/go-posetrack/images"
	"github.com/nvr-ai/go-posetrack/inference"
	"github.com/nvr-ai/go-posetrack/models/pose"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// MockResizer returns the source image with a fixed letterbox.
type MockResizer struct {
	letterbox   images.Letterbox
	shouldError bool
	calls       int
}

func (m *MockResizer) Resize(img image.Image, width, height int) (image.Image, images.Letterbox, error) {
	m.calls++
	if m.shouldError {
		return nil, images.Letterbox{}, images.ErrEmptyImage
	}
	return img, m.letterbox, nil
}

// person describes a synthetic detection with a full torso.
type person struct {
	cx, cy, w, h, conf float32
	torso              images.Point
}

// poseTensor writes each person at anchor index i of an n-anchor tensor, with
// shoulders and hips placed symmetrically around the torso point.
func poseTensor(n int, persons ...person) tensor.Tensor {
	const channels = 5 + 3*pose.COCOKeypointCount
	data := make([]float32, channels*n)
	set := func(c, i int, v float32) { data[c*n+i] = v }

	for i, p := range persons {
		set(0, i, p.cx)
		set(1, i, p.cy)
		set(2, i, p.w)
		set(3, i, p.h)
		set(4, i, p.conf)

		joints := map[int]images.Point{
			pose.LeftShoulder:  {X: p.torso.X - 10, Y: p.torso.Y - 20},
			pose.RightShoulder: {X: p.torso.X + 10, Y: p.torso.Y - 20},
			pose.LeftHip:       {X: p.torso.X - 10, Y: p.torso.Y + 20},
			pose.RightHip:      {X: p.torso.X + 10, Y: p.torso.Y + 20},
		}
		for k, pt := range joints {
			set(5+3*k, i, pt.X)
			set(6+3*k, i, pt.Y)
			set(7+3*k, i, 0.9)
		}
	}

	return tensor.New(tensor.WithShape(1, channels, n), tensor.WithBacking(data))
}

func staticPredictor(t tensor.Tensor, err error) inference.Predictor {
	return inference.PredictorFunc(func(ctx context.Context, img image.Image) (tensor.Tensor, error) {
		return t, err
	})
}

func depthFrame(t *testing.T, d float32) Frame {
	t.Helper()

	const w, h = 64, 64
	dm := make([]float32, w*h)
	cm := make([]uint8, w*h)
	for i := range dm {
		dm[i] = d
		cm[i] = 2
	}
	maps, err := depth.NewMaps(w, h, dm, cm)
	require.NoError(t, err)

	f := NewFrame(1, image.NewRGBA(image.Rect(0, 0, 640, 640)), time.Now())
	f.Depth = maps
	f.Camera = depth.NewCamera(1000, 1000, 320, 320)

	return f
}

func TestProcessor_Process(t *testing.T) {
	raw := poseTensor(100,
		person{cx: 345, cy: 345, w: 100, h: 200, conf: 0.95, torso: images.Pt(320, 320)},
		person{cx: 350, cy: 345, w: 100, h: 200, conf: 0.80, torso: images.Pt(322, 320)},
		person{cx: 100, cy: 100, w: 40, h: 80, conf: 0.85, torso: images.Pt(100, 100)},
		person{cx: 500, cy: 500, w: 40, h: 80, conf: 0.30, torso: images.Pt(500, 500)},
	)

	p, err := NewProcessor(DefaultConfig(), &MockResizer{letterbox: images.Identity}, staticPredictor(raw, nil), nil)
	require.NoError(t, err)

	res, err := p.Process(context.Background(), depthFrame(t, 2))
	require.NoError(t, err)
	require.Len(t, res.Persons, 2, "one duplicate suppressed, one below threshold")

	assert.Equal(t, 0, res.Persons[0].Detection.AnchorIndex)
	assert.Equal(t, 2, res.Persons[1].Detection.AnchorIndex)
	assert.Len(t, res.Persons[0].Detection.Keypoints, pose.COCOKeypointCount)

	require.NotNil(t, res.Persons[0].Torso)
	assert.Equal(t, images.Pt(320, 320), *res.Persons[0].Torso)

	require.NotNil(t, res.Persons[0].Position)
	assert.InDelta(t, 0, res.Persons[0].Position.X, 1e-5)
	assert.InDelta(t, -2, res.Persons[0].Position.Z, 1e-5)
	assert.Equal(t, depth.High, res.Persons[0].Position.Confidence)

	assert.Len(t, res.Positions(), 2)
	assert.Len(t, res.Detections(), 2)
	assert.False(t, res.ProcessingEnded.Before(res.ProcessingStarted))
}

func TestProcessor_PersonLevelFailures(t *testing.T) {
	raw := poseTensor(10, person{cx: 345, cy: 345, w: 100, h: 200, conf: 0.95, torso: images.Pt(320, 320)})
	p, err := NewProcessor(DefaultConfig(), &MockResizer{letterbox: images.Identity}, staticPredictor(raw, nil), nil)
	require.NoError(t, err)

	t.Run("invalid depth keeps the detection", func(t *testing.T) {
		res, err := p.Process(context.Background(), depthFrame(t, 0))
		require.NoError(t, err)
		require.Len(t, res.Persons, 1)
		assert.Nil(t, res.Persons[0].Position)
		assert.Empty(t, res.Positions())
	})

	t.Run("no depth map", func(t *testing.T) {
		f := depthFrame(t, 2)
		f.Depth = nil
		res, err := p.Process(context.Background(), f)
		require.NoError(t, err)
		require.Len(t, res.Persons, 1)
		assert.NotNil(t, res.Persons[0].Torso)
		assert.Nil(t, res.Persons[0].Position)
	})
}

func TestProcessor_FrameLevelFailures(t *testing.T) {
	good := poseTensor(10)
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		resizer   *MockResizer
		predictor inference.Predictor
		frame     func(t *testing.T) Frame
	}{
		{
			name:      "resize error",
			resizer:   &MockResizer{shouldError: true},
			predictor: staticPredictor(good, nil),
			frame:     func(t *testing.T) Frame { return depthFrame(t, 2) },
		},
		{
			name:      "predict error",
			resizer:   &MockResizer{letterbox: images.Identity},
			predictor: staticPredictor(nil, errors.New("runtime unavailable")),
			frame:     func(t *testing.T) Frame { return depthFrame(t, 2) },
		},
		{
			name:    "shape mismatch",
			resizer: &MockResizer{letterbox: images.Identity},
			predictor: staticPredictor(
				tensor.New(tensor.WithShape(1, 84, 10), tensor.WithBacking(make([]float32, 840))), nil),
			frame: func(t *testing.T) Frame { return depthFrame(t, 2) },
		},
		{
			name:      "missing image",
			resizer:   &MockResizer{letterbox: images.Identity},
			predictor: staticPredictor(good, nil),
			frame:     func(t *testing.T) Frame { return Frame{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProcessor(cfg, tt.resizer, tt.predictor, nil)
			require.NoError(t, err)

			res, err := p.Process(context.Background(), tt.frame(t))
			assert.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestProcessor_ShapeMismatchIsDetectable(t *testing.T) {
	bad := tensor.New(tensor.WithShape(1, 84, 10), tensor.WithBacking(make([]float32, 840)))
	p, err := NewProcessor(DefaultConfig(), &MockResizer{letterbox: images.Identity}, staticPredictor(bad, nil), nil)
	require.NoError(t, err)

	_, err = p.Process(context.Background(), depthFrame(t, 2))
	assert.True(t, errors.Is(err, pose.ErrShapeMismatch))
}

func TestNewProcessor_Validation(t *testing.T) {
	_, err := NewProcessor(DefaultConfig(), nil, nil, nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.FrameSkip = 0
	_, err = NewProcessor(cfg, nil, staticPredictor(nil, nil), nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.ConfidenceThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.ConfidenceThreshold = 1.1 }},
		{"negative iou", func(c *Config) { c.NMSIoUThreshold = -0.1 }},
		{"zero input", func(c *Config) { c.InputHeight = 0 }},
		{"zero frame skip", func(c *Config) { c.FrameSkip = 0 }},
		{"edge out of range", func(c *Config) { c.SkeletonEdges = append(c.SkeletonEdges, [2]int{0, 17}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
