package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/nvr-ai/go-posetrack/images"
	"github.com/nvr-ai/go-posetrack/inference"
	"github.com/nvr-ai/go-posetrack/models/pose"
	"github.com/nvr-ai/go-posetrack/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Resizer letterboxes a sensor image into the model input size.
type Resizer interface {
	Resize(img image.Image, width, height int) (image.Image, images.Letterbox, error)
}

// Processor runs resize, predict, decode, suppress and reproject for one
// frame at a time. It holds no per-frame state.
type Processor struct {
	cfg       Config
	resizer   Resizer
	predictor inference.Predictor
	decoder   *pose.Decoder
	nms       *postprocess.NMSConfig
	log       *zap.Logger
	now       func() time.Time
}

// NewProcessor validates cfg and wires the collaborators.
//
// Arguments:
//   - cfg: Pipeline settings.
//   - resizer: The letterbox collaborator. Nil uses images.NewLetterboxResizer.
//   - predictor: The model.
//   - log: The logger. Nil disables logging.
//
// Returns:
//   - *Processor: The processor.
//   - error: An error if cfg is invalid or predictor is nil.
func NewProcessor(cfg Config, resizer Resizer, predictor inference.Predictor, log *zap.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline config")
	}
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if resizer == nil {
		resizer = images.NewLetterboxResizer()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Processor{
		cfg:       cfg,
		resizer:   resizer,
		predictor: predictor,
		decoder:   &pose.Decoder{Threshold: cfg.ConfidenceThreshold, KeypointCount: cfg.KeypointCount},
		nms:       &postprocess.NMSConfig{IoUThreshold: cfg.NMSIoUThreshold},
		log:       log,
		now:       time.Now,
	}, nil
}

// Config returns the processor's settings.
func (p *Processor) Config() Config {
	return p.cfg
}

// Process runs the full pipeline on one frame.
//
// Frame-level failures (resize, predict, tensor shape) are returned as errors.
// Person-level failures (missing keypoints, out-of-bounds or invalid depth)
// only leave that person's Position nil.
//
// Arguments:
//   - ctx: Passed to the predictor.
//   - frame: The admitted frame.
//
// Returns:
//   - *Result: Detections and positions for the frame.
//   - error: A frame-level error.
func (p *Processor) Process(ctx context.Context, frame Frame) (*Result, error) {
	result := &Result{
		FrameID:           frame.ID,
		CapturedAt:        frame.CapturedAt,
		ProcessingStarted: p.now(),
	}

	if frame.Image == nil {
		return nil, errors.Wrap(images.ErrEmptyImage, "frame has no image")
	}
	result.Sensor = images.SizeOf(frame.Image.Bounds())

	input, letterbox, err := p.resizer.Resize(frame.Image, p.cfg.InputWidth, p.cfg.InputHeight)
	if err != nil {
		return nil, errors.Wrap(err, "resize failed")
	}
	result.Letterbox = letterbox

	raw, err := p.predictor.Predict(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "predict failed")
	}

	candidates, err := p.decoder.Decode(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode failed")
	}

	kept := postprocess.ApplyGreedyNMS(candidates, p.nms)
	result.Persons = make([]Person, 0, len(kept))

	for i, c := range kept {
		det, err := p.decoder.Detection(raw, c)
		if err != nil {
			return nil, errors.Wrap(err, "keypoint read failed")
		}

		person := Person{Index: i, Detection: det}
		p.locate(&person, frame, result)
		result.Persons = append(result.Persons, person)
	}

	result.ProcessingEnded = p.now()

	p.log.Debug("frame processed",
		zap.String("frame_id", frame.ID.String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("persons", len(result.Persons)),
		zap.Duration("took", result.ProcessingEnded.Sub(result.ProcessingStarted)),
	)

	return result, nil
}

// locate fills the torso anchor and, when depth is available, the world
// position of one person.
func (p *Processor) locate(person *Person, frame Frame, result *Result) {
	torso, err := person.Detection.TorsoAnchor()
	if err != nil {
		p.log.Debug("person skipped", zap.Int("person", person.Index), zap.Error(err))
		return
	}
	person.Torso = &torso

	if frame.Depth == nil {
		return
	}

	pos, err := depth.Reproject(torso, result.Letterbox, result.Sensor, frame.Depth, frame.Camera)
	if err != nil {
		p.log.Debug("person not reprojected",
			zap.String("frame_id", frame.ID.String()),
			zap.Int("person", person.Index),
			zap.Error(err),
		)
		return
	}
	person.Position = &pos

	p.log.Info("person located",
		zap.Int("person", person.Index+1),
		zap.Float32("x", pos.X),
		zap.Float32("y", pos.Y),
		zap.Float32("z", pos.Z),
		zap.Stringer("confidence", pos.Confidence),
	)
}
