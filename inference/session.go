package inference

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

var initOnce sync.Once
var initErr error

// initEnvironment loads the onnxruntime library once per process.
func initEnvironment(libPath string) error {
	initOnce.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})

	return initErr
}

// Session is an ONNX Runtime pose model with preallocated input and output
// tensors. Predict calls are serialized.
type Session struct {
	mu      sync.Mutex
	opts    Options
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	log     *zap.Logger
}

var _ Predictor = (*Session)(nil)

// NewSession loads the model and allocates its tensors.
//
// Arguments:
//   - opts: Model and runtime settings.
//   - log: The logger. Nil disables logging.
//
// Returns:
//   - *Session: The session. Call Close when done.
//   - error: An error if the runtime or model could not be loaded.
func NewSession(opts Options, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Provider == "" {
		opts.Provider = CPUExecutionProvider
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	libPath := opts.SharedLibraryPath
	if libPath == "" {
		libPath = DefaultSharedLibPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, errors.Wrapf(err, "error initializing ORT environment from %s", libPath)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(opts.InputHeight), int64(opts.InputWidth)))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Channels), int64(opts.Anchors)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := sessionOptions(opts, log)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", opts.ModelPath)
	}

	log.Info("model loaded",
		zap.String("model", opts.ModelPath),
		zap.String("provider", string(opts.Provider)),
		zap.Int("channels", opts.Channels),
		zap.Int("anchors", opts.Anchors),
	)

	return &Session{
		opts:    opts,
		session: session,
		input:   input,
		output:  output,
		log:     log,
	}, nil
}

// Predict runs the model on a model-sized image. The returned tensor owns a
// copy of the output so it stays valid across later calls.
func (s *Session) Predict(ctx context.Context, img image.Image) (tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	if err := PrepareInput(img, s.input.GetData(), s.opts.InputWidth, s.opts.InputHeight); err != nil {
		return nil, errors.Wrap(err, "error preparing input")
	}

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	out := s.output.GetData()
	backing := make([]float32, len(out))
	copy(backing, out)

	return tensor.New(
		tensor.WithShape(1, s.opts.Channels, s.opts.Anchors),
		tensor.WithBacking(backing),
	), nil
}

// Close releases the native resources associated with the Session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}
