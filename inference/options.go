package inference

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ExecutionProvider selects the ONNX Runtime backend.
type ExecutionProvider string

const (
	CPUExecutionProvider      ExecutionProvider = "cpu"
	CoreMLExecutionProvider   ExecutionProvider = "coreml"
	OpenVINOExecutionProvider ExecutionProvider = "openvino"
	CUDAExecutionProvider     ExecutionProvider = "cuda"
)

// Options configures an ONNX Runtime session for a pose model.
type Options struct {
	// ModelPath is the .onnx file to load.
	ModelPath string `json:"model_path" yaml:"model_path" koanf:"model_path"`
	// SharedLibraryPath points at the onnxruntime shared library. Empty
	// selects a platform default.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path" koanf:"shared_library_path"`
	// InputName and OutputName are the graph tensor names.
	InputName  string `json:"input_name" yaml:"input_name" koanf:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name" koanf:"output_name"`
	// InputWidth and InputHeight are the model input size.
	InputWidth  int `json:"input_width" yaml:"input_width" koanf:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height" koanf:"input_height"`
	// Channels and Anchors describe the [1, Channels, Anchors] output.
	Channels int `json:"channels" yaml:"channels" koanf:"channels"`
	Anchors  int `json:"anchors" yaml:"anchors" koanf:"anchors"`
	// Provider is the execution backend.
	Provider ExecutionProvider `json:"provider" yaml:"provider" koanf:"provider"`
	// IntraOpThreads and InterOpThreads of 0 use the runtime defaults.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads" koanf:"intra_op_threads"`
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads" koanf:"inter_op_threads"`
}

// DefaultOptions returns settings for a yolov8n-pose export at 640x640.
func DefaultOptions() Options {
	return Options{
		ModelPath:      "models/yolov8n-pose.onnx",
		InputName:      "images",
		OutputName:     "output0",
		InputWidth:     640,
		InputHeight:    640,
		Channels:       56,
		Anchors:        8400,
		Provider:       CPUExecutionProvider,
		IntraOpThreads: 4,
		InterOpThreads: 2,
	}
}

// Validate checks the options before any native resources are allocated.
func (o Options) Validate() error {
	if o.ModelPath == "" {
		return errors.New("model path is required")
	}
	if o.InputWidth <= 0 || o.InputHeight <= 0 {
		return errors.Errorf("invalid input size %dx%d", o.InputWidth, o.InputHeight)
	}
	if o.Channels <= 0 || o.Anchors <= 0 {
		return errors.Errorf("invalid output shape [1 %d %d]", o.Channels, o.Anchors)
	}
	switch o.Provider {
	case "", CPUExecutionProvider, CoreMLExecutionProvider, OpenVINOExecutionProvider, CUDAExecutionProvider:
	default:
		return errors.Errorf("unsupported execution provider %q", o.Provider)
	}

	return nil
}

// DefaultSharedLibPath returns the conventional onnxruntime library location
// for the running platform.
func DefaultSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}

// sessionOptions builds native session options. The caller must destroy them.
func sessionOptions(o Options, log *zap.Logger) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := options.SetIntraOpNumThreads(o.IntraOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(o.InterOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}

	switch ExecutionProvider(strings.ToLower(string(o.Provider))) {
	case CoreMLExecutionProvider:
		err = options.AppendExecutionProviderCoreML(0)
	case OpenVINOExecutionProvider:
		err = options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
			"precision":   "FP32",
		})
	case CUDAExecutionProvider:
		err = appendCUDA(options)
	}
	if err != nil {
		// The CPU provider is always present, so a missing accelerator is not fatal.
		log.Warn("execution provider unavailable, falling back to cpu",
			zap.String("provider", string(o.Provider)), zap.Error(err))
	}

	return options, nil
}

func appendCUDA(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
		return err
	}

	return options.AppendExecutionProviderCUDA(cuda)
}
