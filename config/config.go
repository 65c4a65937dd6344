// Package config - Application configuration loaded from defaults, YAML and environment.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-posetrack/images"
	"github.com/nvr-ai/go-posetrack/inference"
	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/nvr-ai/go-posetrack/profiler"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. POSETRACK_PIPELINE__FRAME_SKIP=3.
const EnvPrefix = "POSETRACK_"

// CaptureConfig selects where frames come from and how they are shown.
type CaptureConfig struct {
	// Device is the camera index opened when Directory is empty.
	Device int `koanf:"device"`
	// Directory replays frame-N images from disk instead of a camera.
	Directory string `koanf:"directory"`
	// Window shows the overlay in a desktop window.
	Window bool `koanf:"window"`
	// Canvas names a preset overlay resolution such as "720p". It takes
	// precedence over CanvasWidth and CanvasHeight.
	Canvas string `koanf:"canvas"`
	// CanvasWidth and CanvasHeight size the overlay. Zero keeps the sensor size.
	CanvasWidth  int `koanf:"canvas_width"`
	CanvasHeight int `koanf:"canvas_height"`
	// FrameInterval paces directory replay. Zero replays as fast as possible.
	FrameInterval time.Duration `koanf:"frame_interval"`
	// FocalLength is in pixels. The principal point is the image centre.
	FocalLength float32 `koanf:"focal_length"`
}

// CanvasSize resolves the overlay size. A zero size keeps the sensor size.
func (c CaptureConfig) CanvasSize() (int, int, error) {
	if c.Canvas == "" {
		return c.CanvasWidth, c.CanvasHeight, nil
	}

	res, ok := images.ResolutionByName(c.Canvas)
	if !ok {
		return 0, 0, errors.Errorf("unknown canvas resolution %q", c.Canvas)
	}

	return res.Width, res.Height, nil
}

// AppConfig is the full application configuration.
type AppConfig struct {
	Pipeline pipeline.Config   `koanf:"pipeline"`
	Model    inference.Options `koanf:"model"`
	Capture  CaptureConfig     `koanf:"capture"`
	Profiler profiler.Options  `koanf:"profiler"`
	Debug    bool              `koanf:"debug"`
}

// defaults returns the flattened default values.
func defaults() map[string]any {
	p := pipeline.DefaultConfig()
	m := inference.DefaultOptions()

	return map[string]any{
		"pipeline.confidence_threshold": p.ConfidenceThreshold,
		"pipeline.nms_iou_threshold":    p.NMSIoUThreshold,
		"pipeline.input_width":          p.InputWidth,
		"pipeline.input_height":         p.InputHeight,
		"pipeline.frame_skip":           p.FrameSkip,
		"pipeline.keypoint_count":       p.KeypointCount,
		"pipeline.skeleton_edges":       p.SkeletonEdges,

		"model.model_path":       m.ModelPath,
		"model.input_name":       m.InputName,
		"model.output_name":      m.OutputName,
		"model.input_width":      m.InputWidth,
		"model.input_height":     m.InputHeight,
		"model.channels":         m.Channels,
		"model.anchors":          m.Anchors,
		"model.provider":         string(m.Provider),
		"model.intra_op_threads": m.IntraOpThreads,
		"model.inter_op_threads": m.InterOpThreads,

		"capture.device":       0,
		"capture.window":       true,
		"capture.focal_length": 1000,

		"profiler.report_interval": "5s",
		"profiler.max_samples":     300,

		"debug": false,
	}
}

// Load reads configuration in three layers: defaults, then the YAML file at
// filePath (skipped when empty), then POSETRACK_ environment variables.
//
// Arguments:
//   - filePath: Path to a YAML file, or "".
//
// Returns:
//   - *AppConfig: The validated configuration.
//   - error: An error if a layer fails to load or validation fails.
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", filePath)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateConfig checks each section and that the model matches the pipeline.
func ValidateConfig(cfg *AppConfig) error {
	if err := cfg.Pipeline.Validate(); err != nil {
		return errors.Wrap(err, "pipeline")
	}
	if err := cfg.Model.Validate(); err != nil {
		return errors.Wrap(err, "model")
	}
	if cfg.Model.InputWidth != cfg.Pipeline.InputWidth || cfg.Model.InputHeight != cfg.Pipeline.InputHeight {
		return errors.Errorf("model input %dx%d does not match pipeline input %dx%d",
			cfg.Model.InputWidth, cfg.Model.InputHeight, cfg.Pipeline.InputWidth, cfg.Pipeline.InputHeight)
	}
	if want := 5 + 3*cfg.Pipeline.KeypointCount; cfg.Model.Channels != want {
		return errors.Errorf("model has %d output channels, %d keypoints need %d",
			cfg.Model.Channels, cfg.Pipeline.KeypointCount, want)
	}
	if cfg.Capture.CanvasWidth < 0 || cfg.Capture.CanvasHeight < 0 {
		return errors.New("capture canvas size must not be negative")
	}
	if _, _, err := cfg.Capture.CanvasSize(); err != nil {
		return errors.Wrap(err, "capture")
	}

	return nil
}

var defaultConfigPath = "configs/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	_ = fs.Parse(os.Args[1:])

	return *configPath
}
