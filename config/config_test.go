package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-posetrack/inference"
	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, pipeline.DefaultConfig(), cfg.Pipeline)
	assert.Equal(t, inference.CPUExecutionProvider, cfg.Model.Provider)
	assert.Equal(t, 56, cfg.Model.Channels)
	assert.Equal(t, 5*time.Second, cfg.Profiler.ReportInterval)
	assert.True(t, cfg.Capture.Window)
	assert.False(t, cfg.Debug)
}

func TestLoad_SampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, pipeline.DefaultConfig(), cfg.Pipeline)
	assert.Equal(t, "models/yolov8n-pose.onnx", cfg.Model.ModelPath)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
debug: true
pipeline:
  confidence_threshold: 0.6
  frame_skip: 3
capture:
  directory: testdata/frames
  frame_interval: 33ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.InDelta(t, 0.6, cfg.Pipeline.ConfidenceThreshold, 1e-6)
	assert.Equal(t, 3, cfg.Pipeline.FrameSkip)
	assert.InDelta(t, 0.5, cfg.Pipeline.NMSIoUThreshold, 1e-6, "unset keys keep defaults")
	assert.Equal(t, "testdata/frames", cfg.Capture.Directory)
	assert.Equal(t, 33*time.Millisecond, cfg.Capture.FrameInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  frame_skip: 3\n")
	t.Setenv("POSETRACK_PIPELINE__FRAME_SKIP", "5")
	t.Setenv("POSETRACK_MODEL__PROVIDER", "coreml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.FrameSkip)
	assert.Equal(t, inference.CoreMLExecutionProvider, cfg.Model.Provider)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"threshold out of range", "pipeline:\n  confidence_threshold: 1.5\n"},
		{"zero frame skip", "pipeline:\n  frame_skip: 0\n"},
		{"model size mismatch", "model:\n  input_width: 320\n"},
		{"channel mismatch", "model:\n  channels: 84\n"},
		{"unknown canvas", "capture:\n  canvas: 16k\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCaptureConfig_CanvasSize(t *testing.T) {
	w, h, err := CaptureConfig{CanvasWidth: 800, CanvasHeight: 600}.CanvasSize()
	require.NoError(t, err)
	assert.Equal(t, []int{800, 600}, []int{w, h})

	w, h, err = CaptureConfig{Canvas: "1080p", CanvasWidth: 800, CanvasHeight: 600}.CanvasSize()
	require.NoError(t, err)
	assert.Equal(t, []int{1920, 1080}, []int{w, h})

	_, _, err = CaptureConfig{Canvas: "huge"}.CanvasSize()
	assert.Error(t, err)
}
