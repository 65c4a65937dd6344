package main

import (
	"context"
	"image"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-posetrack/config"
	"github.com/nvr-ai/go-posetrack/controller"
	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/nvr-ai/go-posetrack/images"
	"github.com/nvr-ai/go-posetrack/inference"
	"github.com/nvr-ai/go-posetrack/logger"
	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/nvr-ai/go-posetrack/profiler"
	"github.com/nvr-ai/go-posetrack/track"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const windowName = "posetrack"

func main() {
	cfg, err := config.Load(config.ParseConfigFlag())
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.Debug)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("posetrack stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := inference.NewSession(cfg.Model, log)
	if err != nil {
		return err
	}
	defer session.Close()

	processor, err := pipeline.NewProcessor(cfg.Pipeline, images.NewLetterboxResizer(), session, log)
	if err != nil {
		return err
	}

	prof := profiler.New(cfg.Profiler, log)
	prof.Start()
	defer prof.Stop()

	overlay := newOverlaySink(cfg.Pipeline.SkeletonEdges)
	state := track.NewState()

	scheduler, err := controller.NewScheduler(cfg.Pipeline, processor, state, controller.Sinks{overlay, prof}, log)
	if err != nil {
		return err
	}

	src, err := openSource(cfg.Capture)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	var window *gocv.Window
	if cfg.Capture.Window {
		window = gocv.NewWindow(windowName)
		defer func() { _ = window.Close() }()
	}

	frames := make(chan pipeline.Frame)
	runErr := make(chan error, 1)
	go func() {
		runErr <- scheduler.Run(ctx, frames)
	}()

	log.Info("capture started",
		zap.Int("device", cfg.Capture.Device),
		zap.String("directory", cfg.Capture.Directory),
		zap.Int("frame_skip", cfg.Pipeline.FrameSkip))

	err = capture(ctx, cfg.Capture, src, frames, window, overlay, scheduler, prof)
	close(frames)
	if err != nil {
		stop()
	}
	if loopErr := <-runErr; loopErr != nil && !errors.Is(loopErr, context.Canceled) && err == nil {
		err = loopErr
	}

	stats := scheduler.Stats()
	log.Info("capture stopped",
		zap.Uint64("captured", stats.Captured),
		zap.Uint64("admitted", stats.Admitted),
		zap.Uint64("dropped_skip", stats.DroppedSkip),
		zap.Uint64("dropped_busy", stats.DroppedBusy),
		zap.Uint64("completed", stats.Completed),
		zap.Uint64("failed", stats.Failed),
		zap.Int("positions", len(state.Positions())))

	prof.Report()

	return err
}

func openSource(cfg config.CaptureConfig) (source, error) {
	if cfg.Directory != "" {
		return openDirectory(cfg.Directory, cfg.FrameInterval)
	}
	return openCamera(cfg.Device)
}

// capture reads frames until the source is exhausted, the user quits or ctx
// is done. It owns the window, which must stay on one goroutine.
func capture(
	ctx context.Context,
	cfg config.CaptureConfig,
	src source,
	frames chan<- pipeline.Frame,
	window *gocv.Window,
	overlay *overlaySink,
	scheduler *controller.Scheduler,
	prof *profiler.FrameProfiler,
) error {
	var seq uint64
	lastRate := time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		img, maps, err := src.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		seq++
		frame := pipeline.NewFrame(seq, img, time.Now())
		frame.Depth = maps
		frame.Camera = cameraFor(img.Bounds(), cfg.FocalLength)

		select {
		case frames <- frame:
		case <-ctx.Done():
			return nil
		}

		if now := time.Now(); now.Sub(lastRate) >= time.Second {
			prof.RecordMetric(profiler.MetricFrameRate, scheduler.FrameRate())
			lastRate = now
		}

		if window == nil {
			continue
		}
		if quit := show(window, img, cfg, overlay, scheduler); quit {
			return nil
		}
	}
}

// show draws the latest overlay on img and handles one key press. It reports
// whether the user asked to quit.
func show(window *gocv.Window, img image.Image, cfg config.CaptureConfig, overlay *overlaySink, scheduler *controller.Scheduler) bool {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false
	}
	defer mat.Close()

	if w, h, _ := cfg.CanvasSize(); w > 0 && h > 0 {
		gocv.Resize(mat, &mat, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	}

	state := scheduler.State()
	overlay.draw(&mat, state, scheduler.FrameRate())
	window.IMShow(mat)

	switch window.WaitKey(1) {
	case 't':
		state.StartTracking()
	case 'p':
		state.SetPersist(!state.Persist())
	case 'r':
		state.Reset()
	case 'm':
		state.AddPauseMark(time.Now())
	case 'q', 27:
		return true
	}

	return false
}

// cameraFor builds pinhole intrinsics centred on the sensor.
func cameraFor(bounds image.Rectangle, focal float32) depth.Camera {
	return depth.NewCamera(focal, focal, float32(bounds.Dx())/2, float32(bounds.Dy())/2)
}
