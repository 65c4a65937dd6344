package controller

import (
	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/nvr-ai/go-posetrack/track"
)

// Sink consumes completed frames. Both methods are called on the scheduler
// loop and must not call back into the Scheduler.
type Sink interface {
	// Render draws or forwards a frame result. Its duration is reported as
	// the frame's rendering time.
	Render(result *pipeline.Result)
	// Observe receives the frame's timing once rendering is done.
	Observe(metrics track.FrameMetrics)
}

// Sinks fans a frame out to several sinks in order.
type Sinks []Sink

// Render calls Render on every sink.
func (s Sinks) Render(result *pipeline.Result) {
	for _, sink := range s {
		sink.Render(result)
	}
}

// Observe calls Observe on every sink.
func (s Sinks) Observe(metrics track.FrameMetrics) {
	for _, sink := range s {
		sink.Observe(metrics)
	}
}

type nopSink struct{}

func (nopSink) Render(*pipeline.Result) {}
func (nopSink) Observe(track.FrameMetrics) {}
