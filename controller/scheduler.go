// Package controller - Single-flight frame scheduling for the pose pipeline.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/nvr-ai/go-posetrack/track"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Worker runs the heavy per-frame stages. *pipeline.Processor implements it.
type Worker interface {
	Process(ctx context.Context, frame pipeline.Frame) (*pipeline.Result, error)
}

// Admission is the scheduler's decision for one captured frame.
type Admission int

const (
	// Admitted frames are dispatched to the worker.
	Admitted Admission = iota
	// DroppedSkip frames fall between frame-skip intervals.
	DroppedSkip
	// DroppedBusy frames arrived while another frame was in flight.
	DroppedBusy
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case DroppedSkip:
		return "dropped_skip"
	case DroppedBusy:
		return "dropped_busy"
	default:
		return "unknown"
	}
}

// Stats counts scheduler outcomes since construction.
type Stats struct {
	Captured    uint64  `json:"captured"`
	Admitted    uint64  `json:"admitted"`
	DroppedSkip uint64  `json:"dropped_skip"`
	DroppedBusy uint64  `json:"dropped_busy"`
	Completed   uint64  `json:"completed"`
	Failed      uint64  `json:"failed"`
	FrameRate   float64 `json:"frame_rate"`
}

// completion is posted by the worker back to the loop.
type completion struct {
	frame   pipeline.Frame
	result  *pipeline.Result
	err     error
	started time.Time
	ended   time.Time
}

// Scheduler admits at most one frame into the pipeline at a time.
//
// Every FrameSkip-th capture is a candidate for admission; candidates that
// arrive while a frame is in flight are dropped, never queued. Completed
// frames are appended to the track state and handed to the sink on the loop
// goroutine, which also derives the frame's latency metrics.
type Scheduler struct {
	frameSkip uint64
	worker    Worker
	state     *track.State
	sink      Sink
	log       *zap.Logger

	now      func() time.Time
	dispatch func(func())

	// Owned by the loop goroutine.
	workCtx   context.Context
	counter   uint64
	admitting bool
	captures  stampQueue
	starts    stampQueue
	ends      stampQueue
	last      time.Time
	done      chan completion

	mu    sync.RWMutex
	stats Stats
}

// NewScheduler builds a Scheduler.
//
// Arguments:
//   - cfg: Supplies FrameSkip.
//   - worker: Runs the pipeline for admitted frames.
//   - state: Receives positions and metrics. Nil creates a fresh State.
//   - sink: Receives rendered frames and metrics. Nil discards them.
//   - log: The logger. Nil disables logging.
//
// Returns:
//   - *Scheduler: The scheduler, ready for Run.
//   - error: An error if cfg is invalid or worker is nil.
func NewScheduler(cfg pipeline.Config, worker Worker, state *track.State, sink Sink, log *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline config")
	}
	if worker == nil {
		return nil, errors.New("worker is required")
	}
	if state == nil {
		state = track.NewState()
	}
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Scheduler{
		frameSkip: uint64(cfg.FrameSkip),
		worker:    worker,
		state:     state,
		sink:      sink,
		log:       log,
		now:       time.Now,
		dispatch:  func(fn func()) { go fn() },
		workCtx:   context.Background(),
		admitting: true,
		done:      make(chan completion, 1),
	}, nil
}

// State returns the track state the scheduler appends to.
func (s *Scheduler) State() *track.State {
	return s.state
}

// Run receives frames in order until ctx is done or frames is closed.
//
// An in-flight frame is never cancelled: it keeps running with a context that
// ignores ctx's cancellation. Before returning, the loop waits for the
// in-flight frame and completes it.
func (s *Scheduler) Run(ctx context.Context, frames <-chan pipeline.Frame) error {
	s.workCtx = context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()

		case c := <-s.done:
			s.complete(c)

		case f, ok := <-frames:
			if !ok {
				s.drain()
				return nil
			}
			s.OnCapture(f)
		}
	}
}

// drain completes the in-flight frame, if any.
func (s *Scheduler) drain() {
	if !s.admitting {
		s.complete(<-s.done)
	}
}

// OnCapture applies the admission policy to one captured frame. It must be
// called from the loop goroutine.
func (s *Scheduler) OnCapture(frame pipeline.Frame) Admission {
	s.counter++

	decision := Admitted
	switch {
	case s.counter%s.frameSkip != 0:
		decision = DroppedSkip
	case !s.admitting:
		decision = DroppedBusy
	}

	s.count(decision)
	if decision != Admitted {
		s.log.Debug("frame dropped",
			zap.Uint64("counter", s.counter),
			zap.Stringer("reason", decision),
		)
		return decision
	}

	s.admitting = false

	capturedAt := frame.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = s.now()
		frame.CapturedAt = capturedAt
	}
	s.captures.push(stamp{frame: frame.ID, at: capturedAt})
	s.updateFrameRate(capturedAt)

	s.dispatch(func() { s.process(frame) })

	return Admitted
}

// process runs on the worker goroutine.
func (s *Scheduler) process(frame pipeline.Frame) {
	started := s.now()
	result, err := s.worker.Process(s.workCtx, frame)
	ended := s.now()

	s.done <- completion{frame: frame, result: result, err: err, started: started, ended: ended}
}

// complete runs on the loop goroutine once the worker has finished.
func (s *Scheduler) complete(c completion) {
	defer func() { s.admitting = true }()

	s.starts.push(stamp{frame: c.frame.ID, at: c.started})
	s.ends.push(stamp{frame: c.frame.ID, at: c.ended})

	capture, _ := s.captures.pop()
	start, _ := s.starts.pop()
	end, _ := s.ends.pop()

	heads := []struct {
		queue string
		stamp stamp
	}{{"capture", capture}, {"start", start}, {"end", end}}
	for _, h := range heads {
		if h.stamp.frame != c.frame.ID {
			s.log.Warn("timestamp queue out of order",
				zap.String("queue", h.queue),
				zap.String("frame_id", c.frame.ID.String()),
				zap.String("head_id", h.stamp.frame.String()),
			)
		}
	}

	if c.err != nil || c.result == nil {
		s.mu.Lock()
		s.stats.Failed++
		s.mu.Unlock()

		s.log.Warn("frame failed",
			zap.String("frame_id", c.frame.ID.String()),
			zap.Uint64("seq", c.frame.Seq),
			zap.Error(c.err),
		)
		return
	}

	s.state.BeginFrame()
	for _, p := range c.result.Positions() {
		s.state.RecordPosition(p.Index+1, capture.at, *p.Position)
	}

	renderStart := s.now()
	s.sink.Render(c.result)
	renderEnd := s.now()

	metrics := track.FrameMetrics{
		Timestamp:                renderEnd,
		CaptureToRenderLatencyMs: track.Milliseconds(renderEnd.Sub(capture.at)),
		ModelProcessingMs:        track.Milliseconds(end.at.Sub(start.at)),
		RenderingMs:              track.Milliseconds(renderEnd.Sub(renderStart)),
		PersonCount:              len(c.result.Persons),
	}
	s.state.RecordMetrics(metrics)
	s.sink.Observe(metrics)

	s.mu.Lock()
	s.stats.Completed++
	s.mu.Unlock()
}

func (s *Scheduler) count(a Admission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Captured++
	switch a {
	case Admitted:
		s.stats.Admitted++
	case DroppedSkip:
		s.stats.DroppedSkip++
	case DroppedBusy:
		s.stats.DroppedBusy++
	}
}

// updateFrameRate derives the admitted frame rate from consecutive capture
// timestamps.
func (s *Scheduler) updateFrameRate(at time.Time) {
	prev := s.last
	s.last = at
	if prev.IsZero() {
		return
	}

	delta := at.Sub(prev)
	if delta <= 0 {
		return
	}

	s.mu.Lock()
	s.stats.FrameRate = 1 / delta.Seconds()
	s.mu.Unlock()
}

// FrameRate returns the rate of admitted frames per second, measured between
// the last two admissions.
func (s *Scheduler) FrameRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stats.FrameRate
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stats
}
