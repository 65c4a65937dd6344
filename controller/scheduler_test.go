package controller

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/nvr-ai/go-posetrack/depth"
	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/nvr-ai/go-posetrack/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockWorker returns a canned result, optionally blocking until released.
type MockWorker struct {
	mu          sync.Mutex
	calls       int
	result      *pipeline.Result
	shouldError bool
	release     chan struct{}
}

func (m *MockWorker) Process(ctx context.Context, frame pipeline.Frame) (*pipeline.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.release != nil {
		<-m.release
	}
	if m.shouldError {
		return nil, errors.New("mock pipeline error")
	}

	r := *m.result
	r.FrameID = frame.ID
	return &r, nil
}

func (m *MockWorker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSink records everything it is given.
type MockSink struct {
	rendered []*pipeline.Result
	observed []track.FrameMetrics
}

func (m *MockSink) Render(r *pipeline.Result)     { m.rendered = append(m.rendered, r) }
func (m *MockSink) Observe(fm track.FrameMetrics) { m.observed = append(m.observed, fm) }

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func onePersonResult() *pipeline.Result {
	pos := depth.WorldPosition{X: 1, Y: 2, Z: -3, Confidence: depth.High}
	return &pipeline.Result{
		Persons: []pipeline.Person{
			{Index: 0, Position: &pos},
			{Index: 1},
		},
	}
}

// newTestScheduler returns a scheduler whose dispatch only queues the work so
// tests decide when the worker runs.
func newTestScheduler(t *testing.T, frameSkip int, worker Worker, sink Sink) (*Scheduler, *[]func()) {
	t.Helper()

	cfg := pipeline.DefaultConfig()
	cfg.FrameSkip = frameSkip

	s, err := NewScheduler(cfg, worker, nil, sink, nil)
	require.NoError(t, err)

	pending := &[]func(){}
	s.dispatch = func(fn func()) { *pending = append(*pending, fn) }

	return s, pending
}

// finish runs the oldest dispatched work and completes it on the loop.
func finish(s *Scheduler, pending *[]func()) {
	fn := (*pending)[0]
	*pending = (*pending)[1:]
	fn()
	s.complete(<-s.done)
}

func frameAt(seq uint64, at time.Time) pipeline.Frame {
	return pipeline.NewFrame(seq, image.NewRGBA(image.Rect(0, 0, 8, 8)), at)
}

func TestScheduler_FrameSkip(t *testing.T) {
	s, pending := newTestScheduler(t, 2, &MockWorker{result: onePersonResult()}, nil)
	t0 := time.Now()

	var got []Admission
	for i := 1; i <= 8; i++ {
		got = append(got, s.OnCapture(frameAt(uint64(i), t0.Add(time.Duration(i)*time.Millisecond))))
		if len(*pending) > 0 {
			finish(s, pending)
		}
	}

	assert.Equal(t, []Admission{
		DroppedSkip, Admitted, DroppedSkip, Admitted,
		DroppedSkip, Admitted, DroppedSkip, Admitted,
	}, got)
	assert.Equal(t, uint64(4), s.Stats().Admitted)
	assert.Equal(t, uint64(4), s.Stats().Completed)
}

func TestScheduler_DropsWhileBusy(t *testing.T) {
	s, pending := newTestScheduler(t, 1, &MockWorker{result: onePersonResult()}, nil)
	t0 := time.Now()

	assert.Equal(t, Admitted, s.OnCapture(frameAt(1, t0)))
	assert.Equal(t, DroppedBusy, s.OnCapture(frameAt(2, t0)))
	assert.Equal(t, DroppedBusy, s.OnCapture(frameAt(3, t0)))
	assert.Equal(t, uint64(3), s.counter, "counter advances for dropped frames")
	require.Len(t, *pending, 1, "never more than one frame in flight")

	finish(s, pending)
	assert.Equal(t, Admitted, s.OnCapture(frameAt(4, t0)))

	stats := s.Stats()
	assert.Equal(t, uint64(4), stats.Captured)
	assert.Equal(t, uint64(2), stats.DroppedBusy)
}

func TestScheduler_CompleteMetrics(t *testing.T) {
	sink := &MockSink{}
	s, pending := newTestScheduler(t, 1, &MockWorker{result: onePersonResult()}, sink)

	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := &fakeClock{t: t0, step: 10 * time.Millisecond}
	s.now = clock.Now

	frame := frameAt(1, t0)
	require.Equal(t, Admitted, s.OnCapture(frame))
	finish(s, pending)

	require.Len(t, sink.rendered, 1)
	assert.Equal(t, frame.ID, sink.rendered[0].FrameID)

	require.Len(t, sink.observed, 1)
	m := sink.observed[0]
	// started +10ms, ended +20ms, render start +30ms, render end +40ms.
	assert.InDelta(t, 40, m.CaptureToRenderLatencyMs, 1e-9)
	assert.InDelta(t, 10, m.ModelProcessingMs, 1e-9)
	assert.InDelta(t, 10, m.RenderingMs, 1e-9)
	assert.Equal(t, 2, m.PersonCount)
	assert.Equal(t, t0.Add(40*time.Millisecond), m.Timestamp)

	records := s.State().Positions()
	require.Len(t, records, 1, "only reprojected persons are recorded")
	assert.Equal(t, 1, records[0].PersonIndex)
	assert.Equal(t, t0, records[0].Timestamp)
	assert.Equal(t, s.State().Metrics(), sink.observed)

	assert.Zero(t, s.captures.len())
	assert.Zero(t, s.starts.len())
	assert.Zero(t, s.ends.len())
}

func TestScheduler_FailedFrameReleasesAdmission(t *testing.T) {
	sink := &MockSink{}
	s, pending := newTestScheduler(t, 1, &MockWorker{shouldError: true}, sink)

	require.Equal(t, Admitted, s.OnCapture(frameAt(1, time.Now())))
	finish(s, pending)

	assert.Empty(t, sink.rendered)
	assert.Empty(t, sink.observed)
	assert.Empty(t, s.State().Metrics())
	assert.Equal(t, uint64(1), s.Stats().Failed)
	assert.Zero(t, s.captures.len())

	assert.Equal(t, Admitted, s.OnCapture(frameAt(2, time.Now())))
}

func TestScheduler_FrameRate(t *testing.T) {
	s, pending := newTestScheduler(t, 1, &MockWorker{result: onePersonResult()}, nil)
	t0 := time.Now()

	s.OnCapture(frameAt(1, t0))
	assert.Zero(t, s.FrameRate())
	finish(s, pending)

	s.OnCapture(frameAt(2, t0.Add(50*time.Millisecond)))
	assert.InDelta(t, 20, s.FrameRate(), 1e-9)
	finish(s, pending)
}

func TestScheduler_TrackingMarkers(t *testing.T) {
	s, pending := newTestScheduler(t, 1, &MockWorker{result: onePersonResult()}, nil)
	s.State().StartTracking()

	s.OnCapture(frameAt(1, time.Now()))
	finish(s, pending)
	s.OnCapture(frameAt(2, time.Now()))
	finish(s, pending)

	assert.Len(t, s.State().Markers(), 1, "markers are cleared per frame without persistence")
	assert.Len(t, s.State().Positions(), 2)

	s.State().SetPersist(true)
	s.OnCapture(frameAt(3, time.Now()))
	finish(s, pending)
	s.OnCapture(frameAt(4, time.Now()))
	finish(s, pending)
	assert.Len(t, s.State().Markers(), 3, "persisted markers accumulate")
}

func TestScheduler_Run(t *testing.T) {
	worker := &MockWorker{result: onePersonResult(), release: make(chan struct{})}
	sink := &MockSink{}

	cfg := pipeline.DefaultConfig()
	cfg.FrameSkip = 1
	s, err := NewScheduler(cfg, worker, nil, sink, nil)
	require.NoError(t, err)

	frames := make(chan pipeline.Frame)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background(), frames) }()

	for i := 1; i <= 3; i++ {
		frames <- frameAt(uint64(i), time.Now())
	}
	close(worker.release)
	close(frames)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	stats := s.Stats()
	assert.Equal(t, uint64(3), stats.Captured)
	assert.Equal(t, uint64(1), stats.Admitted)
	assert.Equal(t, uint64(2), stats.DroppedBusy)
	assert.Equal(t, uint64(1), stats.Completed)
	assert.Equal(t, 1, worker.Calls())
	assert.Len(t, sink.observed, 1)
}

func TestScheduler_RunCancelled(t *testing.T) {
	s, err := NewScheduler(pipeline.DefaultConfig(), &MockWorker{result: onePersonResult()}, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Run(ctx, make(chan pipeline.Frame))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_RunCancelledCompletesInFlight(t *testing.T) {
	worker := &MockWorker{result: onePersonResult(), release: make(chan struct{})}
	sink := &MockSink{}

	cfg := pipeline.DefaultConfig()
	cfg.FrameSkip = 1
	s, err := NewScheduler(cfg, worker, nil, sink, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan pipeline.Frame)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, frames) }()

	frames <- frameAt(1, time.Now())
	cancel()

	select {
	case <-errCh:
		t.Fatal("scheduler returned before the in-flight frame completed")
	case <-time.After(50 * time.Millisecond):
	}
	close(worker.release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Equal(t, uint64(1), s.Stats().Completed)
	assert.Len(t, sink.observed, 1)
	assert.Len(t, s.State().Positions(), 1)
}

func TestNewScheduler_Validation(t *testing.T) {
	_, err := NewScheduler(pipeline.DefaultConfig(), nil, nil, nil, nil)
	assert.Error(t, err)

	cfg := pipeline.DefaultConfig()
	cfg.FrameSkip = 0
	_, err = NewScheduler(cfg, &MockWorker{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestSinks(t *testing.T) {
	a, b := &MockSink{}, &MockSink{}
	sinks := Sinks{a, b}

	sinks.Render(&pipeline.Result{})
	sinks.Observe(track.FrameMetrics{PersonCount: 3})

	assert.Len(t, a.rendered, 1)
	assert.Len(t, b.observed, 1)
	assert.Equal(t, 3, b.observed[0].PersonCount)
}
