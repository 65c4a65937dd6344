// Package profiler - Rolling frame timing statistics with periodic reports.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-posetrack/pipeline"
	"github.com/nvr-ai/go-posetrack/track"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric names tracked for every observed frame.
const (
	MetricLatency    = "latency_ms"
	MetricProcessing = "processing_ms"
	MetricRendering  = "rendering_ms"
	MetricPersons    = "persons"
	// MetricFrameRate is sampled by the caller through RecordMetric.
	MetricFrameRate = "frame_rate"
)

// Options configures the profiler.
type Options struct {
	// ReportInterval specifies how often to emit status reports (default: 5s).
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval" koanf:"report_interval"`
	// MaxSamples is the rolling window size per metric (default: 300).
	MaxSamples int `json:"max_samples" yaml:"max_samples" koanf:"max_samples"`
}

// Summary describes one metric's rolling window.
type Summary struct {
	Name    string  `json:"name"`
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
}

// window is a bounded series of samples.
type window struct {
	values []float64
	total  int64
}

func (w *window) add(v float64, limit int) {
	w.values = append(w.values, v)
	if len(w.values) > limit {
		w.values = w.values[len(w.values)-limit:]
	}
	w.total++
}

// FrameProfiler keeps rolling statistics over FrameMetrics and periodically
// logs them with process memory figures. It satisfies the scheduler's Sink
// interface so it can sit beside a renderer.
type FrameProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	log            *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	started time.Time

	windows map[string]*window
	frames  int64
}

// New creates a FrameProfiler with the given options.
//
// Arguments:
//   - opts: Report interval and window size. Zero values use defaults.
//   - log: The logger reports are written to. Nil disables reports.
//
// Returns:
//   - *FrameProfiler: The profiler. Call Start to begin reporting.
func New(opts Options, log *zap.Logger) *FrameProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 5 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 300
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FrameProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		log:            log,
		ctx:            ctx,
		cancel:         cancel,
		started:        time.Now(),
		windows:        make(map[string]*window),
	}
}

// Start begins the periodic reporting loop. Calling it twice is a no-op.
func (p *FrameProfiler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.started = time.Now()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop ends reporting and waits for the loop to exit.
func (p *FrameProfiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Render is a no-op; the profiler only consumes metrics.
func (p *FrameProfiler) Render(*pipeline.Result) {}

// Observe records one frame's timing.
func (p *FrameProfiler) Observe(m track.FrameMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	p.record(MetricLatency, m.CaptureToRenderLatencyMs)
	p.record(MetricProcessing, m.ModelProcessingMs)
	p.record(MetricRendering, m.RenderingMs)
	p.record(MetricPersons, float64(m.PersonCount))
}

// RecordMetric records an arbitrary named sample, such as the scheduler
// frame rate.
func (p *FrameProfiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record(name, value)
}

func (p *FrameProfiler) record(name string, value float64) {
	w, ok := p.windows[name]
	if !ok {
		w = &window{values: make([]float64, 0, p.maxSamples)}
		p.windows[name] = w
	}
	w.add(value, p.maxSamples)
}

// Summary returns statistics for one metric. ok is false when the metric has
// no samples.
func (p *FrameProfiler) Summary(name string) (Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	w, ok := p.windows[name]
	if !ok || len(w.values) == 0 {
		return Summary{}, false
	}

	return summarize(name, w.values), true
}

// Summaries returns every metric's statistics sorted by name.
func (p *FrameProfiler) Summaries() []Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Summary, 0, len(p.windows))
	for name, w := range p.windows {
		if len(w.values) > 0 {
			out = append(out, summarize(name, w.values))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func summarize(name string, values []float64) Summary {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}

	return Summary{
		Name:    name,
		Samples: len(sorted),
		Mean:    mean,
		StdDev:  std,
		Min:     floats.Min(sorted),
		Max:     floats.Max(sorted),
		P50:     stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:     stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}

// Report logs the current statistics.
func (p *FrameProfiler) Report() {
	summaries := p.Summaries()

	p.mu.RLock()
	frames := p.frames
	uptime := time.Since(p.started)
	p.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fields := []zap.Field{
		zap.Duration("uptime", uptime.Truncate(time.Millisecond)),
		zap.Int64("frames", frames),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.String("heap_alloc", formatBytes(mem.HeapAlloc)),
		zap.String("sys", formatBytes(mem.Sys)),
	}
	for _, s := range summaries {
		fields = append(fields, zap.Object(s.Name, s))
	}

	p.log.Info("profiler report", fields...)
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
