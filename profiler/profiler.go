// Package profiler tracks per-stage timings and detection counters of the
// tracking loop and reports them periodically through logrus.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// Stage names recorded by the tracking loop.
const (
	StageRead   = "read"
	StageCycle  = "cycle"
	StageMasks  = "masks"
	StageFusion = "fusion"
)

// Stats summarises one stage or metric over the retained window.
type Stats struct {
	Count  int64
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// series keeps a bounded window of samples plus lifetime counters.
type series struct {
	values []float64
	count  int64
}

func (s *series) add(v float64, window int) {
	s.values = append(s.values, v)
	if len(s.values) > window {
		s.values = s.values[1:]
	}
	s.count++
}

func (s *series) stats() Stats {
	out := Stats{Count: s.count}
	if len(s.values) == 0 {
		return out
	}
	out.Mean, out.StdDev = stat.MeanStdDev(s.values, nil)
	if len(s.values) == 1 {
		out.StdDev = 0
	}
	out.Min, out.Max = s.values[0], s.values[0]
	for _, v := range s.values[1:] {
		if v < out.Min {
			out.Min = v
		}
		if v > out.Max {
			out.Max = v
		}
	}
	return out
}

// CycleProfiler collects stage timings (in milliseconds) and custom metrics.
// It is safe for concurrent use.
type CycleProfiler struct {
	reportInterval time.Duration
	window         int
	log            logrus.FieldLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	running    bool
	startTime  time.Time
	operations map[string]*series
	metrics    map[string]*series
}

// Options configures a CycleProfiler.
type Options struct {
	// ReportInterval specifies how often to emit status reports (default: 10s).
	ReportInterval time.Duration
	// Window is the number of samples kept per stage (default: 600).
	Window int
	// Logger receives the reports; nil uses the standard logger.
	Logger logrus.FieldLogger
}

// New creates a profiler. Call Start to begin periodic reporting.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured CycleProfiler instance
func New(opts Options) *CycleProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.Window <= 0 {
		opts.Window = 600
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &CycleProfiler{
		reportInterval: opts.ReportInterval,
		window:         opts.Window,
		log:            opts.Logger,
		startTime:      time.Now(),
		operations:     make(map[string]*series),
		metrics:        make(map[string]*series),
	}
}

// Start begins periodic reporting. Calling it twice is a no-op; after Stop
// it starts a fresh reporter.
func (p *CycleProfiler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.startTime = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop ends reporting, waits for the reporter and emits a final report.
func (p *CycleProfiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.Report()
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The stage being timed
//
// Returns:
// - A function to call when the operation completes
func (p *CycleProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records a completed operation.
func (p *CycleProfiler) RecordDuration(name string, d time.Duration) {
	p.record(p.operations, name, float64(d)/float64(time.Millisecond))
}

// RecordMetric records a custom metric value, e.g. 1/0 per cycle for the
// detection rate.
func (p *CycleProfiler) RecordMetric(name string, value float64) {
	p.record(p.metrics, name, value)
}

func (p *CycleProfiler) record(into map[string]*series, name string, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := into[name]
	if !ok {
		s = &series{values: make([]float64, 0, p.window)}
		into[name] = s
	}
	s.add(v, p.window)
}

// OperationStats returns the timing statistics of every stage, in ms.
func (p *CycleProfiler) OperationStats() map[string]Stats {
	return p.snapshot(p.operations)
}

// MetricStats returns the statistics of every custom metric.
func (p *CycleProfiler) MetricStats() map[string]Stats {
	return p.snapshot(p.metrics)
}

func (p *CycleProfiler) snapshot(from map[string]*series) map[string]Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Stats, len(from))
	for name, s := range from {
		out[name] = s.stats()
	}
	return out
}

// Report logs one line per stage and metric.
func (p *CycleProfiler) Report() {
	ops := p.OperationStats()
	metrics := p.MetricStats()

	p.mu.RLock()
	uptime := time.Since(p.startTime)
	p.mu.RUnlock()

	p.log.WithFields(logrus.Fields{
		"uptime":     uptime.Truncate(time.Millisecond).String(),
		"goroutines": runtime.NumGoroutine(),
	}).Info("profiler report")

	for _, name := range sortedKeys(ops) {
		s := ops[name]
		p.log.WithFields(logrus.Fields{
			"stage":   name,
			"count":   s.Count,
			"mean_ms": s.Mean,
			"std_ms":  s.StdDev,
			"min_ms":  s.Min,
			"max_ms":  s.Max,
		}).Info("stage timing")
	}
	for _, name := range sortedKeys(metrics) {
		s := metrics[name]
		p.log.WithFields(logrus.Fields{
			"metric": name,
			"count":  s.Count,
			"mean":   s.Mean,
			"std":    s.StdDev,
		}).Info("metric")
	}
}

func sortedKeys(m map[string]Stats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
