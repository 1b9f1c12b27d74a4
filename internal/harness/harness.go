package harness

import (
	"sort"
	"time"

	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/kernel"
	"github.com/zuqini/CLTune/internal/logger"
)

// TimingStat selects the representative statistic over a trial's repeated
// executions.
type TimingStat int

const (
	TimingMin TimingStat = iota
	TimingMean
	TimingMedian
)

func (s TimingStat) String() string {
	switch s {
	case TimingMin:
		return "min"
	case TimingMean:
		return "mean"
	case TimingMedian:
		return "median"
	default:
		return "unknown"
	}
}

// Runner executes kernel variants on one device. Trials are strictly
// sequential: every launch is synchronized before its timer stops, so
// measurements never overlap.
type Runner struct {
	dev  device.Device
	runs int
	stat TimingStat
	log  logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRuns sets the number of repeated executions per trial.
func WithRuns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.runs = n
		}
	}
}

// WithTimingStat sets the representative statistic over repeats.
func WithTimingStat(stat TimingStat) Option {
	return func(r *Runner) { r.stat = stat }
}

// WithLogger sets the trial logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// New creates a Runner bound to a device.
func New(dev device.Device, opts ...Option) *Runner {
	r := &Runner{
		dev:  dev,
		runs: 1,
		stat: TimingMin,
		log:  logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run compiles and executes the kernel variant for one configuration. The
// timer covers enqueue through device synchronization only; compilation and
// geometry resolution are excluded. Output buffers are rebound to fresh
// copies for the trial, leaving the registered buffers untouched.
func (r *Runner) Run(spec *kernel.Spec, cfg kernel.Configuration, args []kernel.Argument) Result {
	global, local, err := spec.ResolveGeometry(cfg)
	if err != nil {
		r.log.Debug("trial rejected", "kernel", spec.Entry, "reason", err)
		return Result{Configuration: cfg, Status: StatusCompileFailed, Detail: err.Error()}
	}

	prog, err := r.dev.Compile(spec.Source, spec.Entry, cfg)
	if err != nil {
		r.log.Debug("compile failed", "kernel", spec.Entry, "error", err)
		return Result{Configuration: cfg, Status: StatusCompileFailed, Detail: err.Error()}
	}
	defer prog.Release()

	trialArgs := kernel.CloneForTrial(args)
	times := make([]time.Duration, 0, r.runs)
	for i := 0; i < r.runs; i++ {
		start := time.Now()
		if err := prog.Enqueue(global, local, trialArgs); err != nil {
			return Result{Configuration: cfg, Status: StatusRuntimeFailed, Detail: err.Error()}
		}
		if err := r.dev.Finish(); err != nil {
			return Result{Configuration: cfg, Status: StatusRuntimeFailed, Detail: err.Error()}
		}
		times = append(times, time.Since(start))
	}

	outputs := make([]kernel.Argument, 0, 1)
	for _, a := range trialArgs {
		if a.IsOutput() {
			outputs = append(outputs, a)
		}
	}
	return Result{
		Configuration: cfg,
		Time:          Representative(times, r.stat),
		Status:        StatusSuccess,
		Outputs:       outputs,
	}
}

// Representative reduces repeat times to the configured statistic.
func Representative(times []time.Duration, stat TimingStat) time.Duration {
	if len(times) == 0 {
		return 0
	}
	switch stat {
	case TimingMean:
		var sum time.Duration
		for _, t := range times {
			sum += t
		}
		return sum / time.Duration(len(times))
	case TimingMedian:
		sorted := append([]time.Duration(nil), times...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}
		return sorted[mid]
	default:
		min := times[0]
		for _, t := range times[1:] {
			if t < min {
				min = t
			}
		}
		return min
	}
}
