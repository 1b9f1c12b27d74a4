// Package tuner is the public auto-tuning API. A Tuner owns one device, a
// set of kernels with their tunable parameters, and the arguments shared by
// every kernel. Tune enumerates the constraint-satisfying configurations,
// measures each candidate the search strategy asks for, verifies outputs
// against an optional reference kernel, and reports the fastest verified
// configuration.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/harness"
	"github.com/zuqini/CLTune/internal/kernel"
	"github.com/zuqini/CLTune/internal/logger"
	"github.com/zuqini/CLTune/internal/report"
	"github.com/zuqini/CLTune/internal/searcher"
	"github.com/zuqini/CLTune/internal/verify"
)

// ErrNoValidConfiguration is returned by Tune when a kernel's constraints
// reject every candidate configuration.
var ErrNoValidConfiguration = errors.New("no configuration satisfies the constraints")

// TimingStatistic selects how repeated executions reduce to one time.
type TimingStatistic = harness.TimingStat

const (
	TimingMin    = harness.TimingMin
	TimingMean   = harness.TimingMean
	TimingMedian = harness.TimingMedian
)

type searchMethod int

const (
	methodFull searchMethod = iota
	methodRandom
	methodAnnealing
	methodPSO
)

// Tuner drives the tuning of one or more kernels on a single device.
type Tuner struct {
	dev device.Device
	log logger.Logger

	kernels   []*kernel.Spec
	reference *kernel.Spec
	args      []kernel.Argument

	method    searchMethod
	fraction  float64
	maxTemp   float64
	swarmSize int
	inertia   float64
	cognitive float64
	social    float64

	runs      int
	stat      TimingStatistic
	tolerance float64
	seed      int64

	progress atomic.Uint64
	reports  []*report.Reporter
}

// Option configures a Tuner at construction.
type Option func(*Tuner)

// WithLogger sets the tuner's logger.
func WithLogger(log logger.Logger) Option {
	return func(t *Tuner) { t.log = log }
}

// New creates a Tuner bound to the given device. The default strategy is an
// exhaustive search with one run per configuration.
func New(dev device.Device, opts ...Option) *Tuner {
	t := &Tuner{
		dev:       dev,
		log:       logger.Default(),
		method:    methodFull,
		runs:      1,
		stat:      TimingMin,
		tolerance: verify.DefaultTolerance,
		seed:      time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddKernel registers a kernel to tune and returns its id for subsequent
// parameter and constraint calls.
func (t *Tuner) AddKernel(source, entry string, global, local []int) (int, error) {
	spec, err := kernel.NewSpec(source, entry, kernel.Dims(global), kernel.Dims(local))
	if err != nil {
		return 0, err
	}
	t.kernels = append(t.kernels, spec)
	return len(t.kernels) - 1, nil
}

// SetReference registers the golden kernel. It runs once before tuning with
// the same arguments; every trial's outputs are verified against its outputs.
func (t *Tuner) SetReference(source, entry string, global, local []int) error {
	spec, err := kernel.NewSpec(source, entry, kernel.Dims(global), kernel.Dims(local))
	if err != nil {
		return err
	}
	t.reference = spec
	return nil
}

func (t *Tuner) spec(id int) (*kernel.Spec, error) {
	if id < 0 || id >= len(t.kernels) {
		return nil, fmt.Errorf("kernel id %d out of range", id)
	}
	return t.kernels[id], nil
}

// AddParameter declares a tunable parameter with its ordered candidate
// values.
func (t *Tuner) AddParameter(id int, name string, values []int) error {
	spec, err := t.spec(id)
	if err != nil {
		return err
	}
	return spec.AddParameter(name, values)
}

// AddConstraint requires the target parameter to be a multiple of the
// chain's folded operand product in every configuration.
func (t *Tuner) AddConstraint(id int, target string, chain *Chain) error {
	spec, err := t.spec(id)
	if err != nil {
		return err
	}
	if chain == nil {
		return errors.New("constraint chain is nil")
	}
	return spec.AddConstraint(chain.constraint(target))
}

func (t *Tuner) addModifier(id int, target kernel.SizeTarget, op kernel.SizeOp, names []string) error {
	spec, err := t.spec(id)
	if err != nil {
		return err
	}
	return spec.AddModifier(kernel.ThreadSizeModifier{Target: target, Op: op, Names: names})
}

// MulGlobalSize multiplies the global size per dimension by the named
// parameters' values. Modifiers apply in registration order.
func (t *Tuner) MulGlobalSize(id int, names ...string) error {
	return t.addModifier(id, kernel.GlobalSize, kernel.SizeMul, names)
}

// DivGlobalSize divides the global size per dimension by the named
// parameters' values.
func (t *Tuner) DivGlobalSize(id int, names ...string) error {
	return t.addModifier(id, kernel.GlobalSize, kernel.SizeDiv, names)
}

// MulLocalSize multiplies the local size per dimension by the named
// parameters' values.
func (t *Tuner) MulLocalSize(id int, names ...string) error {
	return t.addModifier(id, kernel.LocalSize, kernel.SizeMul, names)
}

// DivLocalSize divides the local size per dimension by the named
// parameters' values.
func (t *Tuner) DivLocalSize(id int, names ...string) error {
	return t.addModifier(id, kernel.LocalSize, kernel.SizeDiv, names)
}

// AddArgumentScalar appends a scalar argument shared by every kernel and the
// reference.
func (t *Tuner) AddArgumentScalar(v any) error {
	s, err := kernel.NewScalar(v)
	if err != nil {
		return err
	}
	t.args = append(t.args, kernel.Argument{Index: len(t.args), Scalar: &s})
	return nil
}

func (t *Tuner) addBuffer(data any, dir kernel.Direction) error {
	buf, err := kernel.NewBuffer(data)
	if err != nil {
		return err
	}
	t.args = append(t.args, kernel.Argument{Index: len(t.args), Direction: dir, Buffer: buf})
	return nil
}

// AddArgumentInput appends a read-only buffer argument.
func (t *Tuner) AddArgumentInput(data any) error {
	return t.addBuffer(data, kernel.DirInput)
}

// AddArgumentOutput appends an output buffer argument. Each trial writes
// into a fresh copy; the registered slice is never modified.
func (t *Tuner) AddArgumentOutput(data any) error {
	return t.addBuffer(data, kernel.DirOutput)
}

// AddArgumentInputOutput appends a buffer the kernel both reads and writes.
// Trials see a fresh copy of the registered contents.
func (t *Tuner) AddArgumentInputOutput(data any) error {
	return t.addBuffer(data, kernel.DirInputOutput)
}

// UseFullSearch selects exhaustive enumeration of the valid set.
func (t *Tuner) UseFullSearch() {
	t.method = methodFull
}

// UseRandomSearch selects uniform sampling without replacement of the given
// fraction of the valid set.
func (t *Tuner) UseRandomSearch(fraction float64) {
	t.method = methodRandom
	t.fraction = fraction
}

// UseAnnealing selects simulated annealing over round(fraction*N) trials
// starting at the given temperature.
func (t *Tuner) UseAnnealing(fraction, maxTemperature float64) {
	t.method = methodAnnealing
	t.fraction = fraction
	t.maxTemp = maxTemperature
}

// UsePSO selects particle-swarm search over round(fraction*N) trials.
func (t *Tuner) UsePSO(fraction float64, swarmSize int, inertia, cognitive, social float64) {
	t.method = methodPSO
	t.fraction = fraction
	t.swarmSize = swarmSize
	t.inertia = inertia
	t.cognitive = cognitive
	t.social = social
}

// SetNumRuns sets how many times each configuration executes; the configured
// statistic reduces the repeats to one time.
func (t *Tuner) SetNumRuns(n int) {
	if n > 0 {
		t.runs = n
	}
}

// SetTimingStatistic selects the reduction over repeated executions.
func (t *Tuner) SetTimingStatistic(stat TimingStatistic) {
	t.stat = stat
}

// SetTolerance sets the absolute per-element verification tolerance.
func (t *Tuner) SetTolerance(tol float64) {
	t.tolerance = tol
}

// SetSeed fixes the random seed so stochastic strategies replay.
func (t *Tuner) SetSeed(seed int64) {
	t.seed = seed
}

// Progress reports the fraction of tuning completed, in [0,1]. Safe to call
// concurrently with Tune.
func (t *Tuner) Progress() float64 {
	return math.Float64frombits(t.progress.Load())
}

func (t *Tuner) setProgress(p float64) {
	t.progress.Store(math.Float64bits(p))
}

// Tune runs the configured search for every registered kernel. Per-trial
// failures are recorded and skipped; Tune itself fails only when a kernel has
// an empty valid set, the reference kernel fails, or ctx is canceled.
func (t *Tuner) Tune(ctx context.Context) error {
	if len(t.kernels) == 0 {
		return errors.New("no kernels registered")
	}
	t.reports = t.reports[:0]
	t.setProgress(0)

	runner := harness.New(t.dev,
		harness.WithRuns(t.runs),
		harness.WithTimingStat(t.stat),
		harness.WithLogger(t.log),
	)

	v := verify.New(t.tolerance)
	if t.reference != nil {
		ref := harness.New(t.dev, harness.WithLogger(t.log))
		res := ref.Run(t.reference, kernel.Configuration{}, t.args)
		if !res.OK() {
			return fmt.Errorf("reference kernel %s: %s (%s)", t.reference.Entry, res.Status, res.Detail)
		}
		v.Capture(res.Outputs)
		t.log.Info("reference captured", "kernel", t.reference.Entry, "time", res.Time)
	}

	for ki, spec := range t.kernels {
		configs := kernel.BuildConfigurations(spec)
		if len(configs) == 0 {
			return fmt.Errorf("kernel %s: %w", spec.Entry, ErrNoValidConfiguration)
		}
		t.log.Info("tuning kernel", "kernel", spec.Entry, "configurations", len(configs))

		s := t.newSearcher(configs, spec.Parameters)
		rep := report.New(spec.Entry, spec.Parameters, t.dev.Name())

		for !s.Done() {
			if err := ctx.Err(); err != nil {
				return err
			}
			cfg, err := s.Next()
			if errors.Is(err, searcher.ErrExhausted) {
				break
			}
			if err != nil {
				return err
			}

			res := runner.Run(spec, cfg, t.args)
			if res.OK() && v.Active() {
				if verr := v.Verify(res.Outputs); verr != nil {
					res.Status = harness.StatusVerificationFailed
					res.Detail = verr.Error()
				}
			}
			if res.OK() {
				s.PushExecutionTime(res.Time)
				t.log.Debug("trial", "kernel", spec.Entry, "config", cfg.Format(spec.Parameters), "time", res.Time)
			} else {
				s.PushExecutionTime(searcher.FailurePenalty)
				t.log.Debug("trial failed", "kernel", spec.Entry, "config", cfg.Format(spec.Parameters), "status", res.Status.String())
			}
			rep.Add(res)

			p := s.Progress()
			if p > 1 {
				p = 1
			}
			t.setProgress((float64(ki) + p) / float64(len(t.kernels)))
		}

		t.reports = append(t.reports, rep)
		if best, ok := rep.Best(); ok {
			t.log.Info("kernel tuned", "kernel", spec.Entry,
				"best", best.Configuration.Format(spec.Parameters), "time", best.Time)
		} else {
			t.log.Warn("no configuration verified", "kernel", spec.Entry)
		}
	}
	t.setProgress(1)
	return nil
}

// Reports returns the per-kernel result reporters from the last Tune call.
func (t *Tuner) Reports() []*report.Reporter {
	return t.reports
}

// PrintToScreen writes every kernel's result table to stdout and returns the
// best verified time in milliseconds across all kernels, or 0 when nothing
// verified.
func (t *Tuner) PrintToScreen() float64 {
	best := 0.0
	for _, rep := range t.reports {
		rep.Fprint(os.Stdout)
		if ms := rep.BestTimeMS(); ms > 0 && (best == 0 || ms < best) {
			best = ms
		}
	}
	return best
}

// PrintToFile writes all results as CSV to the named file. Multiple kernels
// are separated by a blank line, each with its own header row.
func (t *Tuner) PrintToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	for i, rep := range t.reports {
		if i > 0 {
			if _, err := fmt.Fprintln(f); err != nil {
				return err
			}
		}
		if err := rep.WriteCSV(f); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// PrintJSON writes all results as JSON to the named file, one document per
// kernel on consecutive lines.
func (t *Tuner) PrintJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	for _, rep := range t.reports {
		if err := rep.WriteJSON(f); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func (t *Tuner) newSearcher(configs []kernel.Configuration, params []kernel.Parameter) searcher.Searcher {
	switch t.method {
	case methodRandom:
		return searcher.NewRandomSearch(configs, t.fraction, t.seed)
	case methodAnnealing:
		return searcher.NewAnnealing(configs, params, t.fraction, t.maxTemp, t.seed)
	case methodPSO:
		return searcher.NewParticleSwarm(configs, t.fraction, t.swarmSize, t.inertia, t.cognitive, t.social, t.seed)
	default:
		return searcher.NewFullSearch(configs)
	}
}
