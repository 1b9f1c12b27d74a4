// Package config loads tuning jobs from YAML. A job file names the kernel,
// its tunable parameters, constraints and thread-size modifiers, the shared
// arguments, and the search strategy; Build turns a validated job into a
// ready-to-run Tuner.
package config

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/logger"
	"github.com/zuqini/CLTune/pkg/tuner"
)

// Job is one tuning job as described by a YAML file.
type Job struct {
	Kernel    Kernel     `yaml:"kernel" json:"kernel"`
	Reference *Reference `yaml:"reference" json:"reference"`
	Strategy  Strategy   `yaml:"strategy" json:"strategy"`
	Arguments []Argument `yaml:"arguments" json:"arguments"`

	Repeats   int      `yaml:"repeats" json:"repeats"`
	Timing    string   `yaml:"timing" json:"timing"`
	Tolerance *float64 `yaml:"tolerance" json:"tolerance"`
	Seed      *int64   `yaml:"seed" json:"seed"`
}

// Kernel describes the kernel under tuning.
type Kernel struct {
	Source      string       `yaml:"source" json:"source"`
	Entry       string       `yaml:"entry" json:"entry"`
	Global      []int        `yaml:"global" json:"global"`
	Local       []int        `yaml:"local" json:"local"`
	Parameters  []Parameter  `yaml:"parameters" json:"parameters"`
	Constraints []Constraint `yaml:"constraints" json:"constraints"`
	Modifiers   []Modifier   `yaml:"modifiers" json:"modifiers"`
}

// Reference names the golden kernel trials are verified against.
type Reference struct {
	Source string `yaml:"source" json:"source"`
	Entry  string `yaml:"entry" json:"entry"`
	Global []int  `yaml:"global" json:"global"`
	Local  []int  `yaml:"local" json:"local"`
}

// Parameter is one tunable parameter with its candidate values.
type Parameter struct {
	Name   string `yaml:"name" json:"name"`
	Values []int  `yaml:"values" json:"values"`
}

// Constraint requires target to be a multiple of the operand chain. The
// operators list pairs each operand after the first with "*" or "/".
type Constraint struct {
	Target    string   `yaml:"target" json:"target"`
	Operands  []string `yaml:"operands" json:"operands"`
	Operators []string `yaml:"operators" json:"operators"`
}

// Modifier scales the launch geometry by parameter values.
type Modifier struct {
	Target string   `yaml:"target" json:"target"` // global or local
	Op     string   `yaml:"op" json:"op"`         // mul or div
	Params []string `yaml:"params" json:"params"`
}

// Strategy selects and parameterizes the search method.
type Strategy struct {
	Name           string  `yaml:"name" json:"name"` // full, random, annealing, pso
	Fraction       float64 `yaml:"fraction" json:"fraction"`
	MaxTemperature float64 `yaml:"max_temperature" json:"max_temperature"`
	SwarmSize      int     `yaml:"swarm_size" json:"swarm_size"`
	Inertia        float64 `yaml:"inertia" json:"inertia"`
	Cognitive      float64 `yaml:"cognitive" json:"cognitive"`
	Social         float64 `yaml:"social" json:"social"`
}

// Argument is one kernel argument. Scalars carry their value inline; buffers
// declare a length, element type, direction and fill pattern.
type Argument struct {
	Scalar    *float64 `yaml:"scalar" json:"scalar"`
	Buffer    int      `yaml:"buffer" json:"buffer"`
	Type      string   `yaml:"type" json:"type"` // int32, int64, float32, float64
	Direction string   `yaml:"direction" json:"direction"` // input, output, inout
	Init      string   `yaml:"init" json:"init"` // zero, linear, random
}

// Load reads and validates a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML job document.
func Parse(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}
	if err := job.validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *Job) validate() error {
	if j.Kernel.Entry == "" {
		return fmt.Errorf("kernel.entry is required")
	}
	if len(j.Kernel.Global) == 0 {
		return fmt.Errorf("kernel.global is required")
	}
	if len(j.Kernel.Parameters) == 0 {
		return fmt.Errorf("kernel.parameters must declare at least one parameter")
	}
	for _, p := range j.Kernel.Parameters {
		if p.Name == "" || len(p.Values) == 0 {
			return fmt.Errorf("parameter %q needs a name and candidate values", p.Name)
		}
	}
	for _, c := range j.Kernel.Constraints {
		if len(c.Operators) != len(c.Operands)-1 {
			return fmt.Errorf("constraint on %s: %d operators for %d operands", c.Target, len(c.Operators), len(c.Operands))
		}
		for _, op := range c.Operators {
			if op != "*" && op != "/" {
				return fmt.Errorf("constraint on %s: unknown operator %q", c.Target, op)
			}
		}
	}
	for _, m := range j.Kernel.Modifiers {
		if m.Target != "global" && m.Target != "local" {
			return fmt.Errorf("modifier target %q: want global or local", m.Target)
		}
		if m.Op != "mul" && m.Op != "div" {
			return fmt.Errorf("modifier op %q: want mul or div", m.Op)
		}
	}
	switch j.Strategy.Name {
	case "", "full", "random", "annealing", "pso":
	default:
		return fmt.Errorf("unknown strategy %q", j.Strategy.Name)
	}
	if j.Strategy.Name != "" && j.Strategy.Name != "full" {
		if j.Strategy.Fraction <= 0 || j.Strategy.Fraction > 1 {
			return fmt.Errorf("strategy %s: fraction %v out of (0,1]", j.Strategy.Name, j.Strategy.Fraction)
		}
	}
	switch j.Timing {
	case "", "min", "mean", "median":
	default:
		return fmt.Errorf("unknown timing statistic %q", j.Timing)
	}
	for i, a := range j.Arguments {
		if a.Scalar == nil && a.Buffer <= 0 {
			return fmt.Errorf("argument %d: needs a scalar value or a buffer length", i)
		}
		if a.Scalar != nil && a.Buffer > 0 {
			return fmt.Errorf("argument %d: scalar and buffer are mutually exclusive", i)
		}
		switch a.Type {
		case "", "int32", "int64", "float32", "float64":
		default:
			return fmt.Errorf("argument %d: unknown type %q", i, a.Type)
		}
		if a.Buffer > 0 {
			switch a.Direction {
			case "input", "output", "inout":
			default:
				return fmt.Errorf("argument %d: direction %q, want input, output or inout", i, a.Direction)
			}
			switch a.Init {
			case "", "zero", "linear", "random":
			default:
				return fmt.Errorf("argument %d: unknown init %q", i, a.Init)
			}
		}
	}
	return nil
}

// Build constructs a Tuner on the given device from the job description.
func (j *Job) Build(dev device.Device, log logger.Logger) (*tuner.Tuner, error) {
	t := tuner.New(dev, tuner.WithLogger(log))

	id, err := t.AddKernel(j.Kernel.Source, j.Kernel.Entry, j.Kernel.Global, j.Kernel.Local)
	if err != nil {
		return nil, err
	}
	for _, p := range j.Kernel.Parameters {
		if err := t.AddParameter(id, p.Name, p.Values); err != nil {
			return nil, err
		}
	}
	for _, c := range j.Kernel.Constraints {
		chain := tuner.Operand(c.Operands[0])
		for i, op := range c.Operators {
			if op == "*" {
				chain = chain.Times(c.Operands[i+1])
			} else {
				chain = chain.DividedBy(c.Operands[i+1])
			}
		}
		if err := t.AddConstraint(id, c.Target, chain); err != nil {
			return nil, err
		}
	}
	for _, m := range j.Kernel.Modifiers {
		var merr error
		switch {
		case m.Target == "global" && m.Op == "mul":
			merr = t.MulGlobalSize(id, m.Params...)
		case m.Target == "global" && m.Op == "div":
			merr = t.DivGlobalSize(id, m.Params...)
		case m.Target == "local" && m.Op == "mul":
			merr = t.MulLocalSize(id, m.Params...)
		default:
			merr = t.DivLocalSize(id, m.Params...)
		}
		if merr != nil {
			return nil, merr
		}
	}

	if j.Reference != nil {
		source := j.Reference.Source
		if source == "" {
			source = j.Kernel.Source
		}
		if err := t.SetReference(source, j.Reference.Entry, j.Reference.Global, j.Reference.Local); err != nil {
			return nil, err
		}
	}

	seed := int64(1)
	if j.Seed != nil {
		seed = *j.Seed
		t.SetSeed(seed)
	}
	if err := j.buildArguments(t, seed); err != nil {
		return nil, err
	}

	switch j.Strategy.Name {
	case "random":
		t.UseRandomSearch(j.Strategy.Fraction)
	case "annealing":
		maxTemp := j.Strategy.MaxTemperature
		if maxTemp <= 0 {
			maxTemp = 4
		}
		t.UseAnnealing(j.Strategy.Fraction, maxTemp)
	case "pso":
		t.UsePSO(j.Strategy.Fraction, j.Strategy.SwarmSize, j.Strategy.Inertia, j.Strategy.Cognitive, j.Strategy.Social)
	default:
		t.UseFullSearch()
	}

	if j.Repeats > 0 {
		t.SetNumRuns(j.Repeats)
	}
	switch j.Timing {
	case "mean":
		t.SetTimingStatistic(tuner.TimingMean)
	case "median":
		t.SetTimingStatistic(tuner.TimingMedian)
	default:
		t.SetTimingStatistic(tuner.TimingMin)
	}
	if j.Tolerance != nil {
		t.SetTolerance(*j.Tolerance)
	}
	return t, nil
}

func (j *Job) buildArguments(t *tuner.Tuner, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	for i, a := range j.Arguments {
		if a.Scalar != nil {
			if err := t.AddArgumentScalar(scalarValue(a.Type, *a.Scalar)); err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			continue
		}
		data := bufferData(a.Type, a.Buffer, a.Init, rng)
		var err error
		switch a.Direction {
		case "input":
			err = t.AddArgumentInput(data)
		case "output":
			err = t.AddArgumentOutput(data)
		default:
			err = t.AddArgumentInputOutput(data)
		}
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}

func scalarValue(typ string, v float64) any {
	switch typ {
	case "int64":
		return int64(v)
	case "float32":
		return float32(v)
	case "float64":
		return v
	default:
		return int32(v)
	}
}

func bufferData(typ string, n int, init string, rng *rand.Rand) any {
	fill := func(i int) float64 {
		switch init {
		case "linear":
			return float64(i)
		case "random":
			return rng.Float64()
		default:
			return 0
		}
	}
	switch typ {
	case "int32":
		data := make([]int32, n)
		for i := range data {
			data[i] = int32(fill(i))
		}
		return data
	case "int64":
		data := make([]int64, n)
		for i := range data {
			data[i] = int64(fill(i))
		}
		return data
	case "float64":
		data := make([]float64, n)
		for i := range data {
			data[i] = fill(i)
		}
		return data
	default:
		data := make([]float32, n)
		for i := range data {
			data[i] = float32(fill(i))
		}
		return data
	}
}

// Summary renders a one-line description of the job for logging.
func (j *Job) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kernel %s", j.Kernel.Entry)
	if j.Strategy.Name != "" {
		fmt.Fprintf(&b, ", strategy %s", j.Strategy.Name)
	}
	fmt.Fprintf(&b, ", %d parameters", len(j.Kernel.Parameters))
	return b.String()
}
