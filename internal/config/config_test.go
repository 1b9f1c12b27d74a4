package config

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/logger"
)

const vectorAddJob = `
kernel:
  source: builtin://vector_add
  entry: vector_add
  global: [64]
  local: [8]
  parameters:
    - name: VW
      values: [1, 2, 4]
  modifiers:
    - target: global
      op: div
      params: [VW]
reference:
  entry: vector_add_reference
  global: [64]
  local: [8]
strategy:
  name: full
repeats: 2
timing: median
seed: 9
arguments:
  - scalar: 64
    type: int32
  - buffer: 64
    type: float32
    direction: input
    init: linear
  - buffer: 64
    type: float32
    direction: input
    init: random
  - buffer: 64
    type: float32
    direction: output
`

func TestParseAndBuildRunnableJob(t *testing.T) {
	job, err := Parse([]byte(vectorAddJob))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if job.Kernel.Entry != "vector_add" || len(job.Kernel.Parameters) != 1 {
		t.Fatalf("unexpected kernel section: %+v", job.Kernel)
	}

	log := logger.JSON(io.Discard, slog.LevelError)
	tn, err := job.Build(device.NewCPU(), log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tn.Tune(context.Background()); err != nil {
		t.Fatalf("Tune: %v", err)
	}
	rep := tn.Reports()[0]
	if rep.Count() != 3 {
		t.Errorf("trials: got %d, want 3", rep.Count())
	}
	if _, ok := rep.Best(); !ok {
		t.Error("expected a verified best configuration")
	}
}

func TestParseConstraintOperators(t *testing.T) {
	job, err := Parse([]byte(`
kernel:
  source: builtin://gemm
  entry: gemm_fast
  global: [32, 32]
  local: [8, 8]
  parameters:
    - name: MWG
      values: [16, 32]
    - name: MDIMC
      values: [8, 16]
    - name: VWM
      values: [1, 2]
  constraints:
    - target: MWG
      operands: [MDIMC, VWM]
      operators: ["*"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(job.Kernel.Constraints) != 1 {
		t.Fatalf("constraints: got %d", len(job.Kernel.Constraints))
	}
	if _, err := job.Build(device.NewCPU(), logger.JSON(io.Discard, slog.LevelError)); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestParseRejectsInvalidJobs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing entry",
			`kernel: {global: [8], parameters: [{name: A, values: [1]}]}`,
			"kernel.entry",
		},
		{
			"no parameters",
			`kernel: {entry: k, global: [8]}`,
			"parameters",
		},
		{
			"operator arity",
			`kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}], constraints: [{target: A, operands: [A, A], operators: []}]}`,
			"operators",
		},
		{
			"bad operator",
			`kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}], constraints: [{target: A, operands: [A, A], operators: ["+"]}]}`,
			"operator",
		},
		{
			"bad modifier target",
			`kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}], modifiers: [{target: sideways, op: mul, params: [A]}]}`,
			"modifier target",
		},
		{
			"unknown strategy",
			`{kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}]}, strategy: {name: genetic}}`,
			"strategy",
		},
		{
			"fraction out of range",
			`{kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}]}, strategy: {name: random, fraction: 1.5}}`,
			"fraction",
		},
		{
			"bad timing",
			`{kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}]}, timing: mode}`,
			"timing",
		},
		{
			"argument without value",
			`{kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}]}, arguments: [{type: float32}]}`,
			"argument 0",
		},
		{
			"buffer without direction",
			`{kernel: {entry: k, global: [8], parameters: [{name: A, values: [1]}]}, arguments: [{buffer: 8, type: float32}]}`,
			"direction",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	job, err := Parse([]byte(vectorAddJob))
	if err != nil {
		t.Fatal(err)
	}
	s := job.Summary()
	if !strings.Contains(s, "vector_add") || !strings.Contains(s, "full") {
		t.Errorf("summary: got %q", s)
	}
}
