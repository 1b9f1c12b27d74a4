package tuner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/harness"
	"github.com/zuqini/CLTune/internal/logger"
)

func quiet() Option {
	return WithLogger(logger.JSON(io.Discard, slog.LevelError))
}

// vectorTuner builds a tuner for the built-in vector_add kernel with VW as
// the tunable vector width and a reference for verification.
func vectorTuner(t *testing.T, dev device.Device, n int) *Tuner {
	t.Helper()
	tn := New(dev, quiet())
	tn.SetSeed(42)

	id, err := tn.AddKernel("builtin://vector_add", "vector_add", []int{n}, []int{8})
	if err != nil {
		t.Fatal(err)
	}
	if err := tn.AddParameter(id, "VW", []int{1, 2, 4}); err != nil {
		t.Fatal(err)
	}
	if err := tn.DivGlobalSize(id, "VW"); err != nil {
		t.Fatal(err)
	}
	if err := tn.SetReference("builtin://vector_add", "vector_add_reference", []int{n}, []int{8}); err != nil {
		t.Fatal(err)
	}

	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i] = float32(i)
		b[i] = float32(2 * i)
	}
	if err := tn.AddArgumentScalar(int32(n)); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentInput(a); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentInput(b); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentOutput(make([]float32, n)); err != nil {
		t.Fatal(err)
	}
	return tn
}

func TestTuneFullSearchFindsVerifiedBest(t *testing.T) {
	tn := vectorTuner(t, device.NewCPU(), 64)
	tn.SetNumRuns(2)

	if err := tn.Tune(context.Background()); err != nil {
		t.Fatalf("Tune: %v", err)
	}

	reports := tn.Reports()
	if len(reports) != 1 {
		t.Fatalf("reports: got %d, want 1", len(reports))
	}
	if got := reports[0].Count(); got != 3 {
		t.Errorf("trials: got %d, want 3", got)
	}
	best, ok := reports[0].Best()
	if !ok {
		t.Fatal("expected a verified best configuration")
	}
	if best.Status != harness.StatusSuccess {
		t.Errorf("best status: got %v", best.Status)
	}
	if tn.Progress() != 1 {
		t.Errorf("Progress: got %v, want 1", tn.Progress())
	}
}

func TestTuneVerificationExcludesWrongKernel(t *testing.T) {
	dev := device.NewCPU()
	err := dev.Register(device.Registration{
		Entry: "vector_add_wrong",
		Fn: func(wi *device.WorkItem) {
			n := wi.Int(0)
			c := wi.Float32(3)
			for i := wi.GlobalID(0); i < n; i += wi.GlobalSize(0) {
				c[i] = -1
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tn := New(dev, quiet())
	id, err := tn.AddKernel("builtin://vector_add", "vector_add_wrong", []int{16}, []int{4})
	if err != nil {
		t.Fatal(err)
	}
	if err := tn.AddParameter(id, "DUMMY", []int{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := tn.SetReference("builtin://vector_add", "vector_add_reference", []int{16}, []int{4}); err != nil {
		t.Fatal(err)
	}

	const n = 16
	a := make([]float32, n)
	for i := range a {
		a[i] = float32(i + 1)
	}
	if err := tn.AddArgumentScalar(int32(n)); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentInput(a); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentInput(make([]float32, n)); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentOutput(make([]float32, n)); err != nil {
		t.Fatal(err)
	}

	if err := tn.Tune(context.Background()); err != nil {
		t.Fatalf("Tune: %v", err)
	}

	rep := tn.Reports()[0]
	if _, ok := rep.Best(); ok {
		t.Error("wrong kernel should never produce a verified best")
	}
	if rep.BestTimeMS() != 0 {
		t.Errorf("BestTimeMS: got %v, want 0", rep.BestTimeMS())
	}
	for _, res := range rep.Table() {
		if res.Status != harness.StatusVerificationFailed {
			t.Errorf("trial status: got %v, want verification_failed", res.Status)
		}
	}
}

func TestTuneRandomSearchVisitsFraction(t *testing.T) {
	tn := New(device.NewCPU(), quiet())
	tn.SetSeed(7)

	id, err := tn.AddKernel("builtin://vector_add", "vector_add", []int{32}, []int{8})
	if err != nil {
		t.Fatal(err)
	}
	if err := tn.AddParameter(id, "VW", []int{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddParameter(id, "DUMMY", []int{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := tn.DivGlobalSize(id, "VW"); err != nil {
		t.Fatal(err)
	}

	const n = 32
	if err := tn.AddArgumentScalar(int32(n)); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentInput(make([]float32, n)); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentInput(make([]float32, n)); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddArgumentOutput(make([]float32, n)); err != nil {
		t.Fatal(err)
	}

	tn.UseRandomSearch(0.5)
	if err := tn.Tune(context.Background()); err != nil {
		t.Fatalf("Tune: %v", err)
	}
	// 6 valid configurations, fraction 0.5 rounds to 3 trials.
	if got := tn.Reports()[0].Count(); got != 3 {
		t.Errorf("trials: got %d, want 3", got)
	}
}

func TestTuneAnnealingAndPSOComplete(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(*Tuner)
	}{
		{"annealing", func(tn *Tuner) { tn.UseAnnealing(1.0, 4.0) }},
		{"pso", func(tn *Tuner) { tn.UsePSO(1.0, 2, 0.4, 1.0, 2.0) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tn := vectorTuner(t, device.NewCPU(), 64)
			tc.setup(tn)
			if err := tn.Tune(context.Background()); err != nil {
				t.Fatalf("Tune: %v", err)
			}
			if _, ok := tn.Reports()[0].Best(); !ok {
				t.Error("expected a verified best configuration")
			}
		})
	}
}

func TestTuneEmptyValidSet(t *testing.T) {
	tn := New(device.NewCPU(), quiet())
	id, err := tn.AddKernel("builtin://vector_add", "vector_add", []int{8}, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if err := tn.AddParameter(id, "VW", []int{3, 5}); err != nil {
		t.Fatal(err)
	}
	if err := tn.AddParameter(id, "W", []int{2, 4}); err != nil {
		t.Fatal(err)
	}
	// VW must be a multiple of W; {3,5} x {2,4} has no valid pair.
	if err := tn.AddConstraint(id, "VW", Operand("W")); err != nil {
		t.Fatal(err)
	}

	err = tn.Tune(context.Background())
	if !errors.Is(err, ErrNoValidConfiguration) {
		t.Fatalf("got %v, want ErrNoValidConfiguration", err)
	}
}

func TestTuneCanceledContext(t *testing.T) {
	tn := vectorTuner(t, device.NewCPU(), 64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tn.Tune(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestChainConstraintString(t *testing.T) {
	c := Operand("MDIMC").Times("VWM").DividedBy("MDIMA").constraint("MWG")
	if got := c.String(); got != "MWG % (MDIMC*VWM/MDIMA) == 0" {
		t.Errorf("constraint string: got %q", got)
	}
}

func TestPrintToFileAndJSON(t *testing.T) {
	tn := vectorTuner(t, device.NewCPU(), 64)
	if err := tn.Tune(context.Background()); err != nil {
		t.Fatalf("Tune: %v", err)
	}

	dir := t.TempDir()
	csvPath := dir + "/results.csv"
	if err := tn.PrintToFile(csvPath); err != nil {
		t.Fatalf("PrintToFile: %v", err)
	}
	jsonPath := dir + "/results.json"
	if err := tn.PrintJSON(jsonPath); err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}
}
