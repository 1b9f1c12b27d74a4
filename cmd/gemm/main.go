// Command gemm tunes the built-in blocked SGEMM kernel against the naive
// reference and reports the best configuration with its GFLOPS.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/zuqini/CLTune/internal/device"
	"github.com/zuqini/CLTune/internal/logger"
	"github.com/zuqini/CLTune/pkg/tuner"
)

func main() {
	var (
		size     int64
		fraction float64
		seed     int64
		repeats  int64
	)

	app := &cli.Command{
		Name:  "gemm",
		Usage: "Tune the built-in SGEMM kernel",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "size",
				Aliases:     []string{"n"},
				Usage:       "matrix dimension (M = N = K)",
				Value:       128,
				Destination: &size,
			},
			&cli.Float64Flag{
				Name:        "fraction",
				Usage:       "fraction of the valid set to sample (1.0 = full search)",
				Value:       0.5,
				Destination: &fraction,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "random seed",
				Value:       0,
				Destination: &seed,
			},
			&cli.Int64Flag{
				Name:        "repeats",
				Usage:       "executions per configuration",
				Value:       3,
				Destination: &repeats,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, int(size), fraction, seed, int(repeats))
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, size int, fraction float64, seed int64, repeats int) error {
	m, n, k := size, size, size
	log := logger.Default()

	a := make([]float32, k*m)
	b := make([]float32, k*n)
	for i := range a {
		a[i] = float32(i%13) * 0.25
	}
	for i := range b {
		b[i] = float32(i%7) * 0.5
	}

	tn := tuner.New(device.NewCPU(), tuner.WithLogger(log))
	if seed != 0 {
		tn.SetSeed(seed)
	}

	id, err := tn.AddKernel("builtin://gemm", "gemm_fast", []int{m, n}, []int{1, 1})
	if err != nil {
		return err
	}
	params := map[string][]int{
		"MWG":   {16, 32, 64},
		"NWG":   {8, 16, 32},
		"KWG":   {8, 16},
		"MDIMC": {8, 16},
		"NDIMC": {4, 8},
	}
	for _, name := range []string{"MWG", "NWG", "KWG", "MDIMC", "NDIMC"} {
		if err := tn.AddParameter(id, name, params[name]); err != nil {
			return err
		}
	}
	// The blocked kernel needs whole sub-tiles per thread.
	if err := tn.AddConstraint(id, "MWG", tuner.Operand("MDIMC")); err != nil {
		return err
	}
	if err := tn.AddConstraint(id, "NWG", tuner.Operand("NDIMC")); err != nil {
		return err
	}
	// One work-group per MWG x NWG tile, MDIMC x NDIMC threads each.
	if err := tn.DivGlobalSize(id, "MWG", "NWG"); err != nil {
		return err
	}
	if err := tn.MulGlobalSize(id, "MDIMC", "NDIMC"); err != nil {
		return err
	}
	if err := tn.MulLocalSize(id, "MDIMC", "NDIMC"); err != nil {
		return err
	}

	if err := tn.SetReference("builtin://gemm", "gemm_reference", []int{m, n}, []int{8, 8}); err != nil {
		return err
	}

	for _, v := range []any{int32(m), int32(n), int32(k)} {
		if err := tn.AddArgumentScalar(v); err != nil {
			return err
		}
	}
	if err := tn.AddArgumentInput(a); err != nil {
		return err
	}
	if err := tn.AddArgumentInput(b); err != nil {
		return err
	}
	if err := tn.AddArgumentOutput(make([]float32, m*n)); err != nil {
		return err
	}

	if fraction >= 1 {
		tn.UseFullSearch()
	} else {
		tn.UseRandomSearch(fraction)
	}
	tn.SetNumRuns(repeats)

	if err := tn.Tune(ctx); err != nil {
		return err
	}

	bestMS := tn.PrintToScreen()
	if bestMS > 0 {
		gflops := 2 * float64(m) * float64(n) * float64(k) / (bestMS / 1e3) / 1e9
		fmt.Printf("\nSGEMM %dx%dx%d: %.4f ms, %.2f GFLOPS\n", m, n, k, bestMS, gflops)
	}
	return nil
}
