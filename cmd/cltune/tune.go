package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/zuqini/CLTune/internal/config"
	"github.com/zuqini/CLTune/internal/device"
)

func tuneCmd() *cli.Command {
	var (
		jobFile  string
		csvFile  string
		jsonFile string
		quiet    bool
	)

	return &cli.Command{
		Name:  "tune",
		Usage: "Run a tuning job from a YAML job file",
		Flags: append(commonLogFlags(),
			&cli.StringFlag{
				Name:        "job",
				Aliases:     []string{"f"},
				Usage:       "path to the job file",
				Required:    true,
				Destination: &jobFile,
			},
			&cli.StringFlag{
				Name:        "csv",
				Usage:       "write results as CSV to this file",
				Destination: &csvFile,
			},
			&cli.StringFlag{
				Name:        "json",
				Usage:       "write results as JSON to this file",
				Destination: &jsonFile,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "suppress the result table",
				Destination: &quiet,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyTuneConfig(c, LoadConfig())
			log := buildLogger()

			job, err := config.Load(jobFile)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("job loaded", "file", jobFile, "job", job.Summary())

			tn, err := job.Build(device.NewCPU(), log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build tuner: %v", err), 1)
			}
			if err := tn.Tune(ctx); err != nil {
				return cli.Exit(fmt.Sprintf("error: tune: %v", err), 1)
			}

			if !quiet {
				tn.PrintToScreen()
			}
			if csvFile != "" {
				if err := tn.PrintToFile(csvFile); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				log.Info("results written", "file", csvFile)
			}
			if jsonFile != "" {
				if err := tn.PrintJSON(jsonFile); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				log.Info("results written", "file", jsonFile)
			}
			return nil
		},
	}
}
