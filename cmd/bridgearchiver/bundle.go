package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bridgekit/bridgearchiver/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func allowedEnvFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "allowed-env",
		Usage: "Environment variables allowed in job configuration (can be repeated)",
	}
}

var bundleCommand = &cli.Command{
	Name:  "bundle",
	Usage: "Build, seal and deliver the archive described by a job file",
	Flags: []cli.Flag{
		allowedEnvFlag(),
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "The job file to run, or - for stdin",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		jobFilename := command.StringArg("job")
		logger := getLogger(ctx).With(zap.String("job_filename", jobFilename))

		job, err := loadJob(ctx, jobFilename, command.StringSlice("allowed-env"))
		if err != nil {
			return err
		}

		r, err := runner.New(ctx, logger.Named("runner"), job, runner.Config{})
		if err != nil {
			return fmt.Errorf("failed to create runner: %w", err)
		}

		sealed, err := r.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to run job: %w", err)
		}

		if isInteractive(ctx) && sealed != "" {
			fmt.Fprintf(os.Stderr, "✓ Sealed archive written to %s\n", sealed)
		}

		return nil
	},
}
