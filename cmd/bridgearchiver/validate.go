package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bridgekit/bridgearchiver/internal/runner"
	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate a job file without building anything",
	Flags: []cli.Flag{
		allowedEnvFlag(),
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "The job file to validate, or - for stdin",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		jobFilename := command.StringArg("job")
		logger := getLogger(ctx).With(zap.String("job_filename", jobFilename))
		logger.Debug("validating job file")

		job, err := loadJob(ctx, jobFilename, command.StringSlice("allowed-env"))
		if err != nil {
			fmt.Println(err)
			return fmt.Errorf("job file '%s' is invalid", jobFilename)
		}

		if _, err := runner.ResolveSealSpec(job.Spec.Seal); err != nil {
			return fmt.Errorf("job file '%s' is invalid: %w", jobFilename, err)
		}
		for i, entry := range job.Spec.Entries {
			if _, _, err := runner.ResolveEntry(i, entry); err != nil {
				return fmt.Errorf("job file '%s' is invalid: %w", jobFilename, err)
			}
		}

		fmt.Printf("✓ Job file '%s' is valid (%d entries)\n", jobFilename, len(job.Spec.Entries))
		return nil
	},
}

// formatValidationError lists every failed field of a validator error on its own line.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "job file has %d validation error(s):", len(validationErrs))
	for _, fe := range validationErrs {
		fmt.Fprintf(&sb, "\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			fmt.Fprintf(&sb, " (param: %s)", fe.Param())
		}
	}
	return errors.New(sb.String())
}
