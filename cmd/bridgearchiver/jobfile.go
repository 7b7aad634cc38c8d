package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	v1 "github.com/bridgekit/bridgearchiver/apis/v1"
	"github.com/bridgekit/bridgearchiver/internal/runner"
)

// readJobFile reads a job from name, or from stdin when name is "-".
// It returns the content and a display name for logs.
func readJobFile(ctx context.Context, name string) ([]byte, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("no job file provided")
	}

	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read job from stdin: %w", err)
		}
		return data, "<stdin>", nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, "", err
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		abs = name
	}
	return data, abs, nil
}

// loadJob reads, parses and expands a bundle job.
func loadJob(ctx context.Context, name string, allowedEnv []string) (v1.BundleJob, error) {
	data, _, err := readJobFile(ctx, name)
	if err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to read job file '%s': %w", name, err)
	}

	job, err := runner.ParseBundleJob(data)
	if err != nil {
		return v1.BundleJob{}, formatValidationError(err)
	}

	variables, err := runner.BuildVariables(job, allowedEnv)
	if err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to build variables: %w", err)
	}

	if err := runner.ExpandTemplates(&job, variables); err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to expand templates: %w", err)
	}

	return job, nil
}
