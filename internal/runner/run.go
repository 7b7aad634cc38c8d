package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	v1 "github.com/bridgekit/bridgearchiver/apis/v1"
	"github.com/bridgekit/bridgearchiver/internal/engine/sinks"
	"github.com/bridgekit/bridgearchiver/pkg/archiver"
	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/bridgekit/bridgearchiver/pkg/engine/encryptors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Config holds the runtime dependencies of a Runner. Every field is optional.
type Config struct {
	// Fs holds sources, the archive and filesystem sinks. Defaults to the OS filesystem.
	Fs afero.Fs

	// Stdout receives the sealed artifact for stdout sinks. Defaults to os.Stdout.
	Stdout io.Writer

	// Now stamps entries without createdOn. Defaults to time.Now.
	Now func() time.Time
}

type Runner struct {
	logger    *zap.Logger
	job       v1.BundleJob
	fs        afero.Fs
	archiver  *archiver.Archiver
	encryptor engine.Encryptor
	sink      engine.Sink
}

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// ParseBundleJob parses a YAML or JSON job file and validates it. It returns
// the validated BundleJob or an error if parsing or validation fails.
func ParseBundleJob(data []byte) (v1.BundleJob, error) {
	var job v1.BundleJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	if err := defaultValidator.Struct(job); err != nil {
		return v1.BundleJob{}, fmt.Errorf("failed to validate job: %w", err)
	}

	return job, nil
}

// New loads the encryptor and sink, then opens the plaintext archive.
func New(ctx context.Context, logger *zap.Logger, job v1.BundleJob, cfg Config) (*Runner, error) {
	logger.Info("creating runner", zap.String("job_name", job.Metadata.Name))

	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	registry := encryptors.NewDefaultRegistry(logger.Named("encryptors"), fs)
	encryptor, err := buildEncryptor(ctx, registry, job.Spec.Seal)
	if err != nil {
		return nil, fmt.Errorf("failed to build encryptor: %w", err)
	}

	sink, err := buildSink(ctx, logger.Named("sink"), fs, stdout, job)
	if err != nil {
		return nil, fmt.Errorf("failed to build sink: %w", err)
	}

	a, err := buildArchiver(logger.Named("archiver"), fs, cfg.Now, job)
	if err != nil {
		return nil, fmt.Errorf("failed to build archiver: %w", err)
	}

	return &Runner{
		logger:    logger,
		job:       job,
		fs:        fs,
		archiver:  a,
		encryptor: encryptor,
		sink:      sink,
	}, nil
}

// Run adds every entry, seals the archive and delivers the sealed artifact.
// It returns the local path of the sealed artifact, which is empty when
// delivery removed it. The plaintext archive is discarded on failure.
func (r *Runner) Run(ctx context.Context) (sealed string, err error) {
	defer func() {
		if err == nil || r.archiver.State() == archiver.StateSealed {
			return
		}
		// Use a background context so cleanup runs even if ctx was cancelled
		if discardErr := r.archiver.Discard(context.Background()); discardErr != nil {
			r.logger.Error("failed to discard archive", zap.String("path", r.archiver.PlainPath()), zap.Error(discardErr))
		}
	}()

	for i, entry := range r.job.Spec.Entries {
		src, opts, err := ResolveEntry(i, entry)
		if err != nil {
			return "", err
		}
		if err := r.archiver.Add(ctx, src, opts); err != nil {
			return "", fmt.Errorf("failed to add entry %d (%s): %w", i, src.Kind(), err)
		}
	}

	if r.sink == nil {
		return r.sealLocal(ctx)
	}

	return r.deliver(ctx)
}

func (r *Runner) sealLocal(ctx context.Context) (string, error) {
	if manifest := r.manifestPath(); manifest != "" {
		if err := r.archiver.AddManifest(ctx, manifest); err != nil {
			return "", fmt.Errorf("failed to add manifest: %w", err)
		}
	}

	sealed, err := r.archiver.Seal(ctx, r.encryptor, archiver.SealOptions{OutputPath: r.job.Spec.Seal.Output})
	if err != nil {
		return "", fmt.Errorf("failed to seal archive: %w", err)
	}

	return sealed, nil
}

func (r *Runner) deliver(ctx context.Context) (string, error) {
	output := r.job.Spec.Output
	sealing := sinks.NewSealingSink(r.logger.Named("sink"), r.sink, r.archiver, r.encryptor, r.fs, sinks.SealingSinkConfig{
		ArtifactName: output.Name,
		ManifestPath: r.manifestPath(),
		OutputPath:   r.job.Spec.Seal.Output,
		RemoveLocal:  !output.KeepLocal,
	})

	if err := sealing.Close(ctx); err != nil {
		return "", fmt.Errorf("failed to deliver sealed archive: %w", err)
	}

	if !output.KeepLocal {
		return "", nil
	}
	return r.archiver.EncryptedPath(), nil
}

func (r *Runner) manifestPath() string {
	if r.job.Spec.Archive == nil {
		return ""
	}
	return r.job.Spec.Archive.Manifest
}

// Archiver exposes the archive built by the runner.
func (r *Runner) Archiver() *archiver.Archiver {
	return r.archiver
}
