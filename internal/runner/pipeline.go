package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	v1 "github.com/bridgekit/bridgearchiver/apis/v1"
	"github.com/bridgekit/bridgearchiver/internal/engine/sinks"
	"github.com/bridgekit/bridgearchiver/pkg/archiver"
	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/bridgekit/bridgearchiver/pkg/engine/containers"
	"github.com/bridgekit/bridgearchiver/pkg/engine/encryptors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// buildArchiver opens the plaintext archive described by the job.
func buildArchiver(logger *zap.Logger, fs afero.Fs, now func() time.Time, job v1.BundleJob) (*archiver.Archiver, error) {
	var (
		path        string
		compression string
	)
	if job.Spec.Archive != nil {
		path = job.Spec.Archive.Path
		compression = job.Spec.Archive.Compression
	}

	factory, err := containers.NewZipFactory(containers.ZipConfig{Method: containers.Method(compression)})
	if err != nil {
		return nil, fmt.Errorf("failed to create zip container factory: %w", err)
	}

	return archiver.New(archiver.Config{
		Path:       path,
		Fs:         fs,
		Logger:     logger,
		Containers: factory,
		Now:        now,
	})
}

// buildEncryptor loads the encryptor configured under spec.seal.
func buildEncryptor(ctx context.Context, registry *encryptors.Registry, seal v1.SealSpec) (engine.Encryptor, error) {
	resolved, err := ResolveSealSpec(seal)
	if err != nil {
		return nil, err
	}

	return registry.Create(ctx, resolved.Kind, resolved.Spec)
}

// buildSink creates the sink the sealed artifact is delivered to.
// It returns nil when the job keeps the sealed artifact where Seal wrote it.
func buildSink(ctx context.Context, logger *zap.Logger, fs afero.Fs, stdout io.Writer, job v1.BundleJob) (engine.Sink, error) {
	if job.Spec.Output == nil || job.Spec.Output.Sink == nil {
		return nil, nil
	}

	sink := job.Spec.Output.Sink
	switch {
	case sink.Stdout != nil:
		return sinks.NewStreamSink(stdout), nil
	case sink.Filesystem != nil:
		return buildFilesystemSink(fs, sink.Filesystem)
	case sink.S3 != nil:
		return buildS3Sink(ctx, logger, sink.S3)
	default:
		return nil, fmt.Errorf("invalid sink configuration: no sink type specified")
	}
}

func buildFilesystemSink(fs afero.Fs, spec *v1.FilesystemSinkSpec) (engine.Sink, error) {
	var path, prefix string
	if spec.Path != nil {
		path = *spec.Path
	}
	if spec.Prefix != nil {
		prefix = *spec.Prefix
	}

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = wd
	}

	return sinks.NewFilesystemSinkFromPath(fs, filepath.Join(path, prefix))
}

func buildS3Sink(ctx context.Context, logger *zap.Logger, spec *v1.S3SinkSpec) (engine.Sink, error) {
	cfg := sinks.S3Config{
		Bucket:               spec.Bucket,
		ForcePathStyle:       spec.ForcePathStyle,
		ServerSideEncryption: spec.ServerSideEncryption,
		KMSKeyID:             spec.KMSKeyID,
		Metadata:             spec.Metadata,
	}

	if spec.Region != nil {
		cfg.Region = *spec.Region
	}
	if spec.Endpoint != nil {
		cfg.Endpoint = *spec.Endpoint
	}
	if spec.Prefix != nil {
		cfg.Prefix = *spec.Prefix
	}
	if spec.Credentials != nil {
		cfg.AccessKeyID = spec.Credentials.AccessKeyID
		cfg.SecretAccessKey = spec.Credentials.SecretAccessKey
	}

	sink, err := sinks.NewS3Sink(ctx, logger.Named("s3"), cfg)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// BuildVariables returns the variables available to ${VAR} templates: the
// built-in JOB_* values plus every allowed environment variable.
// Every allowed variable must be set.
func BuildVariables(job v1.BundleJob, allowedEnv []string) (map[string]string, error) {
	date := time.Now().UTC()
	variables := map[string]string{
		"JOB_NAME":         job.Metadata.Name,
		"JOB_DATE_ISO8601": date.Format(engine.ISO8601Basic),
		"JOB_DATE_RFC3339": date.Format(time.RFC3339),
	}

	var errs error
	for _, name := range allowedEnv {
		val, ok := os.LookupEnv(name)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", name))
			continue
		}
		variables[name] = val
	}

	if errs != nil {
		return nil, errs
	}
	return variables, nil
}
