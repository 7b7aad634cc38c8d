package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/bridgekit/bridgearchiver/pkg/archiver"
	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// SealingSinkConfig configures a SealingSink.
type SealingSinkConfig struct {
	// ArtifactName is the path the sealed artifact is written to in the inner sink.
	// Defaults to the base name of the encrypted file.
	ArtifactName string

	// ManifestPath, when set, adds the manifest as a JSON entry before sealing.
	ManifestPath string

	// OutputPath is where the archive is sealed locally. Defaults to the
	// archiver's own default.
	OutputPath string

	// RemoveLocal deletes the local encrypted file once the inner sink accepted it.
	RemoveLocal bool
}

// SealingSink collects every write into an archive. On Close, it seals the
// archive and writes the encrypted artifact to the inner sink.
type SealingSink struct {
	inner     engine.Sink
	archiver  *archiver.Archiver
	encryptor engine.Encryptor
	fs        afero.Fs
	cfg       SealingSinkConfig
	logger    *zap.Logger
}

// NewSealingSink wraps inner. fs must be the filesystem the archiver was created on.
func NewSealingSink(logger *zap.Logger, inner engine.Sink, a *archiver.Archiver, enc engine.Encryptor, fs afero.Fs, cfg SealingSinkConfig) *SealingSink {
	return &SealingSink{
		inner:     inner,
		archiver:  a,
		encryptor: enc,
		fs:        fs,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *SealingSink) Name() string {
	return fmt.Sprintf("sealed(%s)->%s", s.encryptor.Name(), s.inner.Name())
}

func (s *SealingSink) Kind() string {
	return "sealed"
}

// Write adds data to the archive under path.
func (s *SealingSink) Write(ctx context.Context, path string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	opts := archiver.AddOptions{Filepath: path}
	if contentType := ContentTypeFromPath(path); contentType != "" {
		opts.ContentType = lo.ToPtr(contentType)
	}

	if err := s.archiver.AddBytes(ctx, content, opts); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", path, err)
	}
	return nil
}

// Close seals the archive and hands the encrypted artifact to the inner sink.
func (s *SealingSink) Close(ctx context.Context) error {
	if s.cfg.ManifestPath != "" {
		if err := s.archiver.AddManifest(ctx, s.cfg.ManifestPath); err != nil {
			return fmt.Errorf("failed to add manifest: %w", err)
		}
	}

	sealed, err := s.archiver.Seal(ctx, s.encryptor, archiver.SealOptions{OutputPath: s.cfg.OutputPath})
	if err != nil {
		return fmt.Errorf("failed to seal archive: %w", err)
	}

	name := s.cfg.ArtifactName
	if name == "" {
		name = path.Base(sealed)
	}

	if err := s.deliver(ctx, sealed, name); err != nil {
		return err
	}

	s.logger.Info("delivered sealed archive",
		zap.String("artifact", name),
		zap.String("sink", s.inner.Name()),
		zap.Int("entries", len(s.archiver.Entries())),
	)

	if s.cfg.RemoveLocal {
		if err := s.fs.Remove(sealed); err != nil {
			return fmt.Errorf("failed to remove local artifact %s: %w", sealed, err)
		}
	}

	if err := s.inner.Close(ctx); err != nil {
		return fmt.Errorf("failed to close inner sink: %w", err)
	}

	return nil
}

func (s *SealingSink) deliver(ctx context.Context, sealed, name string) (err error) {
	f, err := s.fs.Open(sealed)
	if err != nil {
		return fmt.Errorf("failed to open sealed archive: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if err := s.inner.Write(ctx, name, f); err != nil {
		return fmt.Errorf("failed to write sealed archive to sink: %w", err)
	}
	return nil
}

// Archiver returns the archive the sink writes into.
func (s *SealingSink) Archiver() *archiver.Archiver {
	return s.archiver
}
