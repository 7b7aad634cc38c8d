package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/spf13/afero"
)

// FilesystemSink writes sealed artifacts below a base directory.
// Files are written under a temporary name and renamed into place once complete.
type FilesystemSink struct {
	fs afero.Fs
}

func NewFilesystemSink(fs afero.Fs) engine.Sink {
	return &FilesystemSink{fs: fs}
}

// NewFilesystemSinkFromPath creates path on fs if needed and scopes the sink to it.
func NewFilesystemSinkFromPath(fs afero.Fs, path string) (engine.Sink, error) {
	cleanPath := filepath.Clean(path)

	if err := fs.MkdirAll(cleanPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cleanPath, err)
	}

	return NewFilesystemSink(afero.NewBasePathFs(fs, cleanPath)), nil
}

func (s *FilesystemSink) Name() string {
	return fmt.Sprintf("filesystem(%s)", s.fs.Name())
}

func (s *FilesystemSink) Kind() string {
	return "filesystem"
}

func (s *FilesystemSink) Write(ctx context.Context, path string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmpPath := filepath.Join(dir, ".tmp-"+filepath.Base(path))
	if err := s.writeFile(tmpPath, data); err != nil {
		return errors.Join(err, s.removeTemp(tmpPath))
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to move %s into place: %w", path, err), s.removeTemp(tmpPath))
	}

	return nil
}

func (s *FilesystemSink) writeFile(path string, data io.Reader) (err error) {
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err = io.Copy(f, data); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}

func (s *FilesystemSink) removeTemp(path string) error {
	if err := s.fs.Remove(path); err != nil {
		exists, _ := afero.Exists(s.fs, path)
		if exists {
			return fmt.Errorf("failed to remove temporary file %s: %w", path, err)
		}
	}
	return nil
}

func (s *FilesystemSink) Close(ctx context.Context) error {
	return nil
}
