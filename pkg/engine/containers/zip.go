// Package containers provides archive containers that entries are streamed into.
package containers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// Method defines supported entry compression methods.
type Method string

const (
	MethodDeflate Method = "deflate"
	MethodStore   Method = "store"
	MethodZstd    Method = "zstd"
)

// ZipConfig configures the ZIP containers created by a factory.
type ZipConfig struct {
	// Method is the compression method for every entry. Defaults to "deflate".
	Method Method
}

// ZipFactory creates ZIP containers.
type ZipFactory struct {
	method Method
}

// NewZipFactory validates cfg and returns a factory for ZIP containers.
func NewZipFactory(cfg ZipConfig) (*ZipFactory, error) {
	method := cfg.Method
	if method == "" {
		method = MethodDeflate
	}

	switch method {
	case MethodDeflate, MethodStore, MethodZstd:
	default:
		return nil, fmt.Errorf("unsupported compression method: %s", cfg.Method)
	}

	return &ZipFactory{method: method}, nil
}

// Extension returns ".zip".
func (f *ZipFactory) Extension() string {
	return ".zip"
}

// Create opens a new ZIP archive at p. The file must not exist yet.
func (f *ZipFactory) Create(fs afero.Fs, p string) (engine.Container, error) {
	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create zip file %s: %w", p, err)
	}

	zw := zip.NewWriter(file)

	var method uint16
	switch f.method {
	case MethodStore:
		method = zip.Store
	case MethodZstd:
		method = zstd.ZipMethodWinZip
		zw.RegisterCompressor(method, zstd.ZipCompressor())
	default:
		method = zip.Deflate
	}

	return &ZipContainer{
		fs:     fs,
		path:   p,
		file:   file,
		writer: zw,
		method: method,
	}, nil
}

// ZipContainer streams entries into a ZIP archive backed by a file.
type ZipContainer struct {
	fs     afero.Fs
	path   string
	file   afero.File
	writer *zip.Writer
	method uint16
	closed bool

	// broken holds the write failure that left a partial entry in the archive.
	broken error
}

// Path returns the location of the archive file.
func (c *ZipContainer) Path() string {
	return c.path
}

// AddFile streams the file at sourcePath into the archive.
func (c *ZipContainer) AddFile(ctx context.Context, archivePath string, sourcePath string) (err error) {
	src, err := c.fs.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", engine.ErrSourceUnavailable, sourcePath, err)
	}
	defer func() {
		err = errors.Join(err, src.Close())
	}()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%w: failed to stat %s: %w", engine.ErrSourceUnavailable, sourcePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", engine.ErrSourceUnavailable, sourcePath)
	}

	return c.AddEntry(ctx, archivePath, info.Size(), info.ModTime(), src)
}

// AddEntry writes exactly size bytes from r as a new entry.
// A failure after the entry header was written breaks the container: the
// partial entry cannot be taken back, so every later AddEntry fails with
// engine.ErrContainerBroken. Close still finalizes the archive.
func (c *ZipContainer) AddEntry(ctx context.Context, archivePath string, size int64, modified time.Time, r io.Reader) error {
	if c.closed {
		return fmt.Errorf("container is closed")
	}
	if c.broken != nil {
		return fmt.Errorf("%w: %w", engine.ErrContainerBroken, c.broken)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	name, err := engine.EntryName(archivePath)
	if err != nil {
		return err
	}

	w, err := c.writer.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   c.method,
		Modified: modified,
	})
	if err != nil {
		return c.markBroken(fmt.Errorf("failed to create zip entry %s: %w", name, err))
	}

	written, err := io.CopyN(w, r, size)
	if err != nil {
		return c.markBroken(fmt.Errorf("failed to write zip entry %s (%d of %d bytes): %w", name, written, size, err))
	}

	// The supplier must not hold more than it announced.
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return c.markBroken(fmt.Errorf("zip entry %s: source is larger than %d bytes", name, size))
	}

	return nil
}

func (c *ZipContainer) markBroken(err error) error {
	c.broken = err
	return fmt.Errorf("%w: %w", engine.ErrContainerBroken, err)
}

// Close writes the central directory and closes the archive file.
func (c *ZipContainer) Close() error {
	if c.closed {
		return fmt.Errorf("container already closed")
	}
	c.closed = true

	if err := c.writer.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close zip writer: %w", err), c.file.Close())
	}

	if err := c.file.Close(); err != nil {
		return fmt.Errorf("failed to close zip file: %w", err)
	}

	return nil
}
