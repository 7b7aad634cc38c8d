package engine

import (
	"context"
	"io"
	"time"

	"github.com/spf13/afero"
)

// Container is a writable archive opened in create mode.
type Container interface {
	// AddFile streams the file at sourcePath into the archive under archivePath.
	// The entry keeps the source file's modification time.
	AddFile(ctx context.Context, archivePath string, sourcePath string) error

	// AddEntry adds an entry of exactly size bytes supplied by r.
	AddEntry(ctx context.Context, archivePath string, size int64, modified time.Time, r io.Reader) error

	// Close finalizes the archive and flushes its backing file.
	Close() error

	// Path returns the location of the backing file.
	Path() string
}

// ContainerFactory opens new containers on a filesystem.
type ContainerFactory interface {
	Create(fs afero.Fs, path string) (Container, error)

	// Extension returns the file extension for this container type (e.g., ".zip").
	Extension() string
}
