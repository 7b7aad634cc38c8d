// Package archiver builds a ZIP archive from files, byte buffers and text,
// keeps a manifest of what was added, and seals the finished archive by
// encrypting it for a recipient before deleting the plaintext.
//
// An Archiver is created open, accepts any number of Add calls, and ends
// with exactly one of Seal or Discard. Every call after that fails with
// ErrArchiveClosed.
package archiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/bridgekit/bridgearchiver/pkg/engine/containers"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultTextContentType is recorded for text entries added without a content type.
	DefaultTextContentType = "application/json"

	// EncryptedExtension is appended to the plaintext path when Seal has no output path.
	EncryptedExtension = ".encrypted"
)

// State is the lifecycle position of an Archiver.
type State int

const (
	// StateOpen accepts adds.
	StateOpen State = iota
	// StateFinalized means a Seal failed after the container was finalized.
	// Seal and Discard may be retried, Add may not.
	StateFinalized
	// StateBroken means a failed add left a partial entry in the container.
	// Only Discard is allowed.
	StateBroken
	// StateSealed is terminal: the encrypted artifact exists and the plaintext is gone.
	StateSealed
	// StateDiscarded is terminal: the plaintext was deleted without encrypting.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalized:
		return "finalized"
	case StateBroken:
		return "broken"
	case StateSealed:
		return "sealed"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Config configures a new Archiver. Every field is optional.
type Config struct {
	// Path is where the plaintext archive is created. Defaults to a fresh
	// name of 8 random characters plus the container extension in TempDir.
	Path string

	// TempDir holds archives created without a Path. Defaults to os.TempDir().
	TempDir string

	// Fs holds the plaintext and encrypted artifacts and file sources. Defaults to the OS filesystem.
	Fs afero.Fs

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Containers opens the archive container. Defaults to deflate ZIP containers.
	Containers engine.ContainerFactory

	// Now stamps entries added without CreatedOn. Defaults to time.Now.
	Now func() time.Time
}

// AddOptions describes how an entry is recorded.
type AddOptions struct {
	// Filepath is the path inside the archive. Defaults to the base name of
	// a file source; required for bytes and text. It is recorded in its
	// canonical form, so "./a.txt" and "x/../a.txt" both name "a.txt".
	Filepath string

	// CreatedOn is the timestamp of the content. Defaults to now. Bytes and
	// text entries also use it as their modification time in the archive.
	CreatedOn time.Time

	// ContentType is an optional MIME type hint. Text entries default to
	// DefaultTextContentType.
	ContentType *string
}

// SealOptions configures Seal.
type SealOptions struct {
	// OutputPath is where the encrypted artifact is written. Defaults to the
	// plaintext path with EncryptedExtension appended.
	OutputPath string
}

// Archiver owns one archive from creation until it is sealed or discarded.
// It is not meant to be shared between goroutines; calls are serialized.
type Archiver struct {
	mu sync.Mutex

	fs     afero.Fs
	logger *zap.Logger
	now    func() time.Time

	state         State
	container     engine.Container
	plainPath     string
	encryptedPath string
	entries       []ManifestEntry
}

// New opens a container in create mode and returns an open Archiver with an empty manifest.
// Errors match ErrArchiveCreateFailed.
func New(cfg Config) (*Archiver, error) {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	factory := cfg.Containers
	if factory == nil {
		zipFactory, err := containers.NewZipFactory(containers.ZipConfig{})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrArchiveCreateFailed, err)
		}
		factory = zipFactory
	}

	path := cfg.Path
	if path == "" {
		dir := cfg.TempDir
		if dir == "" {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, newArchiveName(factory.Extension()))
	}

	container, err := factory.Create(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %w", ErrArchiveCreateFailed, path, err)
	}

	logger.Debug("created archive", zap.String("path", path))

	return &Archiver{
		fs:        fs,
		logger:    logger,
		now:       now,
		state:     StateOpen,
		container: container,
		plainPath: path,
	}, nil
}

// newArchiveName returns the last 8 characters of a random UUID plus ext.
func newArchiveName(ext string) string {
	id := uuid.NewString()
	return id[len(id)-8:] + ext
}

// Add streams src into the archive and appends it to the manifest.
// A failed add leaves the manifest unchanged.
func (a *Archiver) Add(ctx context.Context, src Source, opts AddOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.add(ctx, src, opts)
}

// AddFile adds the file at path by reference.
func (a *Archiver) AddFile(ctx context.Context, path string, opts AddOptions) error {
	return a.Add(ctx, FromFile(path), opts)
}

// AddBytes adds data as a new entry of exactly len(data) bytes.
func (a *Archiver) AddBytes(ctx context.Context, data []byte, opts AddOptions) error {
	return a.Add(ctx, FromBytes(data), opts)
}

// AddText adds text as a UTF-8 encoded entry.
func (a *Archiver) AddText(ctx context.Context, text string, opts AddOptions) error {
	return a.Add(ctx, FromText(text), opts)
}

// AddManifest adds the manifest accumulated so far as a JSON entry at path
// (DefaultManifestPath when empty). The manifest entry itself is recorded
// after the document is rendered, so the document does not list itself.
func (a *Archiver) AddManifest(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkOpen(); err != nil {
		return err
	}

	if path == "" {
		path = DefaultManifestPath
	}

	data, err := Manifest{Files: a.entries}.Encode()
	if err != nil {
		return err
	}

	return a.add(ctx, FromBytes(data), AddOptions{
		Filepath:    path,
		ContentType: lo.ToPtr("application/json"),
	})
}

func (a *Archiver) add(ctx context.Context, src Source, opts AddOptions) error {
	if err := a.checkOpen(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	path := opts.Filepath
	if path == "" {
		path = src.defaultFilepath()
	}
	if path == "" {
		return ErrMissingFilepath
	}

	name, err := engine.EntryName(path)
	if err != nil {
		return &InvalidFilepathError{Path: path, Err: err}
	}
	path = name

	if a.contains(path) {
		return &DuplicatePathError{Path: path}
	}

	createdOn := opts.CreatedOn
	if createdOn.IsZero() {
		createdOn = a.now()
	}

	contentType := opts.ContentType
	if contentType == nil && src.Kind() == SourceText {
		contentType = lo.ToPtr(DefaultTextContentType)
	}

	normalized, err := src.normalize()
	if err != nil {
		return err
	}

	switch normalized.kind {
	case SourceFile:
		if err := a.container.AddFile(ctx, path, normalized.path); err != nil {
			return a.containerError(normalized.path, err)
		}
	case SourceBytes:
		data := normalized.data
		if err := a.container.AddEntry(ctx, path, int64(len(data)), createdOn, bytes.NewReader(data)); err != nil {
			return a.containerError(path, err)
		}
	default:
		return fmt.Errorf("unsupported source kind: %s", normalized.kind)
	}

	a.entries = append(a.entries, ManifestEntry{
		Filename:    path,
		CreatedOn:   createdOn,
		ContentType: contentType,
	})

	a.logger.Debug("added entry",
		zap.String("filepath", path),
		zap.Stringer("source", src.Kind()),
		zap.Int("entries", len(a.entries)),
	)

	return nil
}

// containerError wraps a failed container add. A broken container moves the
// archive to StateBroken.
func (a *Archiver) containerError(path string, err error) error {
	op := "add"
	switch {
	case errors.Is(err, engine.ErrSourceUnavailable):
		op = "open"
	case errors.Is(err, engine.ErrContainerBroken):
		a.state = StateBroken
		a.logger.Warn("partial entry left in archive, only discard is possible",
			zap.String("path", a.plainPath),
			zap.String("source", path),
			zap.Error(err),
		)
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func (a *Archiver) contains(path string) bool {
	return lo.ContainsBy(a.entries, func(entry ManifestEntry) bool {
		return entry.Filename == path
	})
}

// checkOpen reports whether entries may still be added.
func (a *Archiver) checkOpen() error {
	switch a.state {
	case StateOpen:
		return nil
	case StateFinalized:
		return ErrArchiveFinalized
	case StateBroken:
		return ErrArchiveBroken
	default:
		return ErrArchiveClosed
	}
}

func (a *Archiver) terminated() bool {
	return a.state == StateSealed || a.state == StateDiscarded
}

// Seal finalizes the container, encrypts the plaintext archive with enc,
// writes the ciphertext and deletes the plaintext. It returns the location of
// the encrypted artifact.
//
// If any step fails the error is returned and the archive is not sealed.
// Once the container has been finalized no more entries can be added, but
// Seal and Discard may be called again. A broken archive cannot be sealed.
func (a *Archiver) Seal(ctx context.Context, enc engine.Encryptor, opts SealOptions) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.terminated() {
		return "", ErrArchiveClosed
	}
	if a.state == StateBroken {
		return "", ErrArchiveBroken
	}

	if enc == nil {
		return "", fmt.Errorf("encryptor is required")
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	output := opts.OutputPath
	if output == "" {
		output = a.plainPath + EncryptedExtension
	}
	if filepath.Clean(output) == filepath.Clean(a.plainPath) {
		return "", fmt.Errorf("output path %s would overwrite the plaintext archive", output)
	}

	logger := a.logger.With(
		zap.String("path", a.plainPath),
		zap.String("output", output),
		zap.String("encryptor", enc.Name()),
	)

	if a.state == StateOpen {
		// The container cannot take more entries after this, whatever the outcome.
		a.state = StateFinalized
		if err := a.container.Close(); err != nil {
			return "", &IOError{Op: "finalize", Path: a.plainPath, Err: err}
		}
	}

	plaintext, err := afero.ReadFile(a.fs, a.plainPath)
	if err != nil {
		return "", &IOError{Op: "read", Path: a.plainPath, Err: err}
	}

	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		return "", &EncryptionError{Encryptor: enc.Name(), Err: err}
	}

	if err := a.writeCiphertext(output, ciphertext); err != nil {
		a.removeBestEffort(logger, output)
		return "", &IOError{Op: "write", Path: output, Err: err}
	}

	if err := a.fs.Remove(a.plainPath); err != nil {
		a.removeBestEffort(logger, output)
		return "", &IOError{Op: "remove", Path: a.plainPath, Err: err}
	}

	a.encryptedPath = output
	a.container = nil
	a.plainPath = ""
	a.state = StateSealed

	logger.Info("sealed archive",
		zap.Int("entries", len(a.entries)),
		zap.Int("plaintext_bytes", len(plaintext)),
		zap.Int("ciphertext_bytes", len(ciphertext)),
	)

	return output, nil
}

func (a *Archiver) writeCiphertext(output string, ciphertext []byte) error {
	dir := filepath.Dir(output)
	if dir != "" && dir != "." {
		if err := a.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return afero.WriteFile(a.fs, output, ciphertext, 0644)
}

func (a *Archiver) removeBestEffort(logger *zap.Logger, path string) {
	if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to clean up partial artifact", zap.String("artifact", path), zap.Error(err))
	}
}

// Discard deletes the plaintext archive without encrypting it and closes the
// archive for good. A failed Discard may be retried.
//
// A container that fails to finalize is reported as an IOError with Op
// "finalize", joined with the remove error when the plaintext could not be
// deleted either. The archive is discarded whenever the plaintext is gone.
func (a *Archiver) Discard(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.terminated() {
		return ErrArchiveClosed
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	var closeErr error
	if a.state == StateOpen || a.state == StateBroken {
		a.state = StateFinalized
		if err := a.container.Close(); err != nil {
			closeErr = &IOError{Op: "finalize", Path: a.plainPath, Err: err}
		}
	}

	if err := a.fs.Remove(a.plainPath); err != nil {
		return errors.Join(closeErr, &IOError{Op: "remove", Path: a.plainPath, Err: err})
	}

	if closeErr != nil {
		a.logger.Warn("discarded archive whose container failed to finalize", zap.String("path", a.plainPath), zap.Error(closeErr))
	} else {
		a.logger.Debug("discarded archive", zap.String("path", a.plainPath), zap.Int("entries", len(a.entries)))
	}

	a.container = nil
	a.plainPath = ""
	a.state = StateDiscarded

	return closeErr
}

// Entries returns a copy of the manifest entries in add order.
func (a *Archiver) Entries() []ManifestEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.entries)
}

// Manifest returns the manifest in its info.json shape.
func (a *Archiver) Manifest() Manifest {
	return Manifest{Files: a.Entries()}
}

// PlainPath returns the plaintext archive location, or "" once sealed or discarded.
func (a *Archiver) PlainPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plainPath
}

// EncryptedPath returns the sealed artifact location, or "" until Seal succeeds.
func (a *Archiver) EncryptedPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.encryptedPath
}

// State returns the current lifecycle state.
func (a *Archiver) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsOpen reports whether the archive still holds a container, finalized or not.
func (a *Archiver) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.container != nil
}
