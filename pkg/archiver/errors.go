package archiver

import (
	"errors"
	"fmt"
)

var (
	// ErrArchiveClosed is returned by any operation attempted after Seal or Discard.
	ErrArchiveClosed = errors.New("archive is closed")
	// ErrArchiveFinalized is returned by Add after a failed Seal already finalized the container.
	// It matches ErrArchiveClosed.
	ErrArchiveFinalized = fmt.Errorf("%w: container already finalized", ErrArchiveClosed)
	// ErrArchiveBroken is returned by Add and Seal after a failed add left a partial entry.
	// It matches ErrArchiveClosed.
	ErrArchiveBroken = fmt.Errorf("%w: container holds a partial entry", ErrArchiveClosed)
	// ErrArchiveCreateFailed is returned by New when no writable container could be opened.
	ErrArchiveCreateFailed = errors.New("failed to create archive")
	// ErrDuplicatePath matches every DuplicatePathError.
	ErrDuplicatePath = errors.New("filepath already exists in archive")
	// ErrInvalidEncoding matches every InvalidEncodingError.
	ErrInvalidEncoding = errors.New("text is not valid UTF-8")
	// ErrInvalidFilepath matches every InvalidFilepathError.
	ErrInvalidFilepath = errors.New("invalid filepath")
	// ErrMissingFilepath is returned when a bytes or text entry has no archive path.
	ErrMissingFilepath = errors.New("filepath is required")
	// ErrIOFailure matches every IOError.
	ErrIOFailure = errors.New("archive I/O failure")
	// ErrEncryptionFailed matches every EncryptionError.
	ErrEncryptionFailed = errors.New("archive encryption failed")
)

// DuplicatePathError reports an add whose filepath is already in the manifest.
type DuplicatePathError struct {
	Path string
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("filepath %q already exists in archive", e.Path)
}

func (e *DuplicatePathError) Is(target error) bool {
	return target == ErrDuplicatePath
}

// InvalidEncodingError reports text that cannot be encoded as UTF-8.
type InvalidEncodingError struct {
	Text string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("text is not valid UTF-8: %q", truncate(e.Text, 32))
}

func (e *InvalidEncodingError) Is(target error) bool {
	return target == ErrInvalidEncoding
}

// InvalidFilepathError reports an archive path that is absolute or escapes the archive root.
type InvalidFilepathError struct {
	Path string
	Err  error
}

func (e *InvalidFilepathError) Error() string {
	return fmt.Sprintf("invalid filepath %q: %v", e.Path, e.Err)
}

func (e *InvalidFilepathError) Unwrap() error {
	return e.Err
}

func (e *InvalidFilepathError) Is(target error) bool {
	return target == ErrInvalidFilepath
}

// IOError wraps a filesystem or container failure with the operation and path involved.
type IOError struct {
	Op   string // "open", "add", "finalize", "read", "write" or "remove"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIOFailure
}

// EncryptionError wraps a failure of the encryption transform.
type EncryptionError struct {
	Encryptor string
	Err       error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encrypt with %s: %v", e.Encryptor, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

func (e *EncryptionError) Is(target error) bool {
	return target == ErrEncryptionFailed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
