package engine

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidEntryName is returned for archive paths that are empty, absolute or escape the archive root.
	ErrInvalidEntryName = errors.New("invalid entry name")

	// ErrSourceUnavailable is returned when a file source cannot be opened or is not a regular file.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrContainerBroken is returned once a failed write left a partial entry behind.
	// A broken container accepts no further entries and can only be closed.
	ErrContainerBroken = errors.New("container broken")
)

// EntryName returns the canonical form of an archive path, the name an entry
// is stored under. Paths that differ only in separators, "." or ".."
// segments map to the same name.
func EntryName(archivePath string) (string, error) {
	name := filepath.ToSlash(archivePath)
	if name == "" {
		return "", fmt.Errorf("%w: empty entry name", ErrInvalidEntryName)
	}
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q must be relative", ErrInvalidEntryName, archivePath)
	}

	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the archive root", ErrInvalidEntryName, archivePath)
	}

	return cleaned, nil
}
