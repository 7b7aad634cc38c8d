package archiver

import (
	"path/filepath"
	"unicode/utf8"
)

// SourceKind tells which variant a Source holds.
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceBytes
	SourceText
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceBytes:
		return "bytes"
	case SourceText:
		return "text"
	default:
		return "unknown"
	}
}

// Source is the content of one entry: a file by reference, a byte buffer, or text.
type Source struct {
	kind SourceKind
	path string
	data []byte
	text string
}

// FromFile references a file on the archiver's filesystem.
func FromFile(path string) Source {
	return Source{kind: SourceFile, path: path}
}

// FromBytes adds data as-is.
func FromBytes(data []byte) Source {
	return Source{kind: SourceBytes, data: data}
}

// FromText adds text encoded as UTF-8.
func FromText(text string) Source {
	return Source{kind: SourceText, text: text}
}

func (s Source) Kind() SourceKind {
	return s.kind
}

// defaultFilepath is the archive path used when AddOptions.Filepath is empty.
func (s Source) defaultFilepath() string {
	if s.kind == SourceFile {
		return filepath.Base(s.path)
	}
	return ""
}

// normalize converts text sources to bytes. File sources are returned unchanged.
func (s Source) normalize() (Source, error) {
	if s.kind != SourceText {
		return s, nil
	}
	if !utf8.ValidString(s.text) {
		return Source{}, &InvalidEncodingError{Text: s.text}
	}
	return FromBytes([]byte(s.text)), nil
}
