package v1

import "time"

// BundleKind is the only job kind currently accepted.
const BundleKind = "Bundle"

type BundleJob struct {
	Kind     string        `yaml:"kind" json:"kind" validate:"required,eq=Bundle"`
	Metadata Metadata      `yaml:"metadata" json:"metadata"`
	Spec     BundleJobSpec `yaml:"spec" json:"spec"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

type BundleJobSpec struct {
	Archive *ArchiveSpec `yaml:"archive,omitempty" json:"archive,omitempty"`
	Entries []Entry      `yaml:"entries" json:"entries" validate:"required,min=1,dive"`
	Seal    SealSpec     `yaml:"seal" json:"seal"`
	Output  *OutputSpec  `yaml:"output,omitempty" json:"output,omitempty"`
}

// ArchiveSpec configures the plaintext ZIP built before sealing.
type ArchiveSpec struct {
	// Path of the plaintext archive. Defaults to a random name in the temp directory.
	Path string `yaml:"path,omitempty" json:"path,omitempty" template:""`

	// Compression is the entry method: deflate (default), store or zstd.
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty" validate:"omitempty,oneof=deflate store zstd"`

	// Manifest, when set, adds a JSON manifest of every entry under this path.
	Manifest string `yaml:"manifest,omitempty" json:"manifest,omitempty" template:""`
}

// Entry is one archive member. Exactly one of File, Bytes or Text is set.
type Entry struct {
	File  *FileSource  `yaml:"file,omitempty" json:"file,omitempty"`
	Bytes *BytesSource `yaml:"bytes,omitempty" json:"bytes,omitempty"`
	Text  *TextSource  `yaml:"text,omitempty" json:"text,omitempty"`

	// Filepath is the path inside the archive. Required for bytes and text entries.
	Filepath    string     `yaml:"filepath,omitempty" json:"filepath,omitempty" template:""`
	ContentType *string    `yaml:"contentType,omitempty" json:"contentType,omitempty"`
	CreatedOn   *time.Time `yaml:"createdOn,omitempty" json:"createdOn,omitempty"`
}

type FileSource struct {
	Path string `yaml:"path" json:"path" validate:"required" template:""`
}

type BytesSource struct {
	// Base64 holds standard base64-encoded content.
	Base64 string `yaml:"base64" json:"base64" validate:"required,base64"`
}

type TextSource struct {
	Value string `yaml:"value" json:"value" template:""`
}

// SealSpec configures the encryptor (one of the fields must be set).
type SealSpec struct {
	CMS  *CMSSeal  `yaml:"cms,omitempty" json:"cms,omitempty"`
	Tink *TinkSeal `yaml:"tink,omitempty" json:"tink,omitempty"`

	// Output is the path of the encrypted file. Defaults to the archive path plus ".encrypted".
	Output string `yaml:"output,omitempty" json:"output,omitempty" template:""`
}

// CMSSeal encrypts to a single X.509 recipient.
type CMSSeal struct {
	// Certificate is a path to a PEM encoded certificate.
	Certificate string `yaml:"certificate" json:"certificate" validate:"required" template:""`

	// Algorithm is the content encryption algorithm (default: aes256-cbc).
	Algorithm string `yaml:"algorithm,omitempty" json:"algorithm,omitempty" validate:"omitempty,oneof=aes256-cbc aes128-cbc aes256-gcm aes128-gcm des-cbc"`
}

// TinkSeal encrypts with a Tink hybrid public keyset.
type TinkSeal struct {
	// Keyset is a path to a JSON public keyset.
	Keyset      string `yaml:"keyset" json:"keyset" validate:"required" template:""`
	ContextInfo string `yaml:"contextInfo,omitempty" json:"contextInfo,omitempty" template:""`
}

// OutputSpec configures delivery of the sealed artifact.
type OutputSpec struct {
	// Name of the artifact in the sink. Defaults to the sealed file's base name.
	Name string    `yaml:"name,omitempty" json:"name,omitempty" template:""`
	Sink *SinkSpec `yaml:"sink,omitempty" json:"sink,omitempty"`

	// KeepLocal keeps the local encrypted file after delivery.
	KeepLocal bool `yaml:"keepLocal,omitempty" json:"keepLocal,omitempty"`
}

// SinkSpec configures where the sealed artifact is written (one of the fields should be set).
type SinkSpec struct {
	Stdout     *StdoutSinkSpec     `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Filesystem *FilesystemSinkSpec `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
	S3         *S3SinkSpec         `yaml:"s3,omitempty" json:"s3,omitempty"`
}

// StdoutSinkSpec writes the sealed artifact to standard output.
type StdoutSinkSpec struct{}

type FilesystemSinkSpec struct {
	// Path is the base directory. Defaults to the working directory.
	Path   *string `yaml:"path,omitempty" json:"path,omitempty" template:""`
	Prefix *string `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
}

type S3SinkSpec struct {
	Bucket         string         `yaml:"bucket" json:"bucket" validate:"required" template:""`
	Prefix         *string        `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
	Region         *string        `yaml:"region,omitempty" json:"region,omitempty" template:""`
	Endpoint       *string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty" template:""`
	ForcePathStyle bool           `yaml:"forcePathStyle,omitempty" json:"forcePathStyle,omitempty"`
	Credentials    *S3Credentials `yaml:"credentials,omitempty" json:"credentials,omitempty"`

	// ServerSideEncryption is AES256 or aws:kms.
	ServerSideEncryption string            `yaml:"serverSideEncryption,omitempty" json:"serverSideEncryption,omitempty" validate:"omitempty,oneof=AES256 aws:kms"`
	KMSKeyID             string            `yaml:"kmsKeyId,omitempty" json:"kmsKeyId,omitempty" template:""`
	Metadata             map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

type S3Credentials struct {
	AccessKeyID     string `yaml:"accessKeyId" json:"accessKeyId" validate:"required" template:""`
	SecretAccessKey string `yaml:"secretAccessKey" json:"secretAccessKey" validate:"required" template:""`
}
