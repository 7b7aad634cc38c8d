package runner

import (
	"bytes"
	"testing"
	"time"

	v1 "github.com/bridgekit/bridgearchiver/apis/v1"
	"github.com/bridgekit/bridgearchiver/pkg/archiver"
	"github.com/bridgekit/bridgearchiver/pkg/engine/encryptors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildVariables(t *testing.T) {
	job := v1.BundleJob{Metadata: v1.Metadata{Name: "study-upload"}}

	t.Run("built-in variables are set", func(t *testing.T) {
		variables, err := BuildVariables(job, nil)
		require.NoError(t, err)

		assert.Len(t, variables, 3)
		assert.Equal(t, "study-upload", variables["JOB_NAME"])

		_, err = time.Parse("20060102T150405Z", variables["JOB_DATE_ISO8601"])
		require.NoError(t, err, "JOB_DATE_ISO8601 should be ISO8601 basic format")

		_, err = time.Parse(time.RFC3339, variables["JOB_DATE_RFC3339"])
		require.NoError(t, err, "JOB_DATE_RFC3339 should be RFC3339 format")
	})

	t.Run("allowed env variables are included", func(t *testing.T) {
		t.Setenv("STUDY_ID", "42")
		t.Setenv("SITE", "lyon")

		variables, err := BuildVariables(job, []string{"STUDY_ID", "SITE"})
		require.NoError(t, err)

		assert.Equal(t, "42", variables["STUDY_ID"])
		assert.Equal(t, "lyon", variables["SITE"])
	})

	t.Run("every missing env variable is reported", func(t *testing.T) {
		_, err := BuildVariables(job, []string{"MISSING1", "MISSING2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"MISSING1" is not set`)
		assert.Contains(t, err.Error(), `"MISSING2" is not set`)
	})
}

func TestExpandTemplates_BundleJob(t *testing.T) {
	job := v1.BundleJob{
		Metadata: v1.Metadata{Name: "study-upload"},
		Spec: v1.BundleJobSpec{
			Archive: &v1.ArchiveSpec{Path: "/work/${JOB_NAME}.zip", Manifest: "${JOB_NAME}.json"},
			Entries: []v1.Entry{
				{File: &v1.FileSource{Path: "${DATA_DIR}/a.json"}},
				{Text: &v1.TextSource{Value: "site ${SITE}"}, Filepath: "${SITE}/notes.txt"},
			},
			Seal: v1.SealSpec{CMS: &v1.CMSSeal{Certificate: "${CERT}"}},
			Output: &v1.OutputSpec{
				Name: "${JOB_NAME}.p7m",
				Sink: &v1.SinkSpec{
					S3: &v1.S3SinkSpec{
						Bucket:      "${BUCKET}",
						Prefix:      lo.ToPtr("${SITE}/"),
						Credentials: &v1.S3Credentials{AccessKeyID: "${KEY}", SecretAccessKey: "${SECRET}"},
					},
				},
			},
		},
	}

	variables := map[string]string{
		"JOB_NAME": "study-upload",
		"DATA_DIR": "/data",
		"SITE":     "lyon",
		"CERT":     "/etc/bridge/cert.pem",
		"BUCKET":   "uploads",
		"KEY":      "AKIA",
		"SECRET":   "s3cr3t",
	}

	require.NoError(t, ExpandTemplates(&job, variables))

	spec := job.Spec
	assert.Equal(t, "/work/study-upload.zip", spec.Archive.Path)
	assert.Equal(t, "study-upload.json", spec.Archive.Manifest)
	assert.Equal(t, "/data/a.json", spec.Entries[0].File.Path)
	assert.Equal(t, "site lyon", spec.Entries[1].Text.Value)
	assert.Equal(t, "lyon/notes.txt", spec.Entries[1].Filepath)
	assert.Equal(t, "/etc/bridge/cert.pem", spec.Seal.CMS.Certificate)
	assert.Equal(t, "study-upload.p7m", spec.Output.Name)
	assert.Equal(t, "uploads", spec.Output.Sink.S3.Bucket)
	assert.Equal(t, "lyon/", *spec.Output.Sink.S3.Prefix)
	assert.Equal(t, "AKIA", spec.Output.Sink.S3.Credentials.AccessKeyID)
	assert.Equal(t, "s3cr3t", spec.Output.Sink.S3.Credentials.SecretAccessKey)
}

func TestResolveSealSpec(t *testing.T) {
	tests := []struct {
		name     string
		seal     v1.SealSpec
		wantKind string
		wantSpec any
		wantErr  string
	}{
		{
			name:     "cms",
			seal:     v1.SealSpec{CMS: &v1.CMSSeal{Certificate: "cert.pem", Algorithm: "aes128-gcm"}},
			wantKind: encryptors.CMSKind,
			wantSpec: encryptors.CMSSource{CertificatePath: "cert.pem", Config: encryptors.CMSConfig{Algorithm: "aes128-gcm"}},
		},
		{
			name:     "tink",
			seal:     v1.SealSpec{Tink: &v1.TinkSeal{Keyset: "keyset.json", ContextInfo: "study"}},
			wantKind: encryptors.TinkKind,
			wantSpec: encryptors.TinkSource{KeysetPath: "keyset.json", Config: encryptors.TinkConfig{ContextInfo: "study"}},
		},
		{
			name:    "none",
			seal:    v1.SealSpec{},
			wantErr: "no encryptor specified",
		},
		{
			name:    "both",
			seal:    v1.SealSpec{CMS: &v1.CMSSeal{}, Tink: &v1.TinkSeal{}},
			wantErr: "both cms and tink",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSealSpec(tt.seal)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantSpec, got.Spec)
		})
	}
}

func TestResolveEntry(t *testing.T) {
	createdOn := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		entry    v1.Entry
		wantKind archiver.SourceKind
		wantErr  string
	}{
		{
			name:     "file",
			entry:    v1.Entry{File: &v1.FileSource{Path: "/data/a.json"}},
			wantKind: archiver.SourceFile,
		},
		{
			name:     "bytes",
			entry:    v1.Entry{Bytes: &v1.BytesSource{Base64: "SGVsbG8="}, Filepath: "b.txt"},
			wantKind: archiver.SourceBytes,
		},
		{
			name:     "text",
			entry:    v1.Entry{Text: &v1.TextSource{Value: "How much wood"}, Filepath: "c.txt", CreatedOn: &createdOn},
			wantKind: archiver.SourceText,
		},
		{
			name:    "no source",
			entry:   v1.Entry{Filepath: "x"},
			wantErr: "entry 3 has no source specified",
		},
		{
			name:    "two sources",
			entry:   v1.Entry{File: &v1.FileSource{Path: "a"}, Text: &v1.TextSource{Value: "b"}},
			wantErr: "entry 3 has 2 sources specified",
		},
		{
			name:    "bad base64",
			entry:   v1.Entry{Bytes: &v1.BytesSource{Base64: "%%%"}, Filepath: "b.bin"},
			wantErr: "entry 3: invalid base64 content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, opts, err := ResolveEntry(3, tt.entry)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, src.Kind())
			assert.Equal(t, tt.entry.Filepath, opts.Filepath)
			if tt.entry.CreatedOn != nil {
				assert.True(t, opts.CreatedOn.Equal(*tt.entry.CreatedOn))
			} else {
				assert.True(t, opts.CreatedOn.IsZero())
			}
		})
	}
}

func TestBuildSink(t *testing.T) {
	fs := afero.NewMemMapFs()

	t.Run("no output keeps the artifact local", func(t *testing.T) {
		sink, err := buildSink(t.Context(), zap.NewNop(), fs, nil, v1.BundleJob{})
		require.NoError(t, err)
		assert.Nil(t, sink)
	})

	t.Run("stdout", func(t *testing.T) {
		var buf bytes.Buffer
		sink, err := buildSink(t.Context(), zap.NewNop(), fs, &buf, v1.BundleJob{Spec: v1.BundleJobSpec{
			Output: &v1.OutputSpec{Sink: &v1.SinkSpec{Stdout: &v1.StdoutSinkSpec{}}},
		}})
		require.NoError(t, err)
		assert.Equal(t, "stream", sink.Kind())
	})

	t.Run("filesystem with prefix", func(t *testing.T) {
		sink, err := buildSink(t.Context(), zap.NewNop(), fs, nil, v1.BundleJob{Spec: v1.BundleJobSpec{
			Output: &v1.OutputSpec{Sink: &v1.SinkSpec{Filesystem: &v1.FilesystemSinkSpec{
				Path:   lo.ToPtr("/out"),
				Prefix: lo.ToPtr("uploads"),
			}}},
		}})
		require.NoError(t, err)
		assert.Equal(t, "filesystem", sink.Kind())

		exists, err := afero.DirExists(fs, "/out/uploads")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("empty sink spec", func(t *testing.T) {
		_, err := buildSink(t.Context(), zap.NewNop(), fs, nil, v1.BundleJob{Spec: v1.BundleJobSpec{
			Output: &v1.OutputSpec{Sink: &v1.SinkSpec{}},
		}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no sink type specified")
	})
}

func TestBuildArchiver(t *testing.T) {
	fs := afero.NewMemMapFs()

	t.Run("explicit path and compression", func(t *testing.T) {
		a, err := buildArchiver(zap.NewNop(), fs, nil, v1.BundleJob{Spec: v1.BundleJobSpec{
			Archive: &v1.ArchiveSpec{Path: "/work/bundle.zip", Compression: "zstd"},
		}})
		require.NoError(t, err)
		assert.Equal(t, "/work/bundle.zip", a.PlainPath())
		require.NoError(t, a.Discard(t.Context()))
	})

	t.Run("unknown compression", func(t *testing.T) {
		_, err := buildArchiver(zap.NewNop(), fs, nil, v1.BundleJob{Spec: v1.BundleJobSpec{
			Archive: &v1.ArchiveSpec{Path: "/work/other.zip", Compression: "lzma"},
		}})
		require.Error(t, err)
	})
}
