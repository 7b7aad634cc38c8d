package sinks

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/bridgekit/bridgearchiver/internal/testcert"
	"github.com/bridgekit/bridgearchiver/pkg/archiver"
	"github.com/bridgekit/bridgearchiver/pkg/engine/encryptors"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSink records all writes for verification.
type mockSink struct {
	writes map[string][]byte
	closed bool
}

func newMockSink() *mockSink {
	return &mockSink{writes: make(map[string][]byte)}
}

func (m *mockSink) Name() string { return "mock" }
func (m *mockSink) Kind() string { return "mock" }

func (m *mockSink) Write(_ context.Context, path string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.writes[path] = content
	return nil
}

func (m *mockSink) Close(_ context.Context) error {
	m.closed = true
	return nil
}

// readZipToMap returns a map of filename -> content for archive bytes.
func readZipToMap(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	found := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		found[f.Name] = string(content)
	}
	return found
}

func newSealingSink(t *testing.T, cfg SealingSinkConfig) (*SealingSink, *mockSink, *testcert.Recipient, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	recipient := testcert.New(t, "sink")

	enc, err := encryptors.NewCMS(recipient.Cert, encryptors.CMSConfig{})
	require.NoError(t, err)

	a, err := archiver.New(archiver.Config{Fs: fs, Path: "/scratch/bundle.zip"})
	require.NoError(t, err)

	mock := newMockSink()
	return NewSealingSink(zap.NewNop(), mock, a, enc, fs, cfg), mock, recipient, fs
}

func TestSealingSink_MultipleFiles(t *testing.T) {
	sink, mockInner, recipient, fs := newSealingSink(t, SealingSinkConfig{ArtifactName: "upload.p7m"})
	ctx := t.Context()

	files := map[string]string{
		"step1.json": `{"step":1}`,
		"step2.json": `{"step":2}`,
		"notes.txt":  "walked 300m",
	}
	for name, content := range files {
		require.NoError(t, sink.Write(ctx, name, bytes.NewBufferString(content)))
	}

	require.NoError(t, sink.Close(ctx))

	assert.Len(t, mockInner.writes, 1)
	require.Contains(t, mockInner.writes, "upload.p7m")
	assert.True(t, mockInner.closed, "inner sink should be closed")

	found := readZipToMap(t, recipient.Decrypt(t, mockInner.writes["upload.p7m"]))
	assert.Equal(t, files, found)

	exists, err := afero.Exists(fs, "/scratch/bundle.zip.encrypted")
	require.NoError(t, err)
	assert.True(t, exists, "local artifact is kept by default")

	entries := sink.Archiver().Entries()
	require.Len(t, entries, 3)
	for _, entry := range entries {
		require.NotNil(t, entry.ContentType)
	}
}

func TestSealingSink_ManifestAndRemoveLocal(t *testing.T) {
	sink, mockInner, recipient, fs := newSealingSink(t, SealingSinkConfig{ManifestPath: "info.json", RemoveLocal: true})
	ctx := t.Context()

	require.NoError(t, sink.Write(ctx, "data.json", bytes.NewBufferString(`{}`)))
	require.NoError(t, sink.Close(ctx))

	require.Contains(t, mockInner.writes, "bundle.zip.encrypted")
	found := readZipToMap(t, recipient.Decrypt(t, mockInner.writes["bundle.zip.encrypted"]))
	require.Contains(t, found, "info.json")

	manifest, err := archiver.ParseManifest([]byte(found["info.json"]))
	require.NoError(t, err)
	require.Len(t, manifest.Files, 1)
	assert.Equal(t, "data.json", manifest.Files[0].Filename)

	exists, err := afero.Exists(fs, "/scratch/bundle.zip.encrypted")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSealingSink_DuplicateWrite(t *testing.T) {
	sink, _, _, _ := newSealingSink(t, SealingSinkConfig{})
	ctx := t.Context()

	require.NoError(t, sink.Write(ctx, "a.txt", bytes.NewBufferString("a")))
	err := sink.Write(ctx, "a.txt", bytes.NewBufferString("b"))
	require.ErrorIs(t, err, archiver.ErrDuplicatePath)
}

func TestSealingSink_CloseTwice(t *testing.T) {
	sink, _, _, _ := newSealingSink(t, SealingSinkConfig{})
	ctx := t.Context()

	require.NoError(t, sink.Close(ctx))
	require.ErrorIs(t, sink.Close(ctx), archiver.ErrArchiveClosed)
}

func TestSealingSink_NameAndKind(t *testing.T) {
	sink, _, _, _ := newSealingSink(t, SealingSinkConfig{})
	assert.Equal(t, "sealed(cms(sink, aes256-cbc))->mock", sink.Name())
	assert.Equal(t, "sealed", sink.Kind())
}
