package runner

import (
	"encoding/base64"
	"fmt"

	v1 "github.com/bridgekit/bridgearchiver/apis/v1"
	"github.com/bridgekit/bridgearchiver/pkg/archiver"
	"github.com/bridgekit/bridgearchiver/pkg/engine/encryptors"
)

// ResolvedSpec holds a kind identifier and the spec for that kind.
type ResolvedSpec struct {
	Kind string
	Spec any
}

// ResolveSealSpec extracts the encryptor kind and its source from a v1.SealSpec.
// Exactly one encryptor must be configured.
func ResolveSealSpec(s v1.SealSpec) (ResolvedSpec, error) {
	switch {
	case s.CMS != nil && s.Tink != nil:
		return ResolvedSpec{}, fmt.Errorf("seal has both cms and tink configured")
	case s.CMS != nil:
		return ResolvedSpec{Kind: encryptors.CMSKind, Spec: encryptors.CMSSource{
			CertificatePath: s.CMS.Certificate,
			Config:          encryptors.CMSConfig{Algorithm: s.CMS.Algorithm},
		}}, nil
	case s.Tink != nil:
		return ResolvedSpec{Kind: encryptors.TinkKind, Spec: encryptors.TinkSource{
			KeysetPath: s.Tink.Keyset,
			Config:     encryptors.TinkConfig{ContextInfo: s.Tink.ContextInfo},
		}}, nil
	default:
		return ResolvedSpec{}, fmt.Errorf("seal has no encryptor specified")
	}
}

// ResolveEntry converts a v1.Entry into an archive source and its add options.
// Exactly one source must be configured.
func ResolveEntry(index int, e v1.Entry) (archiver.Source, archiver.AddOptions, error) {
	opts := archiver.AddOptions{
		Filepath:    e.Filepath,
		ContentType: e.ContentType,
	}
	if e.CreatedOn != nil {
		opts.CreatedOn = *e.CreatedOn
	}

	var (
		sources []archiver.Source
		err     error
	)
	if e.File != nil {
		sources = append(sources, archiver.FromFile(e.File.Path))
	}
	if e.Bytes != nil {
		data, decodeErr := base64.StdEncoding.DecodeString(e.Bytes.Base64)
		if decodeErr != nil {
			err = fmt.Errorf("entry %d: invalid base64 content: %w", index, decodeErr)
		}
		sources = append(sources, archiver.FromBytes(data))
	}
	if e.Text != nil {
		sources = append(sources, archiver.FromText(e.Text.Value))
	}

	switch {
	case len(sources) == 0:
		return archiver.Source{}, archiver.AddOptions{}, fmt.Errorf("entry %d has no source specified", index)
	case len(sources) > 1:
		return archiver.Source{}, archiver.AddOptions{}, fmt.Errorf("entry %d has %d sources specified, expected one", index, len(sources))
	case err != nil:
		return archiver.Source{}, archiver.AddOptions{}, err
	}

	return sources[0], opts, nil
}
