package encryptors

import (
	"bytes"
	"fmt"

	"github.com/spf13/afero"
	"github.com/tink-crypto/tink-go/v2/hybrid"
	"github.com/tink-crypto/tink-go/v2/keyset"
	"github.com/tink-crypto/tink-go/v2/tink"
)

const TinkKind = "tink"

// TinkConfig configures Tink hybrid encryption.
type TinkConfig struct {
	// ContextInfo is bound to the ciphertext and must be supplied again on decryption.
	ContextInfo string
}

// Tink encrypts archives with a Tink hybrid public keyset.
type Tink struct {
	primitive   tink.HybridEncrypt
	contextInfo []byte
	keyID       uint32
}

// NewTink creates a hybrid encryptor from a public keyset handle.
func NewTink(handle *keyset.Handle, cfg TinkConfig) (*Tink, error) {
	if handle == nil {
		return nil, fmt.Errorf("keyset handle is required")
	}

	primitive, err := hybrid.NewHybridEncrypt(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create hybrid encrypt primitive: %w", err)
	}

	return &Tink{
		primitive:   primitive,
		contextInfo: []byte(cfg.ContextInfo),
		keyID:       handle.KeysetInfo().GetPrimaryKeyId(),
	}, nil
}

// NewTinkFromJSON reads a JSON keyset that holds no secret key material.
func NewTinkFromJSON(data []byte, cfg TinkConfig) (*Tink, error) {
	handle, err := keyset.ReadWithNoSecrets(keyset.NewJSONReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read public keyset: %w", err)
	}
	return NewTink(handle, cfg)
}

// LoadTink reads a JSON public keyset from fs.
func LoadTink(fs afero.Fs, keysetPath string, cfg TinkConfig) (*Tink, error) {
	data, err := afero.ReadFile(fs, keysetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyset %s: %w", keysetPath, err)
	}

	enc, err := NewTinkFromJSON(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyset %s: %w", keysetPath, err)
	}
	return enc, nil
}

func (t *Tink) Name() string {
	return fmt.Sprintf("tink(%d)", t.keyID)
}

func (t *Tink) Kind() string {
	return TinkKind
}

func (t *Tink) Encrypt(plaintext []byte) ([]byte, error) {
	ciphertext, err := t.primitive.Encrypt(plaintext, t.contextInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to hybrid encrypt: %w", err)
	}
	return ciphertext, nil
}
