// Package encryptors provides the transforms used to seal finished archives.
package encryptors

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.mozilla.org/pkcs7"
)

const CMSKind = "cms"

// CMS algorithm names accepted by CMSConfig.
const (
	AlgorithmAES256CBC = "aes256-cbc"
	AlgorithmAES128CBC = "aes128-cbc"
	AlgorithmAES256GCM = "aes256-gcm"
	AlgorithmAES128GCM = "aes128-gcm"
	AlgorithmDESCBC    = "des-cbc"
)

var cmsAlgorithms = map[string]int{
	AlgorithmAES256CBC: pkcs7.EncryptionAlgorithmAES256CBC,
	AlgorithmAES128CBC: pkcs7.EncryptionAlgorithmAES128CBC,
	AlgorithmAES256GCM: pkcs7.EncryptionAlgorithmAES256GCM,
	AlgorithmAES128GCM: pkcs7.EncryptionAlgorithmAES128GCM,
	AlgorithmDESCBC:    pkcs7.EncryptionAlgorithmDESCBC,
}

// ErrNoCertificate is returned when PEM input holds no CERTIFICATE block.
var ErrNoCertificate = errors.New("no certificate found in PEM data")

// pkcs7 selects the content cipher through a package variable.
var cmsMu sync.Mutex

// CMSConfig configures CMS enveloped-data encryption.
type CMSConfig struct {
	// Algorithm is the content encryption algorithm. Defaults to "aes256-cbc".
	Algorithm string
}

// CMS encrypts archives as CMS/PKCS#7 enveloped data for a single certificate.
type CMS struct {
	cert      *x509.Certificate
	algorithm string
	cipher    int
}

// NewCMS creates a CMS encryptor for the given recipient certificate.
func NewCMS(cert *x509.Certificate, cfg CMSConfig) (*CMS, error) {
	if cert == nil {
		return nil, fmt.Errorf("recipient certificate is required")
	}

	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = AlgorithmAES256CBC
	}

	cipher, ok := cmsAlgorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported CMS algorithm: %s", cfg.Algorithm)
	}

	return &CMS{cert: cert, algorithm: algorithm, cipher: cipher}, nil
}

// NewCMSFromPEM parses the first CERTIFICATE block of pemData.
func NewCMSFromPEM(pemData []byte, cfg CMSConfig) (*CMS, error) {
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNoCertificate
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		return NewCMS(cert, cfg)
	}
}

// LoadCMS reads a PEM certificate from fs.
func LoadCMS(fs afero.Fs, pemPath string, cfg CMSConfig) (*CMS, error) {
	data, err := afero.ReadFile(fs, pemPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate %s: %w", pemPath, err)
	}

	enc, err := NewCMSFromPEM(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate %s: %w", pemPath, err)
	}
	return enc, nil
}

func (c *CMS) Name() string {
	return fmt.Sprintf("cms(%s, %s)", c.cert.Subject.CommonName, c.algorithm)
}

func (c *CMS) Kind() string {
	return CMSKind
}

// Certificate returns the recipient certificate.
func (c *CMS) Certificate() *x509.Certificate {
	return c.cert
}

// Encrypt returns the DER-encoded enveloped data for plaintext.
func (c *CMS) Encrypt(plaintext []byte) ([]byte, error) {
	cmsMu.Lock()
	defer cmsMu.Unlock()

	previous := pkcs7.ContentEncryptionAlgorithm
	pkcs7.ContentEncryptionAlgorithm = c.cipher
	defer func() {
		pkcs7.ContentEncryptionAlgorithm = previous
	}()

	ciphertext, err := pkcs7.Encrypt(plaintext, []*x509.Certificate{c.cert})
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt enveloped data: %w", err)
	}
	return ciphertext, nil
}
