// Package testcert generates throwaway recipients for sealing tests.
package testcert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"
)

// Recipient is a self-signed certificate and its private key.
type Recipient struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
	PEM  []byte
}

// New generates an RSA recipient valid for one day.
func New(t testing.TB, commonName string) *Recipient {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &Recipient{
		Cert: cert,
		Key:  key,
		PEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

// Decrypt opens CMS enveloped data addressed to r.
func (r *Recipient) Decrypt(t testing.TB, ciphertext []byte) []byte {
	t.Helper()

	p7, err := pkcs7.Parse(ciphertext)
	require.NoError(t, err)

	plaintext, err := p7.Decrypt(r.Cert, r.Key)
	require.NoError(t, err)
	return plaintext
}
