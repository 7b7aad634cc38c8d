package engine

// Encryptor seals a complete plaintext artifact for a single recipient.
// Implementations are stateless per call.
type Encryptor interface {
	Named
	Encrypt(plaintext []byte) ([]byte, error)
}
