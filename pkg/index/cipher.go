package index

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"lukechampine.com/blake3"
)

// Algorithm names the AEAD scheme used to encrypt a persisted snapshot.
type Algorithm string

const (
	AES256GCM           Algorithm = "AES-256-GCM"
	ChaCha20Poly1305    Algorithm = "ChaCha20-Poly1305"
	XChaCha20Poly1305   Algorithm = "XChaCha20-Poly1305"
)

func (a Algorithm) keySize() int {
	return 32
}

func (a Algorithm) nonceSize() int {
	if a == XChaCha20Poly1305 {
		return 24
	}
	return 12
}

// ErrDecryption indicates a key or algorithm mismatch on open.
type ErrDecryption struct{ Reason string }

func (e ErrDecryption) Error() string { return fmt.Sprintf("decryption failed: %s", e.Reason) }

// Envelope is the wire form of an AEAD-sealed snapshot.
type Envelope struct {
	Algorithm  Algorithm `json:"algorithm"`
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	Aad        []byte    `json:"aad,omitempty"`
	KeyHash    string    `json:"key_hash"`
}

// Cipher seals and opens index snapshots with a fixed key and algorithm.
type Cipher struct {
	key       []byte
	algorithm Algorithm
	keyHash   string
	aad       []byte
}

// NewCipher returns a Cipher for algorithm using key, which must be
// exactly 32 bytes for every algorithm this module supports.
func NewCipher(key []byte, algorithm Algorithm, aad []byte) (*Cipher, error) {
	if len(key) != algorithm.keySize() {
		return nil, fmt.Errorf("invalid key size: expected %d, got %d", algorithm.keySize(), len(key))
	}
	return &Cipher{key: key, algorithm: algorithm, keyHash: hashKey(key), aad: aad}, nil
}

func hashKey(key []byte) string {
	sum := blake3.Sum256(key)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	switch c.algorithm {
	case AES256GCM:
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(c.key)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(c.key)
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", c.algorithm)
	}
}

// Seal encrypts plaintext into an Envelope with a freshly generated
// random nonce.
func (c *Cipher) Seal(plaintext []byte) (Envelope, error) {
	aead, err := c.aead()
	if err != nil {
		return Envelope{}, err
	}
	nonce := make([]byte, c.algorithm.nonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Envelope{}, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, c.aad)
	return Envelope{
		Algorithm:  c.algorithm,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Aad:        c.aad,
		KeyHash:    c.keyHash,
	}, nil
}

// Open decrypts envelope, returning ErrDecryption if the envelope's key
// hash doesn't match this Cipher's key (key rotation) or its algorithm
// doesn't match.
func (c *Cipher) Open(envelope Envelope) ([]byte, error) {
	if envelope.KeyHash != c.keyHash {
		return nil, ErrDecryption{Reason: "Key mismatch"}
	}
	if envelope.Algorithm != c.algorithm {
		return nil, ErrDecryption{Reason: "Algorithm mismatch"}
	}
	aead, err := c.aead()
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, envelope.Nonce, envelope.Ciphertext, envelope.Aad)
	if err != nil {
		return nil, ErrDecryption{Reason: err.Error()}
	}
	return plaintext, nil
}
