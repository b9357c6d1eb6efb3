// Package cryptox implements at-rest encryption for vault secrets and
// provider session state: AES-GCM with keys derived from the configured
// passphrase via argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DeriveKey derives a 32-byte AES-256 key from a passphrase and a per-record
// salt using argon2id. The same (passphrase, salt) pair always yields the
// same key, so a record can be decrypted later given its stored salt.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// GenerateSalt returns a new random salt of the given length.
func GenerateSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt generation failed: %w", err)
	}
	return salt, nil
}

// Seal encrypts plaintext using AES-GCM.
//
// The key must be a valid AES key length (16, 24, or 32 bytes). A new random
// 12-byte nonce is generated for each call and returned separately; store it
// alongside the ciphertext, it is required for Open.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)

	return ciphertext, nonce, nil
}

// Open decrypts ciphertext produced by Seal with the same key and nonce.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// SealJSON serializes v to JSON and encrypts it with Seal. Used for
// structured payloads such as provider session state (cookie maps) and
// trusted-device lists.
func SealJSON(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return Seal(plaintext, key)
}

// OpenJSON decrypts ciphertext with Open and unmarshals the resulting JSON
// into v.
func OpenJSON(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Open(ciphertext, nonce, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}
