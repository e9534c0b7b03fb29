// Package vault encrypts stored credentials (source passwords) at rest
// using AES-256-GCM keyed by a locally persisted key file.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

const keySize = 32

// Vault performs symmetric encryption of secrets. The key is generated
// on first use and written next to the application data with 0600
// permissions.
type Vault struct {
	aead cipher.AEAD
}

// New loads the key file at keyPath, creating it with a fresh random
// key if it does not exist yet.
func New(keyPath string) (*Vault, error) {
	key, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		key = make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate vault key: %w", err)
		}
		if dir := filepath.Dir(keyPath); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create key directory: %w", err)
			}
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write vault key: %w", err)
		}
		log.Printf("vault: generated new key at %s", keyPath)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read vault key: %w", err)
	}

	if len(key) != keySize {
		return nil, fmt.Errorf("vault key at %s has invalid size %d", keyPath, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt returns the base64 ciphertext of plain. The empty string is
// passed through without invoking the cipher.
func (v *Vault) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. The empty string is passed through without
// invoking the cipher. Malformed or foreign ciphertext fails soft: the
// error is logged and the empty string returned, so a corrupted stored
// password degrades to "not configured" instead of breaking config load.
func (v *Vault) Decrypt(encrypted string) string {
	if encrypted == "" {
		return ""
	}

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		log.Printf("vault: failed to decode ciphertext: %v", err)
		return ""
	}
	if len(raw) < v.aead.NonceSize() {
		log.Printf("vault: ciphertext shorter than nonce")
		return ""
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		log.Printf("vault: failed to decrypt stored secret: %v", err)
		return ""
	}
	return string(plain)
}
