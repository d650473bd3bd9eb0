package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"netchatbridge/internal/constants"

	"golang.org/x/crypto/pbkdf2"
)

// Stored bridge records carry the NetChat room password, so the store
// supports optional AES-GCM encryption of values. The key is derived
// from NETCHAT_BRIDGE_ENCRYPTION_SECRET; with the variable unset the
// store operates in plaintext.
type encryptor struct {
	gcm cipher.AEAD
}

func newEncryptor() (*encryptor, error) {
	secret := os.Getenv(constants.EncryptionSecretEnvVar)
	if secret == "" {
		return &encryptor{}, nil
	}
	if len(secret) < constants.MinimumEncryptionSecretLen {
		return nil, fmt.Errorf("encryption secret must be at least %d characters", constants.MinimumEncryptionSecretLen)
	}

	salt := sha256.Sum256([]byte("netchat-bridge-store-salt"))
	key := pbkdf2.Key([]byte(secret), salt[:], constants.EncryptionKeyIterations, constants.EncryptionKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) enabled() bool {
	return e.gcm != nil
}

// EncryptIfEnabled seals the plaintext with a random nonce prepended, or
// returns it untouched when encryption is off.
func (e *encryptor) EncryptIfEnabled(plaintext string) (string, error) {
	if !e.enabled() || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, constants.EncryptionNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

// DecryptIfEnabled reverses EncryptIfEnabled.
func (e *encryptor) DecryptIfEnabled(stored string) (string, error) {
	if !e.enabled() || stored == "" {
		return stored, nil
	}

	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(raw) < constants.EncryptionNonceSize {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, ciphertext := raw[:constants.EncryptionNonceSize], raw[constants.EncryptionNonceSize:]
	plain, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plain), nil
}
