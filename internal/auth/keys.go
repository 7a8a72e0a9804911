// Package auth provides token issuance and verification for the ChordSeq server.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aidanwoods.dev/go-paseto"
)

const (
	// PASETO v4 requires a 256-bit (32-byte) symmetric key.
	keyLength = 32
	// Expected hex-encoded length (32 bytes = 64 hex characters).
	keyHexLength = 64

	accessKeyFile  = "access.key"
	signingKeyFile = "invite.key"
	publicKeyDir   = "invite_pub"
)

// LoadOrGenerateAccessKey loads or generates the PASETO v4 symmetric key for
// access tokens. The key is stored in <keyPath>/access.key as a hex-encoded
// string. If the file doesn't exist, a new key is generated and saved.
// Returns the decoded 32-byte key ready for use.
func LoadOrGenerateAccessKey(keyPath string) ([]byte, error) {
	file := filepath.Join(keyPath, accessKeyFile)

	//#nosec G304 -- key path comes from validated configuration
	if keyBytes, err := os.ReadFile(file); err == nil {
		keyHex := strings.TrimSpace(string(keyBytes))
		if len(keyHex) != keyHexLength {
			return nil, fmt.Errorf("invalid access key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
		}
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid access key format: not valid hex: %w", err)
		}
		return key, nil
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate access key: %w", err)
	}

	if err := os.MkdirAll(keyPath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(file, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save access key: %w", err)
	}
	return key, nil
}

// LoadOrGenerateSigningKey loads or generates the Ed25519 signing key used
// for invitation tokens. The private key lives in <keyPath>/invite.key; its
// public half is also written to <keyPath>/invite_pub/<keyid>.pub so the
// verification key set can pick it up (and keep verifying tokens signed by
// previously rotated keys).
func LoadOrGenerateSigningKey(keyPath string) (paseto.V4AsymmetricSecretKey, error) {
	file := filepath.Join(keyPath, signingKeyFile)

	//#nosec G304 -- key path comes from validated configuration
	if keyBytes, err := os.ReadFile(file); err == nil {
		keyHex := strings.TrimSpace(string(keyBytes))
		key, err := paseto.NewV4AsymmetricSecretKeyFromHex(keyHex)
		if err != nil {
			return paseto.V4AsymmetricSecretKey{}, fmt.Errorf("invalid signing key: %w", err)
		}
		return key, nil
	}

	key := paseto.NewV4AsymmetricSecretKey()

	if err := os.MkdirAll(filepath.Join(keyPath, publicKeyDir), 0o700); err != nil {
		return paseto.V4AsymmetricSecretKey{}, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(file, []byte(key.ExportHex()), 0o600); err != nil {
		return paseto.V4AsymmetricSecretKey{}, fmt.Errorf("failed to save signing key: %w", err)
	}

	pub := key.Public()
	// Name the public key file by a short fingerprint so rotations coexist.
	pubFile := filepath.Join(keyPath, publicKeyDir, pub.ExportHex()[:16]+".pub")
	if err := os.WriteFile(pubFile, []byte(pub.ExportHex()), 0o600); err != nil {
		return paseto.V4AsymmetricSecretKey{}, fmt.Errorf("failed to save public key: %w", err)
	}
	return key, nil
}
