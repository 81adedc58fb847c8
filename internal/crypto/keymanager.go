// Package crypto resolves and protects the trading wallet key and signs
// CLOB API requests (EIP-712 structs, HMAC headers).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations follows the OWASP minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	// walletFileVersion is the schema version of the encrypted wallet file.
	walletFileVersion = 1
)

// walletFile is the on-disk layout of an encrypted trading wallet key.
// All binary fields are standard base64.
type walletFile struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig names the sources LoadKey may resolve the wallet key from.
type KeyConfig struct {
	// RawPrivateKey is a hex key, with or without 0x prefix. When set it
	// wins over the encrypted file.
	RawPrivateKey string

	// EncryptedKeyPath points at a file written by EncryptKey.
	EncryptedKeyPath string

	// KeyPassword decrypts the file at EncryptedKeyPath.
	KeyPassword string
}

// normalizeKeyHex strips the optional 0x prefix and checks the key decodes
// to exactly 32 bytes.
func normalizeKeyHex(privateKeyHex string) ([]byte, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("crypto: expected 32-byte key, got %d bytes", len(keyBytes))
	}
	return keyBytes, nil
}

// aeadFor derives an AES-256 key from the password and salt and returns the
// GCM instance over it.
func aeadFor(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// EncryptKey seals a hex-encoded wallet key under a password, using
// PBKDF2-HMAC-SHA256 for key derivation and AES-256-GCM for the payload.
// The returned JSON is what LoadKey expects at EncryptedKeyPath.
func EncryptKey(privateKeyHex string, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	keyBytes, err := normalizeKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	gcm, err := aeadFor(password, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := walletFile{
		Version:    walletFileVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, keyBytes, nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKey opens a wallet file written by EncryptKey and returns the hex
// key without 0x prefix.
func DecryptKey(encryptedJSON []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}

	var stored walletFile
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return "", fmt.Errorf("crypto: parsing wallet file: %w", err)
	}
	if stored.Version != walletFileVersion {
		return "", fmt.Errorf("crypto: unsupported wallet file version %d", stored.Version)
	}

	fields := map[string]string{
		"salt":       stored.Salt,
		"nonce":      stored.Nonce,
		"ciphertext": stored.Ciphertext,
	}
	decoded := make(map[string][]byte, len(fields))
	for name, value := range fields {
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return "", fmt.Errorf("crypto: decoding %s: %w", name, err)
		}
		decoded[name] = b
	}

	gcm, err := aeadFor(password, decoded["salt"])
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, decoded["nonce"], decoded["ciphertext"], nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	return hex.EncodeToString(plaintext), nil
}

// LoadKey resolves the trading wallet key. A raw hex key wins over an
// encrypted file; with neither configured it errors.
func LoadKey(cfg KeyConfig) (string, error) {
	if cfg.RawPrivateKey != "" {
		keyBytes, err := normalizeKeyHex(cfg.RawPrivateKey)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(keyBytes), nil
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: reading wallet file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}

	return "", errors.New("crypto: no wallet key configured (set RawPrivateKey or EncryptedKeyPath)")
}
