package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	var stored walletFile
	require.NoError(t, json.Unmarshal(blob, &stored))
	assert.Equal(t, walletFileVersion, stored.Version)
	assert.NotContains(t, string(blob), testKeyHex)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "hunter3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	require.Error(t, err)

	_, err = EncryptKey("not-hex", "hunter2")
	require.Error(t, err)

	_, err = EncryptKey("deadbeef", "hunter2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32-byte")
}

func TestDecryptKeyRejectsUnknownVersion(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)
	tampered := strings.Replace(string(blob), `"version": 1`, `"version": 9`, 1)

	_, err = DecryptKey([]byte(tampered), "hunter2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadKeyRawWinsOverFile(t *testing.T) {
	blob, err := EncryptKey("aa"+testKeyHex[2:], "hunter2")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{
		RawPrivateKey:    "0x" + testKeyHex,
		EncryptedKeyPath: path,
		KeyPassword:      "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyErrors(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	require.Error(t, err)

	_, err = LoadKey(KeyConfig{RawPrivateKey: "zz"})
	require.Error(t, err)

	_, err = LoadKey(KeyConfig{EncryptedKeyPath: filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
}
