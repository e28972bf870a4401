package crypto

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	sealer, err := NewSealerFromBase64(key)
	require.NoError(t, err)
	return sealer
}

func TestNewSealer(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"valid key size", 32, nil},
		{"too short", 16, ErrInvalidKeySize},
		{"too long", 64, ErrInvalidKeySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealer, err := NewSealer(make([]byte, tt.size))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, sealer)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, sealer)
		})
	}
}

func TestNewSealerFromBase64(t *testing.T) {
	_, err := NewSealerFromBase64("not-valid-base64!!!")
	assert.Error(t, err)

	_, err = NewSealerFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 16)))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	sealer, err := NewSealerFromBase64(" " + base64.StdEncoding.EncodeToString(make([]byte, 32)) + "\n")
	require.NoError(t, err)
	assert.NotNil(t, sealer)
}

func TestSealer_SealOpen(t *testing.T) {
	sealer := newTestSealer(t)

	for _, plaintext := range []string{"token-12345", "🔐 Тест 日本語", strings.Repeat("x", 4096)} {
		sealed, err := sealer.Seal(plaintext)
		require.NoError(t, err)
		assert.True(t, IsSealed(sealed))
		assert.NotContains(t, sealed, plaintext)

		opened, err := sealer.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}

	t.Run("empty string stays empty", func(t *testing.T) {
		sealed, err := sealer.Seal("")
		require.NoError(t, err)
		assert.Empty(t, sealed)

		opened, err := sealer.Open("")
		require.NoError(t, err)
		assert.Empty(t, opened)
	})

	t.Run("random nonce", func(t *testing.T) {
		a, err := sealer.Seal("same")
		require.NoError(t, err)
		b, err := sealer.Seal("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestSealer_OpenErrors(t *testing.T) {
	sealer := newTestSealer(t)

	_, err := sealer.Open("plain-token")
	assert.ErrorIs(t, err, ErrNotSealed)

	_, err = sealer.Open(sealedPrefix + "!!!")
	assert.Error(t, err)

	_, err = sealer.Open(sealedPrefix + base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	sealed, err := sealer.Seal("secret")
	require.NoError(t, err)
	_, err = newTestSealer(t).Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestLoadOrCreateKey(t *testing.T) {
	t.Run("explicit key wins", func(t *testing.T) {
		key, err := LoadOrCreateKey("explicit", filepath.Join(t.TempDir(), "key"))
		require.NoError(t, err)
		assert.Equal(t, "explicit", key)
	})

	t.Run("generates once then reuses", func(t *testing.T) {
		keyFile := filepath.Join(t.TempDir(), "nested", "session.key")

		first, err := LoadOrCreateKey("", keyFile)
		require.NoError(t, err)
		_, err = NewSealerFromBase64(first)
		require.NoError(t, err)

		info, err := os.Stat(keyFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		second, err := LoadOrCreateKey("", keyFile)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("no key source", func(t *testing.T) {
		_, err := LoadOrCreateKey("", "")
		assert.Error(t, err)
	})
}
