package cipher_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unholster/eventsourcing/pkg/cipher"
	"github.com/Unholster/eventsourcing/pkg/domain"
)

func TestGenerateKey(t *testing.T) {
	key, err := cipher.GenerateKey(32)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	other, err := cipher.GenerateKey(32)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestAEADRoundTrip(t *testing.T) {
	key, err := cipher.GenerateKey(32)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		make func() (*cipher.AEAD, error)
	}{
		{cipher.TopicAESGCM, func() (*cipher.AEAD, error) { return cipher.NewAESGCM(key) }},
		{cipher.TopicChaCha20, func() (*cipher.AEAD, error) { return cipher.NewChaCha20Poly1305(key) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := tc.make()
			require.NoError(t, err)

			plaintext := []byte("a state payload")
			sealed, err := c.Encode(plaintext)
			require.NoError(t, err)

			// nonce(12) || ciphertext || tag(16)
			assert.Len(t, sealed, 12+len(plaintext)+16)
			assert.False(t, bytes.Contains(sealed, plaintext))

			opened, err := c.Decode(sealed)
			require.NoError(t, err)
			assert.Equal(t, plaintext, opened)
		})
	}
}

func TestTamperDetection(t *testing.T) {
	key, err := cipher.GenerateKey(32)
	require.NoError(t, err)
	c, err := cipher.NewAESGCM(key)
	require.NoError(t, err)

	sealed, err := c.Encode([]byte("sensitive"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = c.Decode(sealed)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestTruncatedCiphertext(t *testing.T) {
	key, err := cipher.GenerateKey(32)
	require.NoError(t, err)
	c, err := cipher.NewAESGCM(key)
	require.NoError(t, err)

	_, err = c.Decode([]byte("short"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIntegrity)
}

func TestBadKeyLength(t *testing.T) {
	_, err := cipher.NewAESGCM([]byte("too short"))
	require.Error(t, err)

	_, err = cipher.NewChaCha20Poly1305([]byte("too short"))
	require.Error(t, err)
}
