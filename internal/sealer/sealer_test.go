package sealer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T, purpose string) *Sealer {
	t.Helper()
	encoded, err := GenerateKey()
	require.NoError(t, err)
	key, err := ParseKey(encoded)
	require.NoError(t, err)
	s, err := New(key, purpose)
	require.NoError(t, err)
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := newTestSealer(t, "vault")
	plaintext := []byte(`{"v":1,"brand":"Acme","code":"ABCD-1234"}`)

	sealed, err := s.Seal(plaintext)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, []byte("ABCD-1234")))

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealer_NonceIsRandom(t *testing.T) {
	s := newTestSealer(t, "vault")
	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_DetectsCorruption(t *testing.T) {
	s := newTestSealer(t, "vault")
	sealed, err := s.Seal([]byte("gift card code"))
	require.NoError(t, err)

	for i := 1; i < len(sealed); i++ {
		corrupted := append([]byte(nil), sealed...)
		corrupted[i] ^= 0x01
		_, err := s.Open(corrupted)
		assert.ErrorIs(t, err, ErrAuthentication, "byte %d", i)
	}
}

func TestSealer_RejectsUnknownVersionAndShortInput(t *testing.T) {
	s := newTestSealer(t, "vault")
	sealed, err := s.Seal([]byte("x"))
	require.NoError(t, err)

	sealed[0] = 9
	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = s.Open([]byte{formatV1, 1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSealer_WrongKeyOrPurpose(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	vault, err := New(key, "vault")
	require.NoError(t, err)
	other, err := New(key, "other")
	require.NoError(t, err)

	sealed, err := vault.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrAuthentication)

	stranger := newTestSealer(t, "vault")
	_, err = stranger.Open(sealed)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestParseKey_Invalid(t *testing.T) {
	_, err := ParseKey("not base64!")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseKey("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = New([]byte("short"), "vault")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
