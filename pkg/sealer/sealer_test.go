package sealer

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	s, err := New(key)
	require.NoError(t, err)
	return s
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s := newTestSealer(t)

	token, err := s.Seal("6650f1a2b3c4d5e6f7a8b9c0", "user-42")
	require.NoError(t, err)
	assert.NotContains(t, token, "user-42")

	bookingID, userID, err := s.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "6650f1a2b3c4d5e6f7a8b9c0", bookingID)
	assert.Equal(t, "user-42", userID)
}

func TestSeal_NonDeterministic(t *testing.T) {
	s := newTestSealer(t)

	a, err := s.Seal("b1", "u1")
	require.NoError(t, err)
	b, err := s.Seal("b1", "u1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSeal_RejectsSeparatorInFirst(t *testing.T) {
	s := newTestSealer(t)
	_, err := s.Seal("a:b", "u1")
	assert.Error(t, err)
}

func TestOpen_Invalid(t *testing.T) {
	s := newTestSealer(t)
	other := newTestSealer(t)

	foreign, err := other.Seal("b1", "u1")
	require.NoError(t, err)

	valid, err := s.Seal("b1", "u1")
	require.NoError(t, err)
	raw, _ := base64.RawURLEncoding.DecodeString(valid)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "***"},
		{"too short", "AAAA"},
		{"other key", foreign},
		{"tampered", tampered},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Open(tt.token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestNew_BadKey(t *testing.T) {
	_, err := New("not-base64!")
	assert.Error(t, err)

	_, err = New(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
