package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	require.NoError(t, Init())

	id := uuid.NewString()
	token, err := CreateJWT(id)
	require.NoError(t, err)

	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestJWTRejectsGarbage(t *testing.T) {
	require.NoError(t, Init())

	_, err := AuthenticateJWT("not.a.jwt")
	assert.Error(t, err)
}

func TestJWTRejectsForeignKey(t *testing.T) {
	require.NoError(t, Init())
	token, err := CreateJWT(uuid.NewString())
	require.NoError(t, err)

	// Re-keying the server invalidates outstanding sessions.
	require.NoError(t, Init())
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}
