package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	svc := NewService([]byte("test-secret"))

	token, err := svc.Sign("user-1", "NEO", time.Minute)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "NEO", claims.DisplayName)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewService([]byte("secret-a")).Sign("user-1", "NEO", time.Minute)
	require.NoError(t, err)

	_, err = NewService([]byte("secret-b")).Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewService([]byte("test-secret"))
	token, err := svc.Sign("user-1", "NEO", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}
