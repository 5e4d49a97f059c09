package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("secret", "ops", RoleAdmin, 30)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(30*time.Minute), tok.Exp, 5*time.Second)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "ops", claims["sub"])
	assert.Equal(t, RoleAdmin, claims["role"])

	_, err = NewAccessToken("", "ops", RoleAdmin, 30)
	assert.Error(t, err)
	_, err = NewAccessToken("secret", "ops", RoleAdmin, 0)
	assert.Error(t, err)
}
