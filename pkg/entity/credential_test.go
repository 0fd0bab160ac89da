package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Password123")
	require.NoError(t, err)
	assert.NotEqual(t, "Password123", hash)

	assert.True(t, VerifyPassword(hash, "Password123"))
	assert.False(t, VerifyPassword(hash, "password123"))
	assert.False(t, VerifyPassword("", "Password123"))
	assert.False(t, VerifyPassword("not-a-hash", "Password123"))
}

func TestHashPasswordTooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
