package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	tok, err := GenerateToken("s3cret", 42, "ada", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := GenerateToken("s3cret", 42, "ada", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	tok, err := GenerateToken("s3cret", 42, "ada", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("s3cret", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMissingUser(t *testing.T) {
	tok, err := GenerateToken("s3cret", 0, "ghost", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("s3cret", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
