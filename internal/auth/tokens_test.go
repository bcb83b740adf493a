package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("access-secret", "refresh-secret", time.Hour, 7*time.Hour)

	access, refresh, err := manager.GenerateTokens(42, "alice")
	req.NoError(err)
	req.NotEmpty(access)
	req.NotEmpty(refresh)

	claims, err := manager.VerifyAccess(access)
	req.NoError(err)
	req.Equal(int64(42), claims.AccountID)
	req.Equal("alice", claims.Username)

	claims, err = manager.VerifyRefresh(refresh)
	req.NoError(err)
	req.Equal(int64(42), claims.AccountID)
}

func TestTokenManager_SecretsNotInterchangeable(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("access-secret", "refresh-secret", time.Hour, 7*time.Hour)

	access, refresh, err := manager.GenerateTokens(42, "alice")
	req.NoError(err)

	_, err = manager.VerifyAccess(refresh)
	req.ErrorIs(err, ErrInvalidToken)

	_, err = manager.VerifyRefresh(access)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("access-secret", "refresh-secret", -time.Minute, 7*time.Hour)

	access, _, err := manager.GenerateTokens(42, "alice")
	req.NoError(err)

	_, err = manager.VerifyAccess(access)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenManager_Garbage(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("access-secret", "refresh-secret", time.Hour, 7*time.Hour)

	_, err := manager.VerifyAccess("not.a.token")
	req.ErrorIs(err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("hunter22")
	req.NoError(err)
	req.NotEqual("hunter22", hash)

	req.True(CheckPassword(hash, "hunter22"))
	req.False(CheckPassword(hash, "hunter23"))
}

func TestGenerateCode(t *testing.T) {
	req := require.New(t)

	code, err := GenerateCode(16)
	req.NoError(err)
	req.Len(code, 32)

	other, err := GenerateCode(16)
	req.NoError(err)
	req.NotEqual(code, other)
}
