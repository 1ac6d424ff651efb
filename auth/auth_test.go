package auth

import (
	"huddle/errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var secret = []byte("a_test_secret_long_enough_for_hs256")

func TestGenerateAndValidateToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(secret, "alice", []string{"player"}, time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(secret, token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal([]string{"player"}, claims.Roles)
	req.Equal("huddle", claims.Issuer)
}

func TestValidateToken_Rejections(t *testing.T) {
	expired, err := GenerateToken(secret, "alice", nil, -time.Minute)
	require.NoError(t, err)
	otherSecret, err := GenerateToken([]byte("another_secret_entirely_different"), "alice", nil, time.Hour)
	require.NoError(t, err)
	anonymous, err := GenerateToken(secret, "", nil, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &CustomClaims{UserID: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"signed with another secret", otherSecret},
		{"no user id", anonymous},
		{"unsigned", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(secret, tt.token)
			require.ErrorIs(t, err, errors.ErrInvalidToken)
		})
	}
}
