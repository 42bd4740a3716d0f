package psdk

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaims(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "0x1111111111111111111111111111111111111111",
		"user_id":    float64(42),
		"wallet":     "0x1111111111111111111111111111111111111111",
		"org_id":     float64(7),
		"token_type": "access",
		"iat":        float64(1000),
		"exp":        float64(2000),
	})
	tokenStr, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tc, err := ParseClaims(tokenStr)
	require.NoError(t, err)

	assert.Equal(t, "42", tc.UserID)
	assert.Equal(t, "7", tc.OrgID)
	assert.Equal(t, "access", tc.TokenType)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", tc.Wallet)
	assert.Equal(t, time.Unix(2000, 0), tc.ExpiresAt)
}

func TestTokenClaimsExpired(t *testing.T) {
	tc := &TokenClaims{ExpiresAt: time.Unix(2000, 0)}

	assert.False(t, tc.Expired(time.Unix(1000, 0), 30*time.Second))
	assert.True(t, tc.Expired(time.Unix(1980, 0), 30*time.Second))
	assert.True(t, tc.Expired(time.Unix(3000, 0), 0))
	assert.False(t, (&TokenClaims{}).Expired(time.Now(), 0))
}

func TestParseClaimsRejectsGarbage(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	assert.Error(t, err)
}
