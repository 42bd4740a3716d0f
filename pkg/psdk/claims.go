package psdk

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of access-token claims the CLI displays.
type TokenClaims struct {
	Subject   string
	UserID    string
	Wallet    string
	OrgID     string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token expires within skew of now. Tokens
// without an exp claim never expire.
func (c *TokenClaims) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

func ParseTokenClaims(tokenStr string) (jwt.MapClaims, error) {
	var claims jwt.MapClaims
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(tokenStr, &claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseClaims decodes an access token without verifying it. The signature is
// the backend's concern; the client only reads it for display and expiry.
func ParseClaims(tokenStr string) (*TokenClaims, error) {
	mc, err := ParseTokenClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	return FromMapClaims(mc), nil
}

func FromMapClaims(mc jwt.MapClaims) *TokenClaims {
	tc := &TokenClaims{
		Subject: stringClaim(mc["sub"]),
		UserID:  stringClaim(mc["user_id"]),
		OrgID:   stringClaim(mc["org_id"]),
	}
	if w, ok := mc["wallet"].(string); ok {
		tc.Wallet = w
	}
	if tt, ok := mc["token_type"].(string); ok {
		tc.TokenType = tt
	}
	if iat, ok := numericClaim(mc["iat"]); ok {
		tc.IssuedAt = time.Unix(iat, 0)
	}
	if exp, ok := numericClaim(mc["exp"]); ok {
		tc.ExpiresAt = time.Unix(exp, 0)
	}
	return tc
}

func stringClaim(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func numericClaim(v any) (int64, bool) {
	switch v := v.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
