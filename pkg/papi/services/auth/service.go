package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quatton/paydesk/pkg/kv"
	"github.com/quatton/paydesk/pkg/papi/config"
	"github.com/quatton/paydesk/pkg/papi/schemas"
	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/plog"
	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenAudience is the expected audience claim for access tokens.
	TokenAudience = "paydesk"
	TokenIssuer   = "paydesk-stub"

	AppName   = "Inco Payroll"
	AppDomain = "localhost"

	// Key prefixes for KV store
	kvPrefixNonce   = "auth:nonce:"
	kvPrefixRefresh = "auth:refresh:"
)

var (
	ErrInvalidWallet       = errors.New("wallet must be a valid EVM address")
	ErrInvalidNonce        = errors.New("invalid or already used nonce")
	ErrSignature           = errors.New("signature verification failed")
	ErrInvalidRefreshToken = errors.New("token is invalid or expired")
	ErrInvalidCredentials  = errors.New("no active account found with the given credentials")
)

var signatureRe = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)

// OrgLookup resolves the organization placed in a wallet's access token.
type OrgLookup interface {
	ActiveOrgID(ctx context.Context, wallet string) (int64, bool, error)
}

type passwordUser struct {
	hash   []byte
	wallet string
}

// AuthService issues login nonces and the access/refresh token pair. Nonces
// and refresh tokens live in KV; access tokens are stateless HS256 JWTs.
type AuthService struct {
	jwtSecret  []byte
	kv         kv.Store
	orgs       OrgLookup
	users      map[string]passwordUser
	log        *plog.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	nonceTTL   time.Duration
	rotate     bool
	now        func() time.Time
}

// AccessClaims is the access token body. wallet and org_id are what the
// SDK shows in `auth status`.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	Wallet    string `json:"wallet"`
	OrgID     *int64 `json:"org_id,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a login or refresh. Refresh is empty when a
// refresh did not rotate.
type TokenPair struct {
	Access  string
	Refresh string
}

func NewAuthService(cfg *config.EnvConfig, kvStore kv.Store, orgs OrgLookup, log *plog.Logger) (*AuthService, error) {
	if log == nil {
		log = plog.NewDefault()
	}

	seeded, err := cfg.Users()
	if err != nil {
		return nil, err
	}
	users := make(map[string]passwordUser, len(seeded))
	for _, u := range seeded {
		hash := []byte(u.Password)
		if _, err := bcrypt.Cost(hash); err != nil {
			hash, err = bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password for %s: %w", u.Username, err)
			}
		}
		users[u.Username] = passwordUser{hash: hash, wallet: u.Wallet}
	}

	return &AuthService{
		jwtSecret:  []byte(cfg.AuthSecret),
		kv:         kvStore,
		orgs:       orgs,
		users:      users,
		log:        log,
		accessTTL:  time.Duration(cfg.AccessTokenTTL) * time.Second,
		refreshTTL: time.Duration(cfg.RefreshTokenTTL) * time.Second,
		nonceTTL:   time.Duration(cfg.NonceTTL) * time.Second,
		rotate:     cfg.RotateRefreshTokens,
		now:        time.Now,
	}, nil
}

// SetClock replaces the time source used for token issue and validation.
// KV expiry still follows the store's own clock.
func (s *AuthService) SetClock(now func() time.Time) { s.now = now }

func (s *AuthService) Rotates() bool { return s.rotate }

// IssueNonce stores a single-use login nonce and returns the message the
// wallet has to sign.
func (s *AuthService) IssueNonce(ctx context.Context, wallet string, chainID *int64) (payroll.WalletNonce, error) {
	w, err := payroll.ChecksumAddress(wallet)
	if err != nil {
		return payroll.WalletNonce{}, ErrInvalidWallet
	}

	nonce := randomHex(16)
	chain := "any"
	if chainID != nil {
		chain = fmt.Sprint(*chainID)
	}
	message := fmt.Sprintf("%s wallet login\ndomain: %s\nwallet: %s\nnonce: %s\nissuedAt: %s\nchainId: %s",
		AppName, AppDomain, w, nonce, s.now().UTC().Format(time.RFC3339Nano), chain)

	if err := s.kv.Set(ctx, nonceKey(w, nonce), []byte(message), s.nonceTTL); err != nil {
		return payroll.WalletNonce{}, fmt.Errorf("failed to store nonce: %w", err)
	}
	return payroll.WalletNonce{Wallet: w, Nonce: nonce, Message: message}, nil
}

// ConsumeNonce checks the signature and burns the nonce. The signature is
// only checked for shape: 65 bytes of hex.
func (s *AuthService) ConsumeNonce(ctx context.Context, wallet, nonce, signature string) (string, error) {
	w, err := payroll.NormalizeWallet(wallet)
	if err != nil {
		return "", ErrInvalidWallet
	}
	if !signatureRe.MatchString(strings.TrimSpace(signature)) {
		return "", ErrSignature
	}

	if _, err := s.kv.GetDel(ctx, nonceKey(w, nonce)); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrInvalidNonce
		}
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	return w, nil
}

func nonceKey(wallet, nonce string) string {
	return kvPrefixNonce + strings.ToLower(wallet) + ":" + nonce
}

// Login checks a username and password against the seeded users and
// returns the wallet the user is bound to.
func (s *AuthService) Login(username, password string) (string, error) {
	u, ok := s.users[username]
	if !ok {
		// Unknown users cost the same as a wrong password.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return u.wallet, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("paydesk"), bcrypt.DefaultCost)

// IssueAccessToken mints an access JWT for a lowercase wallet.
func (s *AuthService) IssueAccessToken(ctx context.Context, wallet string) (string, error) {
	now := s.now()
	claims := AccessClaims{
		UserID:    "wallet_" + wallet,
		Wallet:    wallet,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	if s.orgs != nil {
		id, ok, err := s.orgs.ActiveOrgID(ctx, wallet)
		if err != nil {
			return "", fmt.Errorf("failed to resolve active org: %w", err)
		}
		if ok {
			claims.OrgID = &id
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// IssueTokens mints a fresh access/refresh pair.
func (s *AuthService) IssueTokens(ctx context.Context, wallet string) (TokenPair, error) {
	access, err := s.IssueAccessToken(ctx, wallet)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.createRefreshToken(ctx, wallet)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// on, the old refresh token is revoked and a new one returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	wallet, err := s.verifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	if !s.rotate {
		access, err := s.IssueAccessToken(ctx, wallet)
		if err != nil {
			return TokenPair{}, err
		}
		return TokenPair{Access: access}, nil
	}

	if err := s.kv.Delete(ctx, kvPrefixRefresh+hashToken(refreshToken)); err != nil {
		// Log but don't fail, the token was valid
		s.log.Warn("failed to delete old refresh token", "error", err)
	}
	return s.IssueTokens(ctx, wallet)
}

// Revoke drops a refresh token. Unknown tokens are ignored.
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) error {
	return s.kv.Delete(ctx, kvPrefixRefresh+hashToken(refreshToken))
}

func (s *AuthService) createRefreshToken(ctx context.Context, wallet string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.kv.Set(ctx, kvPrefixRefresh+hashToken(raw), []byte(wallet), s.refreshTTL); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return raw, nil
}

func (s *AuthService) verifyRefreshToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidRefreshToken
	}
	data, err := s.kv.Get(ctx, kvPrefixRefresh+hashToken(token))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}
	return string(data), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(buf)
}

// ValidateToken verifies an access token and returns its principal. It
// enforces HMAC signing, audience and issuer, and rejects expired tokens.
func (s *AuthService) ValidateToken(tokenString string) (*schemas.Principal, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithAudience(TokenAudience),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != "access" {
		return nil, fmt.Errorf("unexpected token type %q", claims.TokenType)
	}
	if _, err := payroll.NormalizeWallet(claims.Wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet claim: %w", err)
	}

	return &schemas.Principal{Wallet: claims.Wallet, OrgID: claims.OrgID}, nil
}
