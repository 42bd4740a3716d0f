package psdk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk/perr"
	"github.com/quatton/paydesk/pkg/session"
)

const (
	noncePath        = "/api/auth/nonce/"
	walletLoginPath  = "/api/auth/wallet-login/"
	loginPath        = "/api/auth/login/"
	mePath           = "/api/auth/me/"
	setActiveOrgPath = "/api/auth/set-active-org/"
)

// AuthService covers wallet login and the local session.
type AuthService struct {
	c *Client
}

// RequestNonce asks the backend for a login challenge. The returned message
// is what the wallet has to sign.
func (a *AuthService) RequestNonce(ctx context.Context, wallet string) (*payroll.WalletNonce, error) {
	w, err := payroll.NormalizeWallet(wallet)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}

	var out payroll.WalletNonce
	if err := a.c.Post(ctx, noncePath, map[string]string{"wallet": w}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WalletLogin exchanges a signed nonce for tokens and stores them along with
// the wallet. A login replaces whatever session existed, including the
// active organization.
func (a *AuthService) WalletLogin(ctx context.Context, wallet, signature, nonce string) (*payroll.WalletLoginResponse, error) {
	w, err := payroll.NormalizeWallet(wallet)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}
	if signature == "" || nonce == "" {
		return nil, perr.Newf(perr.CodeInvalidInput, "wallet, nonce, and signature are required")
	}

	var out payroll.WalletLoginResponse
	body := payroll.WalletLoginRequest{Wallet: w, Signature: signature, Nonce: nonce}
	if err := a.c.Post(ctx, walletLoginPath, body, &out); err != nil {
		return nil, err
	}
	if out.Access == "" {
		return nil, perr.Newf(perr.CodeUnknown, "login response has no access token")
	}

	st := a.c.Session()
	if err := session.Clear(ctx, st); err != nil {
		return nil, fmt.Errorf("clearing previous session: %w", err)
	}
	if err := session.SaveTokens(ctx, st, out.Access, out.Refresh); err != nil {
		return nil, fmt.Errorf("saving tokens: %w", err)
	}
	if err := st.Set(ctx, session.Wallet, w); err != nil {
		return nil, fmt.Errorf("saving wallet: %w", err)
	}
	if out.User.ActiveOrgID != nil {
		if err := st.Set(ctx, session.ActiveOrg, strconv.FormatInt(*out.User.ActiveOrgID, 10)); err != nil {
			return nil, fmt.Errorf("saving active org: %w", err)
		}
	}
	return &out, nil
}

// Login exchanges a username and password for tokens. Like WalletLogin it
// replaces the session; the wallet and active organization are read from
// the access token.
func (a *AuthService) Login(ctx context.Context, username, password string) (*payroll.TokenPair, error) {
	if username == "" || password == "" {
		return nil, perr.Newf(perr.CodeInvalidInput, "username and password are required")
	}

	var out payroll.TokenPair
	body := payroll.LoginRequest{Username: username, Password: password}
	if err := a.c.Post(ctx, loginPath, body, &out); err != nil {
		return nil, err
	}
	if out.Access == "" {
		return nil, perr.Newf(perr.CodeUnknown, "login response has no access token")
	}

	st := a.c.Session()
	if err := session.Clear(ctx, st); err != nil {
		return nil, fmt.Errorf("clearing previous session: %w", err)
	}
	if err := session.SaveTokens(ctx, st, out.Access, out.Refresh); err != nil {
		return nil, fmt.Errorf("saving tokens: %w", err)
	}
	claims, err := ParseClaims(out.Access)
	if err != nil {
		a.c.log.Warn("access token is not a readable JWT", "error", err)
		return &out, nil
	}
	if claims.Wallet != "" {
		if err := st.Set(ctx, session.Wallet, claims.Wallet); err != nil {
			return nil, fmt.Errorf("saving wallet: %w", err)
		}
	}
	if claims.OrgID != "" {
		if err := st.Set(ctx, session.ActiveOrg, claims.OrgID); err != nil {
			return nil, fmt.Errorf("saving active org: %w", err)
		}
	}
	return &out, nil
}

func (a *AuthService) Me(ctx context.Context) (*payroll.Me, error) {
	var out payroll.Me
	if err := a.c.Get(ctx, mePath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orgs lists the organizations the logged-in wallet belongs to.
func (a *AuthService) Orgs(ctx context.Context) ([]payroll.Org, error) {
	me, err := a.Me(ctx)
	if err != nil {
		return nil, err
	}
	return me.Orgs, nil
}

// SetActiveOrg selects the organization subsequent payroll calls act on and
// remembers it locally.
func (a *AuthService) SetActiveOrg(ctx context.Context, orgID int64) (*payroll.ActiveOrgResponse, error) {
	if orgID <= 0 {
		return nil, perr.Newf(perr.CodeInvalidInput, "org id must be positive, got %d", orgID)
	}

	var out payroll.ActiveOrgResponse
	if err := a.c.Post(ctx, setActiveOrgPath, map[string]int64{"org_id": orgID}, &out); err != nil {
		return nil, err
	}
	if err := a.c.Session().Set(ctx, session.ActiveOrg, strconv.FormatInt(out.OrgID, 10)); err != nil {
		return nil, fmt.Errorf("saving active org: %w", err)
	}
	return &out, nil
}

// Logout forgets the session locally. The backend keeps no server-side
// session to revoke.
func (a *AuthService) Logout(ctx context.Context) error {
	return session.Clear(ctx, a.c.Session())
}

// Refresh forces a token refresh.
func (a *AuthService) Refresh(ctx context.Context) error {
	_, err := a.c.RefreshSession(ctx)
	return err
}

// Status is the locally known state of the session.
type Status struct {
	BaseURL         string
	LoggedIn        bool
	Wallet          string
	ActiveOrg       string
	HasRefreshToken bool
	Claims          *TokenClaims
	Expired         bool
}

// Status reads the session without contacting the backend.
func (a *AuthService) Status(ctx context.Context) (*Status, error) {
	s, err := session.Load(ctx, a.c.Session())
	if err != nil {
		return nil, err
	}

	st := &Status{
		BaseURL:         a.c.BaseURL(),
		LoggedIn:        s.Authenticated(),
		Wallet:          s.Wallet,
		ActiveOrg:       s.ActiveOrg,
		HasRefreshToken: s.RefreshToken != "",
	}
	if s.AccessToken != "" {
		if claims, err := ParseClaims(s.AccessToken); err == nil {
			st.Claims = claims
			st.Expired = claims.Expired(time.Now(), 0)
		}
	}
	return st, nil
}
