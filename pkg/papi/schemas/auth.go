package schemas

import "github.com/quatton/paydesk/pkg/payroll"

// Principal is the authenticated caller behind an access token.
type Principal struct {
	Wallet string
	OrgID  *int64
}

type NonceRequest struct {
	Body struct {
		Wallet  string `json:"wallet" doc:"EVM address requesting a login nonce"`
		ChainID *int64 `json:"chainId,omitempty" doc:"Chain the wallet is connected to"`
	}
}

type NonceResponse struct {
	Body payroll.WalletNonce
}

type WalletLoginRequest struct {
	Body struct {
		Wallet    string `json:"wallet"`
		Signature string `json:"signature" doc:"65 byte hex signature of the nonce message"`
		Nonce     string `json:"nonce"`
	}
}

type WalletLoginResponse struct {
	Body payroll.WalletLoginResponse
}

type LoginRequest struct {
	Body struct {
		Username string `json:"username" minLength:"1"`
		Password string `json:"password" minLength:"1"`
	}
}

// LoginResponse carries the token pair of a password login.
type LoginResponse struct {
	Body payroll.TokenPair
}

type MeResponse struct {
	Body payroll.Me
}

type SetActiveOrgRequest struct {
	Body struct {
		OrgID int64 `json:"org_id" minimum:"1"`
	}
}

type SetActiveOrgResponse struct {
	Body payroll.ActiveOrgResponse
}

// RefreshTokenRequest represents the payload for requesting a new access token.
type RefreshTokenRequest struct {
	Body struct {
		Refresh string `json:"refresh" doc:"Refresh token issued from login or previous refresh"`
	}
}

// RefreshTokenResponse carries a new access token. Refresh is only set
// when rotation is enabled.
type RefreshTokenResponse struct {
	Body struct {
		Access  string `json:"access" doc:"New short-lived access token"`
		Refresh string `json:"refresh,omitempty" doc:"Rotated refresh token"`
	}
}
