package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/paydesk/pkg/papi/schemas"
	"github.com/quatton/paydesk/pkg/papi/services/auth"
	"github.com/quatton/paydesk/pkg/papi/services/iam"
	"github.com/quatton/paydesk/pkg/papi/services/ledger"
	"github.com/quatton/paydesk/pkg/payroll"
)

func RegisterAuth(api huma.API, authSvc *auth.AuthService, iamSvc *iam.IAMService, book *ledger.Ledger) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-nonce",
		Method:      http.MethodPost,
		Path:        "/api/auth/nonce/",
		Summary:     "Request a wallet login nonce",
		Description: "Issues a single-use nonce and the message the wallet has to sign",
		Tags:        []string{TagAuth.String()},
	}, func(ctx context.Context, input *schemas.NonceRequest) (*schemas.NonceResponse, error) {
		n, err := authSvc.IssueNonce(ctx, input.Body.Wallet, input.Body.ChainID)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &schemas.NonceResponse{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-wallet-login",
		Method:      http.MethodPost,
		Path:        "/api/auth/wallet-login/",
		Summary:     "Log in with a signed nonce",
		Description: "Consumes the nonce and returns an access/refresh token pair with the caller's profile",
		Tags:        []string{TagAuth.String()},
	}, func(ctx context.Context, input *schemas.WalletLoginRequest) (*schemas.WalletLoginResponse, error) {
		if input.Body.Signature == "" || input.Body.Nonce == "" {
			return nil, huma.Error400BadRequest("wallet, nonce, and signature are required")
		}
		wallet, err := authSvc.ConsumeNonce(ctx, input.Body.Wallet, input.Body.Nonce, input.Body.Signature)
		if err != nil {
			return nil, toHTTPError(err)
		}

		me, err := book.Me(ctx, wallet)
		if err != nil {
			return nil, toHTTPError(err)
		}
		pair, err := authSvc.IssueTokens(ctx, wallet)
		if err != nil {
			return nil, toHTTPError(err)
		}

		return &schemas.WalletLoginResponse{Body: payroll.WalletLoginResponse{
			Access:  pair.Access,
			Refresh: pair.Refresh,
			User:    me,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodPost,
		Path:        "/api/auth/login/",
		Summary:     "Log in with a username and password",
		Description: "Returns an access/refresh token pair for the wallet bound to the user",
		Tags:        []string{TagAuth.String()},
	}, func(ctx context.Context, input *schemas.LoginRequest) (*schemas.LoginResponse, error) {
		wallet, err := authSvc.Login(input.Body.Username, input.Body.Password)
		if err != nil {
			return nil, toHTTPError(err)
		}
		if _, err := book.Me(ctx, wallet); err != nil {
			return nil, toHTTPError(err)
		}
		pair, err := authSvc.IssueTokens(ctx, wallet)
		if err != nil {
			return nil, toHTTPError(err)
		}

		return &schemas.LoginResponse{Body: payroll.TokenPair{Access: pair.Access, Refresh: pair.Refresh}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-refresh",
		Method:      http.MethodPost,
		Path:        "/api/auth/refresh/",
		Summary:     "Refresh the access token",
		Description: "Exchanges a refresh token for a new access token; rotates the refresh token when enabled",
		Tags:        []string{TagAuth.String()},
	}, func(ctx context.Context, input *schemas.RefreshTokenRequest) (*schemas.RefreshTokenResponse, error) {
		pair, err := authSvc.Refresh(ctx, input.Body.Refresh)
		if err != nil {
			return nil, toHTTPError(err)
		}
		resp := &schemas.RefreshTokenResponse{}
		resp.Body.Access = pair.Access
		resp.Body.Refresh = pair.Refresh
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-me",
		Method:      http.MethodGet,
		Path:        "/api/auth/me/",
		Summary:     "Get current profile",
		Description: "Returns the wallet, employer profile and organizations of the caller",
		Tags:        []string{TagAuth.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.MeResponse, error) {
		p, err := principal(ctx, iamSvc)
		if err != nil {
			return nil, err
		}
		me, err := book.Me(ctx, p.Wallet)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &schemas.MeResponse{Body: me}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-set-active-org",
		Method:      http.MethodPost,
		Path:        "/api/auth/set-active-org/",
		Summary:     "Select the active organization",
		Tags:        []string{TagAuth.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *schemas.SetActiveOrgRequest) (*schemas.SetActiveOrgResponse, error) {
		p, err := principal(ctx, iamSvc)
		if err != nil {
			return nil, err
		}
		res, err := book.SetActiveOrg(ctx, p.Wallet, input.Body.OrgID)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &schemas.SetActiveOrgResponse{Body: res}, nil
	})
}
