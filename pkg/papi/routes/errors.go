package routes

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/paydesk/pkg/papi/schemas"
	"github.com/quatton/paydesk/pkg/papi/services/auth"
	"github.com/quatton/paydesk/pkg/papi/services/iam"
	"github.com/quatton/paydesk/pkg/papi/services/ledger"
)

func principal(ctx context.Context, svc *iam.IAMService) (*schemas.Principal, error) {
	p := svc.Get(ctx)
	if p == nil {
		return nil, huma.Error401Unauthorized("Authentication required")
	}
	return p, nil
}

// toHTTPError maps service failures onto status codes.
func toHTTPError(err error) error {
	var le *ledger.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &le):
		return huma.NewError(le.Status, le.Msg)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return huma.Error401Unauthorized("No active account found with the given credentials")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return huma.Error401Unauthorized("Token is invalid or expired")
	case errors.Is(err, auth.ErrInvalidWallet):
		return huma.Error400BadRequest("wallet must be a valid EVM address")
	case errors.Is(err, auth.ErrInvalidNonce):
		return huma.Error400BadRequest("Invalid or already used nonce")
	case errors.Is(err, auth.ErrSignature):
		return huma.Error400BadRequest("Signature verification failed")
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
