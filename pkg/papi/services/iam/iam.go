package iam

import (
	"context"

	"github.com/quatton/paydesk/pkg/papi/schemas"
	"github.com/quatton/paydesk/pkg/papi/services/auth"
	"github.com/quatton/paydesk/pkg/plog"
)

type ctxKey string

const principalKey ctxKey = "paydesk.principal"

type IAMService struct {
	auth *auth.AuthService
	log  *plog.Logger
}

func NewIAMService(auth *auth.AuthService, log *plog.Logger) *IAMService {
	if log == nil {
		log = plog.NewDefault()
	}
	return &IAMService{auth: auth, log: log}
}

func (s *IAMService) Principal(ctx context.Context) (*schemas.Principal, bool) {
	if v := ctx.Value(principalKey); v != nil {
		if p, ok := v.(*schemas.Principal); ok && p != nil {
			return p, true
		}
	}
	return nil, false
}

// Get returns nil when the request carried no valid access token.
func (s *IAMService) Get(ctx context.Context) *schemas.Principal {
	p, _ := s.Principal(ctx)
	return p
}
