package iam

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
)

// Middleware resolves the bearer token into a principal. Requests without
// a valid token pass through anonymously; handlers decide whether that is
// a 401.
func (s *IAMService) Middleware() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, _ := humachi.Unwrap(ctx)

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				if p, err := s.auth.ValidateToken(parts[1]); err == nil {
					s.log.Debug("authenticated wallet", "wallet", p.Wallet)
					ctx = huma.WithValue(ctx, principalKey, p)
				} else {
					s.log.Debug("invalid token", "error", err)
				}
			}
		}

		next(ctx)
	}
}
