package papi

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Api struct {
	Api    huma.API
	Router *chi.Mux
}

// NewApi builds the router and huma API. quiet drops the per-request access
// log, which tests don't want.
func NewApi(quiet bool) *Api {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	if !quiet {
		router.Use(middleware.Logger)
	}
	router.Use(middleware.Recoverer)

	config := huma.DefaultConfig("Paydesk Payroll Stub", "1.0.0")

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Access token from /api/auth/wallet-login/ or /api/auth/refresh/",
		},
	}

	api := humachi.New(router, config)

	return &Api{Api: api, Router: router}
}
