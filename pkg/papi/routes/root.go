package routes

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/paydesk/pkg/papi/services"
)

// RegisterAPI wires every operation. A nil svcs registers the operations
// without backing services, which is enough to render the OpenAPI document.
func RegisterAPI(api huma.API, svcs *services.Services) {
	RegisterHealth(api)
	if svcs == nil {
		RegisterAuth(api, nil, nil, nil)
		RegisterPayroll(api, nil, nil)
		return
	}

	api.UseMiddleware(svcs.IAM.Middleware())
	RegisterAuth(api, svcs.Auth, svcs.IAM, svcs.Ledger)
	RegisterPayroll(api, svcs.IAM, svcs.Ledger)
}
