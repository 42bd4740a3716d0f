package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/paydesk/pkg/papi/schemas"
	"github.com/quatton/paydesk/pkg/papi/services/iam"
	"github.com/quatton/paydesk/pkg/papi/services/ledger"
	"github.com/quatton/paydesk/pkg/payroll"
)

func RegisterPayroll(api huma.API, iamSvc *iam.IAMService, book *ledger.Ledger) {
	op := func(id, method, path, summary string, tag Tag) huma.Operation {
		return huma.Operation{
			OperationID: id,
			Method:      method,
			Path:        path,
			Summary:     summary,
			Tags:        []string{tag.String()},
			Security:    BearerAuth,
		}
	}

	huma.Register(api, op("list-schedules", http.MethodGet, "/api/payroll/schedules/", "List schedules", TagPayroll),
		func(ctx context.Context, input *struct{}) (*schemas.ScheduleListResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			list, err := book.ListSchedules(ctx, p.Wallet)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.ScheduleListResponse{Body: list}, nil
		})

	huma.Register(api, op("create-schedule", http.MethodPost, "/api/payroll/schedules/create/", "Create a schedule", TagPayroll),
		func(ctx context.Context, input *schemas.ScheduleRequest) (*schemas.ScheduleResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			s, err := book.CreateSchedule(ctx, p.Wallet, input.Body)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.ScheduleResponse{Body: s}, nil
		})

	huma.Register(api, op("toggle-schedule", http.MethodPost, "/api/payroll/schedules/{id}/toggle/", "Enable or disable a schedule", TagPayroll),
		func(ctx context.Context, input *schemas.ToggleScheduleRequest) (*schemas.ToggleScheduleResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			enabled := true
			if input.Body.Enabled != nil {
				enabled = *input.Body.Enabled
			}
			res, err := book.ToggleSchedule(ctx, p.Wallet, input.ID, enabled)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.ToggleScheduleResponse{Body: res}, nil
		})

	huma.Register(api, op("list-runs", http.MethodGet, "/api/payroll/runs/", "List runs", TagPayroll),
		func(ctx context.Context, input *struct{}) (*schemas.RunListResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			list, err := book.ListRuns(ctx, p.Wallet)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.RunListResponse{Body: list}, nil
		})

	createRun := func(ctx context.Context, input *schemas.CreateRunRequest) (*schemas.RunResponse, error) {
		p, err := principal(ctx, iamSvc)
		if err != nil {
			return nil, err
		}
		var window *int
		if input.Body != nil {
			window = input.Body.ClaimWindowDays
		}
		r, err := book.CreateRun(ctx, p.Wallet, window)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &schemas.RunResponse{Body: r}, nil
	}
	huma.Register(api, op("create-run", http.MethodPost, "/api/payroll/runs/create/", "Create a draft run", TagPayroll), createRun)
	huma.Register(api, op("create-instant-run", http.MethodPost, "/api/payroll/runs/createInstant/", "Create a draft run now", TagPayroll), createRun)

	huma.Register(api, op("run-claims", http.MethodGet, "/api/payroll/runs/{id}/claims/", "List the claims of a run", TagPayroll),
		func(ctx context.Context, input *schemas.RunPath) (*schemas.RunClaimsResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			res, err := book.RunClaims(ctx, p.Wallet, input.ID)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.RunClaimsResponse{Body: res}, nil
		})

	huma.Register(api, op("commit-run", http.MethodPost, "/api/payroll/runs/{id}/commit/", "Commit ciphertexts and build the merkle tree", TagPayroll),
		func(ctx context.Context, input *schemas.CommitRunRequest) (*schemas.RunResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			items := make([]payroll.CommitItem, len(input.Body.Items))
			for i, it := range input.Body.Items {
				items[i] = payroll.CommitItem{Wallet: it.Wallet, NetCiphertextB64: it.NetCiphertextB64, EncryptedRef: it.EncryptedRef}
			}
			r, err := book.CommitRun(ctx, p.Wallet, input.ID, items)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.RunResponse{Body: r}, nil
		})

	huma.Register(api, op("open-run", http.MethodPost, "/api/payroll/runs/{id}/open/", "Open a funded run for claiming", TagPayroll),
		func(ctx context.Context, input *schemas.RunPath) (*schemas.OpenRunResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			res, err := book.OpenRun(ctx, p.Wallet, input.ID)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.OpenRunResponse{Body: res}, nil
		})

	txHandler := func(build func(ctx context.Context, wallet string, runID int64) (map[string]any, error)) func(context.Context, *schemas.RunPath) (*schemas.TxPayloadResponse, error) {
		return func(ctx context.Context, input *schemas.RunPath) (*schemas.TxPayloadResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			payload, err := build(ctx, p.Wallet, input.ID)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.TxPayloadResponse{Body: payload}, nil
		}
	}
	huma.Register(api, op("tx-create-payroll", http.MethodPost, "/api/payroll/runs/{id}/tx/createPayroll/", "Describe the createPayroll transaction", TagPayroll),
		txHandler(book.TxCreatePayroll))
	huma.Register(api, op("tx-fund-plan", http.MethodPost, "/api/payroll/runs/{id}/tx/fundPlan/", "Describe the vault funding steps", TagPayroll),
		txHandler(book.TxFundPlan))

	huma.Register(api, op("record-run-tx", http.MethodPost, "/api/payroll/runs/{id}/recordTx/", "Record a run transaction hash", TagPayroll),
		func(ctx context.Context, input *schemas.RecordRunTxRequest) (*schemas.RecordRunTxResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			res, err := book.RecordRunTx(ctx, p.Wallet, input.ID, input.Body.Kind, input.Body.TxHash)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.RecordRunTxResponse{Body: res}, nil
		})

	huma.Register(api, op("get-claim", http.MethodGet, "/api/payroll/claims/{payroll_id}/{wallet}/", "Fetch a claim payload", TagClaims),
		func(ctx context.Context, input *schemas.ClaimPath) (*schemas.ClaimResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			res, err := book.GetClaim(ctx, p.Wallet, input.PayrollID, input.Wallet)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.ClaimResponse{Body: res}, nil
		})

	huma.Register(api, op("record-claim-tx", http.MethodPost, "/api/payroll/claims/{run_id}/{index}/recordTx/", "Record a claim transaction hash", TagClaims),
		func(ctx context.Context, input *schemas.RecordClaimTxRequest) (*schemas.RecordClaimTxResponse, error) {
			p, err := principal(ctx, iamSvc)
			if err != nil {
				return nil, err
			}
			res, err := book.RecordClaimTx(ctx, p.Wallet, input.RunID, input.Index, input.Body.Wallet, input.Body.TxHash)
			if err != nil {
				return nil, toHTTPError(err)
			}
			return &schemas.RecordClaimTxResponse{Body: res}, nil
		})
}
