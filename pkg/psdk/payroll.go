package psdk

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk/perr"
	"github.com/quatton/paydesk/pkg/session"
)

const (
	schedulesPath      = "/api/payroll/schedules/"
	createSchedulePath = "/api/payroll/schedules/create/"
	toggleSchedulePath = "/api/payroll/schedules/{id}/toggle/"
	runsPath           = "/api/payroll/runs/"
	createRunPath      = "/api/payroll/runs/create/"
	runClaimsPath      = "/api/payroll/runs/{id}/claims/"
	commitRunPath      = "/api/payroll/runs/{id}/commit/"
	openRunPath        = "/api/payroll/runs/{id}/open/"
	txCreatePath       = "/api/payroll/runs/{id}/tx/createPayroll/"
	txFundPlanPath     = "/api/payroll/runs/{id}/tx/fundPlan/"
	recordRunTxPath    = "/api/payroll/runs/{id}/recordTx/"
	recordClaimTxPath  = "/api/payroll/claims/{run}/{index}/recordTx/"
	claimPath          = "/api/payroll/claims/{payroll_id}/{wallet}/"
)

var payrollIDRe = regexp.MustCompile(`^[1-9][0-9]*$`)

// PayrollService wraps the payroll endpoints. Payloads are validated before
// they are sent.
type PayrollService struct {
	c *Client
}

func (p *PayrollService) ListSchedules(ctx context.Context) ([]payroll.Schedule, error) {
	var out []payroll.Schedule
	if err := p.c.Get(ctx, schedulesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSchedule fills OrgID from the active organization when unset.
func (p *PayrollService) CreateSchedule(ctx context.Context, in payroll.SchedulePayload) (*payroll.Schedule, error) {
	if in.OrgID == nil {
		org, err := p.activeOrg(ctx)
		if err != nil {
			return nil, err
		}
		in.OrgID = org
	}
	if err := payroll.ValidateSchedule(in); err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}

	var out payroll.Schedule
	if err := p.c.Post(ctx, createSchedulePath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PayrollService) ToggleSchedule(ctx context.Context, id int64, enabled bool) (*payroll.ToggleResult, error) {
	path, err := buildPath(toggleSchedulePath, param("id", id))
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}
	var out payroll.ToggleResult
	if err := p.c.Post(ctx, path, map[string]bool{"enabled": enabled}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PayrollService) ListRuns(ctx context.Context) ([]payroll.Run, error) {
	var out []payroll.Run
	if err := p.c.Get(ctx, runsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRun starts a draft run over every active employee. A zero
// claimWindowDays leaves the backend default.
func (p *PayrollService) CreateRun(ctx context.Context, claimWindowDays int) (*payroll.Run, error) {
	if claimWindowDays < 0 {
		return nil, perr.Newf(perr.CodeInvalidInput, "claim window must not be negative")
	}
	body := payroll.CreateRunRequest{}
	if claimWindowDays > 0 {
		body.ClaimWindowDays = &claimWindowDays
	}

	var out payroll.Run
	if err := p.c.Post(ctx, createRunPath, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PayrollService) RunClaims(ctx context.Context, runID int64) (*payroll.RunClaims, error) {
	path, err := runPath(runClaimsPath, runID)
	if err != nil {
		return nil, err
	}
	var out payroll.RunClaims
	if err := p.c.Get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommitRun submits already-typed items.
func (p *PayrollService) CommitRun(ctx context.Context, runID int64, items []payroll.CommitItem) (*payroll.Run, error) {
	if len(items) == 0 {
		return nil, perr.Newf(perr.CodeInvalidInput, "at least one item is required")
	}
	path, err := runPath(commitRunPath, runID)
	if err != nil {
		return nil, err
	}

	var out payroll.Run
	if err := p.c.Post(ctx, path, payroll.CommitRunRequest{Items: items}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommitRunJSON decodes and checks a user-supplied commit document before
// submitting it. Decode problems come back as *payroll.DecodeError wrapped
// in CodeInvalidInput; nothing is sent in that case.
func (p *PayrollService) CommitRunJSON(ctx context.Context, runID int64, raw []byte) (*payroll.Run, error) {
	items, err := payroll.DecodeCommitItems(raw)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}
	return p.CommitRun(ctx, runID, items)
}

func (p *PayrollService) OpenRun(ctx context.Context, runID int64) (*payroll.OpenRunResult, error) {
	path, err := runPath(openRunPath, runID)
	if err != nil {
		return nil, err
	}
	var out payroll.OpenRunResult
	if err := p.c.Post(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TxCreatePayroll fetches the unsigned createPayroll transaction for a
// committed run.
func (p *PayrollService) TxCreatePayroll(ctx context.Context, runID int64) (payroll.TxPayload, error) {
	return p.txPayload(ctx, txCreatePath, runID)
}

// TxFundPlan fetches the steps needed to fund the vault for a run.
func (p *PayrollService) TxFundPlan(ctx context.Context, runID int64) (payroll.TxPayload, error) {
	return p.txPayload(ctx, txFundPlanPath, runID)
}

func (p *PayrollService) txPayload(ctx context.Context, tmpl string, runID int64) (payroll.TxPayload, error) {
	path, err := runPath(tmpl, runID)
	if err != nil {
		return nil, err
	}
	var out payroll.TxPayload
	if err := p.c.Post(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PayrollService) RecordRunTx(ctx context.Context, runID int64, kind, txHash string) (*payroll.RecordRunTxResult, error) {
	if kind != payroll.TxKindCreatePayroll && kind != payroll.TxKindFundVault {
		return nil, perr.Newf(perr.CodeInvalidInput, "kind must be %s or %s", payroll.TxKindCreatePayroll, payroll.TxKindFundVault)
	}
	hash, err := payroll.NormalizeTxHash(txHash)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}
	path, err := runPath(recordRunTxPath, runID)
	if err != nil {
		return nil, err
	}

	var out payroll.RecordRunTxResult
	if err := p.c.Post(ctx, path, payroll.RecordRunTxRequest{Kind: kind, TxHash: hash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PayrollService) RecordClaimTx(ctx context.Context, runID int64, index int, wallet, txHash string) (*payroll.RecordClaimTxResult, error) {
	w, err := payroll.NormalizeWallet(wallet)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}
	hash, err := payroll.NormalizeTxHash(txHash)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}
	if index < 0 {
		return nil, perr.Newf(perr.CodeInvalidInput, "claim index must not be negative")
	}
	path, err := buildPath(recordClaimTxPath, param("run", runID), param("index", index))
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}

	var out payroll.RecordClaimTxResult
	if err := p.c.Post(ctx, path, payroll.RecordClaimTxRequest{Wallet: w, TxHash: hash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClaim looks up the claim payload of one wallet in a payroll. The
// backend only answers for the wallet that is logged in.
func (p *PayrollService) GetClaim(ctx context.Context, payrollID, wallet string) (*payroll.ClaimPayload, error) {
	if !payrollIDRe.MatchString(payrollID) {
		return nil, perr.Newf(perr.CodeInvalidInput, "payroll id must be a positive integer, got %q", payrollID)
	}
	w, err := payroll.NormalizeWallet(wallet)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}
	path, err := buildPath(claimPath, param("payroll_id", payrollID), param("wallet", w))
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, err)
	}

	var out payroll.ClaimPayload
	if err := p.c.Get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PayrollService) activeOrg(ctx context.Context) (*int64, error) {
	v, err := p.c.Session().Get(ctx, session.ActiveOrg)
	if err != nil {
		return nil, fmt.Errorf("reading active org: %w", err)
	}
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, errors.New("stored active org is not a number, run `orgs use` again"))
	}
	return &id, nil
}

func runPath(tmpl string, runID int64) (string, error) {
	if runID <= 0 {
		return "", perr.Newf(perr.CodeInvalidInput, "run id must be positive, got %d", runID)
	}
	path, err := buildPath(tmpl, param("id", runID))
	if err != nil {
		return "", perr.New(perr.CodeInvalidInput, err)
	}
	return path, nil
}
