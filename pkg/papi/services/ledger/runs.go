package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/quatton/paydesk/pkg/payroll"
)

// Claim statuses.
const (
	ClaimUnclaimed = "unclaimed"
)

type claim struct {
	index        int
	wallet       string
	salary       int64
	leaf         string
	ciphertext   string
	encryptedRef string
	proof        []string
	status       string
	claimTx      string
}

type run struct {
	id         int64
	orgID      int64
	scheduleID int64
	payrollID  *big.Int
	token      string
	vault      string
	merkleRoot string
	total      int
	totalUnits int64
	status     string
	createTx   string
	fundTx     string
	window     int
	closeAt    time.Time
	createdAt  time.Time
	claims     []*claim
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *run) view() payroll.Run {
	return payroll.Run{
		ID:               r.id,
		PayrollID:        r.payrollID.String(),
		Token:            r.token,
		Vault:            r.vault,
		MerkleRoot:       r.merkleRoot,
		Total:            r.total,
		TotalAmountUnits: r.totalUnits,
		Status:           r.status,
		CreateTxHash:     optional(r.createTx),
		FundTxHash:       optional(r.fundTx),
		ClaimWindowDays:  r.window,
		CloseAt:          stamp(r.closeAt),
		CreatedAt:        stamp(r.createdAt),
	}
}

// newRun snapshots the organization's employees into a draft run. Callers
// hold l.mu.
func (l *Ledger) newRun(ctx context.Context, o *org, window int, scheduleID int64) (*run, error) {
	pid, err := l.newPayrollID(ctx)
	if err != nil {
		return nil, err
	}

	now := l.now()
	r := &run{
		orgID:      o.id,
		scheduleID: scheduleID,
		payrollID:  pid,
		token:      checksum(l.opts.TokenAddress),
		vault:      checksum(l.opts.VaultAddress),
		total:      len(o.employees),
		status:     payroll.RunDraft,
		window:     window,
		closeAt:    now.AddDate(0, 0, window),
		createdAt:  now,
	}
	for i, e := range o.employees {
		r.totalUnits += e.SalaryUnits
		r.claims = append(r.claims, &claim{
			index:        i,
			wallet:       e.Wallet,
			salary:       e.SalaryUnits,
			encryptedRef: payroll.ZeroRef,
			status:       ClaimUnclaimed,
		})
	}

	if err := l.store.insertRun(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// runFor loads a run owned by the wallet's active organization. Callers
// hold l.mu.
func (l *Ledger) runFor(ctx context.Context, wallet string, runID int64) (*run, error) {
	o, err := l.employerFor(ctx, wallet)
	if err != nil {
		return nil, err
	}
	r, err := l.store.run(ctx, runID)
	if errors.Is(err, errMissing) {
		return nil, notFound("Run not found")
	}
	if err != nil {
		return nil, err
	}
	if r.orgID != o.id {
		return nil, forbidden("Run does not belong to employer")
	}
	return r, nil
}

// CreateRun opens a draft run for every employee of the active
// organization. A nil window uses the configured default.
func (l *Ledger) CreateRun(ctx context.Context, wallet string, window *int) (payroll.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, err := l.employerFor(ctx, wallet)
	if err != nil {
		return payroll.Run{}, err
	}
	days := l.opts.ClaimWindowDays
	if window != nil {
		days = *window
	}
	if days <= 0 {
		return payroll.Run{}, badRequest("claim_window_days must be a positive integer")
	}
	if len(o.employees) == 0 {
		return payroll.Run{}, badRequest("No active employees")
	}

	r, err := l.newRun(ctx, o, days, 0)
	if err != nil {
		return payroll.Run{}, err
	}
	v := r.view()
	v.RunIDField, v.ID = r.id, 0
	v.CreatedAt = ""
	return v, nil
}

// ListRuns returns the active organization's runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, wallet string) ([]payroll.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, err := l.employerFor(ctx, wallet)
	if err != nil {
		return nil, err
	}
	list, err := l.store.runs(ctx, o.id)
	if err != nil {
		return nil, err
	}
	out := make([]payroll.Run, 0, len(list))
	for _, r := range list {
		out = append(out, r.view())
	}
	return out, nil
}

func (l *Ledger) RunClaims(ctx context.Context, wallet string, runID int64) (payroll.RunClaims, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.runFor(ctx, wallet, runID)
	if err != nil {
		return payroll.RunClaims{}, err
	}
	out := payroll.RunClaims{
		RunID:            r.id,
		PayrollID:        r.payrollID.String(),
		Status:           r.status,
		MerkleRoot:       r.merkleRoot,
		Total:            r.total,
		TotalAmountUnits: r.totalUnits,
		Claims:           make([]payroll.RunClaim, 0, len(r.claims)),
	}
	for _, c := range r.claims {
		salary := c.salary
		out.Claims = append(out.Claims, payroll.RunClaim{
			Index:          c.index,
			EmployeeWallet: checksum(c.wallet),
			Status:         c.status,
			SalaryUnits:    &salary,
			Leaf:           c.leaf,
			HasCiphertext:  c.ciphertext != "",
			ClaimTxHash:    c.claimTx,
		})
	}
	return out, nil
}

type commitLeaf struct {
	claim *claim
	ct    string
	ref   string
	leaf  Hash
}

// CommitRun binds one ciphertext to every claim of a draft run and stores
// the resulting merkle root and proofs. Nothing is written unless every
// item is valid.
func (l *Ledger) CommitRun(ctx context.Context, wallet string, runID int64, items []payroll.CommitItem) (payroll.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.runFor(ctx, wallet, runID)
	if err != nil {
		return payroll.Run{}, err
	}
	if r.status != payroll.RunDraft {
		return payroll.Run{}, badRequest("Run status must be draft, got %s", r.status)
	}
	if len(items) == 0 {
		return payroll.Run{}, badRequest("items must be a non-empty list")
	}
	if len(items) != len(r.claims) {
		return payroll.Run{}, badRequest("items length must equal run total (%d)", len(r.claims))
	}

	byWallet := make(map[string]*claim, len(r.claims))
	for _, c := range r.claims {
		byWallet[c.wallet] = c
	}

	pending := make([]*commitLeaf, len(r.claims))
	for _, item := range items {
		w, err := payroll.NormalizeWallet(item.Wallet)
		if err != nil {
			return payroll.Run{}, badRequest("Invalid wallet in items")
		}
		if item.NetCiphertextB64 == "" {
			return payroll.Run{}, badRequest("Missing net_ciphertext_b64 for some item")
		}
		ref := strings.ToLower(item.EncryptedRef)
		if ref == "" {
			ref = payroll.ZeroRef
		}
		if !payroll.IsBytes32(ref) {
			return payroll.Run{}, badRequest("encrypted_ref must be bytes32 hex string")
		}
		ct, err := base64.StdEncoding.Strict().DecodeString(item.NetCiphertextB64)
		if err != nil {
			return payroll.Run{}, badRequest("Invalid base64 ciphertext")
		}
		c, ok := byWallet[w]
		if !ok {
			return payroll.Run{}, badRequest("Wallet not found in this run: %s", checksum(w))
		}

		leaf, err := LeafHash(r.payrollID, uint32(c.index), w, r.token, ct, ref)
		if err != nil {
			return payroll.Run{}, badRequest("%s", err.Error())
		}
		pending[c.index] = &commitLeaf{claim: c, ct: item.NetCiphertextB64, ref: ref, leaf: leaf}
	}

	leaves := make([]Hash, len(pending))
	for i, p := range pending {
		if p == nil {
			return payroll.Run{}, badRequest("Some indices missing ciphertext")
		}
		leaves[i] = p.leaf
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		return payroll.Run{}, badRequest("%s", err.Error())
	}
	for i, p := range pending {
		p.claim.ciphertext = p.ct
		p.claim.encryptedRef = p.ref
		p.claim.leaf = p.leaf.Hex()
		p.claim.proof = p.claim.proof[:0]
		for _, h := range tree.Proof(i) {
			p.claim.proof = append(p.claim.proof, h.Hex())
		}
	}
	r.merkleRoot = tree.Root().Hex()
	r.status = payroll.RunCommitted
	if err := l.store.saveRun(ctx, r); err != nil {
		return payroll.Run{}, err
	}

	return payroll.Run{
		RunIDField: r.id,
		PayrollID:  r.payrollID.String(),
		MerkleRoot: r.merkleRoot,
		Total:      r.total,
		Status:     r.status,
	}, nil
}

// TxCreatePayroll describes the vault call registering a committed run.
func (l *Ledger) TxCreatePayroll(ctx context.Context, wallet string, runID int64) (map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.runFor(ctx, wallet, runID)
	if err != nil {
		return nil, err
	}
	if r.status != payroll.RunCommitted {
		return nil, badRequest("Run must be committed before createPayroll. status=%s", r.status)
	}
	return map[string]any{
		"chainId":  l.opts.ChainID,
		"to":       r.vault,
		"function": "createPayroll(uint256,address,bytes32,uint256)",
		"args":     []string{r.payrollID.String(), r.token, r.merkleRoot, fmt.Sprint(r.total)},
		"valueWei": "0",
		"notes":    []string{"Frontend encodes and signs using PayrollVault ABI"},
	}, nil
}

// TxFundPlan lists the steps moving the run total into the vault.
func (l *Ledger) TxFundPlan(ctx context.Context, wallet string, runID int64) (map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.runFor(ctx, wallet, runID)
	if err != nil {
		return nil, err
	}

	wrapNote := "If employer only has public USDC, call WrapGateway.deposit(amount_units) first."
	var gateway any
	if l.opts.WrapGateway == "" {
		wrapNote = "WRAP_GATEWAY env is missing. Set it to your deployed WrapGateway."
	} else {
		gateway = checksum(l.opts.WrapGateway)
	}
	amount := fmt.Sprint(r.totalUnits)

	return map[string]any{
		"run_id":       r.id,
		"payroll_id":   r.payrollID.String(),
		"vault":        r.vault,
		"token":        r.token,
		"amount_units": r.totalUnits,
		"decimals":     6,
		"plan": []map[string]any{
			{
				"step":     1,
				"action":   wrapNote,
				"contract": gateway,
				"function": "deposit(uint256 amount)",
				"args":     []string{amount},
				"valueWei": "0",
			},
			{
				"step":     2,
				"action":   "Transfer private cUSDC from employer to PayrollVault using ciphertext",
				"contract": r.token,
				"function": "transfer(address to, bytes amountCiphertext)",
				"args":     []string{r.vault, "<amountCiphertext bytes>"},
				"valueWei": "<inco_fee_wei>",
				"notes":    []string{"msg.value must pay inco.getFee() for the ciphertext op"},
			},
		},
		"notes": []string{"Frontend should query inco.getFee() using Inco JS and pass it as tx value"},
	}, nil
}

func (l *Ledger) RecordRunTx(ctx context.Context, wallet string, runID int64, kind, txHash string) (payroll.RecordRunTxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.runFor(ctx, wallet, runID)
	if err != nil {
		return payroll.RecordRunTxResult{}, err
	}
	if kind != payroll.TxKindCreatePayroll && kind != payroll.TxKindFundVault {
		return payroll.RecordRunTxResult{}, badRequest("kind must be create_payroll or fund_vault")
	}
	hash, err := payroll.NormalizeTxHash(txHash)
	if err != nil {
		return payroll.RecordRunTxResult{}, badRequest("Invalid tx_hash")
	}

	if kind == payroll.TxKindCreatePayroll {
		r.createTx = hash
	} else {
		r.fundTx = hash
	}
	if err := l.store.saveRun(ctx, r); err != nil {
		return payroll.RecordRunTxResult{}, err
	}
	return payroll.RecordRunTxResult{RunID: r.id, Kind: kind, TxHash: hash}, nil
}

// OpenRun makes a committed run claimable once both its create and fund
// transactions are recorded. Receipts are not checked.
func (l *Ledger) OpenRun(ctx context.Context, wallet string, runID int64) (payroll.OpenRunResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.runFor(ctx, wallet, runID)
	if err != nil {
		return payroll.OpenRunResult{}, err
	}
	switch r.status {
	case payroll.RunCommitted, payroll.RunOnchainCreated, payroll.RunFunded:
	default:
		return payroll.OpenRunResult{}, badRequest("Run not ready. status=%s", r.status)
	}
	if r.createTx == "" {
		return payroll.OpenRunResult{}, badRequest("create_tx_hash missing. Call record_run_tx for create_payroll")
	}
	if r.fundTx == "" {
		return payroll.OpenRunResult{}, badRequest("fund_tx_hash missing. Call record_run_tx for fund_vault")
	}

	r.status = payroll.RunOpen
	if err := l.store.saveRun(ctx, r); err != nil {
		return payroll.OpenRunResult{}, err
	}
	return payroll.OpenRunResult{RunID: r.id, Status: r.status}, nil
}

// GetClaim returns the claim payload of an open run to the employee it
// belongs to.
func (l *Ledger) GetClaim(ctx context.Context, wallet, payrollID, claimWallet string) (payroll.ClaimPayload, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := payroll.NormalizeWallet(claimWallet)
	if err != nil {
		return payroll.ClaimPayload{}, badRequest("%s", err.Error())
	}
	r, err := l.store.runByPayrollID(ctx, payrollID)
	if errors.Is(err, errMissing) {
		return payroll.ClaimPayload{}, notFound("Run not found")
	}
	if err != nil {
		return payroll.ClaimPayload{}, err
	}
	if wallet != w {
		return payroll.ClaimPayload{}, forbidden("Not allowed to access this claim")
	}

	var c *claim
	for _, cl := range r.claims {
		if cl.wallet == w {
			c = cl
			break
		}
	}
	if c == nil {
		return payroll.ClaimPayload{}, notFound("Claim not found")
	}
	if r.status != payroll.RunOpen && r.status != payroll.RunFunded {
		return payroll.ClaimPayload{}, badRequest("Run not open yet. status=%s", r.status)
	}

	return payroll.ClaimPayload{
		PayrollID:        r.payrollID.String(),
		Index:            c.index,
		Token:            r.token,
		Vault:            r.vault,
		NetCiphertextB64: c.ciphertext,
		EncryptedRef:     c.encryptedRef,
		Proof:            append([]string{}, c.proof...),
	}, nil
}

// RecordClaimTx stores an employee's claim transaction. The employer of
// the run or the employee may record it.
func (l *Ledger) RecordClaimTx(ctx context.Context, wallet string, runID int64, index int, claimWallet, txHash string) (payroll.RecordClaimTxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.store.run(ctx, runID)
	if errors.Is(err, errMissing) {
		return payroll.RecordClaimTxResult{}, notFound("Run not found")
	}
	if err != nil {
		return payroll.RecordClaimTxResult{}, err
	}
	hash, err := payroll.NormalizeTxHash(txHash)
	if err != nil {
		return payroll.RecordClaimTxResult{}, badRequest("Invalid tx_hash")
	}
	if claimWallet == "" {
		return payroll.RecordClaimTxResult{}, badRequest("wallet is required")
	}
	w, err := payroll.NormalizeWallet(claimWallet)
	if err != nil {
		return payroll.RecordClaimTxResult{}, badRequest("%s", err.Error())
	}

	o, err := l.employerFor(ctx, wallet)
	var le *Error
	if err != nil && !errors.As(err, &le) {
		return payroll.RecordClaimTxResult{}, err
	}
	isEmployer := err == nil && o.id == r.orgID
	if !isEmployer && wallet != w {
		return payroll.RecordClaimTxResult{}, forbidden("Not allowed to record claim tx for this wallet")
	}

	if index < 0 || index >= len(r.claims) || r.claims[index].wallet != w {
		return payroll.RecordClaimTxResult{}, notFound("Claim not found")
	}
	r.claims[index].claimTx = hash
	if err := l.store.saveRun(ctx, r); err != nil {
		return payroll.RecordClaimTxResult{}, err
	}

	return payroll.RecordClaimTxResult{RunID: r.id, Index: index, Wallet: checksum(w), TxHash: hash}, nil
}
