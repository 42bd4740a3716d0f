package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/quatton/paydesk/pkg/papi/config"
	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	boss  = "0xb055000000000000000000000000000000000b05"
	alice = "0xa11ce00000000000000000000000000000000a11"
	bob   = "0xb0b0000000000000000000000000000000000b0b"
)

func newTestLedger(t *testing.T) (*Ledger, *time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	l := New(Options{
		OrgName: "Test Org",
		Employees: []config.Employee{
			{Wallet: bob, SalaryUnits: 2_000_000},
			{Wallet: alice, SalaryUnits: 1_000_000},
		},
		TokenAddress: "0x00000000000000000000000000000000000c05dc",
		VaultAddress: "0x000000000000000000000000000000000000a017",
		ChainID:      84532,
	})
	l.SetClock(func() time.Time { return now })
	return l, &now
}

func mustMe(t *testing.T, l *Ledger, wallet string) payroll.Me {
	t.Helper()
	me, err := l.Me(context.Background(), wallet)
	require.NoError(t, err)
	return me
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var le *Error
	require.True(t, errors.As(err, &le), "want *ledger.Error, got %v", err)
	return le.Status
}

func commitItems() []payroll.CommitItem {
	return []payroll.CommitItem{
		{Wallet: alice, NetCiphertextB64: base64.StdEncoding.EncodeToString([]byte("alice-net"))},
		{Wallet: strings.ToUpper(bob[:2]) + bob[2:], NetCiphertextB64: base64.StdEncoding.EncodeToString([]byte("bob-net")), EncryptedRef: "0x" + strings.Repeat("ab", 32)},
	}
}

func TestProvisionOnFirstSight(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, ok, err := l.ActiveOrgID(ctx, boss)
	require.NoError(t, err)
	assert.False(t, ok)

	me := mustMe(t, l, boss)
	require.NotNil(t, me.Wallet)
	assert.True(t, me.IsEmployerRegistered)
	require.NotNil(t, me.ActiveOrgID)
	require.Len(t, me.Orgs, 1)
	assert.Equal(t, payroll.Org{ID: *me.ActiveOrgID, Name: "Test Org", Role: RoleOwner}, me.Orgs[0])
	require.NotNil(t, me.Employer)
	assert.Equal(t, "2025-03-12T12:00:00Z", me.Employer.CreatedAt)

	id, ok, err := l.ActiveOrgID(ctx, boss)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, *me.ActiveOrgID, id)

	other := mustMe(t, l, alice)
	assert.NotEqual(t, *me.ActiveOrgID, *other.ActiveOrgID)
}

func TestSchedules(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	s, err := l.CreateSchedule(ctx, boss, payroll.SchedulePayload{Name: "Monthly", ScheduleType: payroll.ScheduleMonthly, DayOfMonth: ptr(31)})
	require.NoError(t, err)
	require.NotNil(t, s.TimeOfDay)
	assert.Equal(t, "09:00:00", *s.TimeOfDay)
	require.NotNil(t, s.NextRunAt)
	assert.Equal(t, "2025-03-31T09:00:00Z", *s.NextRunAt)
	assert.True(t, s.Enabled)

	instant, err := l.CreateSchedule(ctx, boss, payroll.SchedulePayload{Name: "Now", ScheduleType: payroll.ScheduleInstant})
	require.NoError(t, err)
	assert.Nil(t, instant.TimeOfDay)
	assert.Nil(t, instant.NextRunAt)

	_, err = l.CreateSchedule(ctx, boss, payroll.SchedulePayload{Name: "Weekly", ScheduleType: payroll.ScheduleWeekly})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.ErrorContains(t, err, "weekday")

	list, err := l.ListSchedules(ctx, boss)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, instant.ID, list[0].ID, "newest first")

	res, err := l.ToggleSchedule(ctx, boss, s.ID, false)
	require.NoError(t, err)
	assert.False(t, res.Enabled)

	_, err = l.ToggleSchedule(ctx, alice, s.ID, true)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	_, err = l.ToggleSchedule(ctx, boss, 999, true)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestTickCreatesDueRuns(t *testing.T) {
	ctx := context.Background()
	l, now := newTestLedger(t)

	daily, err := l.CreateSchedule(ctx, boss, payroll.SchedulePayload{Name: "Daily", ScheduleType: payroll.ScheduleDaily, TimeOfDay: "13:00"})
	require.NoError(t, err)
	off, err := l.CreateSchedule(ctx, boss, payroll.SchedulePayload{Name: "Off", ScheduleType: payroll.ScheduleDaily, TimeOfDay: "13:00"})
	require.NoError(t, err)
	_, err = l.ToggleSchedule(ctx, boss, off.ID, false)
	require.NoError(t, err)

	ids, err := l.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "nothing due yet")

	*now = now.Add(2 * time.Hour)
	ids, err = l.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	runs, err := l.ListRuns(ctx, boss)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, payroll.RunDraft, runs[0].Status)

	list, err := l.ListSchedules(ctx, boss)
	require.NoError(t, err)
	for _, s := range list {
		if s.ID == daily.ID {
			assert.Equal(t, "2025-03-13T13:00:00Z", *s.NextRunAt)
		}
	}

	ids, err = l.Tick(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	created, err := l.CreateRun(ctx, boss, nil)
	require.NoError(t, err)
	runID := created.RunID()
	assert.Equal(t, runID, created.RunIDField)
	assert.Zero(t, created.ID)
	assert.Equal(t, 2, created.Total)
	assert.Equal(t, int64(3_000_000), created.TotalAmountUnits)
	assert.Equal(t, payroll.RunDraft, created.Status)
	assert.Equal(t, "2025-03-26T12:00:00Z", created.CloseAt)

	pid, ok := new(big.Int).SetString(created.PayrollID, 10)
	require.True(t, ok)
	assert.LessOrEqual(t, pid.BitLen(), 96)

	claims, err := l.RunClaims(ctx, boss, runID)
	require.NoError(t, err)
	require.Len(t, claims.Claims, 2)
	assert.Equal(t, strings.ToLower(claims.Claims[0].EmployeeWallet), alice, "employees ordered by wallet")
	assert.False(t, claims.Claims[0].HasCiphertext)

	_, err = l.TxCreatePayroll(ctx, boss, runID)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "draft runs cannot be registered")

	committed, err := l.CommitRun(ctx, boss, runID, commitItems())
	require.NoError(t, err)
	assert.Equal(t, payroll.RunCommitted, committed.Status)
	assert.True(t, payroll.IsBytes32(committed.MerkleRoot))

	_, err = l.CommitRun(ctx, boss, runID, commitItems())
	assert.ErrorContains(t, err, "Run status must be draft, got committed")

	tx, err := l.TxCreatePayroll(ctx, boss, runID)
	require.NoError(t, err)
	assert.Equal(t, "createPayroll(uint256,address,bytes32,uint256)", tx["function"])
	assert.Equal(t, []string{created.PayrollID, created.Token, committed.MerkleRoot, "2"}, tx["args"])

	plan, err := l.TxFundPlan(ctx, boss, runID)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), plan["amount_units"])

	_, err = l.OpenRun(ctx, boss, runID)
	assert.ErrorContains(t, err, "create_tx_hash missing")

	_, err = l.RecordRunTx(ctx, boss, runID, "bogus", "0x"+strings.Repeat("1", 64))
	assert.ErrorContains(t, err, "kind must be")
	_, err = l.RecordRunTx(ctx, boss, runID, payroll.TxKindCreatePayroll, "0x1234")
	assert.ErrorContains(t, err, "Invalid tx_hash")

	_, err = l.RecordRunTx(ctx, boss, runID, payroll.TxKindCreatePayroll, "0x"+strings.Repeat("1", 64))
	require.NoError(t, err)
	_, err = l.OpenRun(ctx, boss, runID)
	assert.ErrorContains(t, err, "fund_tx_hash missing")

	_, err = l.GetClaim(ctx, alice, created.PayrollID, alice)
	assert.ErrorContains(t, err, "Run not open yet")

	_, err = l.RecordRunTx(ctx, boss, runID, payroll.TxKindFundVault, "0x"+strings.Repeat("2", 64))
	require.NoError(t, err)
	opened, err := l.OpenRun(ctx, boss, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.OpenRunResult{RunID: runID, Status: payroll.RunOpen}, opened)

	got, err := l.GetClaim(ctx, alice, created.PayrollID, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Index)
	assert.Equal(t, payroll.ZeroRef, got.EncryptedRef)
	assert.Len(t, got.Proof, 1)

	bobClaim, err := l.GetClaim(ctx, bob, created.PayrollID, bob)
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", 32), bobClaim.EncryptedRef)

	_, err = l.GetClaim(ctx, boss, created.PayrollID, alice)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	_, err = l.GetClaim(ctx, alice, "12345", alice)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestCommittedProofsVerify(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	created, err := l.CreateRun(ctx, boss, nil)
	require.NoError(t, err)
	committed, err := l.CommitRun(ctx, boss, created.RunID(), commitItems())
	require.NoError(t, err)

	pid, _ := new(big.Int).SetString(created.PayrollID, 10)
	r, err := l.store.run(ctx, created.RunID())
	require.NoError(t, err)
	for _, c := range r.claims {
		ct, err := base64.StdEncoding.DecodeString(c.ciphertext)
		require.NoError(t, err)
		leaf, err := LeafHash(pid, uint32(c.index), c.wallet, r.token, ct, c.encryptedRef)
		require.NoError(t, err)
		assert.Equal(t, c.leaf, leaf.Hex())

		proof := make([]Hash, len(c.proof))
		for i, p := range c.proof {
			b, err := decodeFixed(p, 32)
			require.NoError(t, err)
			copy(proof[i][:], b)
		}
		var root Hash
		b, err := decodeFixed(committed.MerkleRoot, 32)
		require.NoError(t, err)
		copy(root[:], b)
		assert.True(t, VerifyProof(leaf, c.index, proof, root))
	}
}

func TestCommitRunRejectsBadItemsAtomically(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	created, err := l.CreateRun(ctx, boss, nil)
	require.NoError(t, err)
	runID := created.RunID()

	good := commitItems()
	cases := map[string]struct {
		items []payroll.CommitItem
		msg   string
	}{
		"empty":     {nil, "items must be a non-empty list"},
		"short":     {good[:1], "items length must equal run total (2)"},
		"bad ref":   {[]payroll.CommitItem{good[0], {Wallet: bob, NetCiphertextB64: "AA==", EncryptedRef: "0x12"}}, "encrypted_ref must be bytes32"},
		"bad b64":   {[]payroll.CommitItem{good[0], {Wallet: bob, NetCiphertextB64: "%%%"}}, "Invalid base64 ciphertext"},
		"stranger":  {[]payroll.CommitItem{good[0], {Wallet: boss, NetCiphertextB64: "AA=="}}, "Wallet not found in this run"},
		"duplicate": {[]payroll.CommitItem{good[0], good[0]}, "Some indices missing ciphertext"},
		"no ct":     {[]payroll.CommitItem{good[0], {Wallet: bob}}, "Missing net_ciphertext_b64"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.CommitRun(ctx, boss, runID, tc.items)
			assert.ErrorContains(t, err, tc.msg)
		})
	}

	claims, err := l.RunClaims(ctx, boss, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunDraft, claims.Status)
	for _, c := range claims.Claims {
		assert.False(t, c.HasCiphertext, "failed commits leave no trace")
	}
}

func TestRunsAreScopedToEmployer(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	created, err := l.CreateRun(ctx, boss, nil)
	require.NoError(t, err)

	_, err = l.RunClaims(ctx, alice, created.RunID())
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	_, err = l.RunClaims(ctx, boss, 404)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	runs, err := l.ListRuns(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = l.CreateRun(ctx, boss, ptr(0))
	assert.ErrorContains(t, err, "claim_window_days")
}

func TestRecordClaimTx(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	created, err := l.CreateRun(ctx, boss, nil)
	require.NoError(t, err)
	runID := created.RunID()
	hash := "0x" + strings.Repeat("c", 64)

	res, err := l.RecordClaimTx(ctx, alice, runID, 0, alice, hash)
	require.NoError(t, err, "employees record their own claims")
	assert.Equal(t, hash, res.TxHash)

	_, err = l.RecordClaimTx(ctx, boss, runID, 1, bob, hash)
	require.NoError(t, err, "the employer records for anyone")

	_, err = l.RecordClaimTx(ctx, alice, runID, 1, bob, hash)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = l.RecordClaimTx(ctx, boss, runID, 0, bob, hash)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err), "index and wallet must match")

	_, err = l.RecordClaimTx(ctx, boss, runID, 0, "", hash)
	assert.ErrorContains(t, err, "wallet is required")

	claims, err := l.RunClaims(ctx, boss, runID)
	require.NoError(t, err)
	assert.Equal(t, hash, claims.Claims[0].ClaimTxHash)
}

func TestCreateRunWithoutEmployees(t *testing.T) {
	ctx := context.Background()
	l := New(Options{OrgName: "Empty", TokenAddress: "0x00000000000000000000000000000000000c05dc", VaultAddress: "0x000000000000000000000000000000000000a017"})
	_, err := l.CreateRun(ctx, boss, nil)
	assert.ErrorContains(t, err, "No active employees")
}
