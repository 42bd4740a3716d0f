package parchive

import (
	"context"
	"testing"
	"time"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleClaims(runID int64) payroll.RunClaims {
	return payroll.RunClaims{
		RunID:      runID,
		PayrollID:  "123456",
		Status:     payroll.RunCommitted,
		MerkleRoot: "0xroot",
		Total:      1,
		Claims: []payroll.RunClaim{
			{Index: 0, EmployeeWallet: "0x1111111111111111111111111111111111111111", Status: "unclaimed", HasCiphertext: true},
		},
	}
}

func TestExportAndLoadRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("paydesk-runs")
	a := New(store)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	obj, err := a.ExportRun(ctx, "http://localhost:8000", payroll.Run{ID: 7, Status: payroll.RunCommitted}, sampleClaims(7))
	require.NoError(t, err)
	assert.Equal(t, "runs/7/claims.json", obj.Key)
	assert.Equal(t, "application/json", obj.ContentType)
	assert.Equal(t, "7", obj.Metadata[MetaRunID])
	assert.Equal(t, "0xroot", obj.Metadata[MetaMerkleRoot])

	stat, err := store.Stat(ctx, obj.Key)
	require.NoError(t, err)
	assert.Equal(t, "123456", stat.Metadata[MetaPayrollID])
	assert.Equal(t, obj.Size, stat.Size)

	exp, err := a.LoadRun(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, fixed, exp.ExportedAt)
	assert.Equal(t, "http://localhost:8000", exp.BaseURL)
	assert.Equal(t, "123456", exp.Claims.PayrollID)
	assert.Len(t, exp.Claims.Claims, 1)

	url, err := a.ShareURL(ctx, 7, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "runs/7/claims.json")
}

func TestExportRunRejectsMismatchedClaims(t *testing.T) {
	a := New(NewMemoryStore("b"))

	_, err := a.ExportRun(context.Background(), "", payroll.Run{ID: 1}, sampleClaims(2))
	assert.ErrorContains(t, err, "belong to run 2")

	_, err = a.ExportRun(context.Background(), "", payroll.Run{}, payroll.RunClaims{})
	assert.Error(t, err)
}

func TestExportRunTakesIDFromClaims(t *testing.T) {
	a := New(NewMemoryStore("b"))

	obj, err := a.ExportRun(context.Background(), "", payroll.Run{}, sampleClaims(4))
	require.NoError(t, err)
	assert.Equal(t, RunKey(4, ClaimsFile), obj.Key)
}

func TestExportedRunsAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("b")
	a := New(store)

	for _, id := range []int64{12, 3} {
		_, err := a.ExportRun(ctx, "", payroll.Run{ID: id}, sampleClaims(id))
		require.NoError(t, err)
	}
	_, err := store.PutJSON(ctx, "runs/3/notes.json", []byte("{}"), nil)
	require.NoError(t, err)
	_, err = store.PutJSON(ctx, "runs/draft/claims.json", []byte("{}"), nil)
	require.NoError(t, err)

	list, err := a.ExportedRuns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].RunID)
	assert.Equal(t, int64(12), list[1].RunID)
	assert.Equal(t, "123456", list[0].PayrollID)
	assert.Equal(t, payroll.RunCommitted, list[0].Status)
	assert.Positive(t, list[0].Size)

	require.NoError(t, a.DeleteRun(ctx, 3))
	_, err = a.LoadRun(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, a.DeleteRun(ctx, 3), ErrNotFound)

	_, err = a.ShareURL(ctx, 3, time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportedRunsEmpty(t *testing.T) {
	list, err := New(NewMemoryStore("b")).ExportedRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRunKey(t *testing.T) {
	assert.Equal(t, "runs/42/", RunPrefix(42))
	assert.Equal(t, "runs/42/claims.json", RunKey(42, ClaimsFile))
	assert.Equal(t, "run-42-claims.json", downloadName(RunKey(42, ClaimsFile)))
}

func TestNormalizeMetadata(t *testing.T) {
	got := normalizeMetadata(map[string]string{"X-Amz-Meta-Run-Id": "7", "Status": "open"})
	assert.Equal(t, map[string]string{"run-id": "7", "status": "open"}, got)
	assert.Nil(t, normalizeMetadata(nil))
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "bucket")
}
