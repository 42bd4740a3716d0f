package parchive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quatton/paydesk/pkg/payroll"
)

const ClaimsFile = "claims.json"

// Metadata keys stored alongside every run export.
const (
	MetaRunID      = "run-id"
	MetaPayrollID  = "payroll-id"
	MetaStatus     = "status"
	MetaMerkleRoot = "merkle-root"
)

// RunExport is what gets archived for a run: the run record as listed by
// the backend and its claims at the time of export.
type RunExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	BaseURL    string            `json:"base_url"`
	Run        payroll.Run       `json:"run"`
	Claims     payroll.RunClaims `json:"claims"`
}

// ExportSummary describes one archived run without downloading it.
type ExportSummary struct {
	RunID      int64     `json:"run_id"`
	PayrollID  string    `json:"payroll_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	MerkleRoot string    `json:"merkle_root,omitempty"`
	Size       int64     `json:"size"`
	ExportedAt time.Time `json:"exported_at"`
}

// Archive writes and reads run exports through a Store.
type Archive struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Archive {
	return &Archive{store: store, now: time.Now}
}

// ExportRun stores the run's claims under runs/{runID}/claims.json,
// replacing any earlier export of the same run.
func (a *Archive) ExportRun(ctx context.Context, baseURL string, run payroll.Run, claims payroll.RunClaims) (*Object, error) {
	runID := run.RunID()
	if runID == 0 {
		runID = claims.RunID
	}
	if runID == 0 {
		return nil, errors.New("run has no id")
	}
	if claims.RunID != 0 && claims.RunID != runID {
		return nil, fmt.Errorf("claims belong to run %d, not %d", claims.RunID, runID)
	}

	exp := RunExport{
		ExportedAt: a.now().UTC(),
		BaseURL:    baseURL,
		Run:        run,
		Claims:     claims,
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding run export: %w", err)
	}

	meta := map[string]string{
		MetaRunID:      strconv.FormatInt(runID, 10),
		MetaPayrollID:  claims.PayrollID,
		MetaStatus:     claims.Status,
		MetaMerkleRoot: claims.MerkleRoot,
	}
	return a.store.PutJSON(ctx, RunKey(runID, ClaimsFile), data, meta)
}

// LoadRun reads back an export.
func (a *Archive) LoadRun(ctx context.Context, runID int64) (*RunExport, error) {
	data, err := a.store.Get(ctx, RunKey(runID, ClaimsFile))
	if err != nil {
		return nil, err
	}

	var exp RunExport
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("decoding run %d export: %w", runID, err)
	}
	return &exp, nil
}

// runIDFromKey accepts only runs/{id}/claims.json.
func runIDFromKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, "runs/")
	if !ok {
		return 0, false
	}
	idStr, file, ok := strings.Cut(rest, "/")
	if !ok || file != ClaimsFile {
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ExportedRuns lists archived runs by ascending run id. Payroll id, status
// and root come from object metadata and stay empty when the backend does
// not return it in listings.
func (a *Archive) ExportedRuns(ctx context.Context) ([]ExportSummary, error) {
	objects, err := a.store.List(ctx, "runs/")
	if err != nil {
		return nil, err
	}

	out := []ExportSummary{}
	for _, obj := range objects {
		id, ok := runIDFromKey(obj.Key)
		if !ok {
			continue
		}
		out = append(out, ExportSummary{
			RunID:      id,
			PayrollID:  obj.Metadata[MetaPayrollID],
			Status:     obj.Metadata[MetaStatus],
			MerkleRoot: obj.Metadata[MetaMerkleRoot],
			Size:       obj.Size,
			ExportedAt: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

// ShareURL returns a presigned download link for a run export.
func (a *Archive) ShareURL(ctx context.Context, runID int64, expiry time.Duration) (string, error) {
	return a.store.PresignedURL(ctx, RunKey(runID, ClaimsFile), expiry)
}

// DeleteRun removes a run's export.
func (a *Archive) DeleteRun(ctx context.Context, runID int64) error {
	return a.store.Delete(ctx, RunKey(runID, ClaimsFile))
}
