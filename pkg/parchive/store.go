// Package parchive keeps exported payroll runs in S3-compatible storage so
// the claim set a run was committed with can be audited later.
package parchive

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const contentJSON = "application/json"

// Object is a stored archive entry. Metadata keys are lower case.
type Object struct {
	Key          string            `json:"key"`
	Bucket       string            `json:"bucket"`
	Size         int64             `json:"size"`
	ETag         string            `json:"etag,omitempty"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Store holds JSON documents with string metadata. Get, Stat, PresignedURL
// and Delete return ErrNotFound for a missing key.
type Store interface {
	PutJSON(ctx context.Context, key string, data []byte, metadata map[string]string) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Stat(ctx context.Context, key string) (*Object, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// List returns every object under prefix in key order.
	List(ctx context.Context, prefix string) ([]*Object, error)

	Delete(ctx context.Context, key string) error

	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context) error
}

// RunPrefix returns the key prefix of a run's archive entries.
func RunPrefix(runID int64) string {
	return "runs/" + strconv.FormatInt(runID, 10) + "/"
}

// RunKey returns the full key of one file of a run.
func RunKey(runID int64, filename string) string {
	return RunPrefix(runID) + filename
}

// downloadName flattens a key into the file name offered to browsers:
// runs/7/claims.json becomes run-7-claims.json.
func downloadName(key string) string {
	return "run-" + strings.ReplaceAll(strings.TrimPrefix(key, "runs/"), "/", "-")
}

// normalizeMetadata lower-cases keys and drops the x-amz-meta- prefix S3
// listings may carry.
func normalizeMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		out[k] = v
	}
	return out
}
