package parchive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store keeps run exports in a MinIO or S3 bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	region string
}

// S3Config holds configuration for S3-compatible storage.
type S3Config struct {
	Endpoint  string // host:port (e.g., "localhost:9000")
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is not set")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{
		Region: s.region,
	})
}

func notFound(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}

func (s *S3Store) object(info minio.ObjectInfo) *Object {
	ct := info.ContentType
	if ct == "" {
		ct = contentJSON
	}
	return &Object{
		Key:          info.Key,
		Bucket:       s.bucket,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  ct,
		LastModified: info.LastModified,
		Metadata:     normalizeMetadata(info.UserMetadata),
	}
}

// PutJSON uploads data as an uncached JSON document offered for download
// under a run-specific file name.
func (s *S3Store) PutJSON(ctx context.Context, key string, data []byte, metadata map[string]string) (*Object, error) {
	opts := minio.PutObjectOptions{
		ContentType:        contentJSON,
		ContentDisposition: `attachment; filename="` + downloadName(key) + `"`,
		CacheControl:       "no-store",
		UserMetadata:       metadata,
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return nil, err
	}

	modified := info.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	return &Object{
		Key:          info.Key,
		Bucket:       info.Bucket,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  contentJSON,
		LastModified: modified,
		Metadata:     normalizeMetadata(metadata),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	defer obj.Close()

	// GetObject is lazy; the first read surfaces a missing key.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

func (s *S3Store) Stat(ctx context.Context, key string) (*Object, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	return s.object(info), nil
}

func (s *S3Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("response-content-disposition", `attachment; filename="`+downloadName(key)+`"`)

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// List asks for user metadata in the listing. MinIO returns it; plain S3
// leaves Metadata empty.
func (s *S3Store) List(ctx context.Context, prefix string) ([]*Object, error) {
	var objects []*Object

	opts := minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}

	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		objects = append(objects, s.object(obj))
	}

	return objects, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if _, err := s.Stat(ctx, key); err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

var _ Store = (*S3Store)(nil)
