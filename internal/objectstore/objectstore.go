// Package objectstore archives the committed artifacts of a finished run to
// an S3 compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/specialistvlad/gridci/internal/artifactstore"
	"github.com/specialistvlad/gridci/internal/ctxlog"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
	// PutTimeout bounds each upload.
	PutTimeout time.Duration
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("minio credentials are required")
	}
	if c.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if c.PutTimeout < 0 {
		return errors.New("minio put timeout must be >= 0")
	}
	return nil
}

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// EnsureBucket creates the bucket when it does not exist.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg Config) error {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// Putter is the upload half of *minio.Client.
type Putter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Source lists committed artifacts and reads their payloads.
type Source interface {
	Committed() []artifactstore.Handle
	Get(key string) ([]byte, error)
}

// Archiver uploads committed artifacts.
type Archiver struct {
	client  Putter
	bucket  string
	prefix  string
	timeout time.Duration
}

func NewArchiver(client Putter, cfg Config) *Archiver {
	timeout := cfg.PutTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, timeout: timeout}
}

// ObjectKey is the key an artifact of a run is stored under.
func (a *Archiver) ObjectKey(runID, artifact string) string {
	return path.Join(a.prefix, "runs", runID, "artifacts", artifact)
}

// Archive uploads every committed artifact of the run and returns the object
// keys written. It stops at the first failed upload.
func (a *Archiver) Archive(ctx context.Context, runID string, src Source) ([]string, error) {
	logger := ctxlog.FromContext(ctx).With("run", runID, "bucket", a.bucket)

	var keys []string
	for _, h := range src.Committed() {
		payload, err := src.Get(h.Name)
		if err != nil {
			return keys, fmt.Errorf("read artifact %q: %w", h.Name, err)
		}

		key := a.ObjectKey(runID, h.Name)
		putCtx, cancel := context.WithTimeout(ctx, a.timeout)
		_, err = a.client.PutObject(
			putCtx,
			a.bucket,
			key,
			bytes.NewReader(payload),
			int64(len(payload)),
			minio.PutObjectOptions{
				ContentType: "application/octet-stream",
				UserMetadata: map[string]string{
					"producer": h.Producer,
					"sha256":   h.Digest,
				},
			},
		)
		cancel()
		if err != nil {
			return keys, fmt.Errorf("upload artifact %q: %w", h.Name, err)
		}
		logger.Debug("Archived artifact.", "artifact", h.Name, "key", key, "size", h.Size)
		keys = append(keys, key)
	}

	logger.Info("Artifacts archived.", "count", len(keys))
	return keys, nil
}
