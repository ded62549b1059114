// Package storage publishes output artifacts to an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/HugeFrog24/video-notes/pipeline"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var ErrBucketRequired = errors.New("bucket is required")

// Options configures a MinioPublisher.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	// Prefix is prepended to every object key.
	Prefix string
	UseSSL bool
}

// MinioPublisher uploads local files with minio-go. The bucket is created on
// the first upload if it does not exist.
type MinioPublisher struct {
	client *minio.Client
	opts   Options
	logger *zap.Logger

	bucketOnce sync.Once
	bucketErr  error
}

// New creates a publisher. It does not contact the server.
func New(opts Options, logger *zap.Logger) (*MinioPublisher, error) {
	if opts.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioPublisher{client: client, opts: opts, logger: logger}, nil
}

// ObjectName joins the configured prefix and key with "/".
func (p *MinioPublisher) ObjectName(objectKey string) string {
	prefix := strings.Trim(p.opts.Prefix, "/")
	key := strings.TrimLeft(objectKey, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}

// Publish uploads localPath as <prefix>/<objectKey>.
func (p *MinioPublisher) Publish(ctx context.Context, localPath, objectKey string) error {
	if err := p.ensureBucket(ctx); err != nil {
		return &pipeline.StageError{Kind: pipeline.ErrPublish, Stage: pipeline.StagePublish, Path: localPath, Err: err}
	}

	name := p.ObjectName(objectKey)
	info, err := p.client.FPutObject(ctx, p.opts.Bucket, name, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return &pipeline.StageError{Kind: pipeline.ErrPublish, Stage: pipeline.StagePublish, Path: localPath, Err: fmt.Errorf("upload %s: %w", name, err)}
	}

	p.logger.Debug("Uploaded object",
		zap.String("bucket", p.opts.Bucket),
		zap.String("object", name),
		zap.Int64("size", info.Size),
	)
	return nil
}

func (p *MinioPublisher) ensureBucket(ctx context.Context) error {
	p.bucketOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.opts.Bucket)
		if err != nil {
			p.bucketErr = fmt.Errorf("check bucket %s: %w", p.opts.Bucket, err)
			return
		}
		if exists {
			return
		}
		if err := p.client.MakeBucket(ctx, p.opts.Bucket, minio.MakeBucketOptions{Region: p.opts.Region}); err != nil {
			p.bucketErr = fmt.Errorf("create bucket %s: %w", p.opts.Bucket, err)
			return
		}
		p.logger.Info("Created bucket", zap.String("bucket", p.opts.Bucket))
	})
	return p.bucketErr
}

func contentType(localPath string) string {
	switch filepath.Ext(localPath) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".mp3":
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(filepath.Ext(localPath)); t != "" {
		return t
	}
	return "application/octet-stream"
}
