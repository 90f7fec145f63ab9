package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
)

const transcriptContentType = "text/plain; charset=utf-8"

type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// TranscriptArchive writes closed ticket transcripts to an S3 compatible bucket.
type TranscriptArchive struct {
	store  objectStore
	bucket string
	logger *zap.Logger
}

// NewTranscriptArchive connects to the configured endpoint and creates the bucket when missing.
func NewTranscriptArchive(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*TranscriptArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return newTranscriptArchive(ctx, client, cfg.Bucket, logger)
}

func newTranscriptArchive(ctx context.Context, store objectStore, bucket string, logger *zap.Logger) (*TranscriptArchive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	exists, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := store.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		logger.Info("created transcript bucket", zap.String("bucket", bucket))
	}
	return &TranscriptArchive{store: store, bucket: bucket, logger: logger}, nil
}

// Store uploads data under key and returns "bucket/key".
func (a *TranscriptArchive) Store(ctx context.Context, key string, data []byte) (string, error) {
	info, err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: transcriptContentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload transcript %s: %w", key, err)
	}
	a.logger.Debug("transcript archived", zap.String("key", info.Key), zap.Int64("size", info.Size))
	return a.bucket + "/" + key, nil
}
