// Package archive picks the upload backend for staged imports.
package archive

import (
	"context"
	"fmt"

	"gpcam/internal/archive/gcs"
	"gpcam/internal/archive/s3"
	"gpcam/internal/config"
	"gpcam/internal/model"
)

// Uploader stores one staged file and verifies the stored copy.
type Uploader interface {
	UploadAndVerify(ctx context.Context, f model.FileRow) error

	// Name labels the backend in logs and metrics.
	Name() string
	Close() error
}

// New returns the uploader selected by cfg.Archive, or nil when uploads are
// disabled.
func New(ctx context.Context, cfg config.Config) (Uploader, error) {
	switch cfg.Archive {
	case config.ArchiveNone:
		return nil, nil
	case config.ArchiveGCS:
		client, err := gcs.NewClient(ctx, cfg.Bucket, cfg.CredsJSON)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcs.NewUploader(client, cfg.Bucket, cfg.ObjectPrefix), nil
	case config.ArchiveS3:
		u, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.ObjectPrefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unknown archive %q", cfg.Archive)
	}
}
