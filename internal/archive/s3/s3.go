// Package s3 archives staged files to S3 or an S3-compatible store such as
// MinIO.
package s3

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gpcam/internal/model"
)

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds a client from cfg. Without static keys the default AWS
// credential chain is used.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("missing -bucket")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (u *Uploader) Name() string { return "s3" }

func (u *Uploader) Close() error { return nil }

func (u *Uploader) ObjectName(f model.FileRow) string {
	return f.ObjectKey(u.prefix)
}

// UploadAndVerify puts the staged file and checks the stored object's size
// against the ledger.
func (u *Uploader) UploadAndVerify(ctx context.Context, f model.FileRow) error {
	key := u.ObjectName(f)
	file, err := os.Open(f.StagedPath)
	if err != nil {
		return err
	}
	defer file.Close()

	contentType := f.MIME
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(f.Size),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"device-id": f.DeviceID,
			"src-path":  f.SrcPath(),
			"sha256":    f.SHA256,
		},
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	head, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("head object %s: %w", key, err)
	}
	if head.ContentLength == nil || *head.ContentLength != f.Size {
		return fmt.Errorf("verify size mismatch: local=%d remote=%v", f.Size, aws.ToInt64(head.ContentLength))
	}
	return nil
}
