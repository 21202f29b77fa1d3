// Package gcs archives staged files to Google Cloud Storage.
package gcs

import (
	"context"
	"errors"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// NewClient opens a storage client with the service account in credsJSON,
// or Application Default Credentials when it is empty.
func NewClient(ctx context.Context, bucket, credsJSON string, opts ...option.ClientOption) (*storage.Client, error) {
	if bucket == "" {
		return nil, errors.New("missing -bucket")
	}
	if credsJSON != "" {
		opts = append(opts, option.WithCredentialsFile(credsJSON))
	}
	return storage.NewClient(ctx, opts...)
}
