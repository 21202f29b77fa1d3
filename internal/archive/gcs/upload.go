package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"

	"gpcam/internal/model"
)

type Uploader struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewUploader(client *storage.Client, bucket, prefix string) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix}
}

func (u *Uploader) Name() string { return "gcs" }

func (u *Uploader) Close() error { return u.client.Close() }

func (u *Uploader) ObjectName(f model.FileRow) string {
	return f.ObjectKey(u.prefix)
}

// UploadAndVerify writes the staged file and checks the stored object's
// size and CRC32C against the ledger.
func (u *Uploader) UploadAndVerify(ctx context.Context, f model.FileRow) error {
	obj := u.client.Bucket(u.bucket).Object(u.ObjectName(f))

	file, err := os.Open(f.StagedPath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := obj.NewWriter(ctx)
	w.ChunkSize = 0
	w.ContentType = f.MIME
	if w.ContentType == "" {
		w.ContentType = "application/octet-stream"
	}
	// the service rejects the write if the bytes do not match
	w.CRC32C = f.CRC32C
	w.SendCRC32C = true
	w.Metadata = map[string]string{
		"device_id": f.DeviceID,
		"src_path":  f.SrcPath(),
		"sha256":    f.SHA256,
	}

	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	var attrs *storage.ObjectAttrs
	for i := 0; i < 3; i++ {
		attrs, err = obj.Attrs(ctx)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if err != nil {
		return err
	}

	if attrs.Size != f.Size {
		return fmt.Errorf("verify size mismatch: local=%d remote=%d", f.Size, attrs.Size)
	}
	if attrs.CRC32C != f.CRC32C {
		return fmt.Errorf("verify crc32c mismatch: local=%d remote=%d", f.CRC32C, attrs.CRC32C)
	}
	return nil
}
