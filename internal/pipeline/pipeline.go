// Package pipeline copies DISCOVERED ledger rows off the camera into the
// staging area and queues them for upload.
//
// A camera session runs one operation at a time, so rows are processed
// serially on the caller's goroutine.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"gpcam/internal/camerr"
	"gpcam/internal/hash"
	"gpcam/internal/logging"
	"gpcam/internal/model"
	"gpcam/internal/store"
)

// Device is the part of a camera session the pipeline drives.
type Device interface {
	DownloadItem(ctx context.Context, folder, name, dest string) error
	DeleteItem(ctx context.Context, folder, name string) error
}

type Options struct {
	DeviceID string
	Lease    time.Duration
	Batch    int

	// DeleteAfterCopy removes the file from the camera once it is staged,
	// hashed and queued. A failed delete is logged and does not fail the
	// row.
	DeleteAfterCopy bool
}

type Stats struct {
	Copied int
	Failed int
}

// Run drains the runnable DISCOVERED rows of opts.DeviceID. It stops early
// when ctx is done, the operation is cancelled or the session is lost;
// other per-row failures are recorded with backoff and the run continues.
func Run(ctx context.Context, log *zap.Logger, db *sql.DB, dev Device, opts Options) (Stats, error) {
	log = logging.Or(log).Named("pipeline")
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	if opts.Lease <= 0 {
		opts.Lease = 2 * time.Minute
	}
	workerID := fmt.Sprintf("pipe-%d", os.Getpid())

	var st Stats
	tried := make(map[int64]bool)
	for {
		rows, err := store.FetchRunnable(db, model.StateDiscovered, opts.DeviceID, opts.Batch)
		if err != nil {
			return st, err
		}
		progressed := false
		for _, f := range rows {
			if tried[f.ID] {
				continue
			}
			if ctx.Err() != nil {
				return st, ctx.Err()
			}
			tried[f.ID] = true
			progressed = true

			err := handleDiscovered(ctx, log, db, dev, opts, workerID, f)
			switch {
			case err == nil:
				st.Copied++
			case camerr.IsCancelled(err), camerr.KindOf(err) == camerr.NotConnected:
				return st, err
			default:
				st.Failed++
			}
		}
		if !progressed {
			return st, nil
		}
	}
}

func handleDiscovered(ctx context.Context, log *zap.Logger, db *sql.DB, dev Device, opts Options, workerID string, f model.FileRow) error {
	claimed, err := store.Claim(db, f.ID, model.StateDiscovered, model.StateCopying, workerID, opts.Lease)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	log = log.With(zap.Int64("file", f.ID), zap.String("path", f.SrcPath()))

	if err := dev.DownloadItem(ctx, f.Folder, f.Name, f.StagedPath); err != nil {
		if camerr.IsCancelled(err) {
			// not a failure of the file: put it back as it was
			_ = store.Transition(db, f.ID, model.StateCopying, model.StateDiscovered)
			return err
		}
		log.Warn("download failed", zap.Error(err), zap.Int("code", camerr.CodeOf(err)))
		_ = store.MarkErrorWithBackoff(db, f.ID, model.StateDiscovered, err)
		return err
	}

	if err := store.Transition(db, f.ID, model.StateCopying, model.StateCopied); err != nil {
		return err
	}

	h, err := hash.Compute(f.StagedPath)
	if err != nil {
		_ = store.MarkErrorWithBackoff(db, f.ID, model.StateDiscovered, err)
		return err
	}
	if err := store.UpdateHashes(db, f.ID, h.Size, h.SHA256, h.CRC32C); err != nil {
		_ = store.MarkErrorWithBackoff(db, f.ID, model.StateDiscovered, err)
		return err
	}

	if err := store.Transition(db, f.ID, model.StateCopied, model.StateHashed); err != nil {
		return err
	}
	if err := store.Transition(db, f.ID, model.StateHashed, model.StateQueued); err != nil {
		return err
	}

	// only once the staged copy is hashed and queued
	if opts.DeleteAfterCopy {
		if err := dev.DeleteItem(ctx, f.Folder, f.Name); err != nil {
			log.Warn("camera delete failed", zap.Error(err))
		}
	}
	log.Debug("staged", zap.String("staged", f.StagedPath), zap.Int64("size", h.Size))
	return nil
}
