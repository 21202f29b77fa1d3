package worker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"gpcam/internal/archive"
	"gpcam/internal/hash"
	"gpcam/internal/metrics"
	"gpcam/internal/model"
	"gpcam/internal/store"
)

func workerID(i int) string {
	return fmt.Sprintf("gpcam-%d-%d", os.Getpid(), i)
}

func runWorker(
	ctx context.Context,
	log *zap.Logger,
	db *sql.DB,
	up archive.Uploader,
	opts Options,
	id string,
	jobs <-chan model.FileRow,
	pending *sync.WaitGroup,
) {
	log = log.With(zap.String("worker", id))
	for f := range jobs {
		upload(ctx, log, db, up, opts, id, f)
		pending.Done()
	}
}

func upload(ctx context.Context, log *zap.Logger, db *sql.DB, up archive.Uploader, opts Options, id string, f model.FileRow) {
	if ctx.Err() != nil {
		return
	}
	claimed, err := store.Claim(db, f.ID, model.StateQueued, model.StateUploading, id, opts.Lease)
	if err != nil {
		log.Error("claim error", zap.Int64("file", f.ID), zap.Error(err))
		return
	}
	if !claimed {
		return
	}
	log = log.With(zap.Int64("file", f.ID), zap.String("path", f.SrcPath()))

	if !(hash.Result{Size: f.Size, SHA256: f.SHA256, CRC32C: f.CRC32C}).Complete() {
		h, err := hash.Compute(f.StagedPath)
		if err != nil {
			log.Warn("hash error", zap.Error(err))
			_ = store.MarkErrorWithBackoff(db, f.ID, model.StateQueued, err)
			return
		}
		if err := store.UpdateHashes(db, f.ID, h.Size, h.SHA256, h.CRC32C); err != nil {
			log.Warn("update hash db error", zap.Error(err))
			_ = store.MarkErrorWithBackoff(db, f.ID, model.StateQueued, err)
			return
		}
		f.Size, f.SHA256, f.CRC32C = h.Size, h.SHA256, h.CRC32C
	}

	start := time.Now()
	log.Debug("uploading", zap.String("staged", f.StagedPath))

	if err := up.UploadAndVerify(ctx, f); err != nil {
		log.Warn("upload/verify failed", zap.Error(err))
		metrics.RecordArchiveUpload(up.Name(), metrics.OutcomeError)
		_ = store.MarkErrorWithBackoff(db, f.ID, model.StateQueued, err)
		return
	}
	metrics.RecordArchiveUpload(up.Name(), metrics.OutcomeOK)
	metrics.RecordBytes(metrics.Upload, int(f.Size))

	_ = store.Transition(db, f.ID, model.StateUploading, model.StateUploaded)
	_ = store.Transition(db, f.ID, model.StateUploaded, model.StateVerified)

	if opts.DeleteLocal {
		if err := os.Remove(f.StagedPath); err != nil && !os.IsNotExist(err) {
			// stays VERIFIED; the staged copy is left for a later cleanup
			log.Warn("remove staged copy failed", zap.Error(err))
			return
		}
	}
	_ = store.Transition(db, f.ID, model.StateVerified, model.StateDone)

	log.Info("archived", zap.Duration("dur", time.Since(start)), zap.Int64("size", f.Size))
}
