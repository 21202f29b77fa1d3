package worker

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"gpcam/internal/archive"
	"gpcam/internal/logging"
	"gpcam/internal/model"
	"gpcam/internal/store"
)

type Options struct {
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration

	// DeleteLocal removes the staged copy once the upload is verified.
	DeleteLocal bool

	// Once returns as soon as no queued row is runnable instead of
	// polling until ctx is done.
	Once bool
}

// Run uploads QUEUED rows with a pool of workers.
func Run(ctx context.Context, log *zap.Logger, db *sql.DB, up archive.Uploader, opts Options) {
	log = logging.Or(log).Named("worker").With(zap.String("backend", up.Name()))
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 750 * time.Millisecond
	}
	if opts.Lease <= 0 {
		opts.Lease = 2 * time.Minute
	}

	jobs := make(chan model.FileRow)
	var pending sync.WaitGroup
	var workers sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		i := i
		workers.Add(1)
		go func() {
			defer workers.Done()
			runWorker(ctx, log, db, up, opts, workerID(i), jobs, &pending)
		}()
	}
	defer workers.Wait()
	defer close(jobs)

	if opts.Once {
		tried := make(map[int64]bool)
		for ctx.Err() == nil {
			rows, err := store.FetchRunnable(db, model.StateQueued, "", 50)
			if err != nil {
				log.Error("scheduler fetch error", zap.Error(err))
				return
			}
			sent := 0
			for _, f := range rows {
				if tried[f.ID] {
					continue
				}
				tried[f.ID] = true
				sent++
				pending.Add(1)
				select {
				case jobs <- f:
				case <-ctx.Done():
					pending.Done()
				}
			}
			pending.Wait()
			if sent == 0 {
				return
			}
		}
		return
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rows, err := store.FetchRunnable(db, model.StateQueued, "", 50)
			if err != nil {
				log.Error("scheduler fetch error", zap.Error(err))
				continue
			}
			for _, f := range rows {
				pending.Add(1)
				select {
				case jobs <- f:
				default:
					// workers are busy; the row comes back next tick
					pending.Done()
				}
			}
		}
	}
}
