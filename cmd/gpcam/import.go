package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gpcam/internal/archive"
	"gpcam/internal/camera"
	"gpcam/internal/camerr"
	"gpcam/internal/config"
	"gpcam/internal/deviceid"
	"gpcam/internal/discover"
	"gpcam/internal/discovery"
	"gpcam/internal/model"
	"gpcam/internal/pipeline"
	"gpcam/internal/session"
	"gpcam/internal/store"
	"gpcam/internal/worker"
)

var stateOrder = []model.FileState{
	model.StateDiscovered, model.StateCopying, model.StateCopied, model.StateHashed,
	model.StateQueued, model.StateUploading, model.StateUploaded, model.StateVerified,
	model.StateDone, model.StateError,
}

func cmdImport(ctx context.Context, e *env, _ []string) error {
	db, err := store.Open(e.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	up, err := archive.New(ctx, e.cfg)
	if err != nil {
		return err
	}
	if up != nil {
		defer up.Close()
	}

	id, err := importFrom(ctx, e.log, e.cfg, db, e.cam, nil)
	if err != nil {
		return err
	}
	if up != nil {
		worker.Run(ctx, e.log, db, up, workerOptions(e.cfg, true))
	}
	return printCounts(db, id)
}

func workerOptions(cfg config.Config, once bool) worker.Options {
	return worker.Options{
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval,
		Lease:        cfg.Lease,
		DeleteLocal:  cfg.DeleteLocal,
		Once:         once,
	}
}

// importFrom files every new camera file in the ledger and stages it. It
// returns the device id the rows were filed under.
func importFrom(ctx context.Context, log *zap.Logger, cfg config.Config, db *sql.DB, cam *camera.Camera, props map[string]string) (string, error) {
	log = log.With(zap.String("run", uuid.NewString()))

	sc := cam.Config()
	in := deviceid.Inputs{Udev: props, Model: sc.Model, Port: sc.Port}
	if cam.IsDirectoryBrowse() {
		in.Root = cfg.DirRoot
	}
	if text, err := cam.Summary(ctx); err == nil {
		in.Summary = text
	} else if camerr.IsCancelled(err) {
		return "", err
	} else {
		log.Debug("no summary for device id", zap.Error(err))
	}
	id, src := deviceid.Derive(in)
	log = log.With(zap.String("device", id))
	log.Info("importing", zap.String("id_source", string(src)), zap.String("model", sc.Model))

	res, err := discover.Scan(ctx, log, cam, db, discover.Options{
		DeviceID:  id,
		Root:      sc.RootPath,
		StageRoot: cfg.StageRoot,
		All:       cfg.All,
	})
	if err != nil {
		return id, err
	}
	log.Info("scanned", zap.Int("folders", res.Folders), zap.Int("records", len(res.Records)), zap.Int("new", res.New))

	st, err := pipeline.Run(ctx, log, db, cam, pipeline.Options{
		DeviceID:        id,
		Lease:           cfg.Lease,
		DeleteAfterCopy: cfg.DeleteAfterCopy,
	})
	log.Info("staged", zap.Int("copied", st.Copied), zap.Int("failed", st.Failed))
	return id, err
}

func printCounts(db *sql.DB, deviceID string) error {
	counts, err := store.Counts(db, deviceID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "device\t%s\n", deviceID)
	for _, s := range stateOrder {
		if n := counts[s]; n > 0 {
			fmt.Fprintf(w, "%s\t%d\n", s, n)
		}
	}
	return w.Flush()
}

// cmdWatch follows USB hotplug and imports every supported camera that
// appears. With an archive configured, uploads run in the background for
// as long as the watch does.
func cmdWatch(ctx context.Context, e *env, _ []string) error {
	db, err := store.Open(e.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	up, err := archive.New(ctx, e.cfg)
	if err != nil {
		return err
	}
	if up != nil {
		defer up.Close()
		wctx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			worker.Run(wctx, e.log, db, up, workerOptions(e.cfg, false))
		}()
		defer func() {
			stop()
			<-done
		}()
	}

	base := offline(e)
	e.log.Info("watching for cameras")
	return base.Discovery.Watch(ctx, func(a discovery.Attached) {
		attached(ctx, e, db, base, a)
	})
}

func attached(ctx context.Context, e *env, db *sql.DB, base *camera.Camera, a discovery.Attached) {
	log := e.log.With(zap.String("model", a.Detection.Model), zap.String("port", a.Detection.Port))
	sc := session.Config{
		Title:    a.Detection.Model,
		Model:    a.Detection.Model,
		Port:     a.Detection.Port,
		RootPath: e.cfg.RootPath,
	}
	cam := camera.Attach(e.p, base.Registry, base.Discovery, sc, e.log)
	if err := cam.Connect(ctx); err != nil {
		log.Warn("connect failed", zap.Error(err))
		return
	}
	e.live.Store(cam)
	defer func() {
		e.live.Store(nil)
		cam.Close()
	}()

	id, err := importFrom(ctx, log, e.cfg, db, cam, a.Props)
	if err != nil {
		log.Warn("import failed", zap.Error(err))
	}
	if id != "" {
		if err := printCounts(db, id); err != nil {
			log.Warn("counts", zap.Error(err))
		}
	}
}
