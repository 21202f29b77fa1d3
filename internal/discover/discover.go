// Package discover walks a connected camera and files what it finds in the
// import ledger.
package discover

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"gpcam/internal/catalog"
	"gpcam/internal/logging"
	"gpcam/internal/model"
	"gpcam/internal/store"
)

// Lister is the part of a camera the scan needs.
type Lister interface {
	ListAllFoldersRecursive(ctx context.Context, root string) ([]string, error)
	ListItemRecords(ctx context.Context, folder string) ([]model.ItemRecord, error)
}

type Options struct {
	DeviceID  string
	Root      string
	StageRoot string

	// All imports every file; otherwise only pictures, raw files, videos
	// and sounds are filed.
	All bool
}

type Result struct {
	Folders int
	New     int

	// Records holds every record seen, with Downloaded set to New for files
	// the ledger had never seen and DownloadedYes for the rest.
	Records []model.ItemRecord
}

// StagedPath is where a camera file is copied to before upload. It stays
// under stageRoot/deviceID whatever folder and name the device reports.
func StagedPath(stageRoot, deviceID, folder, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("unsafe file name %q in %s", name, folder)
	}
	rel := path.Clean("/" + model.JoinPath(folder, name))
	base := filepath.Join(stageRoot, deviceID)
	full := filepath.Join(base, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%s escapes %s", rel, base)
	}
	return full, nil
}

// Scan lists Root and every folder below it and inserts DISCOVERED rows for
// files the ledger does not know yet.
func Scan(ctx context.Context, log *zap.Logger, l Lister, db *sql.DB, opts Options) (Result, error) {
	log = logging.Or(log).Named("discover")
	root := opts.Root
	if root == "" {
		root = "/"
	}

	below, err := l.ListAllFoldersRecursive(ctx, root)
	if err != nil {
		return Result{}, err
	}
	folders := append([]string{root}, below...)

	res := Result{Folders: len(folders)}
	for _, folder := range folders {
		recs, err := l.ListItemRecords(ctx, folder)
		if err != nil {
			return res, err
		}
		for _, rec := range recs {
			if !opts.All && catalog.Classify(rec.MIME) == catalog.ClassOther {
				continue
			}

			seen, err := store.Seen(db, opts.DeviceID, rec.Folder, rec.Name)
			if err != nil {
				return res, err
			}
			if seen {
				rec.Downloaded = model.DownloadedYes
				res.Records = append(res.Records, rec)
				continue
			}

			staged, err := StagedPath(opts.StageRoot, opts.DeviceID, rec.Folder, rec.Name)
			if err != nil {
				log.Warn("skipping file", zap.String("path", rec.Path()), zap.Error(err))
				continue
			}
			row := model.FileRow{
				DeviceID:   opts.DeviceID,
				Folder:     rec.Folder,
				Name:       rec.Name,
				StagedPath: staged,
				MIME:       rec.MIME,
			}
			if rec.Size != nil {
				row.Size = *rec.Size
			}
			if _, err := store.InsertDiscovered(db, row); err != nil {
				return res, err
			}
			rec.Downloaded = model.DownloadNew
			res.Records = append(res.Records, rec)
			res.New++
		}
	}

	log.Info("scan done",
		zap.String("device", opts.DeviceID),
		zap.String("root", root),
		zap.Int("folders", res.Folders),
		zap.Int("files", len(res.Records)),
		zap.Int("new", res.New),
	)
	return res, nil
}
