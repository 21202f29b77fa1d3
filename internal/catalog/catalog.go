// Package catalog enumerates folders and files on a connected camera and
// normalizes per-file metadata into model.ItemRecord.
package catalog

import (
	"context"

	"go.uber.org/zap"

	"gpcam/internal/camerr"
	"gpcam/internal/logging"
	"gpcam/internal/model"
	"gpcam/internal/provider"
	"gpcam/internal/session"
)

type Catalog struct {
	s   *session.Session
	log *zap.Logger
}

func New(s *session.Session, log *zap.Logger) *Catalog {
	return &Catalog{s: s, log: logging.Or(log).Named("catalog")}
}

// ListFolderNames returns the direct subfolders of folder. On failure the
// slice is empty, never nil.
func (c *Catalog) ListFolderNames(ctx context.Context, folder string) ([]string, error) {
	var names []string
	err := c.s.Do(ctx, "list folders", func(ctx context.Context, cam provider.Camera) error {
		var err error
		names, err = subfolders(ctx, cam, folder)
		return err
	})
	if err != nil {
		return []string{}, err
	}
	return names, nil
}

// ListAllFoldersRecursive returns every folder below root: first root's
// children, then each child's subtree in device order. Paths are joined with
// exactly one separator.
func (c *Catalog) ListAllFoldersRecursive(ctx context.Context, root string) ([]string, error) {
	out := []string{}
	err := c.s.Do(ctx, "list all folders", func(ctx context.Context, cam provider.Camera) error {
		return walkFolders(ctx, cam, root, &out)
	})
	if err != nil {
		return []string{}, err
	}
	return out, nil
}

func walkFolders(ctx context.Context, cam provider.Camera, root string, out *[]string) error {
	names, err := subfolders(ctx, cam, root)
	if err != nil {
		return err
	}
	children := make([]string, 0, len(names))
	for _, n := range names {
		children = append(children, model.JoinPath(root, n))
	}
	*out = append(*out, children...)

	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return camerr.WrapPath(camerr.Cancelled, "list all folders", child, err)
		}
		if err := walkFolders(ctx, cam, child, out); err != nil {
			return err
		}
	}
	return nil
}

func subfolders(ctx context.Context, cam provider.Camera, folder string) ([]string, error) {
	names, err := cam.ListFolders(ctx, folder)
	if err != nil {
		return nil, camerr.WrapPath(camerr.EnumerationFailed, "list folders", folder, err)
	}
	return names, nil
}

func (c *Catalog) ListFileNames(ctx context.Context, folder string) ([]string, error) {
	var names []string
	err := c.s.Do(ctx, "list files", func(ctx context.Context, cam provider.Camera) error {
		var err error
		names, err = cam.ListFiles(ctx, folder)
		return camerr.WrapPath(camerr.EnumerationFailed, "list files", folder, err)
	})
	if err != nil {
		return []string{}, err
	}
	return names, nil
}

// ListItemRecords returns one record per file of folder. A file whose
// metadata query fails is still listed, with every optional field unknown,
// unless the failure means the device is gone.
func (c *Catalog) ListItemRecords(ctx context.Context, folder string) ([]model.ItemRecord, error) {
	var out []model.ItemRecord
	err := c.s.Do(ctx, "list items", func(ctx context.Context, cam provider.Camera) error {
		names, err := cam.ListFiles(ctx, folder)
		if err != nil {
			return camerr.WrapPath(camerr.EnumerationFailed, "list items", folder, err)
		}
		out = make([]model.ItemRecord, 0, len(names))
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return camerr.WrapPath(camerr.Cancelled, "list items", folder, err)
			}
			rec, err := Describe(ctx, cam, folder, name)
			if err != nil {
				if camerr.IsCancelled(err) || provider.IsSessionLost(err) {
					return err
				}
				c.log.Warn("file info unavailable, listing with unknown fields",
					zap.String("folder", folder),
					zap.String("name", name),
					zap.Error(err))
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return []model.ItemRecord{}, err
	}
	return out, nil
}

// Describe queries the metadata of one file. On failure it still returns a
// usable record: folder, name and MIME set, everything else unknown.
func Describe(ctx context.Context, cam provider.Camera, folder, name string) (model.ItemRecord, error) {
	info, err := cam.FileInfo(ctx, folder, name)
	if err != nil {
		rec := model.UnknownRecord(folder, name)
		rec.MIME = MIMEType(name)
		return rec, camerr.WrapPath(camerr.EnumerationFailed, "file info", model.JoinPath(folder, name), err)
	}
	return NewRecord(folder, name, info), nil
}

// NewRecord converts device metadata into a record. Fields the device did
// not report stay unknown. MIME comes from the name, never from the device.
func NewRecord(folder, name string, info provider.FileInfo) model.ItemRecord {
	rec := model.UnknownRecord(folder, name)
	rec.MIME = MIMEType(name)

	d := info.File
	if d.Has(provider.FieldMTime) {
		t := d.MTime
		rec.ModTime = &t
	}
	if d.Has(provider.FieldSize) {
		n := int64(d.Size)
		rec.Size = &n
	}
	if d.Has(provider.FieldWidth) {
		w := int(d.Width)
		rec.Width = &w
	}
	if d.Has(provider.FieldHeight) {
		h := int(d.Height)
		rec.Height = &h
	}
	if d.Has(provider.FieldStatus) {
		if d.Status == provider.StatusDownloaded {
			rec.Downloaded = model.DownloadedYes
		} else {
			rec.Downloaded = model.DownloadedNo
		}
	}
	if d.Has(provider.FieldPermissions) {
		rec.ReadPermission = access(d.Permissions&provider.PermRead != 0)
		rec.WritePermission = access(d.Permissions&provider.PermDelete != 0)
	}
	return rec
}

func access(ok bool) model.Access {
	if ok {
		return model.AccessGranted
	}
	return model.AccessDenied
}
