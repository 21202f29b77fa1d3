// Package transfer moves data between host and camera: downloads,
// uploads, deletes, locks, captures and previews. Each call is one
// operation on the session and is never retried here.
package transfer

import (
	"context"

	"go.uber.org/zap"

	"gpcam/internal/camerr"
	"gpcam/internal/catalog"
	"gpcam/internal/logging"
	"gpcam/internal/metrics"
	"gpcam/internal/model"
	"gpcam/internal/provider"
	"gpcam/internal/session"
)

type Engine struct {
	s   *session.Session
	p   provider.Provider
	log *zap.Logger
}

func New(s *session.Session, p provider.Provider, log *zap.Logger) *Engine {
	return &Engine{s: s, p: p, log: logging.Or(log).Named("transfer")}
}

// gate fails with NotConnected before checking an ability flag, so a
// disconnected session never reports Unsupported.
func (e *Engine) gate(op string, supported func(model.DeviceAbilities) bool, kind camerr.Kind) error {
	if e.s.State() != session.Connected {
		return camerr.New(camerr.NotConnected, op)
	}
	if !supported(e.s.Abilities()) {
		return camerr.New(kind, op)
	}
	return nil
}

// fetch runs GetFile and returns the bytes. The provider file is closed on
// every path.
func fetch(ctx context.Context, cam provider.Camera, op, folder, name string, typ provider.FileType) ([]byte, error) {
	path := model.JoinPath(folder, name)
	f, err := cam.GetFile(ctx, folder, name, typ)
	if err != nil {
		return nil, camerr.WrapPath(camerr.TransferFailed, op, path, err)
	}
	defer f.Close()

	data, err := f.Data()
	if err != nil {
		return nil, camerr.WrapPath(camerr.TransferFailed, op, path, err)
	}
	return data, nil
}

// DownloadPreview grabs one live-view frame.
func (e *Engine) DownloadPreview(ctx context.Context) ([]byte, error) {
	const op = "preview"
	if err := e.gate(op, func(a model.DeviceAbilities) bool { return a.SupportsPreview }, camerr.PreviewUnsupported); err != nil {
		return nil, err
	}

	var frame []byte
	err := e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		f, err := cam.CapturePreview(ctx)
		if err != nil {
			if provider.CodeOf(err) == provider.CodeNotSupported {
				return camerr.Wrap(camerr.PreviewUnsupported, op, err)
			}
			return camerr.Wrap(camerr.TransferFailed, op, err)
		}
		defer f.Close()

		frame, err = f.Data()
		return camerr.Wrap(camerr.TransferFailed, op, err)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordBytes(metrics.Download, len(frame))
	return frame, nil
}

// Capture fires the shutter and describes the new file. When the follow-up
// metadata query fails the error is CaptureFailed but the returned record
// still names the file, which does exist on the card.
func (e *Engine) Capture(ctx context.Context) (model.ItemRecord, error) {
	const op = "capture"
	if err := e.gate(op, func(a model.DeviceAbilities) bool { return a.SupportsCaptureImage }, camerr.Unsupported); err != nil {
		return model.ItemRecord{}, err
	}

	var rec model.ItemRecord
	err := e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		fp, err := cam.Capture(ctx)
		if err != nil {
			return camerr.Wrap(camerr.CaptureFailed, op, err)
		}
		e.log.Info("captured", zap.String("folder", fp.Folder), zap.String("name", fp.Name))

		rec, err = catalog.Describe(ctx, cam, fp.Folder, fp.Name)
		if err != nil {
			return camerr.Rewrap(camerr.CaptureFailed, op, model.JoinPath(fp.Folder, fp.Name), err)
		}
		return nil
	})
	return rec, err
}

// Thumbnail returns the device-side preview image of a stored file.
func (e *Engine) Thumbnail(ctx context.Context, folder, name string) ([]byte, error) {
	const op = "thumbnail"
	if err := e.gate(op, func(a model.DeviceAbilities) bool { return a.SupportsThumbnail }, camerr.Unsupported); err != nil {
		return nil, err
	}

	var data []byte
	err := e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		var err error
		data, err = fetch(ctx, cam, op, folder, name, provider.FilePreview)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordBytes(metrics.Download, len(data))
	return data, nil
}

// ExifBlob returns the raw EXIF block of a stored file.
func (e *Engine) ExifBlob(ctx context.Context, folder, name string) ([]byte, error) {
	const op = "exif"
	var data []byte
	err := e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		var err error
		data, err = fetch(ctx, cam, op, folder, name, provider.FileExif)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordBytes(metrics.Download, len(data))
	return data, nil
}

// DownloadItem copies a file from the camera to dest. TransferFailed means
// the bytes never left the device; SaveFailed means they did but could not
// be written locally.
func (e *Engine) DownloadItem(ctx context.Context, folder, name, dest string) error {
	const op = "download"
	path := model.JoinPath(folder, name)

	var n int
	err := e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		f, err := cam.GetFile(ctx, folder, name, provider.FileNormal)
		if err != nil {
			return camerr.WrapPath(camerr.TransferFailed, op, path, err)
		}
		defer f.Close()

		if err := ctx.Err(); err != nil {
			return camerr.WrapPath(camerr.Cancelled, op, path, err)
		}
		if err := f.Save(dest); err != nil {
			return camerr.WrapPath(camerr.SaveFailed, op, dest, err)
		}
		if data, err := f.Data(); err == nil {
			n = len(data)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordBytes(metrics.Download, n)
	e.log.Debug("downloaded", zap.String("path", path), zap.String("dest", dest), zap.Int("bytes", n))
	return nil
}

// SetLock clears (locked) or sets the delete permission of a file. The write
// carries the file permission field and nothing else: some firmware
// misapplies any other field present in the request.
func (e *Engine) SetLock(ctx context.Context, folder, name string, locked bool) error {
	const op = "lock"
	path := model.JoinPath(folder, name)

	return e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		info, err := cam.FileInfo(ctx, folder, name)
		if err != nil {
			return camerr.WrapPath(camerr.TransferFailed, op, path, err)
		}

		if locked {
			info.File.Permissions = provider.PermRead
		} else {
			info.File.Permissions = provider.PermRead | provider.PermDelete
		}
		info.File.Fields = provider.FieldPermissions
		info.Preview.Fields = provider.FieldNone
		info.Audio.Fields = provider.FieldNone

		if err := cam.SetFileInfo(ctx, folder, name, info); err != nil {
			return camerr.WrapPath(camerr.TransferFailed, op, path, err)
		}
		e.log.Debug("lock changed", zap.String("path", path), zap.Bool("locked", locked))
		return nil
	})
}

func (e *Engine) DeleteItem(ctx context.Context, folder, name string) error {
	const op = "delete"
	if err := e.gate(op, func(a model.DeviceAbilities) bool { return a.SupportsDelete }, camerr.Unsupported); err != nil {
		return err
	}
	path := model.JoinPath(folder, name)
	return e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		return camerr.WrapPath(camerr.TransferFailed, op, path, cam.DeleteFile(ctx, folder, name))
	})
}

// DeleteAllItems empties folder and every folder below it. Subfolders are
// emptied and removed before their parent, because the device only deletes
// folders without children. The first failure stops the walk.
func (e *Engine) DeleteAllItems(ctx context.Context, folder string) error {
	const op = "delete all"
	if err := e.gate(op, func(a model.DeviceAbilities) bool { return a.SupportsDelete }, camerr.Unsupported); err != nil {
		return err
	}
	return e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		return deleteTree(ctx, cam, folder)
	})
}

func deleteTree(ctx context.Context, cam provider.Camera, folder string) error {
	const op = "delete all"
	subs, err := cam.ListFolders(ctx, folder)
	if err != nil {
		return camerr.WrapPath(camerr.EnumerationFailed, op, folder, err)
	}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return camerr.WrapPath(camerr.Cancelled, op, folder, err)
		}
		if err := deleteTree(ctx, cam, model.JoinPath(folder, sub)); err != nil {
			return err
		}
	}
	return camerr.WrapPath(camerr.TransferFailed, op, folder, cam.DeleteAll(ctx, folder))
}

// UploadItem puts localPath into folder under name and returns the new
// file's record. A failed metadata query after a good upload leaves the
// record with unknown fields and is not an error.
func (e *Engine) UploadItem(ctx context.Context, folder, name, localPath string) (model.ItemRecord, error) {
	const op = "upload"
	if err := e.gate(op, func(a model.DeviceAbilities) bool { return a.SupportsUpload }, camerr.Unsupported); err != nil {
		return model.ItemRecord{}, err
	}
	path := model.JoinPath(folder, name)

	var rec model.ItemRecord
	var n int
	err := e.s.Do(ctx, op, func(ctx context.Context, cam provider.Camera) error {
		f, err := e.p.OpenFile(localPath)
		if err != nil {
			return camerr.WrapPath(camerr.TransferFailed, op, localPath, err)
		}
		defer f.Close()

		if err := f.SetName(name); err != nil {
			return camerr.WrapPath(camerr.TransferFailed, op, path, err)
		}
		if data, err := f.Data(); err == nil {
			n = len(data)
		}
		if err := cam.PutFile(ctx, folder, f); err != nil {
			return camerr.WrapPath(camerr.TransferFailed, op, path, err)
		}

		rec, err = catalog.Describe(ctx, cam, folder, name)
		if err != nil {
			if camerr.IsCancelled(err) {
				return err
			}
			e.log.Warn("uploaded file info unavailable", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return model.ItemRecord{}, err
	}
	metrics.RecordBytes(metrics.Upload, n)
	return rec, nil
}
