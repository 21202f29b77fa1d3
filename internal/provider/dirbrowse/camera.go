package dirbrowse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gpcam/internal/copyutil"
	"gpcam/internal/mount"
	"gpcam/internal/provider"
)

const readChunk = 64 * 1024

type camera struct {
	p      *Provider
	inited bool
}

func (c *camera) SetAbilities(a provider.ModelAbilities) error {
	if a.Model != Model {
		return &provider.Error{Code: provider.CodeModelNotFound}
	}
	return nil
}

func (c *camera) SetPortInfo(provider.PortInfo) error { return nil }

func (c *camera) Init(ctx context.Context) error {
	if ctx.Err() != nil {
		return &provider.Error{Code: provider.CodeCancel}
	}
	st, err := os.Stat(c.p.base)
	if err != nil {
		return osError(err, c.p.base)
	}
	if !st.IsDir() {
		return provider.Errorf(provider.CodeDirectoryNotFound, "%s is not a directory", c.p.base)
	}
	c.inited = true
	return nil
}

func (c *camera) Close() error {
	c.inited = false
	return nil
}

func (c *camera) check(ctx context.Context) error {
	if ctx.Err() != nil {
		return &provider.Error{Code: provider.CodeCancel}
	}
	if !c.inited {
		return provider.Errorf(provider.CodeBadParameters, "camera not initialised")
	}
	return nil
}

func (c *camera) list(ctx context.Context, folder string, dirs bool) ([]string, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	dir, err := c.p.resolve(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, provider.Errorf(provider.CodeDirectoryNotFound, "%s", folder)
		}
		return nil, osError(err, folder)
	}
	var out []string
	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		if e.IsDir() == dirs && (dirs || e.Type().IsRegular()) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (c *camera) ListFolders(ctx context.Context, folder string) ([]string, error) {
	return c.list(ctx, folder, true)
}

func (c *camera) ListFiles(ctx context.Context, folder string) ([]string, error) {
	return c.list(ctx, folder, false)
}

func (c *camera) FileInfo(ctx context.Context, folder, name string) (provider.FileInfo, error) {
	if err := c.check(ctx); err != nil {
		return provider.FileInfo{}, err
	}
	full, err := c.p.resolve(folder, name)
	if err != nil {
		return provider.FileInfo{}, err
	}
	st, err := os.Stat(full)
	if err != nil {
		return provider.FileInfo{}, osError(err, name)
	}
	if st.IsDir() {
		return provider.FileInfo{}, provider.Errorf(provider.CodeFileNotFound, "%s is a folder", name)
	}

	d := provider.FileDetails{
		Fields: provider.FieldSize | provider.FieldMTime | provider.FieldPermissions,
		Size:   uint64(st.Size()),
		MTime:  st.ModTime(),
	}
	if st.Mode().Perm()&0o444 != 0 {
		d.Permissions |= provider.PermRead
	}
	if st.Mode().Perm()&0o200 != 0 {
		d.Permissions |= provider.PermDelete
	}
	if w, h, ok := dimensions(full); ok {
		d.Fields |= provider.FieldWidth | provider.FieldHeight
		d.Width, d.Height = uint32(w), uint32(h)
	}
	return provider.FileInfo{File: d}, nil
}

// SetFileInfo applies the permission field as the owner write bit. Other
// fields are ignored: a directory has nowhere to keep them.
func (c *camera) SetFileInfo(ctx context.Context, folder, name string, info provider.FileInfo) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if !info.File.Has(provider.FieldPermissions) {
		return nil
	}
	full, err := c.p.resolve(folder, name)
	if err != nil {
		return err
	}
	st, err := os.Stat(full)
	if err != nil {
		return osError(err, name)
	}
	mode := st.Mode().Perm()
	if info.File.Permissions&provider.PermDelete != 0 {
		mode |= 0o200
	} else {
		mode &^= 0o222
	}
	return mount.Writable(c.p.opts.MountPoint, func() error {
		return osError(os.Chmod(full, mode), name)
	})
}

func (c *camera) GetFile(ctx context.Context, folder, name string, typ provider.FileType) (provider.File, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	full, err := c.p.resolve(folder, name)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch typ {
	case provider.FileNormal, provider.FileRaw:
		data, err = readAll(ctx, full)
	case provider.FilePreview:
		data, err = thumbnail(full, c.p.opts.ThumbSize)
	case provider.FileExif:
		data, err = exifBlock(full)
	default:
		return nil, provider.Errorf(provider.CodeNotSupported, "%s files", typ)
	}
	if err != nil {
		return nil, err
	}
	return provider.NewMemFile(name, data), nil
}

// readAll reads in chunks so a cancel lands between them.
func readAll(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, osError(err, filepath.Base(path))
	}
	defer f.Close()

	var out []byte
	if st, err := f.Stat(); err == nil {
		out = make([]byte, 0, st.Size())
	}
	buf := make([]byte, readChunk)
	for {
		if ctx.Err() != nil {
			return nil, &provider.Error{Code: provider.CodeCancel}
		}
		n, err := f.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, provider.Errorf(provider.CodeIORead, "%s: %v", filepath.Base(path), err)
		}
	}
}

func (c *camera) DeleteFile(ctx context.Context, folder, name string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	full, err := c.p.resolve(folder, name)
	if err != nil {
		return err
	}
	if err := protected(full); err != nil {
		return err
	}
	return mount.Writable(c.p.opts.MountPoint, func() error {
		return osError(os.Remove(full), name)
	})
}

func (c *camera) DeleteAll(ctx context.Context, folder string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	subs, err := c.list(ctx, folder, true)
	if err != nil {
		return err
	}
	if len(subs) > 0 {
		return provider.Errorf(provider.CodeDirectoryExists, "%s has subfolders", folder)
	}
	files, err := c.list(ctx, folder, false)
	if err != nil {
		return err
	}
	dir, err := c.p.resolve(folder)
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := protected(filepath.Join(dir, name)); err != nil {
			return err
		}
	}

	return mount.Writable(c.p.opts.MountPoint, func() error {
		for _, name := range files {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return osError(err, name)
			}
		}
		if dir == c.p.base {
			return nil
		}
		// hidden files would keep the folder alive
		if err := os.RemoveAll(dir); err != nil {
			return osError(err, folder)
		}
		return nil
	})
}

func protected(full string) error {
	st, err := os.Stat(full)
	if err != nil {
		return osError(err, filepath.Base(full))
	}
	if st.Mode().Perm()&0o200 == 0 {
		return provider.Errorf(provider.CodeCameraError, "%s is protected", filepath.Base(full))
	}
	return nil
}

func (c *camera) PutFile(ctx context.Context, folder string, f provider.File) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	name := f.Name()
	if name == "" || strings.ContainsAny(name, `/\`) {
		return provider.Errorf(provider.CodeBadParameters, "bad file name %q", name)
	}
	dir, err := c.p.resolve(folder)
	if err != nil {
		return err
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return provider.Errorf(provider.CodeDirectoryNotFound, "%s", folder)
	}
	dst := filepath.Join(dir, name)
	if _, err := os.Lstat(dst); err == nil {
		return &provider.Error{Code: provider.CodeFileExists}
	}
	data, err := f.Data()
	if err != nil {
		return err
	}
	return mount.Writable(c.p.opts.MountPoint, func() error {
		if err := copyutil.WriteFileAtomic(dst, data); err != nil {
			return osError(err, name)
		}
		return nil
	})
}

func (c *camera) Capture(context.Context) (provider.FilePath, error) {
	return provider.FilePath{}, provider.Errorf(provider.CodeNotSupported, "a directory cannot capture")
}

func (c *camera) CapturePreview(context.Context) (provider.File, error) {
	return nil, provider.Errorf(provider.CodeNotSupported, "a directory has no live view")
}

func (c *camera) StorageInfo(ctx context.Context) ([]provider.StorageInfo, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	si, err := statStorage(c.p.base)
	if err != nil {
		return nil, err
	}
	si.Fields |= provider.StorageBase | provider.StorageLabel | provider.StorageDescription | provider.StorageFilesystemType
	si.BaseDir = "/"
	si.Label = filepath.Base(c.p.base)
	si.Description = c.p.base
	si.FSType = provider.FSGenericHierarchical
	if st, err := os.Stat(filepath.Join(c.p.base, "DCIM")); err == nil && st.IsDir() {
		si.FSType = provider.FSDCF
	}
	return []provider.StorageInfo{si}, nil
}

func (c *camera) Summary(ctx context.Context) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("Directory Browse on %s\n", c.p.base), nil
}

func (c *camera) Manual(ctx context.Context) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}
	return "The Directory Browse camera serves the pictures of a folder " +
		"on this computer. Point it at a mounted memory card to import from it.", nil
}

func (c *camera) About(ctx context.Context) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}
	return "Directory Browse driver. Thumbnails come from the EXIF block when " +
		"present and are generated from the image otherwise.", nil
}
