package sim

import (
	"context"
	"sort"
	"strings"

	"gpcam/internal/provider"
)

type camera struct {
	p *Provider

	abil    provider.ModelAbilities
	port    provider.PortInfo
	hasAbil bool
	hasPort bool
	inited  bool
	closed  bool
}

func (c *camera) SetAbilities(a provider.ModelAbilities) error {
	if err := c.p.enter(context.Background(), "set-abilities", a.Model); err != nil {
		return err
	}
	c.abil, c.hasAbil = a, true
	return nil
}

func (c *camera) SetPortInfo(pi provider.PortInfo) error {
	if err := c.p.enter(context.Background(), "set-port", pi.Path); err != nil {
		return err
	}
	c.port, c.hasPort = pi, true
	return nil
}

func (c *camera) Init(ctx context.Context) error {
	if err := c.p.enter(ctx, "init", c.port.Path); err != nil {
		return err
	}
	if c.closed {
		return provider.Errorf(provider.CodeBadParameters, "handle closed")
	}
	if !c.hasAbil {
		return &provider.Error{Code: provider.CodeModelNotFound}
	}

	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if !hasModel(c.p.models, c.abil.Model) {
		return &provider.Error{Code: provider.CodeModelNotFound}
	}
	if c.abil.Model != DirectoryBrowse {
		if !c.hasPort {
			return &provider.Error{Code: provider.CodeUnknownPort}
		}
		if !c.p.deviceOn(c.abil.Model, c.port.Path) {
			return &provider.Error{Code: provider.CodeIOUSBFind}
		}
	}
	c.inited = true
	return nil
}

func (c *camera) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.p.mu.Lock()
	c.p.open--
	c.p.calls = append(c.p.calls, "close")
	c.p.mu.Unlock()
	return nil
}

// ready gates every device operation: the handle must be initialised and
// the device still attached.
func (c *camera) ready(ctx context.Context, op, path string) error {
	if err := c.p.enter(ctx, op, path); err != nil {
		return err
	}
	if c.closed || !c.inited {
		return provider.Errorf(provider.CodeBadParameters, "camera not initialised")
	}
	if c.abil.Model == DirectoryBrowse {
		return nil
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if !c.p.deviceOn(c.abil.Model, c.port.Path) {
		return &provider.Error{Code: provider.CodeIOUSBFind}
	}
	return nil
}

func (c *camera) ListFolders(ctx context.Context, folderPath string) ([]string, error) {
	if err := c.ready(ctx, "list-folders", folderPath); err != nil {
		return nil, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	dir := c.p.lookupFolder(folderPath)
	if dir == nil {
		return nil, &provider.Error{Code: provider.CodeDirectoryNotFound}
	}
	out := make([]string, 0, len(dir.subs))
	for _, s := range dir.subs {
		out = append(out, s.name)
	}
	return out, nil
}

func (c *camera) ListFiles(ctx context.Context, folderPath string) ([]string, error) {
	if err := c.ready(ctx, "list-files", folderPath); err != nil {
		return nil, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	dir := c.p.lookupFolder(folderPath)
	if dir == nil {
		return nil, &provider.Error{Code: provider.CodeDirectoryNotFound}
	}
	out := make([]string, 0, len(dir.files))
	for _, f := range dir.files {
		out = append(out, f.name)
	}
	return out, nil
}

func (c *camera) FileInfo(ctx context.Context, folderPath, name string) (provider.FileInfo, error) {
	if err := c.ready(ctx, "file-info", join(folderPath, name)); err != nil {
		return provider.FileInfo{}, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	f := c.p.lookupFile(folderPath, name)
	if f == nil {
		return provider.FileInfo{}, &provider.Error{Code: provider.CodeFileNotFound}
	}
	return f.info, nil
}

func (c *camera) SetFileInfo(ctx context.Context, folderPath, name string, info provider.FileInfo) error {
	if err := c.ready(ctx, "set-file-info", join(folderPath, name)); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	f := c.p.lookupFile(folderPath, name)
	if f == nil {
		return &provider.Error{Code: provider.CodeFileNotFound}
	}
	if c.p.StrictInfoWrites {
		if info.File.Fields&^provider.FieldPermissions != 0 ||
			info.Preview.Fields != provider.FieldNone ||
			info.Audio.Fields != provider.FieldNone {
			return provider.Errorf(provider.CodeBadParameters, "only permissions are writable")
		}
	}
	if info.File.Has(provider.FieldPermissions) {
		f.info.File.Permissions = info.File.Permissions
		f.info.File.Fields |= provider.FieldPermissions
	}
	return nil
}

func (c *camera) GetFile(ctx context.Context, folderPath, name string, typ provider.FileType) (provider.File, error) {
	if err := c.ready(ctx, "get-file", join(folderPath, name)); err != nil {
		return nil, err
	}

	c.p.mu.Lock()
	f := c.p.lookupFile(folderPath, name)
	if f == nil {
		c.p.mu.Unlock()
		return nil, &provider.Error{Code: provider.CodeFileNotFound}
	}
	var src []byte
	switch typ {
	case provider.FileNormal, provider.FileRaw:
		src = f.data
	case provider.FilePreview:
		src = f.thumb
	case provider.FileExif:
		src = f.exif
	}
	c.p.mu.Unlock()

	if src == nil {
		return nil, provider.Errorf(provider.CodeNotSupported, "no %s data for %s", typ, name)
	}

	data, err := c.p.transfer(ctx, "get-file", src)
	if err != nil {
		return nil, err
	}

	if typ == provider.FileNormal {
		c.p.mu.Lock()
		if f.info.File.Has(provider.FieldStatus) {
			f.info.File.Status = provider.StatusDownloaded
		}
		c.p.mu.Unlock()
	}
	return provider.NewMemFile(name, data), nil
}

func (c *camera) DeleteFile(ctx context.Context, folderPath, name string) error {
	if err := c.ready(ctx, "delete-file", join(folderPath, name)); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	dir := c.p.lookupFolder(folderPath)
	if dir == nil {
		return &provider.Error{Code: provider.CodeDirectoryNotFound}
	}
	for i, f := range dir.files {
		if f.name != name {
			continue
		}
		if protected(f) {
			return provider.Errorf(provider.CodeCameraError, "%s is protected", name)
		}
		dir.files = append(dir.files[:i], dir.files[i+1:]...)
		return nil
	}
	return &provider.Error{Code: provider.CodeFileNotFound}
}

func (c *camera) DeleteAll(ctx context.Context, folderPath string) error {
	if err := c.ready(ctx, "delete-all", folderPath); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	dir := c.p.lookupFolder(folderPath)
	if dir == nil {
		return &provider.Error{Code: provider.CodeDirectoryNotFound}
	}
	if len(dir.subs) > 0 {
		return provider.Errorf(provider.CodeDirectoryExists, "%s has subfolders", folderPath)
	}
	for _, f := range dir.files {
		if protected(f) {
			return provider.Errorf(provider.CodeCameraError, "%s is protected", f.name)
		}
	}
	dir.files = nil

	if dir == c.p.root {
		return nil
	}
	parentPath, _ := splitPath(folderPath)
	parent := c.p.lookupFolder(parentPath)
	for i, s := range parent.subs {
		if s == dir {
			parent.subs = append(parent.subs[:i], parent.subs[i+1:]...)
			break
		}
	}
	return nil
}

func (c *camera) PutFile(ctx context.Context, folderPath string, in provider.File) error {
	if err := c.ready(ctx, "put-file", join(folderPath, in.Name())); err != nil {
		return err
	}
	src, err := in.Data()
	if err != nil {
		return err
	}
	data, err := c.p.transfer(ctx, "put-file", src)
	if err != nil {
		return err
	}

	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	dir := c.p.lookupFolder(folderPath)
	if dir == nil {
		return &provider.Error{Code: provider.CodeDirectoryNotFound}
	}
	for _, f := range dir.files {
		if f.name == in.Name() {
			return &provider.Error{Code: provider.CodeFileExists}
		}
	}
	dir.files = append(dir.files, &file{
		name: in.Name(),
		data: data,
		info: provider.FileInfo{File: provider.FileDetails{
			Fields:      provider.FieldSize | provider.FieldPermissions | provider.FieldStatus | provider.FieldMTime,
			Size:        uint64(len(data)),
			Permissions: provider.PermRead | provider.PermDelete,
			Status:      provider.StatusNotDownloaded,
			MTime:       c.p.clock(),
		}},
	})
	return nil
}

func (c *camera) Capture(ctx context.Context) (provider.FilePath, error) {
	if err := c.ready(ctx, "capture", ""); err != nil {
		return provider.FilePath{}, err
	}
	if c.abil.Operations&provider.OperationCaptureImage == 0 {
		return provider.FilePath{}, &provider.Error{Code: provider.CodeNotSupported}
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.captureSeq++
	dir := c.p.mkdirAll(c.p.captureFolder)
	name := captureName(c.p.captureSeq)
	data := []byte("captured " + name)
	dir.files = append(dir.files, &file{
		name: name,
		data: data,
		info: provider.FileInfo{File: provider.FileDetails{
			Fields:      provider.FieldType | provider.FieldSize | provider.FieldPermissions | provider.FieldStatus | provider.FieldMTime,
			Type:        "image/jpeg",
			Size:        uint64(len(data)),
			Permissions: provider.PermRead | provider.PermDelete,
			Status:      provider.StatusNotDownloaded,
			MTime:       c.p.clock(),
		}},
	})
	return provider.FilePath{Folder: c.p.captureFolder, Name: name}, nil
}

func (c *camera) CapturePreview(ctx context.Context) (provider.File, error) {
	if err := c.ready(ctx, "capture-preview", ""); err != nil {
		return nil, err
	}
	c.p.mu.Lock()
	frame := c.p.preview
	c.p.mu.Unlock()
	if frame == nil {
		return nil, &provider.Error{Code: provider.CodeNotSupported}
	}
	return provider.NewMemFile("preview.jpg", append([]byte(nil), frame...)), nil
}

func (c *camera) StorageInfo(ctx context.Context) ([]provider.StorageInfo, error) {
	if err := c.ready(ctx, "storage-info", ""); err != nil {
		return nil, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return append([]provider.StorageInfo(nil), c.p.storage...), nil
}

func (c *camera) Summary(ctx context.Context) (string, error) {
	return c.text(ctx, "summary", func() string { return c.p.summary })
}

func (c *camera) Manual(ctx context.Context) (string, error) {
	return c.text(ctx, "manual", func() string { return c.p.manual })
}

func (c *camera) About(ctx context.Context) (string, error) {
	return c.text(ctx, "about", func() string { return c.p.about })
}

func (c *camera) text(ctx context.Context, op string, get func() string) (string, error) {
	if err := c.ready(ctx, op, ""); err != nil {
		return "", err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return get(), nil
}

func protected(f *file) bool {
	d := f.info.File
	return d.Has(provider.FieldPermissions) && d.Permissions&provider.PermDelete == 0
}

func join(folderPath, name string) string {
	if strings.HasSuffix(folderPath, "/") {
		return folderPath + name
	}
	return folderPath + "/" + name
}

// sortedModels is used by NewDemo to keep the ability database ordered the
// way real drivers ship it.
func sortedModels(list []provider.ModelAbilities) {
	sort.Slice(list, func(i, j int) bool { return list[i].Model < list[j].Model })
}
