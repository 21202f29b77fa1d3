//go:build gphoto2 && cgo

package gphoto2

/*
#include <stdlib.h>
#include <gphoto2.h>
*/
import "C"

import (
	"context"
	"time"
	"unsafe"

	"gpcam/internal/provider"
)

type camera struct {
	p      *Provider
	cam    *C.Camera
	gp     *C.GPContext
	inited bool
}

func (c *camera) SetAbilities(a provider.ModelAbilities) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.loadAbilities(context.Background()); err != nil {
		return err
	}
	model, free := cstr(a.Model)
	defer free()
	idx := C.gp_abilities_list_lookup_model(c.p.al, model)
	if idx < C.GP_OK {
		return result(idx)
	}
	var ca C.CameraAbilities
	if code := C.gp_abilities_list_get_abilities(c.p.al, idx, &ca); code < C.GP_OK {
		return result(code)
	}
	return result(C.gp_camera_set_abilities(c.cam, ca))
}

func (c *camera) SetPortInfo(pi provider.PortInfo) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	info, err := c.p.portInfo(pi.Path)
	if err != nil {
		return err
	}
	return result(C.gp_camera_set_port_info(c.cam, info))
}

func (c *camera) Init(ctx context.Context) error {
	err := call(ctx, c.gp, func() C.int { return C.gp_camera_init(c.cam, c.gp) })
	if err == nil {
		c.inited = true
	}
	return err
}

func (c *camera) Close() error {
	if c.cam == nil {
		return nil
	}
	if c.inited {
		C.gp_camera_exit(c.cam, c.gp)
	}
	C.gp_camera_unref(c.cam)
	C.gp_context_unref(c.gp)
	c.cam, c.gp, c.inited = nil, nil, false
	return nil
}

func (c *camera) names(ctx context.Context, folder string, folders bool) ([]string, error) {
	var list *C.CameraList
	if code := C.gp_list_new(&list); code < C.GP_OK {
		return nil, result(code)
	}
	defer C.gp_list_unref(list)
	cfolder, free := cstr(folder)
	defer free()

	err := call(ctx, c.gp, func() C.int {
		if folders {
			return C.gp_camera_folder_list_folders(c.cam, cfolder, list, c.gp)
		}
		return C.gp_camera_folder_list_files(c.cam, cfolder, list, c.gp)
	})
	if err != nil {
		return nil, err
	}
	n := int(C.gp_list_count(list))
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var name *C.char
		if C.gp_list_get_name(list, C.int(i), &name) < C.GP_OK {
			continue
		}
		out = append(out, C.GoString(name))
	}
	return out, nil
}

func (c *camera) ListFolders(ctx context.Context, folder string) ([]string, error) {
	return c.names(ctx, folder, true)
}

func (c *camera) ListFiles(ctx context.Context, folder string) ([]string, error) {
	return c.names(ctx, folder, false)
}

func (c *camera) FileInfo(ctx context.Context, folder, name string) (provider.FileInfo, error) {
	cfolder, free1 := cstr(folder)
	defer free1()
	cname, free2 := cstr(name)
	defer free2()

	var info C.CameraFileInfo
	err := call(ctx, c.gp, func() C.int { return C.gp_camera_file_get_info(c.cam, cfolder, cname, &info, c.gp) })
	if err != nil {
		return provider.FileInfo{}, err
	}
	f := info.file
	out := provider.FileInfo{
		File: provider.FileDetails{
			Fields:      provider.InfoField(f.fields),
			Type:        C.GoString(&f._type[0]),
			Size:        uint64(f.size),
			Width:       uint32(f.width),
			Height:      uint32(f.height),
			Permissions: provider.Permission(f.permissions),
			Status:      provider.FileStatus(f.status),
		},
		Preview: provider.FileDetails{
			Fields: provider.InfoField(info.preview.fields),
			Type:   C.GoString(&info.preview._type[0]),
			Size:   uint64(info.preview.size),
			Width:  uint32(info.preview.width),
			Height: uint32(info.preview.height),
			Status: provider.FileStatus(info.preview.status),
		},
		Audio: provider.FileDetails{
			Fields: provider.InfoField(info.audio.fields),
			Type:   C.GoString(&info.audio._type[0]),
			Size:   uint64(info.audio.size),
			Status: provider.FileStatus(info.audio.status),
		},
	}
	if out.File.Has(provider.FieldMTime) {
		out.File.MTime = time.Unix(int64(f.mtime), 0)
	}
	return out, nil
}

func (c *camera) SetFileInfo(ctx context.Context, folder, name string, in provider.FileInfo) error {
	cfolder, free1 := cstr(folder)
	defer free1()
	cname, free2 := cstr(name)
	defer free2()

	var info C.CameraFileInfo
	info.file.fields = C.CameraFileInfoFields(in.File.Fields)
	info.file.permissions = C.CameraFilePermissions(in.File.Permissions)
	info.file.status = C.CameraFileStatus(in.File.Status)
	if in.File.Has(provider.FieldMTime) {
		info.file.mtime = C.time_t(in.File.MTime.Unix())
	}
	info.preview.fields = C.CameraFileInfoFields(in.Preview.Fields)
	info.audio.fields = C.CameraFileInfoFields(in.Audio.Fields)
	return call(ctx, c.gp, func() C.int { return C.gp_camera_file_set_info(c.cam, cfolder, cname, info, c.gp) })
}

// fileBytes copies the contents of a CameraFile into Go memory.
func fileBytes(f *C.CameraFile) ([]byte, error) {
	var data *C.char
	var size C.ulong
	if code := C.gp_file_get_data_and_size(f, &data, &size); code < C.GP_OK {
		return nil, result(code)
	}
	return C.GoBytes(unsafe.Pointer(data), C.int(size)), nil
}

func (c *camera) GetFile(ctx context.Context, folder, name string, typ provider.FileType) (provider.File, error) {
	ntyp, ok := nativeType(typ)
	if !ok {
		return nil, provider.Errorf(provider.CodeNotSupported, "%s files", typ)
	}
	cfolder, free1 := cstr(folder)
	defer free1()
	cname, free2 := cstr(name)
	defer free2()

	var f *C.CameraFile
	if code := C.gp_file_new(&f); code < C.GP_OK {
		return nil, result(code)
	}
	defer C.gp_file_unref(f)
	err := call(ctx, c.gp, func() C.int {
		return C.gp_camera_file_get(c.cam, cfolder, cname, C.CameraFileType(ntyp), f, c.gp)
	})
	if err != nil {
		return nil, err
	}
	data, err := fileBytes(f)
	if err != nil {
		return nil, err
	}
	return provider.NewMemFile(name, data), nil
}

func (c *camera) DeleteFile(ctx context.Context, folder, name string) error {
	cfolder, free1 := cstr(folder)
	defer free1()
	cname, free2 := cstr(name)
	defer free2()
	return call(ctx, c.gp, func() C.int { return C.gp_camera_file_delete(c.cam, cfolder, cname, c.gp) })
}

// DeleteAll empties folder and then removes it from its parent. libgphoto2
// only does the first half.
func (c *camera) DeleteAll(ctx context.Context, folder string) error {
	subs, err := c.ListFolders(ctx, folder)
	if err != nil {
		return err
	}
	if len(subs) > 0 {
		return provider.Errorf(provider.CodeDirectoryExists, "%s has subfolders", folder)
	}
	cfolder, free := cstr(folder)
	defer free()
	if err := call(ctx, c.gp, func() C.int { return C.gp_camera_folder_delete_all(c.cam, cfolder, c.gp) }); err != nil {
		return err
	}
	if folder == "/" || folder == "" {
		return nil
	}
	parent, base := splitFolder(folder)
	cparent, free1 := cstr(parent)
	defer free1()
	cbase, free2 := cstr(base)
	defer free2()
	return call(ctx, c.gp, func() C.int { return C.gp_camera_folder_remove_dir(c.cam, cparent, cbase, c.gp) })
}

func (c *camera) PutFile(ctx context.Context, folder string, src provider.File) error {
	data, err := src.Data()
	if err != nil {
		return err
	}
	var f *C.CameraFile
	if code := C.gp_file_new(&f); code < C.GP_OK {
		return result(code)
	}
	defer C.gp_file_unref(f)
	// the CameraFile takes ownership of the buffer
	buf := (*C.char)(C.CBytes(data))
	if code := C.gp_file_set_data_and_size(f, buf, C.ulong(len(data))); code < C.GP_OK {
		C.free(unsafe.Pointer(buf))
		return result(code)
	}

	cfolder, free1 := cstr(folder)
	defer free1()
	cname, free2 := cstr(src.Name())
	defer free2()
	return call(ctx, c.gp, func() C.int {
		return C.gp_camera_folder_put_file(c.cam, cfolder, cname, C.GP_FILE_TYPE_NORMAL, f, c.gp)
	})
}

func (c *camera) Capture(ctx context.Context) (provider.FilePath, error) {
	var path C.CameraFilePath
	err := call(ctx, c.gp, func() C.int { return C.gp_camera_capture(c.cam, C.GP_CAPTURE_IMAGE, &path, c.gp) })
	if err != nil {
		return provider.FilePath{}, err
	}
	return provider.FilePath{Folder: C.GoString(&path.folder[0]), Name: C.GoString(&path.name[0])}, nil
}

func (c *camera) CapturePreview(ctx context.Context) (provider.File, error) {
	var f *C.CameraFile
	if code := C.gp_file_new(&f); code < C.GP_OK {
		return nil, result(code)
	}
	defer C.gp_file_unref(f)
	if err := call(ctx, c.gp, func() C.int { return C.gp_camera_capture_preview(c.cam, f, c.gp) }); err != nil {
		return nil, err
	}
	data, err := fileBytes(f)
	if err != nil {
		return nil, err
	}
	return provider.NewMemFile("preview.jpg", data), nil
}

func (c *camera) StorageInfo(ctx context.Context) ([]provider.StorageInfo, error) {
	var sinfo *C.CameraStorageInformation
	var n C.int
	err := call(ctx, c.gp, func() C.int { return C.gp_camera_get_storageinfo(c.cam, &sinfo, &n, c.gp) })
	if err != nil {
		return nil, err
	}
	defer C.free(unsafe.Pointer(sinfo))

	out := make([]provider.StorageInfo, 0, int(n))
	for _, s := range unsafe.Slice(sinfo, int(n)) {
		out = append(out, provider.StorageInfo{
			Fields:      provider.StorageField(s.fields),
			BaseDir:     C.GoString(&s.basedir[0]),
			Label:       C.GoString(&s.label[0]),
			Description: C.GoString(&s.description[0]),
			Access:      provider.AccessType(s.access),
			Kind:        provider.StorageKind(s._type),
			FSType:      provider.FilesystemType(s.fstype),
			CapacityKB:  uint64(s.capacitykbytes),
			FreeKB:      uint64(s.freekbytes),
		})
	}
	return out, nil
}

func (c *camera) text(ctx context.Context, get func(*C.CameraText) C.int) (string, error) {
	var txt C.CameraText
	if err := call(ctx, c.gp, func() C.int { return get(&txt) }); err != nil {
		return "", err
	}
	return C.GoString(&txt.text[0]), nil
}

func (c *camera) Summary(ctx context.Context) (string, error) {
	return c.text(ctx, func(t *C.CameraText) C.int { return C.gp_camera_get_summary(c.cam, t, c.gp) })
}

func (c *camera) Manual(ctx context.Context) (string, error) {
	return c.text(ctx, func(t *C.CameraText) C.int { return C.gp_camera_get_manual(c.cam, t, c.gp) })
}

func (c *camera) About(ctx context.Context) (string, error) {
	return c.text(ctx, func(t *C.CameraText) C.int { return C.gp_camera_get_about(c.cam, t, c.gp) })
}
