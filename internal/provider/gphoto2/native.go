//go:build gphoto2 && cgo

package gphoto2

/*
#cgo pkg-config: libgphoto2
#include <stdint.h>
#include <stdlib.h>
#include <gphoto2.h>

extern void gpcam_set_cancel(GPContext *context, uintptr_t handle);
*/
import "C"

import (
	"context"
	"runtime/cgo"
	"sync"
	"unsafe"

	"gpcam/internal/provider"
)

//export gpcamCancelled
func gpcamCancelled(h C.uintptr_t) C.int {
	if h == 0 {
		return 0
	}
	ctx, ok := cgo.Handle(h).Value().(context.Context)
	if ok && ctx.Err() != nil {
		return 1
	}
	return 0
}

// call runs fn with ctx installed as the cancel source of gp. libgphoto2
// polls the callback between protocol packets.
func call(ctx context.Context, gp *C.GPContext, fn func() C.int) error {
	if ctx.Err() != nil {
		return &provider.Error{Code: provider.CodeCancel}
	}
	h := cgo.NewHandle(ctx)
	C.gpcam_set_cancel(gp, C.uintptr_t(h))
	code := fn()
	C.gpcam_set_cancel(gp, 0)
	h.Delete()
	return result(code)
}

func result(code C.int) error {
	return provider.Result(int(code))
}

func cstr(s string) (*C.char, func()) {
	p := C.CString(s)
	return p, func() { C.free(unsafe.Pointer(p)) }
}

type Provider struct {
	mu  sync.Mutex
	gp  *C.GPContext
	al  *C.CameraAbilitiesList
	pil *C.GPPortInfoList
}

// New returns a provider over the installed libgphoto2 and a function that
// releases its lists.
func New() (provider.Provider, func(), error) {
	p := &Provider{gp: C.gp_context_new()}
	if code := C.gp_abilities_list_new(&p.al); code < C.GP_OK {
		C.gp_context_unref(p.gp)
		return nil, func() {}, result(code)
	}
	return p, p.free, nil
}

func (p *Provider) free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.al != nil {
		C.gp_abilities_list_free(p.al)
		p.al = nil
	}
	if p.pil != nil {
		C.gp_port_info_list_free(p.pil)
		p.pil = nil
	}
	if p.gp != nil {
		C.gp_context_unref(p.gp)
		p.gp = nil
	}
}

func (p *Provider) loadAbilities(ctx context.Context) error {
	if C.gp_abilities_list_count(p.al) > 0 {
		return nil
	}
	return call(ctx, p.gp, func() C.int { return C.gp_abilities_list_load(p.al, p.gp) })
}

// loadPorts replaces pil with a fresh listing of the host's ports, so
// devices plugged in since the last call get their own usb:BBB,DDD entry.
// Cameras copy the port info they are given, so freeing the old list is
// safe once p.mu is held.
func (p *Provider) loadPorts() error {
	var pil *C.GPPortInfoList
	if code := C.gp_port_info_list_new(&pil); code < C.GP_OK {
		return result(code)
	}
	if code := C.gp_port_info_list_load(pil); code < C.GP_OK {
		C.gp_port_info_list_free(pil)
		return result(code)
	}
	if p.pil != nil {
		C.gp_port_info_list_free(p.pil)
	}
	p.pil = pil
	return nil
}

func (p *Provider) Abilities(ctx context.Context) ([]provider.ModelAbilities, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadAbilities(ctx); err != nil {
		return nil, err
	}
	n := int(C.gp_abilities_list_count(p.al))
	out := make([]provider.ModelAbilities, 0, n)
	for i := 0; i < n; i++ {
		var a C.CameraAbilities
		if C.gp_abilities_list_get_abilities(p.al, C.int(i), &a) < C.GP_OK {
			continue
		}
		out = append(out, convertAbilities(&a))
	}
	return out, nil
}

func convertAbilities(a *C.CameraAbilities) provider.ModelAbilities {
	return provider.ModelAbilities{
		Model:            C.GoString(&a.model[0]),
		Port:             provider.PortType(a.port),
		Operations:       provider.Operation(a.operations),
		FileOperations:   provider.FileOperation(a.file_operations),
		FolderOperations: provider.FolderOperation(a.folder_operations),
		USBVendor:        int(a.usb_vendor),
		USBProduct:       int(a.usb_product),
	}
}

func (p *Provider) Ports(ctx context.Context) ([]provider.PortInfo, error) {
	if ctx.Err() != nil {
		return nil, &provider.Error{Code: provider.CodeCancel}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadPorts(); err != nil {
		return nil, err
	}
	n := int(C.gp_port_info_list_count(p.pil))
	out := make([]provider.PortInfo, 0, n)
	for i := 0; i < n; i++ {
		var info C.GPPortInfo
		if C.gp_port_info_list_get_info(p.pil, C.int(i), &info) < C.GP_OK {
			continue
		}
		out = append(out, convertPort(info))
	}
	return out, nil
}

func convertPort(info C.GPPortInfo) provider.PortInfo {
	var name, path *C.char
	var typ C.GPPortType
	C.gp_port_info_get_name(info, &name)
	C.gp_port_info_get_path(info, &path)
	C.gp_port_info_get_type(info, &typ)
	return provider.PortInfo{Type: provider.PortType(typ), Name: C.GoString(name), Path: C.GoString(path)}
}

// Detect checks every port currently visible to the host against the
// abilities list and keeps the pairs whose model and port appear in the
// given lists.
func (p *Provider) Detect(ctx context.Context, abilities []provider.ModelAbilities, ports []provider.PortInfo) ([]provider.Detection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadAbilities(ctx); err != nil {
		return nil, err
	}
	if err := p.loadPorts(); err != nil {
		return nil, err
	}

	var list *C.CameraList
	if code := C.gp_list_new(&list); code < C.GP_OK {
		return nil, result(code)
	}
	defer C.gp_list_unref(list)

	if err := call(ctx, p.gp, func() C.int { return C.gp_abilities_list_detect(p.al, p.pil, list, p.gp) }); err != nil {
		return nil, err
	}
	var found []provider.Detection
	for i := 0; i < int(C.gp_list_count(list)); i++ {
		var name, value *C.char
		if C.gp_list_get_name(list, C.int(i), &name) < C.GP_OK || C.gp_list_get_value(list, C.int(i), &value) < C.GP_OK {
			continue
		}
		found = append(found, provider.Detection{Model: C.GoString(name), Port: C.GoString(value)})
	}
	return keepDetected(found, abilities, ports), nil
}

func (p *Provider) portInfo(path string) (C.GPPortInfo, error) {
	var info C.GPPortInfo
	if err := p.loadPorts(); err != nil {
		return info, err
	}
	cpath, free := cstr(path)
	defer free()
	idx := C.gp_port_info_list_lookup_path(p.pil, cpath)
	if idx < C.GP_OK {
		return info, result(idx)
	}
	return info, result(C.gp_port_info_list_get_info(p.pil, idx, &info))
}

func (p *Provider) FindUSBDevice(ctx context.Context, port provider.PortInfo, vendorID, productID int) error {
	if port.Type&provider.PortUSB == 0 {
		return &provider.Error{Code: provider.CodeIOSupportedUSB}
	}
	if ctx.Err() != nil {
		return &provider.Error{Code: provider.CodeCancel}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	info, err := p.portInfo(port.Path)
	if err != nil {
		return err
	}
	var gport *C.GPPort
	if code := C.gp_port_new(&gport); code < C.GP_OK {
		return result(code)
	}
	defer C.gp_port_free(gport)
	if code := C.gp_port_set_info(gport, info); code < C.GP_OK {
		return result(code)
	}
	return result(C.gp_port_usb_find_device(gport, C.int(vendorID), C.int(productID)))
}

func (p *Provider) NewCamera() (provider.Camera, error) {
	c := &camera{p: p}
	if code := C.gp_camera_new(&c.cam); code < C.GP_OK {
		return nil, result(code)
	}
	c.gp = C.gp_context_new()
	return c, nil
}

func (p *Provider) OpenFile(path string) (provider.File, error) {
	f, err := provider.LoadMemFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
