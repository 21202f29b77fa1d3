// Package dirbrowse is a provider over a local directory: the "Directory
// Browse" pseudo-camera. It serves memory cards mounted on the host, or any
// folder of pictures, through the same interface as a tethered camera.
package dirbrowse

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"gpcam/internal/provider"
)

// Model is the single model this provider knows.
const Model = "Directory Browse"

const defaultThumbSize = 160

type Options struct {
	// MountPoint, when set, is remounted read-write around every change and
	// read-only again afterwards.
	MountPoint string

	// ThumbSize bounds generated thumbnails, in pixels. Default 160.
	ThumbSize int
}

type Provider struct {
	base string
	opts Options
}

func New(base string, opts Options) *Provider {
	if opts.ThumbSize <= 0 {
		opts.ThumbSize = defaultThumbSize
	}
	return &Provider{base: filepath.Clean(base), opts: opts}
}

// Base is the host directory shown as the camera root.
func (p *Provider) Base() string { return p.base }

func (p *Provider) Abilities(ctx context.Context) ([]provider.ModelAbilities, error) {
	if ctx.Err() != nil {
		return nil, &provider.Error{Code: provider.CodeCancel}
	}
	return []provider.ModelAbilities{{
		Model:            Model,
		Port:             provider.PortDisk,
		FileOperations:   provider.FileOperationDelete | provider.FileOperationPreview | provider.FileOperationExif,
		FolderOperations: provider.FolderOperationDeleteAll | provider.FolderOperationPutFile | provider.FolderOperationMakeDir | provider.FolderOperationRemoveDir,
	}}, nil
}

func (p *Provider) Ports(ctx context.Context) ([]provider.PortInfo, error) {
	if ctx.Err() != nil {
		return nil, &provider.Error{Code: provider.CodeCancel}
	}
	return []provider.PortInfo{{Type: provider.PortDisk, Name: "Directory", Path: "disk:" + p.base}}, nil
}

// Detect never reports anything: a directory is chosen, not detected.
func (p *Provider) Detect(ctx context.Context, _ []provider.ModelAbilities, _ []provider.PortInfo) ([]provider.Detection, error) {
	if ctx.Err() != nil {
		return nil, &provider.Error{Code: provider.CodeCancel}
	}
	return nil, nil
}

func (p *Provider) FindUSBDevice(context.Context, provider.PortInfo, int, int) error {
	return provider.Errorf(provider.CodeIOSupportedUSB, "directory provider has no usb ports")
}

func (p *Provider) NewCamera() (provider.Camera, error) {
	return &camera{p: p}, nil
}

func (p *Provider) OpenFile(path string) (provider.File, error) {
	f, err := provider.LoadMemFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// resolve maps a camera path onto the host, refusing anything that would
// leave the base directory.
func (p *Provider) resolve(parts ...string) (string, error) {
	rel := filepath.Clean("/" + filepath.FromSlash(strings.Join(parts, "/")))
	full := filepath.Join(p.base, rel)
	if full != p.base && !strings.HasPrefix(full, p.base+string(filepath.Separator)) {
		return "", provider.Errorf(provider.CodePathNotAbsolute, "%s escapes %s", rel, p.base)
	}
	return full, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func osError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return provider.Errorf(provider.CodeFileNotFound, "%s", what)
	case os.IsExist(err):
		return provider.Errorf(provider.CodeFileExists, "%s", what)
	case os.IsPermission(err):
		return provider.Errorf(provider.CodeIOLock, "%s: %v", what, err)
	default:
		return provider.Errorf(provider.CodeOSFailure, "%s: %v", what, err)
	}
}
