// Package gphoto2 binds the provider interfaces to libgphoto2 through cgo.
//
// The binding is only compiled with the gphoto2 build tag and cgo enabled;
// other builds get a stub whose New reports ErrUnavailable.
package gphoto2

import (
	"errors"
	"strings"

	"gpcam/internal/provider"
)

// ErrUnavailable is returned by New in builds without libgphoto2.
var ErrUnavailable = errors.New("gphoto2: built without libgphoto2 (use -tags gphoto2)")

// nativeType maps a file variant onto libgphoto2's CameraFileType numbering,
// which puts the preview first.
func nativeType(t provider.FileType) (int, bool) {
	switch t {
	case provider.FilePreview:
		return 0, true
	case provider.FileNormal:
		return 1, true
	case provider.FileRaw:
		return 2, true
	case provider.FileAudio:
		return 3, true
	case provider.FileExif:
		return 4, true
	default:
		return 0, false
	}
}

// splitFolder splits "/a/b" into "/a" and "b".
func splitFolder(folder string) (string, string) {
	for i := len(folder) - 1; i >= 0; i-- {
		if folder[i] == '/' {
			if i == 0 {
				return "/", folder[1:]
			}
			return folder[:i], folder[i+1:]
		}
	}
	return "/", folder
}

// genericUSB is the port entry that stands for "any usb device".
const genericUSB = "usb:"

// keepDetected filters the (model, port) pairs libgphoto2 detected on the
// current port list. The generic usb entry is dropped when a device-specific
// usb port was also found. A pair is kept when its model is in abilities and
// its port is in ports; a generic usb entry in ports admits any usb port.
func keepDetected(found []provider.Detection, abilities []provider.ModelAbilities, ports []provider.PortInfo) []provider.Detection {
	models := make(map[string]bool, len(abilities))
	for _, a := range abilities {
		models[a.Model] = true
	}
	paths := make(map[string]bool, len(ports))
	for _, pi := range ports {
		paths[pi.Path] = true
	}

	specific := false
	for _, d := range found {
		if strings.HasPrefix(d.Port, genericUSB) && d.Port != genericUSB {
			specific = true
		}
	}

	var out []provider.Detection
	for _, d := range found {
		if d.Port == genericUSB && specific {
			continue
		}
		if !models[d.Model] {
			continue
		}
		if paths[d.Port] || (paths[genericUSB] && strings.HasPrefix(d.Port, genericUSB)) {
			out = append(out, d)
		}
	}
	return out
}
