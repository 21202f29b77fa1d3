//go:build !gphoto2 || !cgo

package gphoto2

import "gpcam/internal/provider"

// New reports ErrUnavailable: this build has no libgphoto2.
func New() (provider.Provider, func(), error) {
	return nil, func() {}, ErrUnavailable
}
