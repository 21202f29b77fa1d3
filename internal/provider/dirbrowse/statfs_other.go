//go:build !linux

package dirbrowse

import "gpcam/internal/provider"

func statStorage(dir string) (provider.StorageInfo, error) {
	return provider.StorageInfo{}, provider.Errorf(provider.CodeNotSupported, "storage info for %s", dir)
}
