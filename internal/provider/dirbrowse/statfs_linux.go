//go:build linux

package dirbrowse

import (
	"golang.org/x/sys/unix"

	"gpcam/internal/provider"
)

func statStorage(dir string) (provider.StorageInfo, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return provider.StorageInfo{}, provider.Errorf(provider.CodeOSFailure, "statfs %s: %v", dir, err)
	}
	bsize := uint64(st.Bsize)
	si := provider.StorageInfo{
		Fields:     provider.StorageMaxCapacity | provider.StorageFreeSpaceKBytes | provider.StorageAccess | provider.StorageType,
		CapacityKB: st.Blocks * bsize / 1024,
		FreeKB:     st.Bavail * bsize / 1024,
		Access:     provider.AccessReadWrite,
		Kind:       provider.StorageFixedRAM,
	}
	if st.Flags&unix.ST_RDONLY != 0 {
		si.Access = provider.AccessReadOnly
	}
	return si, nil
}
