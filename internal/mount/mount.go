package mount

import (
	"fmt"
	"os"
	"os/exec"
)

// run is swapped in tests.
var run = func(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// MountRO mounts a card's block device read-only, so a Directory Browse
// session can read it without touching the filesystem.
func MountRO(devNode, mountPoint string) error {
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return err
	}
	return run("mount", "-o", "ro", devNode, mountPoint)
}

func Unmount(mountPoint string) error {
	return run("umount", mountPoint)
}

func RemountRW(mountPoint string) error {
	return run("mount", "-o", "remount,rw", mountPoint)
}

func RemountRO(mountPoint string) error {
	return run("mount", "-o", "remount,ro", mountPoint)
}

// Writable remounts mountPoint read-write, runs fn, syncs and goes back to
// read-only. An empty mountPoint just runs fn.
func Writable(mountPoint string, fn func() error) error {
	if mountPoint == "" {
		return fn()
	}
	if err := RemountRW(mountPoint); err != nil {
		return fmt.Errorf("remount rw: %w", err)
	}
	defer func() { _ = RemountRO(mountPoint) }()

	if err := fn(); err != nil {
		return err
	}
	// Best-effort sync
	_ = run("sync")
	return nil
}
