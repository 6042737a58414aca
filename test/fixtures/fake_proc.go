// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FakeProcTree builds a directory structure mimicking /proc, good
// enough for per-process file descriptor enumeration. Point gopsutil at
// it via the HOST_PROC environment variable.
type FakeProcTree struct {
	Root string
}

// NewFakeProcTree creates a fake proc tree generator rooted at root.
func NewFakeProcTree(root string) *FakeProcTree {
	return &FakeProcTree{Root: root}
}

// AddProcess creates a numeric pid directory whose fd entries are
// symbolic links to the given target paths. Targets do not need to
// exist; only the link matters.
func (f *FakeProcTree) AddProcess(pid int, openPaths ...string) error {
	fdDir := filepath.Join(f.Root, strconv.Itoa(pid), "fd")
	if err := os.MkdirAll(fdDir, 0o755); err != nil {
		return err
	}
	for i, target := range openPaths {
		link := filepath.Join(fdDir, strconv.Itoa(3+i))
		if err := os.Symlink(target, link); err != nil {
			return fmt.Errorf("failed to link fd %d of pid %d: %w", 3+i, pid, err)
		}
	}
	return nil
}

// RemoveProcess deletes a pid directory, simulating process exit.
func (f *FakeProcTree) RemoveProcess(pid int) error {
	return os.RemoveAll(filepath.Join(f.Root, strconv.Itoa(pid)))
}

// AddNoise creates non-numeric entries that a correct scanner must skip.
func (f *FakeProcTree) AddNoise() error {
	for _, name := range []string{"self", "sys", "uptime"} {
		if err := os.MkdirAll(filepath.Join(f.Root, name), 0o755); err != nil {
			return err
		}
	}
	return nil
}
