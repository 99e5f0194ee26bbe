//go:build !windows

package process

import (
	"errors"
	"syscall"
)

// terminateTree sends SIGTERM to the child's process group.
func terminateTree(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// killTree SIGKILLs the process group and then any descendant that moved
// itself out of the group.
func killTree(pid int) error {
	stray := descendants(pid)
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		err = nil
	}
	for _, c := range stray {
		_ = syscall.Kill(int(c), syscall.SIGKILL)
	}
	return err
}
