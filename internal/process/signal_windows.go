//go:build windows

package process

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Windows has no SIGTERM; terminate and kill both end the tree.
func terminateTree(pid int) error { return killTree(pid) }

// killTree kills descendants first so none are re-parented and orphaned,
// then the process itself.
func killTree(pid int) error {
	for _, c := range descendants(pid) {
		if cp, err := gopsproc.NewProcess(c); err == nil {
			_ = cp.Kill()
		}
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		// already gone
		return nil
	}
	return p.Kill()
}
