package streamer

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// killUntrackedByImage scans /proc for processes whose executable image
// matches binaryPath's base name, skipping any PID present in tracked, and
// sends SIGKILL to the rest. Returns the number signaled.
//
// No process-table enumeration library appears anywhere in the example
// corpus; this reads /proc directly (Linux-only, matching the deployment
// target implied by the rest of the stack) rather than reach for an
// ungrounded third-party dependency.
func killUntrackedByImage(binaryPath string, tracked map[int]struct{}) (killed int, err error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}
	want := binaryBaseName(binaryPath)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, convErr := strconv.Atoi(entry.Name())
		if convErr != nil {
			continue
		}
		if _, ok := tracked[pid]; ok {
			continue
		}

		exe, readErr := os.Readlink(filepath.Join("/proc", entry.Name(), "exe"))
		if readErr != nil {
			continue // process exited mid-scan, or unreadable (permissions); skip it
		}
		if filepath.Base(exe) != want {
			continue
		}

		if sigErr := syscall.Kill(pid, syscall.SIGKILL); sigErr == nil {
			killed++
		}
	}
	return killed, nil
}
