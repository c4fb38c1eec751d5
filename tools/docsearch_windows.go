//go:build windows

package tools

import "syscall"

// isProcessRunning reports whether pid exists by opening a handle to it
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	const access = syscall.STANDARD_RIGHTS_READ | syscall.PROCESS_QUERY_INFORMATION | syscall.SYNCHRONIZE

	h, err := syscall.OpenProcess(access, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(h)

	// a process that exited but still has open handles reports an exit code
	var code uint32
	if err := syscall.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	const stillActive = 259
	return code == stillActive
}
