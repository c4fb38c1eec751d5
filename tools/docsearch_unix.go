//go:build unix

package tools

import "syscall"

// isProcessRunning reports whether pid exists, using signal 0
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := syscall.Kill(pid, syscall.Signal(0))
	switch err {
	case nil:
		return true
	case syscall.EPERM:
		// exists but belongs to another user
		return true
	default:
		// ESRCH: no such process
		return false
	}
}
