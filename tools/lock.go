package tools

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// isProcessRunning is implemented per platform in docsearch_unix.go and
// docsearch_windows.go

// readLockPID returns the PID stored in the lock file
func readLockPID(lockPath string) (int, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// cleanStaleLock removes the lock file if the owning process is dead
func cleanStaleLock() error {
	lockPath := filepath.Join(dataDir, lockFile)

	pid, err := readLockPID(lockPath)
	var numErr *strconv.NumError
	switch {
	case os.IsNotExist(err):
		return nil
	case errors.As(err, &numErr):
		log.Printf("Warning: Corrupted lock file (invalid PID), removing...")
		return os.Remove(lockPath)
	case err != nil:
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	if isProcessRunning(pid) {
		return fmt.Errorf("lock held by running process %d", pid)
	}

	log.Printf("Stale lock detected (PID %d not running), cleaning...", pid)
	return os.Remove(lockPath)
}

// acquireLock takes the inter-process index lock, waiting up to lockTimeout
func acquireLock() error {
	lockPath := filepath.Join(dataDir, lockFile)
	ourPID := os.Getpid()

	if pid, err := readLockPID(lockPath); err == nil && pid == ourPID {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	startTime := time.Now()
	for {
		if err := cleanStaleLock(); err != nil {
			elapsed := time.Since(startTime)
			if elapsed >= lockTimeout {
				return fmt.Errorf("timeout waiting for index lock after %v: %w", elapsed, err)
			}

			log.Printf("Index locked by another process, waiting... (%v elapsed)", elapsed.Round(100*time.Millisecond))
			time.Sleep(lockRetryWait)
			continue
		}

		if err := os.WriteFile(lockPath, []byte(strconv.Itoa(ourPID)), 0644); err != nil {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		log.Printf("✓ Index lock acquired (PID %d)", ourPID)
		return nil
	}
}

// releaseLock removes the lock file if this process owns it
func releaseLock() error {
	lockPath := filepath.Join(dataDir, lockFile)

	pid, err := readLockPID(lockPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		log.Printf("Warning: Lock file contains different PID (%d vs %d), not removing", pid, os.Getpid())
		return nil
	}

	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	log.Printf("✓ Index lock released")
	return nil
}
