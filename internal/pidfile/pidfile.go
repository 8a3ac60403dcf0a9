// Package pidfile writes and removes the daemon's pidfile, and
// resolves it into a signal sent to the already-running process for
// the -s/-k/-r CLI one-shots (§4.7, §6).
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Write records the current process's PID at path, failing if the
// file cannot be created.
func Write(path string) error {
	if path == "" {
		return nil
	}
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("pidfile: writing %s: %w", path, err)
	}
	return nil
}

// Remove deletes path, ignoring a missing file.
func Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		_ = err
	}
}

// Read parses the PID stored at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("pidfile: reading %s: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pidfile: %s does not contain a pid: %w", path, err)
	}
	return pid, nil
}

// Signal reads the pid at path and sends sig to it — the shared
// implementation of the -s/-k/-r one-shots.
func Signal(path string, sig syscall.Signal) error {
	pid, err := Read(path)
	if err != nil {
		return err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("pidfile: signaling pid %d: %w", pid, err)
	}
	return nil
}
