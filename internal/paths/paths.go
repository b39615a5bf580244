// Package paths resolves queuectl's on-disk layout: a data directory
// holding the database file and the cooperative stop flag.
package paths

import (
	"os"
	"path/filepath"
)

const (
	dirEnvVar  = "QUEUECTL_HOME"
	dirName    = ".queuectl"
	dbFileName = "queue.db"
	stopFlag   = "stop.flag"
)

// Dir returns the data directory: $QUEUECTL_HOME if set, else
// ~/.queuectl.
func Dir() (string, error) {
	if v := os.Getenv(dirEnvVar); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

// EnsureDir creates the data directory if it doesn't already exist.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// DBPath returns the SQLite database file path under the data directory.
func DBPath() (string, error) {
	dir, err := EnsureDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFileName), nil
}

// StopFlagPath returns the cooperative shutdown flag's path.
func StopFlagPath() (string, error) {
	dir, err := EnsureDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stopFlag), nil
}

// StopRequested reports whether the stop flag file currently exists.
func StopRequested() (bool, error) {
	path, err := StopFlagPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RequestStop writes the stop flag; its content is never read, only
// its presence.
func RequestStop() error {
	path, err := StopFlagPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte("stop"), 0o644)
}

// ClearStop removes the stop flag, ignoring a not-exist error.
func ClearStop() error {
	path, err := StopFlagPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
