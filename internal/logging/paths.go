package logging

import (
	"os"
	"path/filepath"
)

// LogPath returns the log file path for a named service ("index" or
// "webhook") rooted under the service's data directory.
func LogPath(dataDir, service string) string {
	return filepath.Join(dataDir, "logs", service+".log")
}

// EnsureLogDir creates the log directory under dataDir if it doesn't exist.
func EnsureLogDir(dataDir string) error {
	return os.MkdirAll(filepath.Join(dataDir, "logs"), 0o755)
}
