package transport

import (
	"os"
	"path/filepath"
	"strings"
)

// Remove stale ipc files to avoid EADDRINUSE on restart.
func cleanupIPC(endpoint string) {
	path, ok := strings.CutPrefix(endpoint, "ipc://")
	if !ok || path == "" {
		return
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
}
