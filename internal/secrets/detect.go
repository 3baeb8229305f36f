package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// warnings is where fallback warnings are printed.
var warnings io.Writer = os.Stderr

func warningMarkerPath(dataDir string) string {
	return filepath.Join(dataDir, ".file-store-warning-shown")
}

// quietMode returns true if the user has suppressed warnings via KSTORE_QUIET.
func quietMode() bool {
	return os.Getenv("KSTORE_QUIET") == "1" || os.Getenv("KSTORE_QUIET") == "true"
}

// warnOnce prints a message to stderr, but only the first time.
// Subsequent invocations are suppressed via a marker file in dataDir.
// Set KSTORE_QUIET=1 to suppress entirely.
func warnOnce(dataDir, msg string) {
	if quietMode() {
		return
	}
	marker := warningMarkerPath(dataDir)
	if _, err := os.Stat(marker); err == nil {
		return
	}
	fmt.Fprintln(warnings, msg)
}

// markWarningsDone persists the marker so future commands stay quiet.
func markWarningsDone(dataDir string) {
	_ = os.WriteFile(warningMarkerPath(dataDir), []byte("1"), 0600)
}

// NewStore creates a Store instance using the platform-appropriate backend.
// Tries the OS keyring first, falls back to the encrypted password file
// under dataDir. WSL and headless environments go straight to the file.
func NewStore(dataDir string) (Store, error) {
	if IsWSL() || IsHeadless() {
		warnOnce(dataDir, "Detected WSL/headless environment, using encrypted file storage")
		return newFallback(dataDir)
	}

	store, err := NewKeyringStore(dataDir)
	if err != nil {
		warnOnce(dataDir, fmt.Sprintf("Keyring unavailable (%v), falling back to encrypted file", err))
		return newFallback(dataDir)
	}

	return store, nil
}

func newFallback(dataDir string) (Store, error) {
	store, err := NewFileStore(dataDir, os.Getenv("KSTORE_STORE_PASSWORD"))
	if err != nil {
		return nil, err
	}
	markWarningsDone(dataDir)
	return store, nil
}

// IsWSL returns true if running under Windows Subsystem for Linux.
func IsWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}

	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// IsHeadless returns true if running in a headless environment (no display server).
// Only applicable on Linux; macOS and Windows are assumed to have GUI.
func IsHeadless() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}
