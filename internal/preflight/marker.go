package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile is the name of the file that records a passed doctor run.
const MarkerFile = ".doctor-passed"

// NeedsCheck returns true if the environment has never passed a doctor
// run, judged by the absence of the marker file in the sessions directory.
func NeedsCheck(sessionsDir string) bool {
	markerPath := filepath.Join(sessionsDir, MarkerFile)
	_, err := os.Stat(markerPath)
	return os.IsNotExist(err)
}

// MarkPassed records a passed doctor run.
func MarkPassed(sessionsDir string) error {
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	markerPath := filepath.Join(sessionsDir, MarkerFile)
	content := []byte(time.Now().Format(time.RFC3339))
	return os.WriteFile(markerPath, content, 0o644)
}

// ClearMarker removes the marker file, forcing a re-check hint on the
// next run.
func ClearMarker(sessionsDir string) error {
	markerPath := filepath.Join(sessionsDir, MarkerFile)
	err := os.Remove(markerPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago the doctor run passed.
// Returns zero if the marker doesn't exist.
func MarkerAge(sessionsDir string) time.Duration {
	markerPath := filepath.Join(sessionsDir, MarkerFile)
	content, err := os.ReadFile(markerPath)
	if err != nil {
		return 0
	}

	t, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0
	}

	return time.Since(t)
}
