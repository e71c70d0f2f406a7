package preflight

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsCheck_TrueForFreshDirectory(t *testing.T) {
	// Given: a sessions directory with no marker
	dir := t.TempDir()

	// Then: a check is needed
	assert.True(t, NeedsCheck(dir))
}

func TestMarkPassed_CreatesMarkerAndSatisfiesNeedsCheck(t *testing.T) {
	// Given: a sessions path that does not exist yet
	dir := filepath.Join(t.TempDir(), "sessions")

	// When: marking passed
	require.NoError(t, MarkPassed(dir))

	// Then: the marker exists and a re-check is no longer needed
	assert.False(t, NeedsCheck(dir))
	assert.FileExists(t, filepath.Join(dir, MarkerFile))
}

func TestMarkerAge_ReflectsMarkerTimestamp(t *testing.T) {
	// Given: a marker written two hours ago
	dir := t.TempDir()
	stamp := time.Now().Add(-2 * time.Hour).Format(time.RFC3339)
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFile), []byte(stamp), 0o644))

	// When: reading the age
	age := MarkerAge(dir)

	// Then: roughly two hours
	assert.InDelta(t, (2 * time.Hour).Seconds(), age.Seconds(), 60)
}

func TestMarkerAge_ZeroWithoutMarker(t *testing.T) {
	assert.Equal(t, time.Duration(0), MarkerAge(t.TempDir()))
}

func TestClearMarker_ForcesRecheck(t *testing.T) {
	// Given: a passed marker
	dir := t.TempDir()
	require.NoError(t, MarkPassed(dir))
	require.False(t, NeedsCheck(dir))

	// When: clearing
	require.NoError(t, ClearMarker(dir))

	// Then: a check is needed again, and clearing twice is harmless
	assert.True(t, NeedsCheck(dir))
	assert.NoError(t, ClearMarker(dir))
}
