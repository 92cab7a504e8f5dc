package delta

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState() State {
	return State{
		"Winget": {
			{ID: "Git.Git", Name: "Git", Version: "2.43.0"},
		},
	}
}

func TestSaveAndLoadBaseline(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir, zerolog.Nop())

	path, err := e.SaveBaseline(testState(), "1.7.0", 5)
	require.NoError(t, err)
	assert.FileExists(t, path)

	snapshot, err := e.LoadLatestBaseline(24 * time.Hour)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "1.7.0", snapshot.ToolVersion)
	assert.Equal(t, "2.43.0", snapshot.State["Winget"][0].Version)
}

func TestLoadLatestBaselineEmptyDir(t *testing.T) {
	e := NewEngine(t.TempDir(), zerolog.Nop())

	snapshot, err := e.LoadLatestBaseline(24 * time.Hour)
	require.NoError(t, err)
	assert.Nil(t, snapshot, "no snapshot files means no baseline, not an error")
}

func TestLoadLatestBaselineAgedOut(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir, zerolog.Nop())

	// Save with a clock 10 days in the past.
	e.clock = func() time.Time { return time.Now().AddDate(0, 0, -10) }
	_, err := e.SaveBaseline(testState(), "1.7.0", 5)
	require.NoError(t, err)

	e.clock = time.Now
	snapshot, err := e.LoadLatestBaseline(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Nil(t, snapshot, "aged-out baseline must be treated as absent")

	// A generous threshold still returns it.
	snapshot, err = e.LoadLatestBaseline(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, snapshot)
}

func TestSaveBaselineRetention(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir, zerolog.Nop())

	// Distinct timestamps so filenames do not collide; mtimes spaced so
	// retention ordering is unambiguous.
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		stamp := base.Add(time.Duration(i) * time.Minute)
		e.clock = func() time.Time { return stamp }
		path, err := e.SaveBaseline(testState(), "1.7.0", 3)
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(path, stamp, stamp))
	}

	files, err := filepath.Glob(filepath.Join(dir, "baseline-*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 3, "retention must keep only the newest 3 snapshots")

	// The survivors are the three most recent ones.
	for i := 2; i < 5; i++ {
		stamp := base.Add(time.Duration(i) * time.Minute)
		expected := filepath.Join(dir, "baseline-"+stamp.Format(baselineTimeLayout)+".json")
		assert.FileExists(t, expected)
	}
}

func TestCollectCurrentStateToleratesFailure(t *testing.T) {
	e := NewEngine(t.TempDir(), zerolog.Nop())

	collectors := map[string]Collector{
		"Winget": func(ctx context.Context) ([]PackageState, error) {
			return []PackageState{{ID: "Git.Git", Version: "2.43.0"}}, nil
		},
		"npm": func(ctx context.Context) ([]PackageState, error) {
			return nil, errors.New("npm ls exploded")
		},
	}

	state := e.CollectCurrentState(context.Background(), collectors)

	assert.Len(t, state["Winget"], 1)
	require.NotNil(t, state["npm"], "failed source must be present as an empty list")
	assert.Empty(t, state["npm"])
}
