package cleaner

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanplayground/jobrunner/cleaner/dirconfig"
	"github.com/stanplayground/jobrunner/common/stats"
)

func TestCleanupFakeDir(t *testing.T) {
	// expected to work without errors although Dir doesn't exist
	dc, err := NewDiskCleaner([]dirconfig.DirConfig{
		dirconfig.RetentionDirConfig{Dir: "/this/dir/does/not/exist", Retention: time.Hour},
	}, nil)
	require.NoError(t, err)
	assert.NoError(t, dc.Cleanup())
}

func TestCleanupCountsRemovedDirs(t *testing.T) {
	tmp := t.TempDir()
	for i, age := range []time.Duration{49 * time.Hour, 25 * time.Hour, time.Hour} {
		p := filepath.Join(tmp, string(rune('a'+i)))
		require.NoError(t, os.Mkdir(p, 0777))
		mtime := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}

	stat := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry)
	dc, err := NewDiskCleaner([]dirconfig.DirConfig{
		dirconfig.RetentionDirConfig{Dir: tmp, Retention: 24 * time.Hour},
	}, stat)
	require.NoError(t, err)
	require.NoError(t, dc.Cleanup())

	assert.Equal(t, int64(2), stat.Counter(stats.ManagerCleanedDirsCounter).Count())
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].Name())
}

func TestSchedule(t *testing.T) {
	var runs int32
	c, err := Schedule("@every 1s", CleanerFunc(func() error {
		atomic.AddInt32(&runs, 1)
		return errors.New("logged, not fatal")
	}))
	require.NoError(t, err)
	defer c.Stop()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 5*time.Second, 50*time.Millisecond)

	_, err = Schedule("every tuesday", CleanerFunc(func() error { return nil }))
	assert.Error(t, err)
}

type partialDirConfig struct{ dir string }

func (p partialDirConfig) GetDir() string { return p.dir }
func (p partialDirConfig) CleanDir() ([]string, error) {
	return []string{filepath.Join(p.dir, "old")}, errors.New("permission denied")
}

func TestCleanupFailureIsLoggedNotReturned(t *testing.T) {
	stat := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry)
	dc, err := NewDiskCleaner([]dirconfig.DirConfig{partialDirConfig{"/jobs"}}, stat)
	require.NoError(t, err)
	assert.NoError(t, dc.Cleanup())
	assert.Equal(t, int64(1), stat.Counter(stats.ManagerCleanedDirsCounter).Count())
}
