package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanplayground/jobrunner/config"
	"github.com/stanplayground/jobrunner/history"
)

func execute(t *testing.T, args ...string) (string, error) {
	c := NewCLI()
	var out bytes.Buffer
	c.rootCmd.SetOut(&out)
	c.rootCmd.SetErr(&out)
	c.rootCmd.SetArgs(args)
	err := c.Exec()
	return out.String(), err
}

func TestInitSlotsHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFileName)

	out, err := execute(t, "init", "--config", path, "--url", "http://localhost:3000", "--compute_resource_id", "cr-1", "--node_name", "bench")
	require.NoError(t, err)
	assert.Contains(t, out, "public key: ")

	_, err = execute(t, "init", "--config", path, "--url", "http://localhost:3000", "--compute_resource_id", "cr-1")
	assert.Error(t, err, "refuses to overwrite")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bench", cfg.ComputeResource.NodeName)
	assert.Len(t, cfg.ComputeResource.NodeID, 36)

	out, err = execute(t, "slots", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "0: 1x[cpus=1 ram=2GB timeout=3600s]\n", out)

	store, err := history.Open(cfg.HistoryDBPath())
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), history.JobRecord{
		JobID: "job-1", ProjectID: "p", ScriptFileName: "fit.stanie", State: "failed", Error: "Timeout",
		Finished: time.Now(), ElapsedSec: 10,
	}))
	require.NoError(t, store.Close())

	out, err = execute(t, "history", "--config", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "job-1")
	assert.Contains(t, lines[1], "Timeout")
}

func TestCleanupCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFileName)
	_, err := execute(t, "init", "--config", path, "--url", "http://x", "--compute_resource_id", "cr")
	require.NoError(t, err)

	root := filepath.Join(dir, config.DefaultJobsRoot)
	old := filepath.Join(root, "old-job")
	require.NoError(t, os.MkdirAll(old, 0777))
	mtime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, mtime, mtime))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "new-job"), 0777))

	_, err = execute(t, "cleanup", "--config", path, "--retention", "1h")
	require.NoError(t, err)
	assert.NoDirExists(t, old)
	assert.DirExists(t, filepath.Join(root, "new-job"))
}

func TestBadFlags(t *testing.T) {
	_, err := execute(t, "slots", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = execute(t, "slots", "--log_level", "loud")
	assert.Error(t, err)
	_, err = execute(t, "init", "--config", filepath.Join(t.TempDir(), "x.yaml"))
	assert.Error(t, err, "url and compute resource id are required")
}
