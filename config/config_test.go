package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanplayground/jobrunner/runner/coordinator"
	"github.com/stanplayground/jobrunner/runner/jobs"
	"github.com/stanplayground/jobrunner/runner/slots"
)

func testKey(t *testing.T) string {
	_, priv, err := coordinator.GenerateKeyPair()
	require.NoError(t, err)
	return priv
}

func TestParseFullConfig(t *testing.T) {
	key := testKey(t)
	doc := `
coordinator:
  url: https://example.org
  tries: 3
  timeout: 30s
computeResource:
  id: cr-1
  privateKey: ` + key + `
  nodeId: n1
  nodeName: bench
containerMethod: singularity
images:
  python: docker://python:3.11
  stanie: docker://stan:latest
jobsRoot: /var/jobs
jobSlots:
  - {count: 2, numCpus: 2, ramGb: 4, timeoutSec: 600}
  - {count: 1, numCpus: 8, ramGb: 32, timeoutSec: 86400}
pollInterval: 2s
cleanupSchedule: "0 3 * * *"
adminAddr: ":9000"
historyDb: hist.db
`
	c, err := Parse([]byte(doc), "/etc/jobrunner")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, c.PollInterval)
	assert.Equal(t, "/var/jobs", c.JobsRootPath())
	assert.Equal(t, "/etc/jobrunner/hist.db", c.HistoryDBPath())
	assert.Equal(t, []slots.Slot{{Count: 2, NumCPUs: 2, RAMGB: 4, TimeoutSec: 600}, {Count: 1, NumCPUs: 8, RAMGB: 32, TimeoutSec: 86400}}, c.JobSlots)

	cc := c.CoordinatorConfig()
	assert.Equal(t, 3, cc.Tries)
	assert.Equal(t, 30*time.Second, cc.Timeout)
	assert.Equal(t, "bench", cc.NodeName)

	mc := c.ManagerConfig()
	assert.Equal(t, jobs.Singularity, mc.ContainerMethod)
	assert.Equal(t, "docker://stan:latest", mc.Images[jobs.Stanie])
}

func TestDefaults(t *testing.T) {
	c, err := Parse([]byte("coordinator: {url: http://localhost:3000}\ncomputeResource: {id: cr, privateKey: "+testKey(t)+"}\n"), "/home/u")
	require.NoError(t, err)
	assert.Equal(t, "none", c.ContainerMethod)
	assert.Equal(t, "/home/u/script_jobs", c.JobsRootPath())
	assert.Equal(t, DefaultSlots(), c.JobSlots)
	assert.Equal(t, DefaultPollInterval, c.PollInterval)
	assert.Equal(t, DefaultCleanupSchedule, c.CleanupSchedule)
	assert.Equal(t, coordinator.DefaultHttpTries, c.Coordinator.Tries)
	assert.Equal(t, coordinator.DefaultHttpTimeout, c.Coordinator.Timeout)
	assert.Equal(t, coordinator.DefaultHttpTimeout, c.CoordinatorConfig().Timeout)
}

func TestValidation(t *testing.T) {
	key := testKey(t)
	base := "coordinator: {url: http://x}\ncomputeResource: {id: cr, privateKey: " + key + "}\n"
	for name, doc := range map[string]string{
		"no url":       "computeResource: {id: cr, privateKey: " + key + "}\n",
		"no id":        "coordinator: {url: http://x}\ncomputeResource: {privateKey: " + key + "}\n",
		"bad key":      "coordinator: {url: http://x}\ncomputeResource: {id: cr, privateKey: nothex}\n",
		"bad method":   base + "containerMethod: podman\n",
		"no images":    base + "containerMethod: docker\n",
		"bad slot":     base + "jobSlots: [{count: 1, numCpus: 0, ramGb: 1, timeoutSec: 1}]\n",
		"bad schedule": base + "cleanupSchedule: sometimes\n",
		"not yaml":     "coordinator: [",
	} {
		_, err := Parse([]byte(doc), "")
		assert.Error(t, err, name)
	}
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	c, err := Parse([]byte("coordinator: {url: http://x}\ncomputeResource: {id: cr, privateKey: "+testKey(t)+"}\n"), "")
	require.NoError(t, err)
	require.NoError(t, c.Write(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c.ComputeResource, loaded.ComputeResource)
	assert.True(t, strings.HasPrefix(loaded.JobsRootPath(), filepath.Dir(path)))
	assert.Equal(t, "<redacted>", loaded.redacted().ComputeResource.PrivateKey)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
