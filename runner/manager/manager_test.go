package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	errs "github.com/stanplayground/jobrunner/common/errors"
	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/coordinator"
	"github.com/stanplayground/jobrunner/runner/execer/execers"
	"github.com/stanplayground/jobrunner/runner/jobs"
	"github.com/stanplayground/jobrunner/runner/slots"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	ws   = "ws1"
	proj = "proj1"
)

type env struct {
	fake *coordinator.Fake
	ex   *execers.ScriptedExecer
	stat stats.StatsReceiver
	mgr  *Manager
	root string
}

func setup(t *testing.T, slotList []slots.Slot, steps ...string) *env {
	e := &env{
		fake: coordinator.NewFake(),
		ex:   execers.NewScriptedExecer(steps...),
		stat: stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry),
		root: filepath.Join(t.TempDir(), "script_jobs"),
	}
	var err error
	e.mgr, err = New(Config{Slots: slotList, JobsRoot: e.root}, e.fake, e.ex, e.stat)
	require.NoError(t, err)
	t.Cleanup(func() {
		e.mgr.Stop()
		e.mgr.Wait()
	})
	return e
}

func (e *env) desc(id string, req slots.Requirements) jobs.Description {
	script := id + ".sh"
	e.fake.AddFile(ws, proj, script, "sleep 100")
	return jobs.Description{WorkspaceID: ws, ProjectID: proj, JobID: id, ScriptFileName: script, Requirements: req}
}

func (e *env) job(t *testing.T, id string) *jobs.Job {
	e.mgr.mu.Lock()
	defer e.mgr.mu.Unlock()
	j, ok := e.mgr.active[id]
	require.True(t, ok, "job %s not active", id)
	return j
}

var small = slots.Slot{Count: 2, NumCPUs: 2, RAMGB: 4, TimeoutSec: 60}

func TestAdmitUpToCountAndReleaseOnCompletion(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "pause")
	ctx := context.Background()
	req := slots.Requirements{NumCPUs: 2, RAMGB: 4, TimeoutSec: 60}

	assert.True(t, e.mgr.InitiateJob(ctx, e.desc("a", req)))
	assert.True(t, e.mgr.InitiateJob(ctx, e.desc("b", req)))
	assert.False(t, e.mgr.InitiateJob(ctx, e.desc("c", req)), "template exhausted")
	assert.Equal(t, []int{0}, e.mgr.Capacity())
	assert.Equal(t, int64(1), e.stat.Counter(stats.ManagerNoSlotCounter).Count())
	assert.NoDirExists(t, filepath.Join(e.root, "c"))

	a := e.job(t, "a")
	a.Stop()
	<-a.Done()
	assert.Equal(t, jobs.Failed, a.State())
	assert.Equal(t, []int{1}, e.mgr.Capacity(), "slot released before Done")
	assert.True(t, e.mgr.InitiateJob(ctx, e.desc("c", req)))

	ids := []string{}
	for _, info := range e.mgr.ActiveJobs() {
		ids = append(ids, info.JobID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
	assert.Equal(t, int64(2), e.stat.Gauge(stats.ManagerActiveJobsGauge).Value())
}

func TestDuplicateRejected(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "pause")
	ctx := context.Background()
	d := e.desc("a", slots.Requirements{})
	require.True(t, e.mgr.InitiateJob(ctx, d))
	require.Eventually(t, func() bool { return len(e.ex.Commands()) == 1 }, 5*time.Second, 10*time.Millisecond)

	assert.False(t, e.mgr.InitiateJob(ctx, d))
	assert.Equal(t, int64(1), e.stat.Counter(stats.ManagerDuplicateJobCounter).Count())
	entries, err := os.ReadDir(e.root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, e.ex.Commands(), 1)
	assert.Equal(t, []int{1}, e.mgr.Capacity())
}

func TestOversizedJobAlwaysDenied(t *testing.T) {
	e := setup(t, []slots.Slot{small, {Count: 1, NumCPUs: 8, RAMGB: 16, TimeoutSec: 600}}, "complete 0")
	ctx := context.Background()
	for _, req := range []slots.Requirements{{NumCPUs: 16}, {RAMGB: 32}, {TimeoutSec: 3600}} {
		assert.False(t, e.mgr.InitiateJob(ctx, e.desc(fmt.Sprint(req), req)))
	}
	assert.Empty(t, e.mgr.ActiveJobs())
}

func TestAdmissionErrorKinds(t *testing.T) {
	e := setup(t, []slots.Slot{{Count: 1, NumCPUs: 2, RAMGB: 4, TimeoutSec: 60}}, "pause")
	ctx := context.Background()
	_, err := e.mgr.admit(ctx, e.desc("a", slots.Requirements{}))
	require.NoError(t, err)

	_, err = e.mgr.admit(ctx, e.desc("a", slots.Requirements{}))
	assert.Equal(t, errs.Admission, errs.KindOf(err))
	assert.Contains(t, err.Error(), "already active")

	_, err = e.mgr.admit(ctx, e.desc("b", slots.Requirements{}))
	assert.Equal(t, errs.Admission, errs.KindOf(err))
	assert.Contains(t, err.Error(), "no slot")

	e.mgr.Stop()
	e.mgr.Wait()
	e.fake.FailProperty = func(jobID, property, value string) error {
		return errors.New("coordinator down")
	}
	_, err = e.mgr.admit(ctx, e.desc("c", slots.Requirements{}))
	assert.Equal(t, errs.Staging, errs.KindOf(err))
}

func TestStartFailureLeavesNoTrace(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "complete 0")
	e.fake.FailProperty = func(jobID, property, value string) error {
		return errors.New("coordinator down")
	}
	assert.False(t, e.mgr.InitiateJob(context.Background(), e.desc("a", slots.Requirements{})))
	assert.Empty(t, e.mgr.ActiveJobs())
	assert.Equal(t, []int{2}, e.mgr.Capacity())
	assert.Equal(t, int64(1), e.stat.Counter(stats.ManagerStartFailedCounter).Count())
	assert.Empty(t, e.ex.Commands())
	assert.NoDirExists(t, filepath.Join(e.root, "a"))
}

func TestOnJobFinished(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "stdout done", "complete 0")
	var mu sync.Mutex
	var finished []jobs.Info
	e.mgr.OnJobFinished(func(info jobs.Info) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, info)
	})
	require.True(t, e.mgr.InitiateJob(context.Background(), e.desc("a", slots.Requirements{})))
	e.mgr.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, 1)
	assert.Equal(t, "a", finished[0].JobID)
	assert.Equal(t, "completed", finished[0].State)
	assert.Equal(t, small.NumCPUs, finished[0].Grant.NumCPUs)
	assert.Empty(t, e.mgr.ActiveJobs())
}

func TestStopStopsAllJobs(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "pause")
	ctx := context.Background()
	require.True(t, e.mgr.InitiateJob(ctx, e.desc("a", slots.Requirements{})))
	require.True(t, e.mgr.InitiateJob(ctx, e.desc("b", slots.Requirements{})))
	a, b := e.job(t, "a"), e.job(t, "b")

	e.mgr.Stop()
	e.mgr.Wait()
	assert.Equal(t, jobs.Failed, a.State())
	assert.Equal(t, jobs.Failed, b.State())
	assert.Empty(t, e.mgr.ActiveJobs())
}

func TestCleanupOldJobsSkipsActive(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "pause")
	require.True(t, e.mgr.InitiateJob(context.Background(), e.desc("running", slots.Requirements{})))
	require.Eventually(t, func() bool { return len(e.ex.Commands()) == 1 }, 5*time.Second, 10*time.Millisecond)

	old := time.Now().Add(-25 * time.Hour)
	for _, name := range []string{"stale", "running"} {
		p := filepath.Join(e.root, name)
		require.NoError(t, os.MkdirAll(p, 0777))
		require.NoError(t, os.Chtimes(p, old, old))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "recent"), 0777))

	require.NoError(t, e.mgr.CleanupOldJobs())
	assert.NoDirExists(t, filepath.Join(e.root, "stale"))
	assert.DirExists(t, filepath.Join(e.root, "running"))
	assert.DirExists(t, filepath.Join(e.root, "recent"))
	assert.Equal(t, int64(1), e.stat.Counter(stats.ManagerCleanedDirsCounter).Count())

	require.NoError(t, e.mgr.CleanupOldJobs())
}

func TestPoller(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "complete 0")
	e.fake.AddFile(ws, proj, "fit.sh", "true")
	e.fake.AddPendingJob(coordinator.PendingJob{WorkspaceID: ws, ProjectID: proj, JobID: "p1", ScriptFileName: "fit.sh"})
	e.fake.AddPendingJob(coordinator.PendingJob{WorkspaceID: ws, ProjectID: proj, JobID: "p2", ScriptFileName: "fit.sh",
		RequiredResources: coordinator.RequiredResources{NumCPUs: 64}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- e.mgr.RunPoller(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		status, _ := e.fake.LastProperty("p1", coordinator.PropStatus)
		return status == coordinator.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	_, touched := e.fake.LastProperty("p2", coordinator.PropStatus)
	assert.False(t, touched, "a job that fits no slot is left pending")

	cancel()
	assert.Equal(t, context.Canceled, <-done)
	assert.True(t, e.stat.Counter(stats.PollerPollCounter).Count() >= 1)
}

func TestPollerSurvivesErrors(t *testing.T) {
	e := setup(t, []slots.Slot{small}, "complete 0")
	e.fake.FailPending = errors.New("unreachable")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- e.mgr.RunPoller(ctx, 5*time.Millisecond) }()
	require.Eventually(t, func() bool {
		return e.stat.Counter(stats.PollerPollErrCounter).Count() >= 2
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Slots: []slots.Slot{{Count: 1, NumCPUs: 0, RAMGB: 1, TimeoutSec: 1}}, JobsRoot: t.TempDir()}, coordinator.NewFake(), execers.NewScriptedExecer(), nil)
	assert.Error(t, err)
	_, err = New(Config{Slots: []slots.Slot{small}}, coordinator.NewFake(), execers.NewScriptedExecer(), nil)
	assert.Error(t, err)
}
