// Package jobs runs one admitted script job: it stages the job's files into a
// private working directory, runs the script under the configured container
// method, supervises it and reports status, console output and results to
// the coordinator.
package jobs

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/coordinator"
	"github.com/stanplayground/jobrunner/runner/execer"
	"github.com/stanplayground/jobrunner/runner/slots"
)

// DefaultFlushInterval bounds how often console output is sent while a
// process runs.
const DefaultFlushInterval = 10 * time.Second

// Description identifies a job and what it asked for. Never modified.
type Description struct {
	WorkspaceID    string
	ProjectID      string
	JobID          string
	ScriptFileName string
	Requirements   slots.Requirements
}

// DescriptionFromPending converts a job handed out by the coordinator.
func DescriptionFromPending(p coordinator.PendingJob) Description {
	return Description{
		WorkspaceID:    p.WorkspaceID,
		ProjectID:      p.ProjectID,
		JobID:          p.JobID,
		ScriptFileName: p.ScriptFileName,
		Requirements: slots.Requirements{
			NumCPUs:    p.RequiredResources.NumCPUs,
			RAMGB:      p.RequiredResources.RAMGB,
			TimeoutSec: p.RequiredResources.TimeoutSec,
		},
	}
}

type State int

const (
	Pending State = iota
	Running
	Completed
	Failed
)

func (s State) IsTerminal() bool {
	return s == Completed || s == Failed
}

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Deps are the collaborators shared by every job of a process.
type Deps struct {
	Client          coordinator.Client
	Execer          execer.Execer
	JobsRoot        string
	ContainerMethod ContainerMethod
	Images          Images
	Stat            stats.StatsReceiver
}

type Option func(*Job)

// WithCompletionHook registers f to run once the job is terminal. Hooks run
// synchronously, in registration order, before Done is closed.
func WithCompletionHook(f func(*Job)) Option {
	return func(j *Job) { j.hooks = append(j.hooks, f) }
}

// WithFlushInterval overrides DefaultFlushInterval.
func WithFlushInterval(d time.Duration) Option {
	return func(j *Job) { j.flushInterval = d }
}

// Job is one admitted job. It is created Pending and moves to Running in
// Start; the lifecycle goroutine moves it to Completed or Failed.
type Job struct {
	desc  Description
	grant slots.Grant
	deps  Deps
	stat  stats.StatsReceiver

	hooks         []func(*Job)
	flushInterval time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	abortCh  chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	mu      sync.Mutex
	state   State
	err     error
	started time.Time
	elapsed time.Duration
	console strings.Builder
}

func New(desc Description, grant slots.Grant, deps Deps, opts ...Option) *Job {
	if deps.Stat == nil {
		deps.Stat = stats.NilStatsReceiver()
	}
	if deps.ContainerMethod == "" {
		deps.ContainerMethod = NoContainer
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		desc:          desc,
		grant:         grant,
		deps:          deps,
		stat:          deps.Stat,
		flushInterval: DefaultFlushInterval,
		ctx:           ctx,
		cancel:        cancel,
		abortCh:       make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start reports the job as running to the coordinator and, if that
// succeeds, launches it. On error the job never runs and Done never closes.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.state != Pending {
		j.mu.Unlock()
		return errors.Errorf("job %s already started", j.desc.JobID)
	}
	j.mu.Unlock()

	if err := j.setProperty(ctx, coordinator.PropStatus, coordinator.StatusRunning); err != nil {
		j.cancel()
		return errors.Wrapf(err, "setting job %s running", j.desc.JobID)
	}

	j.mu.Lock()
	j.state = Running
	j.started = time.Now()
	j.mu.Unlock()

	go j.run()
	return nil
}

// Stop kills the job's process, if any. The job's terminal state is still
// decided by how the process exits.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		j.logger().Info("Stopping job")
		close(j.abortCh)
		j.cancel()
	})
}

func (j *Job) Done() <-chan struct{} {
	return j.doneCh
}

func (j *Job) Description() Description { return j.desc }
func (j *Job) Grant() slots.Grant       { return j.grant }

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err is the failure reason of a Failed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Elapsed is the running time so far, or the final running time once terminal.
func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.state.IsTerminal():
		return j.elapsed
	case j.started.IsZero():
		return 0
	default:
		return time.Since(j.started)
	}
}

func (j *Job) ConsoleOutput() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.console.String()
}

func (j *Job) WorkingDir() string {
	return workingDir(j.deps.JobsRoot, j.desc.JobID)
}

// Info is a point in time view of a job.
type Info struct {
	JobID          string      `json:"jobId"`
	WorkspaceID    string      `json:"workspaceId"`
	ProjectID      string      `json:"projectId"`
	ScriptFileName string      `json:"scriptFileName"`
	State          string      `json:"state"`
	Grant          slots.Grant `json:"grant"`
	Started        time.Time   `json:"started"`
	ElapsedSec     float64     `json:"elapsedSec"`
	Error          string      `json:"error,omitempty"`
}

func (j *Job) Info() Info {
	elapsed := j.Elapsed()
	j.mu.Lock()
	defer j.mu.Unlock()
	info := Info{
		JobID:          j.desc.JobID,
		WorkspaceID:    j.desc.WorkspaceID,
		ProjectID:      j.desc.ProjectID,
		ScriptFileName: j.desc.ScriptFileName,
		State:          j.state.String(),
		Grant:          j.grant,
		Started:        j.started,
		ElapsedSec:     elapsed.Seconds(),
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	return info
}

func (j *Job) run() {
	defer j.cancel()
	err := j.execute()
	j.finish(err)
}

// finish records the outcome, reports it, then runs the completion hooks.
func (j *Job) finish(err error) {
	j.mu.Lock()
	j.elapsed = time.Since(j.started)
	elapsed := j.elapsed
	j.mu.Unlock()

	ctx := context.Background()
	log := j.logger().WithField("elapsed", elapsed)
	j.stat.Latency(stats.JobRunLatency_ms).Observe(elapsed)
	if err := j.setProperty(ctx, coordinator.PropElapsedTimeSec, strconv.FormatFloat(elapsed.Seconds(), 'f', 3, 64)); err != nil {
		log.WithError(err).Error("Could not report elapsed time")
	}

	state, status := Completed, coordinator.StatusCompleted
	if err != nil {
		state, status = Failed, coordinator.StatusFailed
		log.WithError(err).Error("Job failed")
		j.stat.Counter(stats.JobFailedCounter).Inc(1)
		if rerr := j.setProperty(ctx, coordinator.PropError, err.Error()); rerr != nil {
			log.WithError(rerr).Error("Could not report job error")
		}
	} else {
		log.Info("Job completed")
		j.stat.Counter(stats.JobCompletedCounter).Inc(1)
	}
	if rerr := j.setProperty(ctx, coordinator.PropStatus, status); rerr != nil {
		log.WithError(rerr).Errorf("Could not report job %s", status)
	}

	j.mu.Lock()
	j.state = state
	j.err = err
	j.mu.Unlock()

	for _, hook := range j.hooks {
		hook(j)
	}
	close(j.doneCh)
}

func (j *Job) setProperty(ctx context.Context, property, value string) error {
	return j.deps.Client.SetScriptJobProperty(ctx, j.desc.WorkspaceID, j.desc.ProjectID, j.desc.JobID, property, value)
}

func (j *Job) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"jobID":     j.desc.JobID,
		"projectID": j.desc.ProjectID,
		"script":    j.desc.ScriptFileName,
	})
}
