// Package manager admits script jobs onto this machine. It is the single
// owner of the active job table: duplicate ids are rejected, a job slot is
// picked from the configured templates, and the job is started and tracked
// until it reaches a terminal state.
package manager

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/stanplayground/jobrunner/cleaner/dirconfig"
	errs "github.com/stanplayground/jobrunner/common/errors"
	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/coordinator"
	"github.com/stanplayground/jobrunner/runner/execer"
	"github.com/stanplayground/jobrunner/runner/jobs"
	"github.com/stanplayground/jobrunner/runner/slots"
)

// DefaultRetention is how long a job's working directory is kept.
const DefaultRetention = 24 * time.Hour

type Config struct {
	Slots           []slots.Slot
	JobsRoot        string
	ContainerMethod jobs.ContainerMethod
	Images          jobs.Images
	// Zero means DefaultRetention.
	Retention time.Duration
	// Zero means jobs.DefaultFlushInterval.
	FlushInterval time.Duration
}

type Manager struct {
	cfg  Config
	deps jobs.Deps
	stat stats.StatsReceiver

	mu sync.Mutex
	// Active jobs by id, and in admission order.
	active   map[string]*jobs.Job
	admitted []*jobs.Job

	subMu       sync.Mutex
	subscribers []func(jobs.Info)
}

func New(cfg Config, client coordinator.Client, ex execer.Execer, stat stats.StatsReceiver) (*Manager, error) {
	if err := slots.ValidateSlots(cfg.Slots); err != nil {
		return nil, err
	}
	if cfg.JobsRoot == "" {
		return nil, errors.New("jobs root not set")
	}
	root, err := filepath.Abs(cfg.JobsRoot)
	if err != nil {
		return nil, errors.Wrap(err, "resolving jobs root")
	}
	cfg.JobsRoot = root
	if cfg.ContainerMethod == "" {
		cfg.ContainerMethod = jobs.NoContainer
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Manager{
		cfg: cfg,
		deps: jobs.Deps{
			Client:          client,
			Execer:          ex,
			JobsRoot:        cfg.JobsRoot,
			ContainerMethod: cfg.ContainerMethod,
			Images:          cfg.Images,
			Stat:            stat,
		},
		stat:   stat,
		active: make(map[string]*jobs.Job),
	}, nil
}

// OnJobFinished registers f to be called with the final view of every job
// that reaches a terminal state.
func (m *Manager) OnJobFinished(f func(jobs.Info)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscribers = append(m.subscribers, f)
}

// InitiateJob admits and starts the job, returning false if its id is
// already active, no slot fits it, or it could not be started. Rejections
// have no side effects.
func (m *Manager) InitiateJob(ctx context.Context, desc jobs.Description) bool {
	log := log.WithFields(log.Fields{"jobID": desc.JobID, "projectID": desc.ProjectID})
	grant, err := m.admit(ctx, desc)
	if err != nil {
		if errs.KindOf(err) == errs.Admission {
			log.WithError(err).Info("Rejecting job")
		} else {
			log.WithError(err).Error("Could not start job")
		}
		return false
	}
	log.WithField("grant", grant).Info("Admitted job")
	return true
}

// admit reserves a slot for desc and starts the job in it. Duplicate ids and
// jobs no slot fits fail with an Admission error.
func (m *Manager) admit(ctx context.Context, desc jobs.Description) (slots.Grant, error) {
	m.mu.Lock()
	if _, ok := m.active[desc.JobID]; ok {
		m.mu.Unlock()
		m.stat.Counter(stats.ManagerDuplicateJobCounter).Inc(1)
		return slots.Grant{}, errs.Errorf(errs.Admission, "job %s is already active", desc.JobID)
	}
	grant, ok := slots.PickSlot(m.cfg.Slots, m.requirementsLocked(), desc.Requirements)
	if !ok {
		m.mu.Unlock()
		m.stat.Counter(stats.ManagerNoSlotCounter).Inc(1)
		return slots.Grant{}, errs.Errorf(errs.Admission, "no slot available for %+v", desc.Requirements.WithDefaults())
	}
	opts := []jobs.Option{jobs.WithCompletionHook(m.jobFinished)}
	if m.cfg.FlushInterval > 0 {
		opts = append(opts, jobs.WithFlushInterval(m.cfg.FlushInterval))
	}
	job := jobs.New(desc, grant, m.deps, opts...)
	m.active[desc.JobID] = job
	m.admitted = append(m.admitted, job)
	m.stat.Gauge(stats.ManagerActiveJobsGauge).Update(int64(len(m.active)))
	m.mu.Unlock()

	if err := job.Start(ctx); err != nil {
		m.remove(job)
		m.stat.Counter(stats.ManagerStartFailedCounter).Inc(1)
		return slots.Grant{}, errs.Wrap(errs.Staging, err, "starting job")
	}
	m.stat.Counter(stats.ManagerJobsAdmittedCounter).Inc(1)
	return grant, nil
}

// requirementsLocked lists the active jobs' requirements in admission order.
func (m *Manager) requirementsLocked() []slots.Requirements {
	reqs := make([]slots.Requirements, 0, len(m.admitted))
	for _, j := range m.admitted {
		reqs = append(reqs, j.Description().Requirements)
	}
	return reqs
}

// jobFinished runs as the job's completion hook, so the slot is free again
// before the job's Done channel closes.
func (m *Manager) jobFinished(j *jobs.Job) {
	m.remove(j)
	info := j.Info()
	m.subMu.Lock()
	subs := append([]func(jobs.Info){}, m.subscribers...)
	m.subMu.Unlock()
	for _, f := range subs {
		f(info)
	}
}

func (m *Manager) remove(j *jobs.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := j.Description().JobID
	if m.active[id] == j {
		delete(m.active, id)
	}
	for i, a := range m.admitted {
		if a == j {
			m.admitted = append(m.admitted[:i], m.admitted[i+1:]...)
			break
		}
	}
	m.stat.Gauge(stats.ManagerActiveJobsGauge).Update(int64(len(m.active)))
}

func (m *Manager) snapshot() []*jobs.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*jobs.Job(nil), m.admitted...)
}

// Stop asks every active job to stop. Jobs still report their own terminal
// state once their processes exit.
func (m *Manager) Stop() {
	active := m.snapshot()
	log.Infof("Stopping %d active job(s)", len(active))
	for _, j := range active {
		j.Stop()
	}
}

// Wait blocks until no job is active.
func (m *Manager) Wait() {
	for {
		active := m.snapshot()
		if len(active) == 0 {
			return
		}
		for _, j := range active {
			<-j.Done()
		}
	}
}

// ActiveJobs returns a view of the active jobs in admission order.
func (m *Manager) ActiveJobs() []jobs.Info {
	active := m.snapshot()
	infos := make([]jobs.Info, 0, len(active))
	for _, j := range active {
		infos = append(infos, j.Info())
	}
	return infos
}

// Capacity is the number of further jobs each slot template could take.
func (m *Manager) Capacity() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slots.Capacity(m.cfg.Slots, m.requirementsLocked())
}

func (m *Manager) Slots() []slots.Slot {
	return append([]slots.Slot(nil), m.cfg.Slots...)
}

func (m *Manager) isActive(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[jobID]
	return ok
}

// CleanupOldJobs removes job directories older than the retention window,
// never touching an active job's directory.
func (m *Manager) CleanupOldJobs() error {
	dc := dirconfig.RetentionDirConfig{
		Dir:       m.cfg.JobsRoot,
		Retention: m.cfg.Retention,
		Skip:      m.isActive,
	}
	removed, err := dc.CleanDir()
	m.stat.Counter(stats.ManagerCleanedDirsCounter).Inc(int64(len(removed)))
	if len(removed) > 0 {
		log.WithField("removed", removed).Info("Cleaned up old job directories")
	}
	return err
}
