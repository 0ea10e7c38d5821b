package jobs

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	errs "github.com/stanplayground/jobrunner/common/errors"
	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/coordinator"
	"github.com/stanplayground/jobrunner/runner/execer"
)

// invoke runs argv in the working directory and waits for it to exit, be
// stopped, or time out. Console output is flushed once more before invoke
// returns, whatever the outcome.
func (j *Job) invoke(argv []string) error {
	log := j.logger()
	select {
	case <-j.abortCh:
		return errs.Errorf(errs.Runtime, "Aborted")
	default:
	}

	console := newConsoleFlusher(j, j.flushInterval)
	defer console.close()

	p, err := j.deps.Execer.Exec(execer.Command{
		Argv:    argv,
		Dir:     j.WorkingDir(),
		Stdout:  console,
		Stderr:  console,
		LogTags: execer.LogTags{JobID: j.desc.JobID, Tag: j.desc.ProjectID},
	})
	if err != nil {
		return errs.Wrap(errs.Runtime, err, "could not start process")
	}
	log.WithField("argv", argv).Info("Started process")

	timeout := time.NewTimer(time.Duration(j.grant.TimeoutSec) * time.Second)
	defer timeout.Stop()

	processCh := make(chan execer.ProcessStatus, 1)
	go func() { processCh <- p.Wait() }()

	var st execer.ProcessStatus
	select {
	case <-j.abortCh:
		st = p.Abort()
		if !st.State.IsDone() {
			log.WithField("status", st).Error("Could not kill process")
			st = <-processCh
		}
	case <-timeout.C:
		log.WithField("timeoutSec", j.grant.TimeoutSec).Info("Job timed out")
		j.stat.Counter(stats.JobTimeoutCounter).Inc(1)
		p.Abort()
		return errs.Errorf(errs.Runtime, "Timeout")
	case st = <-processCh:
	}

	log.WithField("status", st).Info("Process finished")
	switch {
	case st.State == execer.COMPLETE && st.ExitCode == 0:
		return nil
	case st.State == execer.COMPLETE:
		return errs.Errorf(errs.Runtime, "Process exited with code %d", st.ExitCode)
	default:
		return errs.Errorf(errs.Runtime, "%s", st.Error)
	}
}

// consoleFlusher collects process output and sends it to the coordinator
// as the consoleOutput property, at most once per interval.
type consoleFlusher struct {
	job     *Job
	limiter *rate.Limiter
	kick    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	sent int
}

func newConsoleFlusher(j *Job, interval time.Duration) *consoleFlusher {
	ctx, cancel := context.WithCancel(context.Background())
	c := &consoleFlusher{
		job:     j,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		kick:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *consoleFlusher) Write(p []byte) (int, error) {
	c.job.mu.Lock()
	c.job.console.Write(p)
	c.job.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}
	return len(p), nil
}

func (c *consoleFlusher) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.kick:
		}
		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}
		c.flush(context.Background())
	}
}

// flush sends the whole console buffer if it grew since the last flush.
func (c *consoleFlusher) flush(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.job.mu.Lock()
	out := c.job.console.String()
	c.job.mu.Unlock()
	if len(out) == c.sent {
		return
	}
	if err := c.job.setProperty(ctx, coordinator.PropConsoleOutput, out); err != nil {
		c.job.logger().WithError(err).Error("Could not send console output")
		return
	}
	c.sent = len(out)
	c.job.stat.Counter(stats.JobConsoleFlushCounter).Inc(1)
}

// close stops periodic flushing and sends whatever is left.
func (c *consoleFlusher) close() {
	c.cancel()
	c.wg.Wait()
	c.flush(context.Background())
}
