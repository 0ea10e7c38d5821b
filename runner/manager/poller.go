package manager

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/jobs"
)

// PollOnce asks the coordinator for pending jobs and tries to admit each.
// It returns how many were admitted.
func (m *Manager) PollOnce(ctx context.Context) (int, error) {
	m.stat.Counter(stats.PollerPollCounter).Inc(1)
	pending, err := m.deps.Client.GetPendingScriptJobs(ctx)
	if err != nil {
		m.stat.Counter(stats.PollerPollErrCounter).Inc(1)
		return 0, err
	}
	admitted := 0
	for _, p := range pending {
		if m.InitiateJob(ctx, jobs.DescriptionFromPending(p)) {
			admitted++
		}
	}
	return admitted, nil
}

// RunPoller calls PollOnce every interval until ctx is done. Coordinator
// errors back off exponentially up to ten intervals and never end the loop.
func (m *Manager) RunPoller(ctx context.Context, interval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 10 * interval
	b.MaxElapsedTime = 0
	b.Reset()

	log.WithField("interval", interval).Info("Polling coordinator for jobs")
	for {
		wait := interval
		if n, err := m.PollOnce(ctx); err != nil {
			wait = b.NextBackOff()
			log.WithError(err).WithField("retryIn", wait).Error("Polling coordinator failed")
		} else {
			b.Reset()
			if n > 0 {
				log.Debugf("Admitted %d job(s)", n)
			}
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
