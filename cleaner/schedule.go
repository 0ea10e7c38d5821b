package cleaner

import (
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Schedule runs c on the given cron spec (e.g. "@hourly" or "0 3 * * *")
// until the returned Cron is stopped. Runs never overlap.
func Schedule(spec string, c Cleaner) (*cron.Cron, error) {
	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := sched.AddFunc(spec, func() {
		if err := c.Cleanup(); err != nil {
			log.WithError(err).Error("Scheduled cleanup failed")
		}
	}); err != nil {
		return nil, errors.Wrapf(err, "invalid cleanup schedule %q", spec)
	}
	sched.Start()
	log.WithField("schedule", spec).Info("Scheduled cleanup")
	return sched, nil
}
