// Package cleaner provides internal cleanup-related utilities,
// primarily to limit disk consumption of job working directories.
package cleaner

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/stanplayground/jobrunner/cleaner/dirconfig"
	"github.com/stanplayground/jobrunner/common/stats"
)

// A Cleaner provides cleanup functionality
type Cleaner interface {
	Cleanup() error
}

// CleanerFunc adapts a function to a Cleaner.
type CleanerFunc func() error

func (f CleanerFunc) Cleanup() error { return f() }

// Implements Cleaner for doing disk cleanup of directories
type DiskCleaner struct {
	DirConfigs []dirconfig.DirConfig
	stat       stats.StatsReceiver
}

func NewDiskCleaner(dirConfigs []dirconfig.DirConfig, stat stats.StatsReceiver) (*DiskCleaner, error) {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &DiskCleaner{
		DirConfigs: dirConfigs,
		stat:       stat,
	}, nil
}

// Cleanup is performed on dirs specified in the DirConfigs.
// Failures are logged; Cleanup itself never fails.
func (d *DiskCleaner) Cleanup() error {
	var failures []error
	for _, dc := range d.DirConfigs {
		removed, err := dc.CleanDir()
		d.stat.Counter(stats.ManagerCleanedDirsCounter).Inc(int64(len(removed)))
		if len(removed) > 0 {
			log.WithFields(log.Fields{"dir": dc.GetDir(), "removed": len(removed)}).Info("Cleaned dir")
		}
		if err != nil {
			failures = append(failures, errors.Wrapf(err, "cleaning %s", dc.GetDir()))
		}
	}
	if l := len(failures); l > 0 {
		log.Errorf("Failed to clean %d dir(s). %s", l, failures)
	}
	return nil
}
