package dirconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Configuration for cleaning a directory based on the age of its direct
// children. Entries last modified more than Retention ago are removed
// recursively, unless Skip returns true for their name.
type RetentionDirConfig struct {
	Dir       string
	Retention time.Duration
	Skip      func(name string) bool
	// For testing. Defaults to time.Now.
	Now func() time.Time
}

func (dc RetentionDirConfig) GetDir() string { return dc.Dir }

// CleanDir is a no-op when Dir does not exist. A failure to remove one entry
// does not stop the others from being removed.
func (dc RetentionDirConfig) CleanDir() ([]string, error) {
	entries, err := os.ReadDir(dc.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "Failed to Cleanup dir: %s", dc.Dir)
	}
	now := time.Now
	if dc.Now != nil {
		now = dc.Now
	}
	cutoff := now().Add(-dc.Retention)

	var removed []string
	var failures []error
	for _, e := range entries {
		if dc.Skip != nil && dc.Skip(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed underneath us.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(dc.Dir, e.Name())
		log.WithFields(log.Fields{"path": p, "modTime": info.ModTime()}).Info("Removing expired entry")
		if err := os.RemoveAll(p); err != nil {
			failures = append(failures, err)
			continue
		}
		removed = append(removed, e.Name())
	}
	if len(failures) > 0 {
		return removed, errors.Errorf("Failed to Cleanup dir: %s. %v", dc.Dir, failures)
	}
	return removed, nil
}
