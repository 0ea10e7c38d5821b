// Package config loads the job runner's YAML configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/stanplayground/jobrunner/runner/coordinator"
	"github.com/stanplayground/jobrunner/runner/jobs"
	"github.com/stanplayground/jobrunner/runner/manager"
	"github.com/stanplayground/jobrunner/runner/slots"
)

const (
	DefaultFileName        = ".jobrunner.yaml"
	DefaultJobsRoot        = "script_jobs"
	DefaultPollInterval    = 5 * time.Second
	DefaultCleanupSchedule = "@hourly"
	DefaultAdminAddr       = "localhost:9091"
	DefaultHistoryDB       = "history.db"
)

type Coordinator struct {
	URL     string        `yaml:"url"`
	Tries   int           `yaml:"tries,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type ComputeResource struct {
	ID         string `yaml:"id"`
	PrivateKey string `yaml:"privateKey"`
	NodeID     string `yaml:"nodeId"`
	NodeName   string `yaml:"nodeName"`
}

type Config struct {
	Coordinator     Coordinator       `yaml:"coordinator"`
	ComputeResource ComputeResource   `yaml:"computeResource"`
	ContainerMethod string            `yaml:"containerMethod"`
	Images          map[string]string `yaml:"images,omitempty"`
	JobsRoot        string            `yaml:"jobsRoot"`
	JobSlots        []slots.Slot      `yaml:"jobSlots"`
	PollInterval    time.Duration     `yaml:"pollInterval"`
	CleanupSchedule string            `yaml:"cleanupSchedule"`
	AdminAddr       string            `yaml:"adminAddr"`
	HistoryDB       string            `yaml:"historyDb"`

	// Directory relative paths are resolved against.
	baseDir string
}

// DefaultSlots is a single job slot with a one hour ceiling.
func DefaultSlots() []slots.Slot {
	return []slots.Slot{{Count: 1, NumCPUs: 1, RAMGB: 2, TimeoutSec: 3600}}
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	c, err := Parse(b, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	log.Debugf("Loaded config from %s: %s", path, spew.Sdump(c.redacted()))
	return c, nil
}

// Parse decodes YAML, resolving relative paths against baseDir.
func Parse(b []byte, baseDir string) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	c.baseDir = baseDir
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ContainerMethod == "" {
		c.ContainerMethod = string(jobs.NoContainer)
	}
	if c.JobsRoot == "" {
		c.JobsRoot = DefaultJobsRoot
	}
	if len(c.JobSlots) == 0 {
		c.JobSlots = DefaultSlots()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = DefaultCleanupSchedule
	}
	if c.AdminAddr == "" {
		c.AdminAddr = DefaultAdminAddr
	}
	if c.HistoryDB == "" {
		c.HistoryDB = DefaultHistoryDB
	}
	if c.Coordinator.Tries <= 0 {
		c.Coordinator.Tries = coordinator.DefaultHttpTries
	}
	if c.Coordinator.Timeout <= 0 {
		c.Coordinator.Timeout = coordinator.DefaultHttpTimeout
	}
}

func (c *Config) Validate() error {
	if c.Coordinator.URL == "" {
		return errors.New("coordinator.url not set")
	}
	if c.ComputeResource.ID == "" {
		return errors.New("computeResource.id not set")
	}
	if _, err := coordinator.ParsePrivateKey(c.ComputeResource.PrivateKey); err != nil {
		return errors.Wrap(err, "computeResource.privateKey")
	}
	method, err := jobs.ParseContainerMethod(c.ContainerMethod)
	if err != nil {
		return err
	}
	if method != jobs.NoContainer && len(c.Images) == 0 {
		return errors.Errorf("containerMethod %s needs images", method)
	}
	if err := slots.ValidateSlots(c.JobSlots); err != nil {
		return errors.Wrap(err, "jobSlots")
	}
	if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
		return errors.Wrap(err, "cleanupSchedule")
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

func (c *Config) JobsRootPath() string  { return c.resolve(c.JobsRoot) }
func (c *Config) HistoryDBPath() string { return c.resolve(c.HistoryDB) }

func (c *Config) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		URL:               c.Coordinator.URL,
		ComputeResourceID: c.ComputeResource.ID,
		PrivateKey:        c.ComputeResource.PrivateKey,
		NodeID:            c.ComputeResource.NodeID,
		NodeName:          c.ComputeResource.NodeName,
		Tries:             c.Coordinator.Tries,
		Timeout:           c.Coordinator.Timeout,
	}
}

func (c *Config) ManagerConfig() manager.Config {
	images := make(jobs.Images, len(c.Images))
	for k, v := range c.Images {
		images[jobs.ScriptKind(k)] = v
	}
	return manager.Config{
		Slots:           c.JobSlots,
		JobsRoot:        c.JobsRootPath(),
		ContainerMethod: jobs.ContainerMethod(c.ContainerMethod),
		Images:          images,
	}
}

// Write saves c as YAML, readable only by the owner since it holds the
// private key.
func (c *Config) Write(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

func (c *Config) redacted() Config {
	r := *c
	if r.ComputeResource.PrivateKey != "" {
		r.ComputeResource.PrivateKey = "<redacted>"
	}
	return r
}
