package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stanplayground/jobrunner/cleaner"
	"github.com/stanplayground/jobrunner/common/endpoints"
	"github.com/stanplayground/jobrunner/config"
	"github.com/stanplayground/jobrunner/history"
	"github.com/stanplayground/jobrunner/runner/coordinator"
	osexecer "github.com/stanplayground/jobrunner/runner/execer/os"
	"github.com/stanplayground/jobrunner/runner/jobs"
	"github.com/stanplayground/jobrunner/runner/manager"
)

type startCmd struct {
	containerMethod string
	jobsRoot        string
	adminAddr       string
	pollInterval    time.Duration
}

func (c *startCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "start",
		Short: "Poll the coordinator for jobs and run them until interrupted",
	}
	r.Flags().StringVar(&c.containerMethod, "container_method", "", "override containerMethod (none|docker|singularity)")
	r.Flags().StringVar(&c.jobsRoot, "jobs_root", "", "override jobsRoot")
	r.Flags().StringVar(&c.adminAddr, "admin_addr", "", "override adminAddr")
	r.Flags().DurationVar(&c.pollInterval, "poll_interval", 0, "override pollInterval")
	return r
}

func (c *startCmd) apply(cfg *config.Config) error {
	if c.containerMethod != "" {
		cfg.ContainerMethod = c.containerMethod
	}
	if c.jobsRoot != "" {
		cfg.JobsRoot = c.jobsRoot
	}
	if c.adminAddr != "" {
		cfg.AdminAddr = c.adminAddr
	}
	if c.pollInterval > 0 {
		cfg.PollInterval = c.pollInterval
	}
	return cfg.Validate()
}

func (c *startCmd) run(cl *CLI, cmd *cobra.Command, args []string) error {
	cfg, err := cl.loadConfig()
	if err != nil {
		return err
	}
	if err := c.apply(cfg); err != nil {
		return err
	}

	stat := endpoints.MakeStatsReceiver("jobrunner")
	client, err := coordinator.NewHTTPClient(cfg.CoordinatorConfig())
	if err != nil {
		return err
	}
	mgr, err := manager.New(cfg.ManagerConfig(), client, osexecer.NewExecer(), stat)
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	mgr.OnJobFinished(func(info jobs.Info) {
		if err := store.Record(context.Background(), history.RecordFromInfo(info, time.Now())); err != nil {
			log.WithError(err).Error("Could not record finished job")
		}
	})

	if err := mgr.CleanupOldJobs(); err != nil {
		log.WithError(err).Error("Initial cleanup failed")
	}
	sched, err := cleaner.Schedule(cfg.CleanupSchedule, cleaner.CleanerFunc(mgr.CleanupOldJobs))
	if err != nil {
		return err
	}
	defer sched.Stop()

	admin := endpoints.NewAdminServer(cfg.AdminAddr, stat, mgr)
	go func() {
		if err := admin.Serve(); err != nil {
			log.WithError(err).Error("Admin server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.WithFields(log.Fields{
		"computeResource": cfg.ComputeResource.ID,
		"node":            cfg.ComputeResource.NodeName,
		"containerMethod": cfg.ContainerMethod,
		"slots":           cfg.JobSlots,
	}).Info("Starting job runner")

	err = mgr.RunPoller(ctx, cfg.PollInterval)
	log.Info("Shutting down")
	mgr.Stop()
	mgr.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := admin.Shutdown(shutdownCtx); serr != nil {
		log.WithError(serr).Warn("Admin server shutdown")
	}
	if errors.Cause(err) == context.Canceled {
		return nil
	}
	return err
}
