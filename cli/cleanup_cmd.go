package cli

import (
	"github.com/spf13/cobra"

	"github.com/stanplayground/jobrunner/cleaner"
	"github.com/stanplayground/jobrunner/cleaner/dirconfig"
	"github.com/stanplayground/jobrunner/runner/manager"
)

type cleanupCmd struct {
	dirConfig dirconfig.RetentionDirConfig
}

func (c *cleanupCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove job working directories older than the retention window",
	}
	r.Flags().DurationVar(&c.dirConfig.Retention, "retention", manager.DefaultRetention, "remove job directories last modified longer ago than this")
	return r
}

func (c *cleanupCmd) run(cl *CLI, cmd *cobra.Command, args []string) error {
	cfg, err := cl.loadConfig()
	if err != nil {
		return err
	}
	c.dirConfig.Dir = cfg.JobsRootPath()
	dc, err := cleaner.NewDiskCleaner([]dirconfig.DirConfig{c.dirConfig}, nil)
	if err != nil {
		return err
	}
	return dc.Cleanup()
}
