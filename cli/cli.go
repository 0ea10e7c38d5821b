// Package cli implements the jobrunner command line.
package cli

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stanplayground/jobrunner/common/log/hooks"
	"github.com/stanplayground/jobrunner/config"
)

type CLI struct {
	rootCmd *cobra.Command

	configPath string
	logLevel   string
}

func (c *CLI) Exec() error {
	return c.rootCmd.Execute()
}

func NewCLI() *CLI {
	c := &CLI{}
	c.rootCmd = &cobra.Command{
		Use:               "jobrunner",
		Short:             "jobrunner runs script jobs for a remote coordinator on this machine",
		SilenceUsage:      true,
		PersistentPreRunE: c.setupLogging,
	}
	c.rootCmd.PersistentFlags().StringVar(&c.configPath, "config", config.DefaultFileName, "path of the YAML config file")
	c.rootCmd.PersistentFlags().StringVar(&c.logLevel, "log_level", "info", "log everything at this level and above (error|warn|info|debug)")

	c.addCmd(&startCmd{})
	c.addCmd(&cleanupCmd{})
	c.addCmd(&historyCmd{})
	c.addCmd(&slotsCmd{})
	c.addCmd(&initCmd{})
	return c
}

func (c *CLI) setupLogging(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return errors.Wrap(err, "--log_level")
	}
	log.SetLevel(level)
	log.AddHook(hooks.NewContextHook())
	return nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

func (c *CLI) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(c, innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

type command interface {
	registerFlags() *cobra.Command
	run(cl *CLI, cmd *cobra.Command, args []string) error
}
