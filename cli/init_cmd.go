package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stanplayground/jobrunner/config"
	"github.com/stanplayground/jobrunner/runner/coordinator"
)

type initCmd struct {
	url        string
	resourceID string
	nodeName   string
	force      bool
}

func (c *initCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "init",
		Short: "Write a new config file with a fresh node id and key pair",
	}
	r.Flags().StringVar(&c.url, "url", "", "coordinator url")
	r.Flags().StringVar(&c.resourceID, "compute_resource_id", "", "compute resource id registered with the coordinator")
	r.Flags().StringVar(&c.nodeName, "node_name", "", "human readable name of this node (default: hostname)")
	r.Flags().BoolVar(&c.force, "force", false, "overwrite an existing config file")
	r.MarkFlagRequired("url")
	r.MarkFlagRequired("compute_resource_id")
	return r
}

func (c *initCmd) run(cl *CLI, cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cl.configPath); err == nil && !c.force {
		return errors.Errorf("%s exists, use --force to overwrite", cl.configPath)
	}
	pub, priv, err := coordinator.GenerateKeyPair()
	if err != nil {
		return err
	}
	name := c.nodeName
	if name == "" {
		if name, err = os.Hostname(); err != nil {
			return err
		}
	}

	cfg := &config.Config{
		Coordinator: config.Coordinator{URL: c.url},
		ComputeResource: config.ComputeResource{
			ID:         c.resourceID,
			PrivateKey: priv,
			NodeID:     uuid.New().String(),
			NodeName:   name,
		},
		ContainerMethod: "none",
		JobsRoot:        config.DefaultJobsRoot,
		JobSlots:        config.DefaultSlots(),
		PollInterval:    config.DefaultPollInterval,
		CleanupSchedule: config.DefaultCleanupSchedule,
		AdminAddr:       config.DefaultAdminAddr,
		HistoryDB:       config.DefaultHistoryDB,
	}
	if err := cfg.Write(cl.configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\nnode id: %s\npublic key: %s\n", cl.configPath, cfg.ComputeResource.NodeID, pub)
	return nil
}
