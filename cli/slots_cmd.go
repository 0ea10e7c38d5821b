package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type slotsCmd struct{}

func (c *slotsCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Show the configured job slots",
	}
}

func (c *slotsCmd) run(cl *CLI, cmd *cobra.Command, args []string) error {
	cfg, err := cl.loadConfig()
	if err != nil {
		return err
	}
	for i, s := range cfg.JobSlots {
		fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", i, s)
	}
	return nil
}
