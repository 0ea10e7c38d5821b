package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stanplayground/jobrunner/history"
)

type historyCmd struct {
	limit int
}

func (c *historyCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "history",
		Short: "List the most recently finished jobs",
	}
	r.Flags().IntVar(&c.limit, "limit", 20, "number of jobs to list")
	return r
}

func (c *historyCmd) run(cl *CLI, cmd *cobra.Command, args []string) error {
	cfg, err := cl.loadConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	records, err := store.Recent(cmd.Context(), c.limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tJOB\tPROJECT\tSCRIPT\tSTATE\tELAPSED\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1fs\t%s\n",
			r.Finished.Format(time.RFC3339), r.JobID, r.ProjectID, r.ScriptFileName, r.State, r.ElapsedSec, r.Error)
	}
	return w.Flush()
}
