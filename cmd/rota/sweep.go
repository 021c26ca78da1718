package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/rota/internal/sweep"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the daily reminder sweep once and exit",
		Long: `Sweep sends a reminder to the current assignee of every task that is due
today or overdue, then clears the manual reminder flag on every task.

Use this from an external cron when ROTA_SWEEP_INTERNAL=false.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.db.Close()

			srv, err := e.buildServer(cmd.Context(), false)
			if err != nil {
				return err
			}

			rep, err := srv.Sweeper().Run(cmd.Context(), time.Now().In(e.cfg.Location), sweep.TriggerCLI)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "groups: %d, tasks due: %d, notifications sent: %d, failures: %d\n",
				rep.Groups, rep.TasksDue, rep.NotificationsSent, rep.Failures)
			return nil
		},
	}
}
