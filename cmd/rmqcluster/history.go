package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meftunca/rmqcluster/pkg/types"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past formation runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List formation runs, newest first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		a.warnEphemeralStore(cmd)

		runs, err := a.store.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if ok, err := a.printJSON(cmd.OutOrStdout(), runs); ok {
			return err
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}
		for _, r := range runs {
			result := "ok"
			if !r.Outcome.Success {
				result = "failed in " + r.Outcome.PhaseReached.String()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-10s %s\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Duration().Round(time.Second), result)
		}
		return nil
	}),
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one formation run with its command transcript",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		a.warnEphemeralStore(cmd)

		id, err := uuid.Parse(args[0])
		if err != nil {
			return types.ErrInvalidConfig("run-id", err.Error())
		}

		run, err := a.store.GetRun(cmd.Context(), id)
		if err != nil {
			return err
		}
		if ok, err := a.printJSON(cmd.OutOrStdout(), run); ok {
			return err
		}

		printRun(cmd, run)
		for _, c := range run.Transcript {
			mark := "✅"
			if !c.Succeeded {
				mark = "❌"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-16s %s\n", mark, c.Address, c.Command)
		}
		return nil
	}),
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show, 0 for all")
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	rootCLI.AddCommand(historyCmd)
}
