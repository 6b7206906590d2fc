package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meftunca/rmqcluster/pkg/storage"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Form the cluster from scratch",
	Long: `Start every node, reset all of them, start the seed (the first disc node)
and join every other node to the disc nodes. When admin.bootstrap_with_guest
is set the formed cluster is provisioned right after.

Existing cluster state on every node is discarded.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		a.log.Printf("🚀 Forming cluster of %d nodes, seed %s", a.topo.Len(), a.topo.Seed().Label)

		run, err := a.runner.Build(cmd.Context(), a.topo)

		printed, jerr := a.printJSON(cmd.OutOrStdout(), run.Summary())
		if jerr != nil {
			return jerr
		}
		if !printed {
			printRun(cmd, run)
		}

		if err != nil {
			a.log.WithError(err).Error("💥 Cluster build failed")
			return err
		}

		a.log.Printf("✅ Cluster formed in %s (run %s)", run.Duration().Round(time.Millisecond), run.ID)
		return nil
	}),
}

func printRun(cmd *cobra.Command, run *storage.RunRecord) {
	out := cmd.OutOrStdout()
	result := "success"
	if !run.Outcome.Success {
		result = "failed"
	}

	fmt.Fprintf(out, "run:      %s\n", run.ID)
	fmt.Fprintf(out, "started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Fprintf(out, "duration: %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "result:   %s (phase %s)\n", result, run.Outcome.PhaseReached)
	for _, n := range run.Outcome.FailedNodes {
		fmt.Fprintf(out, "failed:   %s\n", n)
	}
	if len(run.Transcript) > 0 {
		fmt.Fprintf(out, "commands: %d\n", len(run.Transcript))
	}
}

func init() {
	rootCLI.AddCommand(buildCmd)
}
