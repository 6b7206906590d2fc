package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meftunca/rmqcluster/pkg/runner"
)

var rmqCmd = &cobra.Command{
	Use:   "rmq <command> [args...]",
	Short: "Run a rabbitmqctl command on every node",
	Long: `Run rabbitmqctl with the given arguments on every node, or only on --host.
"rmq start" launches the broker service instead, since rabbitmqctl cannot
start a stopped node. A failing host does not stop the others.`,
	Example: "  rmqcluster rmq cluster_status\n  rmqcluster rmq --host node2 stop_app",
	Args:    cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		return execOnHosts(cmd, a, strings.Join(args, " "))
	}),
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the broker service on every node",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		return execOnHosts(cmd, a, "start")
	}),
}

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Show the Erlang cookie of every node",
	Long:  "Nodes only cluster when their Erlang cookies match. Use this to find the odd one out.",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		nodes, err := a.nodes()
		if err != nil {
			return err
		}

		out := a.runner.Cookies(cmd.Context(), nodes)
		if ok, err := a.printJSON(cmd.OutOrStdout(), out); ok {
			return err
		}

		distinct := map[string]bool{}
		for _, o := range out {
			if !o.Succeeded {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s ⚠️  unreadable\n", o.Node.Label)
				continue
			}
			distinct[o.Output] = true
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", o.Node.Label, o.Output)
		}
		if len(distinct) > 1 {
			a.log.Warn("⚠️  Erlang cookies differ between nodes")
		}
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether every node runs and is a cluster member",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		nodes, err := a.nodes()
		if err != nil {
			return err
		}

		reports := a.runner.Status(cmd.Context(), nodes)
		if ok, err := a.printJSON(cmd.OutOrStdout(), reports); ok {
			return err
		}

		for _, r := range reports {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-16s %-5s running=%-5t member=%t\n",
				r.Node.Label, r.Node.Address, r.Node.Role, r.Running, r.Member)
		}
		return nil
	}),
}

func execOnHosts(cmd *cobra.Command, a *app, command string) error {
	nodes, err := a.nodes()
	if err != nil {
		return err
	}

	out := a.runner.Exec(cmd.Context(), nodes, command)
	if ok, err := a.printJSON(cmd.OutOrStdout(), out); ok {
		return err
	}
	printOutputs(cmd, out)
	return nil
}

func printOutputs(cmd *cobra.Command, out []runner.HostOutput) {
	for _, o := range out {
		mark := "✅"
		if !o.Succeeded {
			mark = "❌"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", mark, o.Node.Label, o.Node.Address)
		if text := strings.TrimSpace(o.Output); text != "" {
			fmt.Fprintln(cmd.OutOrStdout(), text)
		}
	}
}

func init() {
	rootCLI.AddCommand(rmqCmd, startCmd, cookiesCmd, statusCmd)
}
