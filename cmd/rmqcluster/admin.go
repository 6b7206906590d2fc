package main

import (
	"github.com/spf13/cobra"
)

var bootstrap bool

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Declare the configured vhost, users, exchanges and queues",
	Long: `Run the admin.provisioning declarations against the seed node.

With --bootstrap the vhost and users are declared as guest and the admin
account is created before the exchanges and queues are declared as admin.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := a.runner.Provision(cmd.Context(), a.topo, bootstrap); err != nil {
			return err
		}
		a.log.Printf("✅ Provisioned vhost %s on %s", a.cfg.Admin.Provisioning.VHost, a.topo.Seed().Label)
		return nil
	}),
}

func init() {
	adminCmd.Flags().BoolVar(&bootstrap, "bootstrap", false, "create the admin account first, authenticating as guest")
	rootCLI.AddCommand(adminCmd)
}
