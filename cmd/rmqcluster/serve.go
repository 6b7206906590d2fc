package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/meftunca/rmqcluster/pkg/api"
	"github.com/meftunca/rmqcluster/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the topology, run history and metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		a.warnEphemeralStore(cmd)

		if a.metrics == nil {
			a.metrics = metrics.NewFormationMetrics(a.cfg.Monitoring.Namespace)
		}

		srv := api.NewHTTPServer(a.cfg.Monitoring, a.store, a.topo, a.metrics, a.enc, a.log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		a.log.Printf("🌐 Status server listening on %s", a.cfg.Monitoring.ListenAddress)

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		a.log.Printf("🛑 Shutting down status server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	}),
}

func init() {
	rootCLI.AddCommand(serveCmd)
}
