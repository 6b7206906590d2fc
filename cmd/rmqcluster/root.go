package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/common"
	"github.com/meftunca/rmqcluster/pkg/config"
	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/json"
	"github.com/meftunca/rmqcluster/pkg/metrics"
	"github.com/meftunca/rmqcluster/pkg/runner"
	"github.com/meftunca/rmqcluster/pkg/storage"
	"github.com/meftunca/rmqcluster/pkg/version"
)

var (
	configPath string
	host       string
	verbose    bool
	format     string
)

// base of all cli commands
var rootCLI = &cobra.Command{
	Use:           "rmqcluster",
	Short:         "Form and provision RabbitMQ clusters",
	Long:          "rmqcluster turns a set of RabbitMQ hosts in any prior state into one freshly formed cluster, then declares its vhost, users, exchanges and queues.",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteCLI runs the command line. SIGINT and SIGTERM cancel the running
// command; a formation run stuck waiting for its seed is ended this way.
func ExecuteCLI() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCLI.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCLI.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml, ./configs/config.yaml, /etc/rmqcluster/config.yaml)")
	rootCLI.PersistentFlags().StringVarP(&host, "host", "H", "", "limit host commands to one node, by label or address")
	rootCLI.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCLI.PersistentFlags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
}

// app holds what every command needs, built from the loaded configuration.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	topo    *cluster.Topology
	exec    executor.Executor
	store   storage.RunStore
	metrics *metrics.FormationMetrics
	enc     json.Encoder
	runner  *runner.Runner
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log := common.NewLogger(cfg.Logging)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	topo, err := cfg.Cluster.Topology()
	if err != nil {
		return nil, err
	}

	enc, err := json.New(json.Config{
		Library:    json.Library(cfg.Storage.JSON.Library),
		Indent:     true,
		EscapeHTML: cfg.Storage.JSON.EscapeHTML,
	})
	if err != nil {
		return nil, err
	}

	exec, err := newExecutor(cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		closeExecutor(exec)
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		topo:  topo,
		exec:  exec,
		store: store,
		enc:   enc,
	}
	if cfg.Monitoring.Enabled || cfg.Monitoring.Exports() {
		a.metrics = metrics.NewFormationMetrics(cfg.Monitoring.Namespace)
	}
	a.runner = runner.New(exec, cfg, store, a.metrics, log)

	log.WithFields(logrus.Fields{
		"version":  version.Version,
		"executor": cfg.Executor.Type,
		"storage":  cfg.Storage.Type,
		"nodes":    topo.Len(),
	}).Debug("configuration loaded")

	return a, nil
}

func newExecutor(cfg *config.Config, log logrus.FieldLogger) (executor.Executor, error) {
	if cfg.Executor.Type == config.ExecutorLocal {
		return executor.NewLocalExecutor(cfg.Executor.Shell, cfg.Executor.LocalTimeout, log), nil
	}
	return executor.NewSSHExecutor(cfg.SSH, log)
}

func closeExecutor(exec executor.Executor) {
	if c, ok := exec.(io.Closer); ok {
		c.Close()
	}
}

func (a *app) Close() {
	closeExecutor(a.exec)
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close run store")
	}
}

// nodes returns the nodes selected by --host.
func (a *app) nodes() ([]cluster.Node, error) {
	return runner.Select(a.topo, host)
}

// withApp adapts a command body that needs the application context.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, args, a)
	}
}

// warnEphemeralStore tells the user that the memory store starts empty in
// every process, so runs made by earlier invocations are not visible.
func (a *app) warnEphemeralStore(cmd *cobra.Command) {
	if a.cfg.Storage.Type != "memory" {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "⚠️  storage.type is memory: only runs made by this process are kept, configure redis to keep history")
}

// printJSON writes v when --format json is set and reports whether it did.
func (a *app) printJSON(w io.Writer, v interface{}) (bool, error) {
	if format != "json" {
		return false, nil
	}
	return true, a.enc.Write(w, v)
}
