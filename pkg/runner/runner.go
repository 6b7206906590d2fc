// Package runner ties a formation run to its ambient services: the command
// transcript, metrics, post-formation provisioning and the run history.
package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meftunca/rmqcluster/pkg/admin"
	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/config"
	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/metrics"
	"github.com/meftunca/rmqcluster/pkg/storage"
)

// exportTimeout bounds a push to the Pushgateway.
const exportTimeout = 10 * time.Second

// Runner executes formation and maintenance operations against the
// configured hosts.
type Runner struct {
	exec    executor.Executor
	cfg     *config.Config
	store   storage.RunStore
	metrics *metrics.FormationMetrics
	log     logrus.FieldLogger
}

// New creates a Runner. store and m may be nil, in which case runs are not
// persisted or measured.
func New(exec executor.Executor, cfg *config.Config, store storage.RunStore, m *metrics.FormationMetrics, log logrus.FieldLogger) *Runner {
	return &Runner{
		exec:    exec,
		cfg:     cfg,
		store:   store,
		metrics: m,
		log:     log.WithField("type", "runner/runner"),
	}
}

// recorder wraps the executor for one operation. Configured secrets never
// reach the transcript.
func (r *Runner) recorder() *executor.Recorder {
	var observers []executor.CommandObserver
	if r.metrics != nil {
		observers = append(observers, r.metrics)
	}

	rec := executor.NewRecorder(r.exec, observers...)
	rec.Redact(r.cfg.Secrets()...)
	return rec
}

// Build forms the cluster described by topo and, when guest bootstrap is
// enabled, provisions it through the seed. The returned record is complete
// even when an error is returned. The error is the formation failure if
// there is one, then a provisioning failure, then a history failure.
func (r *Runner) Build(ctx context.Context, topo *cluster.Topology) (*storage.RunRecord, error) {
	rec := r.recorder()

	opts := []cluster.Option{cluster.WithLogger(r.log)}
	if r.metrics != nil {
		opts = append(opts, cluster.WithListener(r.metrics))
	}
	orch := cluster.NewOrchestrator(rec, r.cfg.FormationSettings(), opts...)

	run := storage.NewRunRecord(topo)
	r.log.WithFields(logrus.Fields{
		"run_id": run.ID.String(),
		"nodes":  topo.Len(),
		"seed":   topo.Seed().Label,
	}).Info("forming cluster")

	outcome := orch.Form(ctx, topo)
	err := outcome.Err()

	if outcome.Success && r.cfg.Admin.BootstrapWithGuest {
		err = r.provision(ctx, rec, topo.Seed(), true)
	}

	run.Finish(outcome, rec.Transcript())

	if saveErr := r.save(ctx, run); err == nil {
		err = saveErr
	}
	r.exportMetrics(ctx)
	return run, err
}

// Provision declares the configured provisioning on the seed of topo. With
// bootstrap set the admin account is created first, authenticating as guest.
func (r *Runner) Provision(ctx context.Context, topo *cluster.Topology, bootstrap bool) error {
	return r.provision(ctx, r.recorder(), topo.Seed(), bootstrap)
}

func (r *Runner) provision(ctx context.Context, exec executor.Executor, seed cluster.Node, bootstrap bool) error {
	p := admin.NewProvisioner(exec, r.cfg.RabbitMQ, r.log)
	spec := r.cfg.Admin.Provisioning

	var err error
	if bootstrap {
		err = p.Bootstrap(ctx, seed.Address, r.cfg.Admin.Credentials(), spec)
	} else {
		err = p.Provision(ctx, seed.Address, r.cfg.Admin.Credentials(), spec)
	}
	if err != nil {
		r.recordError(err, "admin")
		return err
	}

	r.log.WithFields(logrus.Fields{
		"vhost": spec.VHost,
		"seed":  seed.Label,
	}).Info("cluster provisioned")
	return nil
}

// save persists run. A run cancelled by a signal is still written, so the
// store gets a context of its own.
func (r *Runner) save(ctx context.Context, run *storage.RunRecord) error {
	if r.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Storage.Timeout)
	defer cancel()

	started := time.Now()
	err := r.store.SaveRun(ctx, run)
	if r.metrics != nil {
		r.metrics.RecordStorageOperation("save_run", err == nil, time.Since(started))
	}
	if err != nil {
		r.recordError(err, "storage")
		r.log.WithError(err).WithField("run_id", run.ID.String()).Error("failed to save run")
		return err
	}
	return nil
}

// exportMetrics hands the metrics of a finished build to whatever is
// configured to keep them, since the process exits before any scrape. A
// failed export is logged and does not fail the build.
func (r *Runner) exportMetrics(ctx context.Context) {
	mon := r.cfg.Monitoring
	if r.metrics == nil || !mon.Exports() {
		return
	}

	if mon.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
		defer cancel()

		if err := r.metrics.Push(ctx, mon.PushgatewayURL, mon.PushJob); err != nil {
			r.recordError(err, "metrics")
			r.log.WithError(err).Warn("failed to push metrics")
		} else {
			r.log.WithField("job", mon.PushJob).Debug("metrics pushed")
		}
	}

	if mon.TextfilePath != "" {
		if err := r.metrics.WriteTextfile(mon.TextfilePath); err != nil {
			r.recordError(err, "metrics")
			r.log.WithError(err).Warn("failed to write metrics textfile")
		}
	}
}

func (r *Runner) recordError(err error, where string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordError(errorType(err), where)
}
