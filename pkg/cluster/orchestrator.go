package cluster

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/retry"
)

// Config holds the orchestrator timings and host command paths.
type Config struct {
	Commands         executor.Commands
	PollInterval     time.Duration
	StartupTimeout   time.Duration
	SeedPollInterval time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithListener registers a listener for formation events.
func WithListener(l Listener) Option {
	return func(o *Orchestrator) {
		o.listener = l
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// Orchestrator builds a cluster from scratch out of nodes in any prior state:
// stopped, standalone, or clustered in some older topology. A run goes
// through four phases, each a barrier for the next:
//
//  1. bring-up: every node is started, failed nodes get exactly one more try
//  2. reset:    every node is stopped and force reset
//  3. seed:     the first disc node is started alone and awaited without limit
//  4. join:     every other node joins the disc nodes and is verified
//
// Nodes are handled one at a time, each inside its own executor.Session.
type Orchestrator struct {
	exec     executor.Executor
	cfg      Config
	waiter   *StartupWaiter
	listener Listener
	log      logrus.FieldLogger
}

// NewOrchestrator creates an orchestrator running commands through exec.
func NewOrchestrator(exec executor.Executor, cfg Config, opts ...Option) *Orchestrator {
	if cfg.SeedPollInterval <= 0 {
		cfg.SeedPollInterval = DefaultPollInterval
	}

	o := &Orchestrator{
		exec:     exec,
		cfg:      cfg,
		listener: NopListener{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.log = o.log.WithField("type", "cluster/orchestrator")
	o.waiter = NewStartupWaiter(exec, cfg.Commands, cfg.PollInterval, cfg.StartupTimeout, o.log)
	return o
}

// Form runs the whole formation algorithm against topo and returns its single
// outcome. There is no rollback: an aborted run leaves the nodes in whatever
// state the phases reached.
//
// The seed wait has no deadline. Cancelling ctx is the only way to stop a run
// stuck on a seed that never comes up; such a run fails in the seed phase.
func (o *Orchestrator) Form(ctx context.Context, topo *Topology) FormationOutcome {
	started := time.Now()
	outcome := o.form(ctx, topo)
	o.listener.RunFinished(outcome, time.Since(started))

	log := o.log.WithField("phase", outcome.PhaseReached.String())
	if outcome.Success {
		log.Info("cluster formed")
	} else {
		log.WithField("failed_nodes", outcome.FailedNodes).Error("cluster formation aborted")
	}
	return outcome
}

func (o *Orchestrator) form(ctx context.Context, topo *Topology) FormationOutcome {
	if stillFailing := o.bringUp(ctx, topo.Nodes()); len(stillFailing) > 0 {
		return failed(PhaseBringUp, stillFailing...)
	}

	o.resetAll(ctx, topo.Nodes())

	seed := topo.Seed()
	if err := o.startSeed(ctx, seed); err != nil {
		return failed(PhaseSeed, seed)
	}

	if node, ok := o.joinAll(ctx, topo); !ok {
		return failed(PhaseJoin, node)
	}

	return FormationOutcome{Success: true, PhaseReached: PhaseComplete}
}

func (o *Orchestrator) enter(p Phase) func() {
	started := time.Now()
	o.listener.PhaseStarted(p)
	o.log.WithField("phase", p.String()).Info("entering phase")
	return func() {
		o.listener.PhaseFinished(p, time.Since(started))
	}
}

// bringUp returns the nodes that could not be started. When no node at all
// comes up the run is over before anything destructive happened; otherwise
// the failed nodes get a second round, since a node may only be able to start
// once its peers are up (the last disc node to stop must start first).
func (o *Orchestrator) bringUp(ctx context.Context, nodes []Node) []Node {
	defer o.enter(PhaseBringUp)()

	failedFirst := o.bringUpRound(ctx, nodes)
	if len(failedFirst) == 0 {
		return nil
	}

	if len(failedFirst) == len(nodes) {
		o.log.Error("unable to start any node")
		return failedFirst
	}

	o.log.WithField("nodes", labels(failedFirst)).Warn("retrying nodes that failed to start")
	failedSecond := o.bringUpRound(ctx, failedFirst)
	if len(failedSecond) > 0 {
		o.log.WithField("nodes", labels(failedSecond)).Error("unable to start nodes on the second try")
	}
	return failedSecond
}

func (o *Orchestrator) bringUpRound(ctx context.Context, nodes []Node) []Node {
	var failedNodes []Node
	for _, n := range nodes {
		ok := o.waiter.EnsureStarted(ctx, n)
		o.listener.NodeResult(PhaseBringUp, n, ok)
		if !ok {
			failedNodes = append(failedNodes, n)
		}
	}
	return failedNodes
}

// resetAll wipes the cluster metadata of every node. force_reset is used
// because a plain reset refuses to run on what it believes is the last disc
// node of a cluster, which cannot be ruled out when the prior state is
// unknown. Failures are tolerated: the old state is being discarded anyway.
func (o *Orchestrator) resetAll(ctx context.Context, nodes []Node) {
	defer o.enter(PhaseReset)()

	for _, n := range nodes {
		ok := o.reset(ctx, n)
		o.listener.NodeResult(PhaseReset, n, ok)
	}
}

func (o *Orchestrator) reset(ctx context.Context, n Node) bool {
	sess := executor.Open(o.exec, o.cfg.Commands, n.Address)
	defer sess.Close()

	stop := sess.Ctl(ctx, "stop_app")
	reset := sess.Ctl(ctx, "force_reset")

	if !stop.Succeeded || !reset.Succeeded {
		o.log.WithField("node", n.Label).Warn("reset did not complete cleanly, continuing")
		return false
	}
	return true
}

func (o *Orchestrator) startSeed(ctx context.Context, seed Node) error {
	defer o.enter(PhaseSeed)()

	sess := executor.Open(o.exec, o.cfg.Commands, seed.Address)
	defer sess.Close()

	sess.Ctl(ctx, "start_app")

	o.log.WithField("node", seed.Label).Info("waiting for seed to start_app")
	err := retry.PollForever(ctx, o.cfg.SeedPollInterval, func() bool {
		return CheckStatus(ctx, sess).Running
	})

	o.listener.NodeResult(PhaseSeed, seed, err == nil)
	return err
}

// joinAll clusters every non-seed node with the disc nodes, stopping at the
// first node that does not show up as running afterwards. A join failure
// points to a real problem such as a cookie mismatch, so it is not retried.
func (o *Orchestrator) joinAll(ctx context.Context, topo *Topology) (Node, bool) {
	defer o.enter(PhaseJoin)()

	targets := topo.JoinTargets()
	for _, n := range topo.Joiners() {
		ok := o.join(ctx, n, targets)
		o.listener.NodeResult(PhaseJoin, n, ok)
		if !ok {
			return n, false
		}
	}
	return Node{}, true
}

func (o *Orchestrator) join(ctx context.Context, n Node, targets string) bool {
	sess := executor.Open(o.exec, o.cfg.Commands, n.Address)
	defer sess.Close()

	sess.Join(ctx, targets)
	sess.Ctl(ctx, "start_app")

	status := sess.Ctl(ctx, "cluster_status")
	if !VerifyJoined(n, status.Output) {
		o.log.WithFields(logrus.Fields{
			"node":    n.Label,
			"targets": targets,
		}).Error("node is not listed in running_nodes after joining")
		return false
	}

	o.log.WithField("node", n.Label).Info("node joined")
	return true
}

func labels(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}
