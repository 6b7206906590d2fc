package cluster

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/retry"
)

// Default bring-up timings.
const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultStartupTimeout = 5 * time.Second
)

// StartupWaiter brings a single node to a running state.
type StartupWaiter struct {
	exec     executor.Executor
	cmds     executor.Commands
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewStartupWaiter creates a waiter polling every interval for at most
// timeout. Zero durations fall back to the defaults.
func NewStartupWaiter(exec executor.Executor, cmds executor.Commands, interval, timeout time.Duration, log logrus.FieldLogger) *StartupWaiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	return &StartupWaiter{
		exec:     exec,
		cmds:     cmds,
		interval: interval,
		timeout:  timeout,
		log:      log.WithField("type", "cluster/startup"),
	}
}

// EnsureStarted returns true if node is running, starting it if needed. A
// node that is not healthy is always stopped first, which clears the state
// where the Erlang VM is up but the rabbit application was stopped. A failed
// start is not special-cased: polling simply runs into the timeout.
func (w *StartupWaiter) EnsureStarted(ctx context.Context, node Node) bool {
	sess := executor.Open(w.exec, w.cmds, node.Address)
	defer sess.Close()

	log := w.log.WithField("node", node.Label)

	if CheckStatus(ctx, sess).Running {
		log.Debug("node already running")
		return true
	}

	sess.Ctl(ctx, "stop")

	if res := sess.Ctl(ctx, "start"); !res.Succeeded {
		log.WithError(res.Err).Debug("start command failed")
	}

	ok := retry.PollUntil(ctx, w.interval, w.timeout, func() bool {
		return CheckStatus(ctx, sess).Running
	})

	if ok {
		log.Info("node started")
	} else {
		log.WithField("timeout", w.timeout).Warn("node did not start in time")
	}
	return ok
}
