package executor

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/meftunca/rmqcluster/pkg/types"
)

// waitDelay bounds how long Execute waits for the output pipe to drain once
// the shell has exited or been killed. Background children that inherited the
// pipe would otherwise hold it open.
const waitDelay = 250 * time.Millisecond

// LocalExecutor runs commands through a local shell. It suits clusters whose
// nodes all live on the current host; the target address is exported to the
// command as TARGET_ADDRESS so wrapper scripts can dispatch on it.
type LocalExecutor struct {
	shell   string
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewLocalExecutor creates a LocalExecutor. An empty shell means /bin/sh.
func NewLocalExecutor(shell string, timeout time.Duration, log logrus.FieldLogger) *LocalExecutor {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &LocalExecutor{
		shell:   shell,
		timeout: timeout,
		log:     log.WithField("type", "executor/local"),
	}
}

// Execute implements Executor.
func (e *LocalExecutor) Execute(ctx context.Context, address, commandLine string) Result {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", commandLine)
	cmd.Env = append(os.Environ(), "TARGET_ADDRESS="+address)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	out, err := cmd.CombinedOutput()
	if errors.Is(err, exec.ErrWaitDelay) && ctx.Err() == nil {
		// The shell exited cleanly and left a background child behind.
		err = nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = types.ErrTimeout(address, commandLine, ctxErr)
		} else {
			err = types.ErrCommandFailed(address, commandLine, err)
		}
		e.log.WithError(err).WithField("address", address).Debug("local command failed")
		return Result{Output: string(out), Err: err}
	}
	return Result{Output: string(out), Succeeded: true}
}
