package executor

import (
	"context"
	"fmt"
)

// Session binds command execution to a single node address. Callers open one
// session per node, do that node's work through it and Close it before moving
// on, so no two node scopes overlap.
type Session struct {
	exec    Executor
	cmds    Commands
	address string
	closed  bool
}

// Open starts a session against address.
func Open(exec Executor, cmds Commands, address string) *Session {
	return &Session{
		exec:    exec,
		cmds:    cmds,
		address: address,
	}
}

// Address returns the address the session is bound to.
func (s *Session) Address() string {
	return s.address
}

// Run executes a raw command line on the session's host.
func (s *Session) Run(ctx context.Context, commandLine string) Result {
	if s.closed {
		return Result{Err: fmt.Errorf("session for %s is closed", s.address)}
	}
	return s.exec.Execute(ctx, s.address, commandLine)
}

// Ctl forwards command to rabbitmqctl. The "start" command is special: the
// broker is launched through the service script since rabbitmqctl cannot
// start a stopped node.
func (s *Session) Ctl(ctx context.Context, command string) Result {
	if command == "start" {
		return s.Run(ctx, s.cmds.ServiceStart)
	}
	return s.Run(ctx, s.cmds.Ctl+" "+command)
}

// Join asks the node to cluster with targets, a space separated list of
// broker identities.
func (s *Session) Join(ctx context.Context, targets string) Result {
	return s.Ctl(ctx, s.cmds.JoinCluster+" "+targets)
}

// Cookie reads the Erlang cookie of the host. Nodes only cluster when their
// cookies match.
func (s *Session) Cookie(ctx context.Context) Result {
	return s.Run(ctx, "cat "+s.cmds.CookiePath)
}

// Close ends the session and releases any connection the executor keeps for
// the address. Close is idempotent.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if r, ok := s.exec.(Releaser); ok {
		r.Release(s.address)
	}
}
