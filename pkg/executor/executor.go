// Package executor runs rabbitmq administration commands against cluster
// hosts. Every implementation reports failure through Result rather than an
// error: an unreachable or unresponsive host is an expected condition during
// cluster formation and callers decide for themselves whether it is fatal.
package executor

import (
	"context"
	"path"
	"strings"
	"time"
)

// Result is the outcome of one remote command.
type Result struct {
	Output    string
	Succeeded bool

	// Err carries the transport or exit error behind a failed command, for
	// logging only.
	Err error
}

// Executor runs a single command line against the host at address. It blocks
// until the command finishes or the implementation's own timeout fires.
type Executor interface {
	Execute(ctx context.Context, address, commandLine string) Result
}

// Releaser is implemented by executors that keep per-address resources open
// between calls. Session.Close releases them.
type Releaser interface {
	Release(address string)
}

// Commands holds the host-side paths of the rabbitmq tooling.
type Commands struct {
	Ctl          string `mapstructure:"ctl_path" yaml:"ctl_path" json:"ctl_path"`
	ServiceStart string `mapstructure:"service_start" yaml:"service_start" json:"service_start"`
	CookiePath   string `mapstructure:"cookie_path" yaml:"cookie_path" json:"cookie_path"`
	Admin        string `mapstructure:"admin_path" yaml:"admin_path" json:"admin_path"`
	JoinCluster  string `mapstructure:"join_command" yaml:"join_command" json:"join_command"`
}

// DefaultCommands returns the paths of a stock rabbitmq-server package install.
// The service start runs under nohup, otherwise the remote shell hangs up the
// freshly launched server when it exits.
func DefaultCommands() Commands {
	return Commands{
		Ctl:          "/usr/sbin/rabbitmqctl",
		ServiceStart: "nohup /sbin/service rabbitmq-server start",
		CookiePath:   "/var/lib/rabbitmq/.erlang.cookie",
		Admin:        "/usr/local/bin/python /usr/local/bin/rabbitmqadmin",
		JoinCluster:  "cluster",
	}
}

// CommandRecord is one executed command, as kept in a run transcript.
type CommandRecord struct {
	Address   string        `json:"address"`
	Command   string        `json:"command"`
	Succeeded bool          `json:"succeeded"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// CommandKind reduces a command line to a short, low-cardinality label such
// as "rabbitmqctl status" or "rabbitmqadmin declare queue".
func CommandKind(commandLine string) string {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return "empty"
	}

	for i, f := range fields {
		base := path.Base(f)
		rest := fields[i+1:]

		switch base {
		case "rabbitmqctl":
			if len(rest) == 0 {
				return base
			}
			return base + " " + rest[0]
		case "rabbitmqadmin":
			for j, arg := range rest {
				if arg == "declare" || arg == "delete" || arg == "list" {
					if j+1 < len(rest) {
						return base + " " + arg + " " + rest[j+1]
					}
					return base + " " + arg
				}
			}
			return base
		case "service":
			if len(rest) == 0 {
				return base
			}
			return base + " " + rest[len(rest)-1]
		case "cat":
			return base
		}
	}

	return path.Base(fields[0])
}
