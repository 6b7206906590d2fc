package cluster

import (
	"context"
	"strings"

	"github.com/meftunca/rmqcluster/pkg/executor"
)

// Markers that appear in `rabbitmqctl status` output only while the rabbit
// and mnesia applications are running.
const (
	rabbitMarker = "{rabbit,"
	mnesiaMarker = "{mnesia"
)

// IsRunning reports whether a status output shows both the rabbit and mnesia
// applications. The exit code of the status command is irrelevant.
func IsRunning(output string) bool {
	return strings.Contains(output, rabbitMarker) && strings.Contains(output, mnesiaMarker)
}

// CheckStatus queries the node behind sess.
func CheckStatus(ctx context.Context, sess *executor.Session) NodeStatus {
	res := sess.Ctl(ctx, "status")
	return NodeStatus{
		Raw:     res.Output,
		Running: IsRunning(res.Output),
	}
}
