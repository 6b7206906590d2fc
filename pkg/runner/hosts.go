package runner

import (
	"context"
	"errors"
	"strings"

	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/types"
)

// HostOutput is the answer of one host to a command.
type HostOutput struct {
	Node      cluster.Node `json:"node"`
	Output    string       `json:"output"`
	Succeeded bool         `json:"succeeded"`
}

// NodeReport is the observed state of one node.
type NodeReport struct {
	Node    cluster.Node `json:"node"`
	Running bool         `json:"running"`
	Member  bool         `json:"member"`
}

// Exec runs a rabbitmqctl command on every node in turn. "start" launches
// the broker service instead. A host that fails does not stop the others.
func (r *Runner) Exec(ctx context.Context, nodes []cluster.Node, command string) []HostOutput {
	return r.each(ctx, nodes, func(sess *executor.Session) executor.Result {
		return sess.Ctl(ctx, command)
	})
}

// Cookies reads the Erlang cookie of every node. Nodes whose cookies differ
// cannot cluster.
func (r *Runner) Cookies(ctx context.Context, nodes []cluster.Node) []HostOutput {
	out := r.each(ctx, nodes, func(sess *executor.Session) executor.Result {
		return sess.Cookie(ctx)
	})
	for i := range out {
		out[i].Output = strings.TrimSpace(out[i].Output)
	}
	return out
}

// Status reports whether each node runs and whether it lists itself among
// the running nodes of its cluster.
func (r *Runner) Status(ctx context.Context, nodes []cluster.Node) []NodeReport {
	exec := r.recorder()
	out := make([]NodeReport, 0, len(nodes))

	for _, n := range nodes {
		if ctx.Err() != nil {
			break
		}

		sess := executor.Open(exec, r.cfg.RabbitMQ, n.Address)
		report := NodeReport{Node: n, Running: cluster.CheckStatus(ctx, sess).Running}
		if report.Running {
			res := sess.Ctl(ctx, "cluster_status")
			report.Member = res.Succeeded && cluster.VerifyJoined(n, res.Output)
		}
		sess.Close()

		out = append(out, report)
	}
	return out
}

func (r *Runner) each(ctx context.Context, nodes []cluster.Node, fn func(*executor.Session) executor.Result) []HostOutput {
	exec := r.recorder()
	out := make([]HostOutput, 0, len(nodes))

	for _, n := range nodes {
		if ctx.Err() != nil {
			break
		}

		sess := executor.Open(exec, r.cfg.RabbitMQ, n.Address)
		res := fn(sess)
		sess.Close()

		if !res.Succeeded {
			r.log.WithField("node", n.Label).WithError(res.Err).Warn("command failed")
		}
		out = append(out, HostOutput{Node: n, Output: res.Output, Succeeded: res.Succeeded})
	}
	return out
}

// Select returns the nodes of topo whose label or address is host, or all of
// them when host is empty.
func Select(topo *cluster.Topology, host string) ([]cluster.Node, error) {
	if host == "" {
		return topo.Nodes(), nil
	}
	for _, n := range topo.Nodes() {
		if n.Label == host || n.Address == host {
			return []cluster.Node{n}, nil
		}
	}
	return nil, types.ErrInvalidConfig("host", host+" is not part of the cluster")
}

func errorType(err error) string {
	var ce *types.ClusterError
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	return "UNKNOWN"
}
