package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meftunca/rmqcluster/pkg/types"
)

func newTestOrchestrator(b *fakeBroker, l Listener) *Orchestrator {
	opts := []Option{WithLogger(quietLogger())}
	if l != nil {
		opts = append(opts, WithListener(l))
	}
	return NewOrchestrator(b, testConfig(), opts...)
}

func TestForm_AllHealthy(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	listener := &recordingListener{}

	outcome := newTestOrchestrator(b, listener).Form(context.Background(), topo)

	require.True(t, outcome.Success)
	assert.Equal(t, PhaseComplete, outcome.PhaseReached)
	assert.Empty(t, outcome.FailedNodes)
	assert.NoError(t, outcome.Err())

	// nothing needed starting
	assert.Zero(t, b.count(b.cmds.ServiceStart))

	// every node is reset, stop_app before force_reset
	for _, n := range topo.Nodes() {
		stop := b.indexOf(n.Address, b.ctl("stop_app"))
		reset := b.indexOf(n.Address, b.ctl("force_reset"))
		require.NotEqual(t, -1, stop, n.Label)
		require.NotEqual(t, -1, reset, n.Label)
		assert.Less(t, stop, reset, n.Label)
	}

	// the seed is node1 and only it is started before the joins
	seedStart := b.indexOf("10.0.0.1", b.ctl("start_app"))
	require.NotEqual(t, -1, seedStart)
	for _, n := range topo.Nodes() {
		assert.Less(t, b.indexOf(n.Address, b.ctl("force_reset")), seedStart, "reset of %s must precede the seed start", n.Label)
	}

	join := b.ctl("cluster rabbit@node1 rabbit@node2")
	assert.Equal(t, -1, b.indexOf("10.0.0.1", join), "the seed never joins")
	for _, addr := range []string{"10.0.0.2", "10.0.0.3"} {
		idx := b.indexOf(addr, join)
		require.NotEqual(t, -1, idx, addr)
		assert.Greater(t, idx, seedStart)
	}
	assert.Zero(t, b.count("rabbit@node3"), "ram nodes are never join targets")

	for _, addr := range b.order {
		assert.Equal(t, "node1", b.host(addr).group)
	}

	assert.Zero(t, b.overlaps, "node sessions must not overlap")

	assert.Equal(t, []string{
		"start bring-up",
		"bring-up node1 true", "bring-up node2 true", "bring-up node3 true",
		"finish bring-up",
		"start reset",
		"reset node1 true", "reset node2 true", "reset node3 true",
		"finish reset",
		"start seed",
		"seed node1 true",
		"finish seed",
		"start join",
		"join node2 true", "join node3 true",
		"finish join",
	}, listener.events)
	require.Len(t, listener.runs, 1)
	assert.True(t, listener.runs[0].Success)
}

func TestForm_RetryRecoversNode(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	node2 := b.host("10.0.0.2")
	node2.up, node2.app = false, false
	node2.startFailures = 1
	listener := &recordingListener{}

	outcome := newTestOrchestrator(b, listener).Form(context.Background(), topo)

	require.True(t, outcome.Success, "failed nodes: %v", outcome.FailedNodes)
	assert.Equal(t, PhaseComplete, outcome.PhaseReached)

	assert.Len(t, filterPrefix(b.commandsFor("10.0.0.2"), b.cmds.ServiceStart), 2)
	assert.Empty(t, filterPrefix(b.commandsFor("10.0.0.1"), b.cmds.ServiceStart))
	assert.Empty(t, filterPrefix(b.commandsFor("10.0.0.3"), b.cmds.ServiceStart))

	assert.Equal(t, []string{
		"bring-up node1 true", "bring-up node2 false", "bring-up node3 true",
		"bring-up node2 true",
	}, filterPrefix(listener.events, "bring-up "))

	join := b.ctl("cluster rabbit@node1 rabbit@node2")
	assert.NotEqual(t, -1, b.indexOf("10.0.0.2", join))
	assert.NotEqual(t, -1, b.indexOf("10.0.0.3", join))
}

func TestForm_NoNodeStarts(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	for _, addr := range b.order {
		b.host(addr).unreachable = true
	}

	outcome := newTestOrchestrator(b, nil).Form(context.Background(), topo)

	assert.False(t, outcome.Success)
	assert.Equal(t, PhaseBringUp, outcome.PhaseReached)
	assert.Equal(t, topo.Nodes(), outcome.FailedNodes)

	for _, destructive := range []string{"stop_app", "force_reset", "start_app", "cluster "} {
		assert.Zero(t, b.count(destructive), "%s must not be issued", destructive)
	}

	// no second round when every node failed
	for _, addr := range b.order {
		assert.Len(t, filterPrefix(b.commandsFor(addr), b.cmds.ServiceStart), 1, addr)
	}

	var ce *types.ClusterError
	require.True(t, errors.As(outcome.Err(), &ce))
	assert.Equal(t, types.ErrCodeBringUpFailed, ce.Code)
}

func TestForm_NodeFailsTwice(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	b.host("10.0.0.3").unreachable = true

	outcome := newTestOrchestrator(b, nil).Form(context.Background(), topo)

	assert.False(t, outcome.Success)
	assert.Equal(t, PhaseBringUp, outcome.PhaseReached)
	require.Len(t, outcome.FailedNodes, 1)
	assert.Equal(t, "node3", outcome.FailedNodes[0].Label)

	assert.Len(t, filterPrefix(b.commandsFor("10.0.0.3"), b.cmds.ServiceStart), 2)
	assert.Zero(t, b.count("force_reset"))
	assert.Zero(t, b.count("cluster "))
}

func TestForm_JoinVerificationFails(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	b.host("10.0.0.2").hidden = true

	outcome := newTestOrchestrator(b, nil).Form(context.Background(), topo)

	assert.False(t, outcome.Success)
	assert.Equal(t, PhaseJoin, outcome.PhaseReached)
	require.Len(t, outcome.FailedNodes, 1)
	assert.Equal(t, "node2", outcome.FailedNodes[0].Label)

	// node2 was attempted exactly once, node3 never
	assert.Len(t, filterPrefix(b.commandsFor("10.0.0.2"), b.ctl("cluster ")), 1)
	assert.Empty(t, filterPrefix(b.commandsFor("10.0.0.3"), b.ctl("cluster ")))
	assert.Empty(t, filterPrefix(b.commandsFor("10.0.0.3"), b.ctl("cluster_status")))

	var ce *types.ClusterError
	require.True(t, errors.As(outcome.Err(), &ce))
	assert.Equal(t, types.ErrCodeJoinFailed, ce.Code)
	assert.Contains(t, ce.Error(), "node2")
}

func TestForm_RerunConverges(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	o := newTestOrchestrator(b, nil)

	first := o.Form(context.Background(), topo)
	require.True(t, first.Success)
	groupsAfterFirst := make(map[string]string)
	for _, addr := range b.order {
		groupsAfterFirst[addr] = b.host(addr).group
	}

	second := o.Form(context.Background(), topo)
	require.True(t, second.Success)
	for _, addr := range b.order {
		assert.Equal(t, groupsAfterFirst[addr], b.host(addr).group, addr)
	}
	assert.Zero(t, b.count(b.cmds.ServiceStart), "a formed cluster needs no restarts")
}

func TestForm_StartsFromStoppedApps(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	// VM up but the application stopped: the waiter must stop and restart it
	for _, addr := range b.order {
		b.host(addr).app = false
	}

	outcome := newTestOrchestrator(b, nil).Form(context.Background(), topo)

	require.True(t, outcome.Success)
	for _, addr := range b.order {
		cmds := b.commandsFor(addr)
		require.GreaterOrEqual(t, len(cmds), 3, addr)
		assert.Equal(t, b.ctl("status"), cmds[0])
		assert.Equal(t, b.ctl("stop"), cmds[1])
		assert.Equal(t, b.cmds.ServiceStart, cmds[2])
	}
}

func TestForm_SeedWaitEndsOnlyWithContext(t *testing.T) {
	topo := threeNodeTopology(t)
	b := newFakeBroker(topo.Nodes()...)
	b.host("10.0.0.1").stuckApp = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := newTestOrchestrator(b, nil).Form(ctx, topo)

	assert.False(t, outcome.Success)
	assert.Equal(t, PhaseSeed, outcome.PhaseReached)
	require.Len(t, outcome.FailedNodes, 1)
	assert.Equal(t, "node1", outcome.FailedNodes[0].Label)
	assert.Zero(t, b.count("cluster "))
	assert.Greater(t, len(filterPrefix(b.commandsFor("10.0.0.1"), b.ctl("status"))), 2, "seed is polled repeatedly")
}

func TestForm_SingleDiscNode(t *testing.T) {
	topo, err := NewTopology([]Node{{Label: "solo", Address: "10.0.0.9"}}, nil)
	require.NoError(t, err)
	b := newFakeBroker(topo.Nodes()...)

	outcome := newTestOrchestrator(b, nil).Form(context.Background(), topo)

	require.True(t, outcome.Success)
	assert.Zero(t, b.count("cluster "))
	assert.NotEqual(t, -1, b.indexOf("10.0.0.9", b.ctl("force_reset")))
}

func filterPrefix(items []string, prefix string) []string {
	var out []string
	for _, s := range items {
		if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
			out = append(out, s)
		}
	}
	return out
}
