package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec(t *testing.T) {
	f := newFixture(t)
	f.hosts.down["10.0.0.2"] = true

	out := f.runner.Exec(context.Background(), f.topo.Nodes(), "start")
	require.Len(t, out, 3, "a failing host does not stop the others")

	assert.True(t, out[0].Succeeded)
	assert.False(t, out[1].Succeeded)
	assert.True(t, out[2].Succeeded)

	// start goes through the service script, not rabbitmqctl
	assert.Equal(t, 3, f.hosts.count(f.cfg.RabbitMQ.ServiceStart))
	assert.Zero(t, f.hosts.count(f.cfg.RabbitMQ.Ctl+" start"))

	f.runner.Exec(context.Background(), f.topo.Nodes()[:1], "list_queues")
	assert.Equal(t, 1, f.hosts.count("10.0.0.1 "+f.cfg.RabbitMQ.Ctl+" list_queues"))
}

func TestCookies(t *testing.T) {
	f := newFixture(t)

	out := f.runner.Cookies(context.Background(), f.topo.Nodes())
	require.Len(t, out, 3)
	assert.Equal(t, "COOKIE-node1", out[0].Output)
	assert.Equal(t, "node3", out[2].Node.Label)
	assert.Equal(t, 3, f.hosts.count("cat "+f.cfg.RabbitMQ.CookiePath))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.hosts.down["10.0.0.3"] = true

	out := f.runner.Status(context.Background(), f.topo.Nodes())
	require.Len(t, out, 3)

	assert.True(t, out[0].Running)
	assert.True(t, out[0].Member)
	assert.False(t, out[2].Running)
	assert.False(t, out[2].Member)

	// a stopped node is not asked for its cluster status
	assert.Zero(t, f.hosts.count("10.0.0.3 "+f.cfg.RabbitMQ.Ctl+" cluster_status"))
}

func TestStatus_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, f.runner.Status(ctx, f.topo.Nodes()))
	assert.Empty(t, f.hosts.commands)
}

func TestSelect(t *testing.T) {
	f := newFixture(t)

	all, err := Select(f.topo, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byLabel, err := Select(f.topo, "node2")
	require.NoError(t, err)
	require.Len(t, byLabel, 1)
	assert.Equal(t, "10.0.0.2", byLabel[0].Address)

	byAddress, err := Select(f.topo, "10.0.0.3")
	require.NoError(t, err)
	assert.Equal(t, "node3", byAddress[0].Label)

	_, err = Select(f.topo, "node9")
	assert.Error(t, err)
}
