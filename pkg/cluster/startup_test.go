package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meftunca/rmqcluster/pkg/executor"
)

func TestEnsureStarted_AlreadyRunning(t *testing.T) {
	node := Node{Label: "node1", Address: "10.0.0.1"}
	b := newFakeBroker(node)
	w := NewStartupWaiter(b, b.cmds, time.Millisecond, 20*time.Millisecond, quietLogger())

	assert.True(t, w.EnsureStarted(context.Background(), node))
	assert.Equal(t, []string{b.ctl("status")}, b.commandsFor(node.Address))
}

func TestEnsureStarted_StartsStoppedNode(t *testing.T) {
	node := Node{Label: "node1", Address: "10.0.0.1"}
	b := newFakeBroker(node)
	h := b.host(node.Address)
	h.up, h.app = false, false

	w := NewStartupWaiter(b, b.cmds, time.Millisecond, 20*time.Millisecond, quietLogger())

	assert.True(t, w.EnsureStarted(context.Background(), node))
	assert.Equal(t, []string{
		b.ctl("status"),
		b.ctl("stop"),
		b.cmds.ServiceStart,
		b.ctl("status"),
	}, b.commandsFor(node.Address))
}

func TestEnsureStarted_TimesOut(t *testing.T) {
	node := Node{Label: "node1", Address: "10.0.0.1"}
	b := newFakeBroker(node)
	b.host(node.Address).unreachable = true

	w := NewStartupWaiter(b, b.cmds, 2*time.Millisecond, 30*time.Millisecond, quietLogger())

	start := time.Now()
	assert.False(t, w.EnsureStarted(context.Background(), node))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 1, b.count(b.cmds.ServiceStart))
}

func TestNewStartupWaiter_Defaults(t *testing.T) {
	w := NewStartupWaiter(newFakeBroker(), executor.DefaultCommands(), 0, 0, quietLogger())
	assert.Equal(t, DefaultPollInterval, w.interval)
	assert.Equal(t, DefaultStartupTimeout, w.timeout)
}
