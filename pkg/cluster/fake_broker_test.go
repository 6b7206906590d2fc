package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meftunca/rmqcluster/pkg/executor"
)

// fakeHost simulates one rabbitmq host well enough for the formation
// algorithm: an Erlang VM that is up or down, the rabbit application on top
// of it, and the cluster it currently belongs to.
type fakeHost struct {
	label string
	up    bool
	app   bool
	group string

	unreachable   bool
	startFailures int
	stuckApp      bool // start_app succeeds but the application never comes up
	hidden        bool // never listed in running_nodes
}

type fakeCall struct {
	address string
	command string
}

type fakeBroker struct {
	mu       sync.Mutex
	cmds     executor.Commands
	hosts    map[string]*fakeHost
	order    []string
	calls    []fakeCall
	active   string
	overlaps int
}

// newFakeBroker creates healthy standalone hosts for nodes.
func newFakeBroker(nodes ...Node) *fakeBroker {
	b := &fakeBroker{
		cmds:  executor.DefaultCommands(),
		hosts: make(map[string]*fakeHost),
	}
	for _, n := range nodes {
		b.hosts[n.Address] = &fakeHost{label: n.Label, up: true, app: true, group: n.Label}
		b.order = append(b.order, n.Address)
	}
	return b
}

func (b *fakeBroker) host(address string) *fakeHost {
	return b.hosts[address]
}

func (b *fakeBroker) Release(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == address {
		b.active = ""
	}
}

func (b *fakeBroker) Execute(_ context.Context, address, line string) executor.Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active != "" && b.active != address {
		b.overlaps++
	}
	b.active = address
	b.calls = append(b.calls, fakeCall{address: address, command: line})

	h, ok := b.hosts[address]
	if !ok || h.unreachable {
		return executor.Result{Err: errors.New("dial tcp: connection refused")}
	}

	if line == b.cmds.ServiceStart {
		if h.startFailures > 0 {
			h.startFailures--
			return executor.Result{Output: "Starting rabbitmq-server: FAILED", Err: errors.New("exit status 1")}
		}
		h.up, h.app = true, true
		return executor.Result{Output: "Starting rabbitmq-server: SUCCESS", Succeeded: true}
	}

	sub := strings.TrimPrefix(line, b.cmds.Ctl+" ")
	if sub == line {
		return executor.Result{Err: fmt.Errorf("unknown command %q", line)}
	}

	if !h.up {
		return executor.Result{
			Output: fmt.Sprintf("Error: unable to connect to node rabbit@%s: nodedown\n", h.label),
			Err:    errors.New("exit status 2"),
		}
	}

	switch {
	case sub == "status":
		return executor.Result{Output: b.status(h), Succeeded: true}
	case sub == "stop":
		h.up, h.app = false, false
	case sub == "stop_app":
		h.app = false
	case sub == "force_reset":
		if h.app {
			return executor.Result{Output: "Error: mnesia_unexpectedly_running", Err: errors.New("exit status 2")}
		}
		h.group = h.label
	case sub == "start_app":
		if !h.stuckApp {
			h.app = true
		}
	case strings.HasPrefix(sub, b.cmds.JoinCluster+" "):
		if h.app {
			return executor.Result{Output: "Error: mnesia_unexpectedly_running", Err: errors.New("exit status 2")}
		}
		targets := strings.Fields(sub)[1:]
		h.group = strings.TrimPrefix(targets[0], NodeNamePrefix)
	case sub == "cluster_status":
		return executor.Result{Output: b.clusterStatus(h), Succeeded: true}
	default:
		return executor.Result{Err: fmt.Errorf("unknown rabbitmqctl command %q", sub)}
	}

	return executor.Result{Output: "...done.\n", Succeeded: true}
}

func (b *fakeBroker) status(h *fakeHost) string {
	apps := `[{os_mon,"CPO  CXC 138 46","2.2.9"},{sasl,"SASL  CXC 138 11","2.2.1"}]`
	if h.app {
		apps = `[{rabbit,"RabbitMQ","2.8.7"},{mnesia,"MNESIA  CXC 138 12","4.7"},{os_mon,"CPO  CXC 138 46","2.2.9"}]`
	}
	return fmt.Sprintf("Status of node rabbit@%s ...\n[{pid,4242},\n {running_applications,%s}]\n...done.\n", h.label, apps)
}

func (b *fakeBroker) clusterStatus(h *fakeHost) string {
	var members []string
	for _, addr := range b.order {
		m := b.hosts[addr]
		if m.up && m.app && m.group == h.group && !m.hidden {
			members = append(members, NodeNamePrefix+m.label)
		}
	}
	list := strings.Join(members, ",")
	return fmt.Sprintf("Cluster status of node rabbit@%s ...\r\n[{nodes,[{disc,[%s]}]},\r\n {running_nodes,[%s]}]\r\n...done.\r\n",
		h.label, list, list)
}

// commandsFor returns the commands sent to address, in order.
func (b *fakeBroker) commandsFor(address string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for _, c := range b.calls {
		if c.address == address {
			out = append(out, c.command)
		}
	}
	return out
}

// indexOf returns the position of the first call to address matching
// command, or -1.
func (b *fakeBroker) indexOf(address, command string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range b.calls {
		if c.address == address && c.command == command {
			return i
		}
	}
	return -1
}

// count returns how many calls contain fragment.
func (b *fakeBroker) count(fragment string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.calls {
		if strings.Contains(c.command, fragment) {
			n++
		}
	}
	return n
}

func (b *fakeBroker) ctl(sub string) string {
	return b.cmds.Ctl + " " + sub
}

type recordingListener struct {
	events []string
	runs   []FormationOutcome
}

func (r *recordingListener) PhaseStarted(p Phase) {
	r.events = append(r.events, "start "+p.String())
}

func (r *recordingListener) PhaseFinished(p Phase, _ time.Duration) {
	r.events = append(r.events, "finish "+p.String())
}

func (r *recordingListener) NodeResult(p Phase, n Node, ok bool) {
	r.events = append(r.events, fmt.Sprintf("%s %s %t", p, n.Label, ok))
}

func (r *recordingListener) RunFinished(o FormationOutcome, _ time.Duration) {
	r.runs = append(r.runs, o)
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig() Config {
	return Config{
		Commands:         executor.DefaultCommands(),
		PollInterval:     time.Millisecond,
		StartupTimeout:   20 * time.Millisecond,
		SeedPollInterval: time.Millisecond,
	}
}

func threeNodeTopology(t *testing.T) *Topology {
	t.Helper()
	topo, err := NewTopology(
		[]Node{{Label: "node1", Address: "10.0.0.1"}, {Label: "node2", Address: "10.0.0.2"}},
		[]Node{{Label: "node3", Address: "10.0.0.3"}},
	)
	if err != nil {
		t.Fatalf("failed to build topology: %v", err)
	}
	return topo
}
