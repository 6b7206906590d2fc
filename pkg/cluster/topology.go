package cluster

import (
	"fmt"
	"strings"

	"github.com/meftunca/rmqcluster/pkg/types"
)

// Topology is the ordered node set of a cluster: disc nodes first, then ram
// nodes. It is immutable once built.
type Topology struct {
	disc []Node
	ram  []Node
}

// NewTopology validates and builds a topology. At least one disc node is
// required, labels must be unique and every node needs an address. Roles are
// assigned from the list a node appears in.
func NewTopology(disc, ram []Node) (*Topology, error) {
	if len(disc) == 0 {
		return nil, types.ErrInvalidTopology("at least one disc node is required")
	}

	t := &Topology{
		disc: make([]Node, 0, len(disc)),
		ram:  make([]Node, 0, len(ram)),
	}

	seen := make(map[string]bool, len(disc)+len(ram))
	check := func(n Node) error {
		if n.Label == "" {
			return types.ErrInvalidTopology(fmt.Sprintf("node at %q has no label", n.Address))
		}
		if n.Address == "" {
			return types.ErrInvalidTopology(fmt.Sprintf("node %q has no address", n.Label))
		}
		if seen[n.Label] {
			return types.ErrInvalidTopology(fmt.Sprintf("duplicate node label %q", n.Label))
		}
		seen[n.Label] = true
		return nil
	}

	for _, n := range disc {
		if err := check(n); err != nil {
			return nil, err
		}
		n.Role = RoleDisc
		t.disc = append(t.disc, n)
	}
	for _, n := range ram {
		if err := check(n); err != nil {
			return nil, err
		}
		n.Role = RoleRam
		t.ram = append(t.ram, n)
	}

	return t, nil
}

// Nodes returns every node, disc nodes first, in configuration order.
func (t *Topology) Nodes() []Node {
	out := make([]Node, 0, len(t.disc)+len(t.ram))
	out = append(out, t.disc...)
	return append(out, t.ram...)
}

// DiscNodes returns the disc nodes in order.
func (t *Topology) DiscNodes() []Node {
	return append([]Node(nil), t.disc...)
}

// RamNodes returns the ram nodes in order.
func (t *Topology) RamNodes() []Node {
	return append([]Node(nil), t.ram...)
}

// Seed is the first disc node. It is started alone and everyone else joins it.
func (t *Topology) Seed() Node {
	return t.disc[0]
}

// Joiners returns every node but the seed, in order.
func (t *Topology) Joiners() []Node {
	return t.Nodes()[1:]
}

// JoinTargets is the argument of the cluster command: the identity of every
// disc node, space separated. Ram nodes are never join targets.
func (t *Topology) JoinTargets() string {
	names := make([]string, len(t.disc))
	for i, n := range t.disc {
		names[i] = n.Name()
	}
	return strings.Join(names, " ")
}

// Len returns the number of nodes.
func (t *Topology) Len() int {
	return len(t.disc) + len(t.ram)
}
