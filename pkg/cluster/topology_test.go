package cluster

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meftunca/rmqcluster/pkg/types"
)

func TestNewTopology(t *testing.T) {
	topo := threeNodeTopology(t)

	assert.Equal(t, 3, topo.Len())
	assert.Equal(t, "node1", topo.Seed().Label)
	assert.Equal(t, RoleDisc, topo.Seed().Role)

	nodes := topo.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"node1", "node2", "node3"}, labels(nodes))
	assert.Equal(t, RoleRam, nodes[2].Role)

	assert.Equal(t, []string{"node2", "node3"}, labels(topo.Joiners()))
	assert.Equal(t, "rabbit@node1 rabbit@node2", topo.JoinTargets())
	assert.Len(t, topo.DiscNodes(), 2)
	assert.Len(t, topo.RamNodes(), 1)
}

func TestTopology_SeedIsDeterministic(t *testing.T) {
	disc := []Node{{Label: "b", Address: "h2"}, {Label: "a", Address: "h1"}}
	for i := 0; i < 5; i++ {
		topo, err := NewTopology(disc, []Node{{Label: "c", Address: "h3"}})
		require.NoError(t, err)
		assert.Equal(t, "b", topo.Seed().Label, "seed follows configuration order, not sort order")
	}
}

func TestTopology_Immutable(t *testing.T) {
	disc := []Node{{Label: "node1", Address: "h1"}}
	topo, err := NewTopology(disc, nil)
	require.NoError(t, err)

	disc[0].Label = "changed"
	topo.Nodes()[0].Label = "changed"
	topo.DiscNodes()[0].Label = "changed"

	assert.Equal(t, "node1", topo.Seed().Label)
}

func TestNewTopology_Invalid(t *testing.T) {
	tests := []struct {
		name string
		disc []Node
		ram  []Node
	}{
		{"no disc nodes", nil, []Node{{Label: "r", Address: "h"}}},
		{"missing label", []Node{{Address: "h"}}, nil},
		{"missing address", []Node{{Label: "d"}}, nil},
		{"duplicate label", []Node{{Label: "d", Address: "h1"}}, []Node{{Label: "d", Address: "h2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTopology(tt.disc, tt.ram)
			require.Error(t, err)

			var ce *types.ClusterError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, types.ErrCodeInvalidTopology, ce.Code)
		})
	}
}

func TestNode_NameUsesLabel(t *testing.T) {
	n := Node{Label: "host-1", Address: "192.168.1.10"}
	assert.Equal(t, "rabbit@host-1", n.Name())
}

func TestOutcome_JSON(t *testing.T) {
	in := FormationOutcome{
		FailedNodes:  []Node{{Label: "node2", Address: "10.0.0.2", Role: RoleDisc}},
		PhaseReached: PhaseJoin,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"failed_nodes":[{"label":"node2","address":"10.0.0.2","role":"disc"}],"phase_reached":"join"}`, string(data))

	var out FormationOutcome
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
