package cluster

import (
	"encoding/json"
	"fmt"
)

// NodeNamePrefix is the Erlang node-name prefix every broker registers under.
const NodeNamePrefix = "rabbit@"

// Role is the way a node keeps shared cluster metadata.
type Role int

const (
	// RoleDisc nodes persist cluster metadata to disk.
	RoleDisc Role = iota
	// RoleRam nodes keep cluster metadata in memory only, sourced from disc nodes.
	RoleRam
)

func (r Role) String() string {
	switch r {
	case RoleDisc:
		return "disc"
	case RoleRam:
		return "ram"
	default:
		return "unknown"
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "disc":
		*r = RoleDisc
	case "ram":
		*r = RoleRam
	default:
		return fmt.Errorf("unknown node role %q", s)
	}
	return nil
}

// Node is one broker of the cluster. Label is the logical identity the broker
// registers under; Address is only where commands are sent.
type Node struct {
	Label   string `json:"label"`
	Address string `json:"address"`
	Role    Role   `json:"role"`
}

// Name returns the broker identity of the node. It is always derived from the
// label and never from the address, so the host must be configured to register
// as rabbit@<label>.
func (n Node) Name() string {
	return NodeNamePrefix + n.Label
}

func (n Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Label, n.Address)
}

// NodeStatus is a single health observation. It is recomputed on every poll.
type NodeStatus struct {
	Raw     string
	Running bool
}
