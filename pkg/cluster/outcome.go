package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/meftunca/rmqcluster/pkg/types"
)

// Phase is a step of the formation algorithm.
type Phase int

const (
	PhaseBringUp Phase = iota
	PhaseReset
	PhaseSeed
	PhaseJoin
	PhaseComplete
)

var phaseNames = [...]string{"bring-up", "reset", "seed", "join", "complete"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range phaseNames {
		if name == s {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", s)
}

// FormationOutcome is the single result of a formation run. A failed run
// carries the phase it stopped in and the nodes that caused the abort.
type FormationOutcome struct {
	Success      bool   `json:"success"`
	FailedNodes  []Node `json:"failed_nodes,omitempty"`
	PhaseReached Phase  `json:"phase_reached"`
}

// Err converts a failed outcome into a FormationFailed error naming the phase
// and the offending nodes. It returns nil for a successful outcome.
func (o FormationOutcome) Err() error {
	if o.Success {
		return nil
	}

	return types.ErrFormationFailed(o.PhaseReached.String(), labels(o.FailedNodes))
}

func failed(phase Phase, nodes ...Node) FormationOutcome {
	return FormationOutcome{
		FailedNodes:  nodes,
		PhaseReached: phase,
	}
}
