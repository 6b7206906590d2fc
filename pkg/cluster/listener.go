package cluster

import "time"

// Listener observes a formation run. Calls are made synchronously from the
// orchestrator, so implementations must not block.
type Listener interface {
	PhaseStarted(phase Phase)
	PhaseFinished(phase Phase, elapsed time.Duration)
	NodeResult(phase Phase, node Node, ok bool)
	RunFinished(outcome FormationOutcome, elapsed time.Duration)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) PhaseStarted(Phase)                          {}
func (NopListener) PhaseFinished(Phase, time.Duration)          {}
func (NopListener) NodeResult(Phase, Node, bool)                {}
func (NopListener) RunFinished(FormationOutcome, time.Duration) {}

// Listeners fans events out to several listeners in order.
type Listeners []Listener

func (ls Listeners) PhaseStarted(p Phase) {
	for _, l := range ls {
		l.PhaseStarted(p)
	}
}

func (ls Listeners) PhaseFinished(p Phase, elapsed time.Duration) {
	for _, l := range ls {
		l.PhaseFinished(p, elapsed)
	}
}

func (ls Listeners) NodeResult(p Phase, n Node, ok bool) {
	for _, l := range ls {
		l.NodeResult(p, n, ok)
	}
}

func (ls Listeners) RunFinished(o FormationOutcome, elapsed time.Duration) {
	for _, l := range ls {
		l.RunFinished(o, elapsed)
	}
}
