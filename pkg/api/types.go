package api

import (
	"time"

	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Health endpoint response
type HealthResponse struct {
	Status  string            `json:"status"`
	Version map[string]string `json:"version"`
	Uptime  string            `json:"uptime"`
	Storage string            `json:"storage"`
}

// Topology endpoint response
type TopologyResponse struct {
	Seed        cluster.Node   `json:"seed"`
	DiscNodes   []cluster.Node `json:"disc_nodes"`
	RamNodes    []cluster.Node `json:"ram_nodes"`
	JoinTargets string         `json:"join_targets"`
}

// Run list entry
type RunSummary struct {
	ID         string                   `json:"id"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	DurationMs int64                    `json:"duration_ms"`
	Outcome    cluster.FormationOutcome `json:"outcome"`
	Nodes      int                      `json:"nodes"`
}

func newRunSummary(r *storage.RunRecord) RunSummary {
	return RunSummary{
		ID:         r.ID.String(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMs: r.Duration().Milliseconds(),
		Outcome:    r.Outcome,
		Nodes:      len(r.Topology),
	}
}
