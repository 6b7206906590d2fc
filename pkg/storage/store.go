// Package storage keeps the history of formation runs.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/executor"
)

// RunRecord is one formation run as it is kept in history.
type RunRecord struct {
	ID         uuid.UUID                `json:"id"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Topology   []cluster.Node           `json:"topology"`
	Outcome    cluster.FormationOutcome `json:"outcome"`
	Transcript []executor.CommandRecord `json:"transcript,omitempty"`
}

// NewRunRecord starts a record for a run against topo.
func NewRunRecord(topo *cluster.Topology) *RunRecord {
	return &RunRecord{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Topology:  topo.Nodes(),
	}
}

// Finish stores the outcome and the commands of the run.
func (r *RunRecord) Finish(outcome cluster.FormationOutcome, transcript []executor.CommandRecord) {
	r.FinishedAt = time.Now().UTC()
	r.Outcome = outcome
	r.Transcript = transcript
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns a copy of r without the transcript.
func (r *RunRecord) Summary() *RunRecord {
	s := *r
	s.Transcript = nil
	return &s
}

// normalize drops the location decoders attach to times, so a record reads
// back exactly as it was written.
func (r *RunRecord) normalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	for i := range r.Transcript {
		r.Transcript[i].StartedAt = r.Transcript[i].StartedAt.UTC()
	}
}

// RunStore persists run records.
type RunStore interface {
	SaveRun(ctx context.Context, rec *RunRecord) error

	// GetRun returns the full record, transcript included. A missing run is
	// reported with a RUN_NOT_FOUND error.
	GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error)

	// ListRuns returns up to limit run summaries, newest first. A limit of
	// zero or less means all of them.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
