package executor

import (
	"context"
	"strings"
	"sync"
	"time"
)

const redacted = "******"

// CommandObserver is notified of every command a Recorder forwards.
type CommandObserver interface {
	ObserveCommand(rec CommandRecord)
}

// Recorder wraps an Executor and keeps a transcript of every command it
// runs.
type Recorder struct {
	next      Executor
	observers []CommandObserver

	mu      sync.Mutex
	records []CommandRecord
	secrets []string
}

// NewRecorder wraps next.
func NewRecorder(next Executor, observers ...CommandObserver) *Recorder {
	return &Recorder{
		next:      next,
		observers: observers,
	}
}

// Execute implements Executor.
func (r *Recorder) Execute(ctx context.Context, address, commandLine string) Result {
	started := time.Now()
	res := r.next.Execute(ctx, address, commandLine)

	rec := CommandRecord{
		Address:   address,
		Command:   commandLine,
		Succeeded: res.Succeeded,
		Output:    res.Output,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	r.mu.Lock()
	rec = r.scrub(rec)
	r.records = append(r.records, rec)
	r.mu.Unlock()

	for _, o := range r.observers {
		o.ObserveCommand(rec)
	}

	return res
}

// Redact masks every occurrence of secrets in recorded commands, outputs and
// errors. The command actually executed is left untouched.
func (r *Recorder) Redact(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
}

func (r *Recorder) scrub(rec CommandRecord) CommandRecord {
	for _, s := range r.secrets {
		rec.Command = strings.ReplaceAll(rec.Command, s, redacted)
		rec.Output = strings.ReplaceAll(rec.Output, s, redacted)
		rec.Error = strings.ReplaceAll(rec.Error, s, redacted)
	}
	return rec
}

// Release forwards to the wrapped executor when it holds connections.
func (r *Recorder) Release(address string) {
	if rel, ok := r.next.(Releaser); ok {
		rel.Release(address)
	}
}

// Transcript returns a copy of the commands recorded so far.
func (r *Recorder) Transcript() []CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CommandRecord, len(r.records))
	copy(out, r.records)
	return out
}
