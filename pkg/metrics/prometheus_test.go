package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/executor"
)

func TestFormationMetrics_Listener(t *testing.T) {
	m := NewFormationMetrics("test")
	node := cluster.Node{Label: "node2", Address: "10.0.0.2"}

	m.PhaseStarted(cluster.PhaseBringUp)
	m.NodeResult(cluster.PhaseBringUp, node, false)
	m.NodeResult(cluster.PhaseBringUp, node, true)
	m.PhaseFinished(cluster.PhaseBringUp, 2*time.Second)
	m.RunFinished(cluster.FormationOutcome{Success: true, PhaseReached: cluster.PhaseComplete}, time.Minute)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeResults.WithLabelValues("bring-up", "node2", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeResults.WithLabelValues("bring-up", "node2", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("success", "complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastRunSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(m.phaseDuration))

	m.RunFinished(cluster.FormationOutcome{PhaseReached: cluster.PhaseJoin}, time.Minute)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastRunSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failure", "join")))
}

func TestFormationMetrics_Commands(t *testing.T) {
	m := NewFormationMetrics("test")

	m.ObserveCommand(executor.CommandRecord{Command: "/usr/sbin/rabbitmqctl status", Succeeded: true, Duration: time.Second})
	m.ObserveCommand(executor.CommandRecord{Command: "/usr/sbin/rabbitmqctl status", Duration: time.Second})
	m.ObserveCommand(executor.CommandRecord{Command: "/usr/sbin/rabbitmqctl force_reset", Succeeded: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("rabbitmqctl status", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("rabbitmqctl status", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("rabbitmqctl force_reset", "success")))
}

func TestFormationMetrics_HTTP(t *testing.T) {
	m := NewFormationMetrics("test")
	m.RecordStorageOperation("save_run", true, time.Millisecond)
	m.RecordError("STORAGE_ERROR", "runner")

	r := mux.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.HandleFunc("/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.GetHTTPHandler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/runs/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{"test_requests_total", "test_storage_operations_total", "test_errors_total", "go_goroutines"} {
		assert.True(t, strings.Contains(body, name), name)
	}
}
