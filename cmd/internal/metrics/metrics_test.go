package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// counterValue gathers the registry and returns the value of the counter
// named name whose labels include every pair in labels.
func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestNilMetrics_IsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.AuthzDecision("task.edit", true)
	m.EventAppended("task.created")
	m.EventAppendFailed("task.created")
	m.EventPublished()
	m.ObserveHTTP("GET", "/lists", 200, time.Millisecond)
	m.WSConnected()
	m.WSDisconnected()
	m.RateLimited("join")
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.AuthzDecision("task.edit", true)
	m.AuthzDecision("task.edit", false)
	m.AuthzDecision("task.edit", false)
	m.EventAppendFailed("task.created")

	if got := counterValue(t, m, "tasklist_authz_decisions_total", map[string]string{"action": "task.edit", "outcome": "denied"}); got != 2 {
		t.Fatalf("denied=%v want=2", got)
	}
	if got := counterValue(t, m, "tasklist_events_append_failures_total", map[string]string{"type": "task.created"}); got != 1 {
		t.Fatalf("failed=%v want=1", got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.EventAppended("list.created")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `tasklist_events_appended_total{type="list.created"} 1`) {
		t.Fatalf("missing counter in output:\n%s", body)
	}
}
