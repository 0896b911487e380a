package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_CountsToolCalls(t *testing.T) {
	c := NewCollector()
	c.ToolInvoked("get_search_gene", "ok")
	c.ToolInvoked("get_search_gene", "ok")
	c.ToolInvoked("get_search_gene", "invalid_arguments")

	if got := testutil.ToFloat64(c.toolCalls.WithLabelValues("get_search_gene", "ok")); got != 2 {
		t.Errorf("expected 2 ok calls, got %v", got)
	}
	if got := testutil.ToFloat64(c.toolCalls.WithLabelValues("get_search_gene", "invalid_arguments")); got != 1 {
		t.Errorf("expected 1 failed call, got %v", got)
	}
}

func TestCollector_SpecLoadedKeepsOneTier(t *testing.T) {
	c := NewCollector()
	c.SpecLoaded("remote")
	c.SpecLoaded("embedded")

	if got := testutil.CollectAndCount(c.specSource); got != 1 {
		t.Errorf("expected a single origin series, got %d", got)
	}
	if got := testutil.ToFloat64(c.specSource.WithLabelValues("embedded")); got != 1 {
		t.Errorf("expected embedded=1, got %v", got)
	}
}

func TestCollector_BackendRequestLabels(t *testing.T) {
	c := NewCollector()
	c.BackendRequest("GET", 200, 10*time.Millisecond)
	c.BackendRequest("GET", 0, time.Second)

	if got := testutil.ToFloat64(c.backendRequests.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("expected one 200, got %v", got)
	}
	if got := testutil.ToFloat64(c.backendRequests.WithLabelValues("GET", "error")); got != 1 {
		t.Errorf("expected one transport error, got %v", got)
	}
}

func TestCollector_HandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.HookFailed("forbidden_query")
	c.ToolsRegistered(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`openapi_bridge_sanitization_hook_failures_total{hook="forbidden_query"} 1`,
		"openapi_bridge_tools_registered 3",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors must not panic with duplicate registration.
	a := NewCollector()
	b := NewCollector()
	a.CompileErrors(2)
	if got := testutil.ToFloat64(b.compileErrors); got != 0 {
		t.Errorf("expected independent counters, got %v", got)
	}
}
