package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robolearn/coursechat/internal/answer"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := newTestServer(&fakeEngine{result: &answer.Result{Answer: "ok"}})
	s.cfg.MetricsRegistry = reg
	s.cfg.MetricsGatherer = reg
	s.metrics = newServerMetrics(reg)
	return s, reg
}

func Test_New_DerivesGathererFromRegistry(t *testing.T) {
	t.Parallel()

	// Only the registerer side is configured; /metrics must still serve it.
	s, err := New(&fakeEngine{}, nil, nil, &Config{
		MetricsRegistry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Drive one instrumented request so the counter has a child to scrape.
	s.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /metrics: want 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "coursechat_http_requests_total") {
		t.Error("scrape output missing coursechat_http_requests_total")
	}
}

func Test_New_RejectsRegistererWithoutGatherer(t *testing.T) {
	t.Parallel()

	// A wrapped registerer cannot be gathered; without an explicit gatherer
	// /metrics would serve nothing, so construction must fail.
	wrapped := prometheus.WrapRegistererWithPrefix("test_", prometheus.NewRegistry())
	if _, err := New(&fakeEngine{}, nil, nil, &Config{MetricsRegistry: wrapped}); err == nil {
		t.Fatal("want error for registerer without gatherer")
	}
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	_, reg := newMetricsTestServer(t)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_ChatOutcomeCounted(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	// A successful chat request increments the ok counter.
	w := httptest.NewRecorder()
	s.handleChat(w, chatPost(`{"question":"count me"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("chat: want 200, got %d", w.Code)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "coursechat_chat_requests_total" {
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" && lp.GetValue() == "ok" {
						if m.GetCounter().GetValue() != 1 {
							t.Errorf("want counter=1, got %v", m.GetCounter().GetValue())
						}
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("coursechat_chat_requests_total{outcome=\"ok\"} not found in gathered metrics")
	}
}

func Test_Metrics_MiddlewareCountsByHandler(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	h := s.metrics.middleware("health", http.HandlerFunc(s.handleHealth))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() != "coursechat_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["handler"] == "health" && labels["code"] == "200" {
				if m.GetCounter().GetValue() != 2 {
					t.Errorf("want counter=2, got %v", m.GetCounter().GetValue())
				}
				return
			}
		}
	}
	t.Error("coursechat_http_requests_total{handler=\"health\"} not found in gathered metrics")
}
