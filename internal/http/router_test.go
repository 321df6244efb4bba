package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blogward/blogward/internal/auth"
	"github.com/blogward/blogward/internal/config"
	httpx "github.com/blogward/blogward/internal/http"
	"github.com/blogward/blogward/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// The scrape endpoint must expose the service's own registry: a request that
// went through the prom middleware has to show up under the blogward
// namespace.
func TestMetricsEndpointServesServiceRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	r := httpx.NewRouter(httpx.RouterDeps{
		Cfg:      config.Config{Env: "test"},
		Log:      observability.NewLogger("test"),
		Prom:     prom,
		Registry: reg,
		JWT:      auth.NewManager("test-secret", time.Hour, 10*time.Minute),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: got status %d, want 200", w.Code)
	}

	scrape := httptest.NewRecorder()
	r.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if scrape.Code != http.StatusOK {
		t.Fatalf("metrics: got status %d, want 200", scrape.Code)
	}

	body := scrape.Body.String()
	if !strings.Contains(body, "blogward_http_requests_total") {
		t.Fatalf("scrape output is missing the service request counter:\n%s", body)
	}
	if !strings.Contains(body, `route="/healthz"`) {
		t.Fatalf("request counter lacks the routed label:\n%s", body)
	}
}
