package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/crudkit/pkg/observability/metrics"
	"github.com/nimburion/crudkit/pkg/server/router"
	"github.com/nimburion/crudkit/pkg/server/router/nethttp"
)

func TestMetrics_RecordsRouteLabel(t *testing.T) {
	reg := metrics.NewRegistry()
	r := nethttp.NewRouter()
	r.Use(Metrics(reg.HTTP()))
	r.GET("/notes/:id", func(c router.Context) error {
		c.Set(router.RouteKey, "/notes/:id")
		return c.JSON(http.StatusCreated, map[string]string{"id": c.Param("id")})
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/notes/"+id, nil))
	}

	w := httptest.NewRecorder()
	reg.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	want := `crudkit_http_requests_total{method="GET",route="/notes/:id",status="201"} 3`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %s in scrape output", want)
	}
	if strings.Contains(body, `route="/notes/1"`) {
		t.Error("raw paths must not be used as labels")
	}
}

func TestMetrics_HandlerErrorCountsAs500(t *testing.T) {
	reg := metrics.NewRegistry()
	h := Metrics(reg.HTTP())(func(router.Context) error { return http.ErrHandlerTimeout })

	r := nethttp.NewRouter()
	r.GET("/fails", func(c router.Context) error {
		c.Set(router.RouteKey, "/fails")
		return h(c)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fails", nil))

	w := httptest.NewRecorder()
	reg.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `route="/fails",status="500"`) {
		t.Fatal("expected a 500 sample for /fails")
	}
}
