package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/okriva/opgate/internal/op"
	"github.com/okriva/opgate/internal/testutil/testlog"
)

func newTestPlane(t *testing.T) *Plane {
	t.Helper()
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	router := op.NewRouter()
	for _, name := range []string{"login", "echo"} {
		router.Register(name, func(ctx context.Context, req *op.Request) (op.Result, error) {
			return op.Ok(nil), nil
		})
	}
	return New("opgate-test", router, nil)
}

func get(t *testing.T, p *Plane, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	p.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	p := newTestPlane(t)

	for _, path := range []string{"/health", "/ready"} {
		rec := get(t, p, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "opgate-test") {
			t.Fatalf("%s: missing service name: %s", path, rec.Body.String())
		}
	}
}

func TestOperationsListsRegisteredNames(t *testing.T) {
	p := newTestPlane(t)

	rec := get(t, p, "/operations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Operations []string `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Operations) != 2 || body.Operations[0] != "echo" || body.Operations[1] != "login" {
		t.Fatalf("unexpected operations: %v", body.Operations)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	p := newTestPlane(t)

	rec := get(t, p, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "opgate_") {
		t.Fatalf("metrics body missing opgate namespace")
	}
}

func TestTelemetryRecordsAdminRequests(t *testing.T) {
	p := newTestPlane(t)

	// A served request must show up as a labeled series on the next scrape.
	if rec := get(t, p, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
	rec := get(t, p, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "opgate_http_requests_total") {
		t.Fatalf("metrics body missing http request counter")
	}
	if !strings.Contains(body, `path="/health"`) {
		t.Fatalf("metrics body missing /health series:\n%s", body)
	}
}
