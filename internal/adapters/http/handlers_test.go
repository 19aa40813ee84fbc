package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jobrunner/geotrans/internal/adapters/registry"
	"github.com/jobrunner/geotrans/internal/application"
	"github.com/jobrunner/geotrans/internal/config"
	"github.com/jobrunner/geotrans/internal/domain"
)

// mockBatch implements BatchTrigger for testing.
type mockBatch struct {
	summary domain.BatchSummary
	err     error
	calls   int
}

func (m *mockBatch) TriggerRun(_ context.Context) (domain.BatchSummary, error) {
	m.calls++
	return m.summary, m.err
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg, err := registry.New(registry.Options{ChainCacheSize: 8}, nil, logger)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	return NewServer(
		config.ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		application.NewEngine(reg, nil, logger),
		application.NewHealthService(reg, nil),
		opts,
		logger,
	)
}

func serve(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decode(t, rr)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want %q", resp["status"], "ok")
	}
	if resp["ready"] != true {
		t.Errorf("ready = %v, want true", resp["ready"])
	}
	if n, _ := resp["crs_registered"].(float64); n < 10 {
		t.Errorf("crs_registered = %v, want at least 10", resp["crs_registered"])
	}
}

func TestHandleHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			rr := serve(srv, http.MethodGet, path)
			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
			}
			if resp := decode(t, rr); resp["status"] != "ok" {
				t.Errorf("status = %v, want %q", resp["status"], "ok")
			}
		})
	}
}

func TestHandleListCRS(t *testing.T) {
	srv := newTestServer(t, Options{})

	all := decode(t, serve(srv, http.MethodGet, "/api/v1/crs"))
	local := decode(t, serve(srv, http.MethodGet, "/api/v1/crs?bbox=9,50,9.1,50.1"))

	allCount, _ := all["count"].(float64)
	localCount, _ := local["count"].(float64)
	if localCount == 0 || localCount >= allCount {
		t.Errorf("bbox count = %v, want between 0 and %v", localCount, allCount)
	}

	rr := serve(srv, http.MethodGet, "/api/v1/crs?bbox=abc")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid bbox status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleListCRSAt(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, http.MethodGet, "/api/v1/crs?at=9,50")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"EPSG:31467"`) {
		t.Errorf("at=9,50 response misses EPSG:31467: %s", body)
	}
	if strings.Contains(body, `"EPSG:31466"`) {
		t.Errorf("at=9,50 response lists EPSG:31466: %s", body)
	}

	tests := []struct {
		name string
		url  string
	}{
		{"malformed", "/api/v1/crs?at=abc"},
		{"out of range", "/api/v1/crs?at=9,95"},
		{"with bbox", "/api/v1/crs?at=9,50&bbox=9,50,9.1,50.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(srv, http.MethodGet, tt.url)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleGetCRS(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name     string
		url      string
		wantCode int
		wantType string
	}{
		{"projected", "/api/v1/crs/EPSG:25832", http.StatusOK, "projected"},
		{"geographic", "/api/v1/crs/EPSG:4326", http.StatusOK, "geographic"},
		{"escaped url code", "/api/v1/crs/" + "http:%2F%2Fwww.opengis.net%2Fdef%2Fcrs%2FEPSG%2F0%2F4258", http.StatusOK, "geographic"},
		{"unknown", "/api/v1/crs/EPSG:999999", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(srv, http.MethodGet, tt.url)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantType == "" {
				return
			}
			var info domain.CRSInfo
			if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if info.Type != tt.wantType {
				t.Errorf("type = %q, want %q", info.Type, tt.wantType)
			}
		})
	}
}

func TestHandleValidDomain(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, http.MethodGet, "/api/v1/crs/EPSG:32632/domain")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decode(t, rr)
	box, _ := resp["domain"].(map[string]interface{})
	minX, _ := box["min_x"].(float64)
	maxX, _ := box["max_x"].(float64)
	if minX < 166000 || minX > 166050 {
		t.Errorf("min_x = %v, want about 166021", minX)
	}
	if maxX < 833950 || maxX > 834000 {
		t.Errorf("max_x = %v, want about 833979", maxX)
	}

	rr = serve(srv, http.MethodGet, "/api/v1/crs/EPSG:1/domain")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleBatchRun(t *testing.T) {
	tests := []struct {
		name     string
		batch    *mockBatch
		wantCode int
	}{
		{"success", &mockBatch{summary: domain.BatchSummary{Files: 2, Points: 10}}, http.StatusOK},
		{"rate limited", &mockBatch{err: application.ErrRateLimited}, http.StatusTooManyRequests},
		{"failure", &mockBatch{err: errors.New("boom")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{Batch: tt.batch})
			rr := serve(srv, http.MethodPost, "/api/v1/batch/run")
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.batch.calls != 1 {
				t.Errorf("TriggerRun() calls = %d, want 1", tt.batch.calls)
			}
			if tt.wantCode == http.StatusTooManyRequests && rr.Header().Get("Retry-After") != "30" {
				t.Errorf("Retry-After = %q, want %q", rr.Header().Get("Retry-After"), "30")
			}
		})
	}
}

func TestBatchRouteDisabled(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, http.MethodPost, "/api/v1/batch/run")
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 404 or 405", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	var instrumented int
	srv := newTestServer(t, Options{
		MetricsPath: "/custom-metrics",
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
		Middleware: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				instrumented++
				next.ServeHTTP(w, r)
			})
		},
	})

	rr := serve(srv, http.MethodGet, "/custom-metrics")
	if rr.Code != http.StatusOK || rr.Body.String() != "metrics" {
		t.Errorf("metrics = %d %q, want 200 %q", rr.Code, rr.Body.String(), "metrics")
	}
	if instrumented != 1 {
		t.Errorf("middleware calls = %d, want 1", instrumented)
	}
}

func TestHandleOpenAPI(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := serve(srv, http.MethodGet, "/openapi.json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode(t, rr)
	paths, _ := resp["paths"].(map[string]interface{})
	if _, ok := paths["/api/v1/crs/{code}/domain"]; !ok {
		t.Errorf("paths = %v, want domain route", paths)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(t, Options{})
	handler := srv.recoveryMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}
