package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"autoapply-backend/internal/applies"
	"autoapply-backend/internal/autoapply"
	"autoapply-backend/internal/runs"
	"autoapply-backend/internal/shared/config"
)

func newTestService() *autoapply.Service {
	return &autoapply.Service{
		Ledger: applies.NewMemoryLedger(),
		Runs:   runs.NewMemoryRepo(10),
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(config.Config{Env: "dev"}, newTestService())

	for _, path := range []string{"/health", "/metrics", "/api/jobs/status"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestRouterResetRequiresAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(config.Config{Env: "dev", AdminToken: "secret"}, newTestService())

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/jobs/reset", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/reset", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
