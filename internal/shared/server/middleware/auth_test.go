package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newAdminRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/jobs/reset", AdminToken(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"principal": PrincipalFromContext(c)})
	})
	router.OPTIONS("/api/jobs/reset", AdminToken(token))
	return router
}

func TestAdminTokenAllowsOptionsWithoutIdentity(t *testing.T) {
	router := newAdminRouter("secret")

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs/reset", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAdminTokenRejectsMissingAndWrongToken(t *testing.T) {
	router := newAdminRouter("secret")

	for _, header := range []string{"", "Bearer", "Bearer nope", "Basic secret"} {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/reset", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.Code)
		}
	}
}

func TestAdminTokenAcceptsValidToken(t *testing.T) {
	router := newAdminRouter("secret")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/reset", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAdminTokenDisabledWhenEmpty(t *testing.T) {
	router := newAdminRouter("")

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/reset", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
