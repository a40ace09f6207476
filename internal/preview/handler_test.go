package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/cvs"
)

type mapSource map[string]cvs.Content

func (m mapSource) Content(_ context.Context, _ string, id string) (cvs.Content, error) {
	c, ok := m[id]
	if !ok {
		return cvs.Content{}, cvs.ErrNotFound
	}
	return c, nil
}

func TestPreviewHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(mapSource{"cv-1": cvs.DefaultContent()}).RegisterRoutes(router.Group("/api/v1"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cvs/cv-1/preview?color=%23F87171&print=true", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type %q", ct)
	}
	body := resp.Body.String()
	assertContains(t, body, "--cv-primary: #F87171")
	assertContains(t, body, "window.print()")

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cvs/missing/preview", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("missing cv status %d", resp.Code)
	}
}
