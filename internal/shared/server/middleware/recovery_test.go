package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/telemetry"
)

func TestRecoveryWritesEnvelopeAndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.SetOutput(os.Stdout)

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/cvs/:id", func(c *gin.Context) {
		c.Set(CVIDKey, c.Param("id"))
		panic("boom")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/cvs/cv-9", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil || env.Error.Code != "internal_error" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		if entry["msg"] == "panic.recovered" {
			found = entry["cv_id"] == "cv-9" && entry["panic"] == "boom"
		}
	}
	if !found {
		t.Fatalf("expected panic.recovered log with cv_id, got %s", buf.String())
	}
}
