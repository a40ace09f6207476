package editor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/cvs"
	"vitaeforge/internal/shared/server/middleware"
)

const guestHeader = "abc"

func newEditorRouter(t *testing.T, r Refiner) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := newFakeClock()
	svc := cvs.NewService(cvs.NewMemoryRepo())
	svc.Now = clock.Now
	cv, err := svc.Create(context.Background(), "guest:"+guestHeader, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store := &countingStore{svc: svc}
	m := NewManager(store, Config{Clock: clock})

	router := gin.New()
	router.Use(middleware.Auth(middleware.AuthConfig{Env: "dev"}))
	NewHandler(m, r).RegisterRoutes(router.Group("/api/v1"))
	return router, &fixture{clock: clock, store: store, manager: m, cv: cv}
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Guest-Id", guestHeader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeEditor(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, resp.Body.String())
	}
	return out
}

func TestEditorOpenAndEditFields(t *testing.T) {
	router, f := newEditorRouter(t, &stubRefiner{out: "x"})
	base := "/api/v1/cvs/" + f.cv.ID + "/editor"

	resp := do(t, router, http.MethodPost, base, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("open status %d body=%s", resp.Code, resp.Body.String())
	}
	out := decodeEditor(t, resp)
	if out["cvId"] != f.cv.ID {
		t.Fatalf("cvId = %v", out["cvId"])
	}

	resp = do(t, router, http.MethodPatch, base+"/fields", `{"fields":{"personal.email":"nope","summary":"New"}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("fields status %d body=%s", resp.Code, resp.Body.String())
	}
	out = decodeEditor(t, resp)
	errs, _ := out["errors"].([]any)
	if len(errs) != 1 {
		t.Fatalf("expected one field error, got %v", out["errors"])
	}
	status, _ := out["status"].(map[string]any)
	if status["state"] != "dirty" {
		t.Fatalf("state = %v, want dirty", status["state"])
	}

	resp = do(t, router, http.MethodPost, base+"/flush", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("flush status %d body=%s", resp.Code, resp.Body.String())
	}
	status, _ = decodeEditor(t, resp)["status"].(map[string]any)
	if status["state"] != "clean" {
		t.Fatalf("state after flush = %v", status["state"])
	}
	if got := f.stored(t).Content.Summary; got != "New" {
		t.Fatalf("stored summary = %q", got)
	}
}

func TestEditorEntriesLifecycle(t *testing.T) {
	router, f := newEditorRouter(t, &stubRefiner{})
	base := "/api/v1/cvs/" + f.cv.ID + "/editor"

	resp := do(t, router, http.MethodPost, base+"/entries/skills", "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("add status %d body=%s", resp.Code, resp.Body.String())
	}
	entryID, _ := decodeEditor(t, resp)["entryId"].(string)
	if entryID == "" {
		t.Fatalf("missing entryId")
	}

	resp = do(t, router, http.MethodPost, base+"/entries/skills/"+entryID+"/move", `{"index":0}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("move status %d body=%s", resp.Code, resp.Body.String())
	}
	content, _ := decodeEditor(t, resp)["content"].(map[string]any)
	skills, _ := content["skills"].([]any)
	first, _ := skills[0].(map[string]any)
	if first["id"] != entryID {
		t.Fatalf("moved entry not first: %v", skills)
	}

	if resp = do(t, router, http.MethodPost, base+"/entries/skills/"+entryID+"/move", `{}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("move without index status %d", resp.Code)
	}
	if resp = do(t, router, http.MethodDelete, base+"/entries/skills/"+entryID, ""); resp.Code != http.StatusOK {
		t.Fatalf("remove status %d", resp.Code)
	}
	if resp = do(t, router, http.MethodDelete, base+"/entries/skills/"+entryID, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("second remove status %d", resp.Code)
	}
	if resp = do(t, router, http.MethodPost, base+"/entries/projects", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown section status %d", resp.Code)
	}
}

func TestEditorRefineAndErrors(t *testing.T) {
	refiner := &stubRefiner{out: "Sharper summary."}
	router, f := newEditorRouter(t, refiner)
	base := "/api/v1/cvs/" + f.cv.ID + "/editor"

	resp := do(t, router, http.MethodPost, base+"/refine", `{"field":"summary"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("refine status %d body=%s", resp.Code, resp.Body.String())
	}
	if got := decodeEditor(t, resp)["text"]; got != "Sharper summary." {
		t.Fatalf("text = %v", got)
	}

	if resp = do(t, router, http.MethodPost, base+"/refine", `{"field":"personal.email"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("non text refine status %d", resp.Code)
	}
	if resp = do(t, router, http.MethodPost, "/api/v1/cvs/"+"00000000-0000-0000-0000-000000000000/editor", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown cv status %d", resp.Code)
	}
}

func TestEditorViewAndClose(t *testing.T) {
	router, f := newEditorRouter(t, &stubRefiner{})
	base := "/api/v1/cvs/" + f.cv.ID + "/editor"

	if resp := do(t, router, http.MethodGet, base, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("view before open status %d", resp.Code)
	}
	do(t, router, http.MethodPut, base+"/content", `{"personal":{"fullName":"Ana","jobTitle":"Dev"},"summary":"s"}`)
	if resp := do(t, router, http.MethodGet, base, ""); resp.Code != http.StatusOK {
		t.Fatalf("view status %d", resp.Code)
	}
	if resp := do(t, router, http.MethodPut, base+"/content", `{"personal":{"email":"bad"}}`); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid content status %d body=%s", resp.Code, resp.Body.String())
	}
	if resp := do(t, router, http.MethodDelete, base, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("close status %d", resp.Code)
	}
	f.clock.Advance(time.Minute)
	if got := f.stored(t).Content.Personal.FullName; got != "Ana" {
		t.Fatalf("close did not flush content, fullName = %q", got)
	}
}
