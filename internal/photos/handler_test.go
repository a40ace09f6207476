package photos_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/cvs"
	"vitaeforge/internal/editor"
	"vitaeforge/internal/photos"
	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/storage/object/local"
)

const (
	guestID = "photo-tester"
	ownerID = "guest:" + guestID
	baseURL = "http://api.test"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func setup(t *testing.T) (*gin.Engine, *editor.Manager, cvs.CV) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := cvs.NewService(cvs.NewMemoryRepo())
	cv, err := svc.Create(context.Background(), ownerID, "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m := editor.NewManager(svc, editor.Config{})
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(middleware.Auth(middleware.AuthConfig{Env: "dev"}))
	photos.NewHandler(local.New(t.TempDir()), m, baseURL).RegisterRoutes(router.Group("/api/v1"))
	return router, m, cv
}

func uploadRequest(t *testing.T, cvID, name string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cvs/"+cvID+"/photo", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Guest-Id", guestID)
	return req
}

func TestUploadSetsPhotoURLAndServesIt(t *testing.T) {
	router, m, cv := setup(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, cv.ID, "me.png", pngHeader))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", resp.Code, resp.Body.String())
	}

	content, err := m.Content(context.Background(), ownerID, cv.ID)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	photoURL := content.Personal.PhotoURL
	if !strings.HasPrefix(photoURL, baseURL+"/api/v1/photos/") || !strings.HasSuffix(photoURL, ".png") {
		t.Fatalf("unexpected photoUrl %q", photoURL)
	}

	getReq := httptest.NewRequest(http.MethodGet, strings.TrimPrefix(photoURL, baseURL), nil)
	getResp := httptest.NewRecorder()
	router.ServeHTTP(getResp, getReq)
	if getResp.Code != http.StatusOK {
		t.Fatalf("download status %d", getResp.Code)
	}
	if !bytes.Equal(getResp.Body.Bytes(), pngHeader) {
		t.Fatalf("downloaded bytes differ")
	}
	if ct := getResp.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	router, _, cv := setup(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, cv.ID, "notes.txt", []byte("plain text")))
	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.Code)
	}
}

func TestUploadUnknownCV(t *testing.T) {
	router, _, _ := setup(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "00000000-0000-0000-0000-000000000000", "me.png", pngHeader))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDownloadMissing(t *testing.T) {
	router, _, _ := setup(t)

	for _, path := range []string{"/api/v1/photos/nope/none.png", "/api/v1/photos/../etc/passwd"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.Code)
		}
	}
}
