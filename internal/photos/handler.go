// Package photos stores profile photos and links them to a CV.
package photos

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/editor"
	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/server/respond"
	"vitaeforge/internal/shared/storage/object"
	"vitaeforge/internal/shared/telemetry"
)

const (
	maxPhotoSize = 5 << 20 // 5MB
	routePrefix  = "/photos/"
	photoField   = "personal.photoUrl"
)

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// Handler serves photo uploads and downloads.
type Handler struct {
	Store   object.Store
	Editor  *editor.Manager
	BaseURL string
}

// NewHandler builds a photo handler. baseURL is the public origin of the API.
func NewHandler(store object.Store, m *editor.Manager, baseURL string) *Handler {
	return &Handler{Store: store, Editor: m, BaseURL: strings.TrimRight(baseURL, "/")}
}

// RegisterRoutes mounts the upload route on the authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cvs/:id/photo", h.upload)
	rg.GET(routePrefix+"*key", h.download)
}

type uploadResponse struct {
	CVID        string `json:"cvId"`
	PhotoURL    string `json:"photoUrl"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

func (h *Handler) upload(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := middleware.UserIDFromContext(c)
	cvID := c.Param("id")
	c.Set(middleware.CVIDKey, cvID)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoSize)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "photo exceeds 5MB", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	head, contentType, err := object.Sniff(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	if _, ok := allowedTypes[contentType]; !ok {
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "photo must be a JPEG, PNG, WebP or GIF image", map[string]any{"contentType": contentType})
		return
	}

	// Opening the session checks that the CV exists and belongs to the caller.
	s, err := h.Editor.Open(ctx, ownerID, cvID, middleware.TokenExpiryFromContext(c))
	if err != nil {
		editor.WriteError(c, err)
		return
	}

	name := fileHeader.Filename
	if _, err := object.CleanFileName(name); err != nil {
		name = "photo"
	}
	obj, err := h.Store.Save(ctx, ownerID, name, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		telemetry.Error("photos.save_failed", map[string]any{
			"err":        err.Error(),
			"cv_id":      cvID,
			"user_id":    ownerID,
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store photo", nil)
		return
	}

	photoURL := h.BaseURL + "/api/v1" + routePrefix + obj.Key
	fieldErrs, err := s.SetFields(map[string]string{photoField: photoURL})
	if err != nil {
		editor.WriteError(c, err)
		return
	}
	if len(fieldErrs) > 0 {
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "photo url rejected", fieldErrs)
		return
	}
	c.Set(middleware.SaveStatusKey, s.Status().State.String())

	telemetry.Info("photos.uploaded", map[string]any{
		"cv_id":        cvID,
		"user_id":      ownerID,
		"size":         obj.Size,
		"content_type": obj.ContentType,
	})
	respond.Created(c, uploadResponse{
		CVID:        cvID,
		PhotoURL:    photoURL,
		Key:         obj.Key,
		Size:        obj.Size,
		ContentType: obj.ContentType,
	})
}

func (h *Handler) download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "photo not found", nil)
		return
	}
	rc, obj, err := h.Store.Open(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, object.ErrInvalidKey), errors.Is(err, object.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "photo not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read photo", nil)
		}
		return
	}
	defer rc.Close()

	size := obj.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, obj.ContentType, rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}
