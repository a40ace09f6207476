package preview

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/cvs"
	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/server/respond"
	"vitaeforge/internal/shared/telemetry"
)

// ContentSource returns the content a preview should show.
type ContentSource interface {
	Content(ctx context.Context, ownerID, cvID string) (cvs.Content, error)
}

// Handler serves rendered previews.
type Handler struct {
	Source ContentSource
}

// NewHandler constructs a Handler.
func NewHandler(src ContentSource) *Handler {
	return &Handler{Source: src}
}

// RegisterRoutes attaches preview routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/cvs/:id/preview", h.preview)
}

func (h *Handler) preview(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CVIDKey, id)

	content, err := h.Source.Content(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		cvs.WriteError(c, err, "failed to load cv")
		return
	}
	printMode, _ := strconv.ParseBool(c.Query("print"))
	out, err := Render(content, Options{
		AccentColor: c.Query("color"),
		Font:        c.Query("font"),
		Print:       printMode,
	})
	if err != nil {
		telemetry.Error("preview.render_failed", map[string]any{"cv_id": id, "error": err.Error()})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to render preview", nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", out)
}
