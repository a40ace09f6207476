package refine

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/llm"
	"vitaeforge/internal/shared/server/respond"
)

const maxTextLen = 20000

// Handler exposes stateless refinement of a text value.
type Handler struct {
	Refiner *Refiner
}

// NewHandler constructs a Handler.
func NewHandler(r *Refiner) *Handler {
	return &Handler{Refiner: r}
}

type refineRequest struct {
	Text string `json:"text"`
}

type refineResponse struct {
	Text string `json:"text"`
}

// RegisterRoutes attaches the refine route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/refine", h.refine)
}

func (h *Handler) refine(c *gin.Context) {
	var req refineRequest
	if !respond.Bind(c, &req) {
		return
	}
	if len(req.Text) > maxTextLen {
		respond.Error(c, http.StatusBadRequest, "validation_error", "text too long", map[string]any{"maxLength": maxTextLen})
		return
	}
	out, err := h.Refiner.Refine(c.Request.Context(), req.Text)
	if err != nil {
		WriteError(c, err)
		return
	}
	respond.OK(c, refineResponse{Text: out})
}

// WriteError maps refine errors to the error envelope.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		respond.Error(c, http.StatusServiceUnavailable, "refine_unavailable", "AI refinement is not configured", nil)
	case errors.Is(err, ErrRefineFailed):
		respond.Error(c, http.StatusBadGateway, "refine_failed", "failed to refine text", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to refine text", nil)
	}
}
