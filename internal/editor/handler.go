package editor

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/autosave"
	"vitaeforge/internal/cvs"
	"vitaeforge/internal/llm"
	"vitaeforge/internal/refine"
	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/server/respond"
)

// Handler exposes editor sessions over HTTP.
type Handler struct {
	Manager *Manager
	Refiner Refiner
}

// NewHandler constructs a Handler.
func NewHandler(m *Manager, r Refiner) *Handler {
	return &Handler{Manager: m, Refiner: r}
}

// RegisterRoutes attaches editor routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/cvs/:id/editor")
	g.POST("", h.open)
	g.GET("", h.view)
	g.DELETE("", h.close)
	g.PATCH("/fields", h.setFields)
	g.PUT("/content", h.replaceContent)
	g.POST("/entries/:section", h.addEntry)
	g.DELETE("/entries/:section/:entryId", h.removeEntry)
	g.POST("/entries/:section/:entryId/move", h.moveEntry)
	g.POST("/refine", h.refine)
	g.POST("/flush", h.flush)
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	id := c.Param("id")
	c.Set(middleware.CVIDKey, id)
	s, err := h.Manager.Open(c.Request.Context(), middleware.UserIDFromContext(c), id, middleware.TokenExpiryFromContext(c))
	if err != nil {
		WriteError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) reply(c *gin.Context, status int, s *Session) {
	resp := toResponse(s)
	c.Set(middleware.SaveStatusKey, resp.Status.State)
	respond.JSON(c, status, resp)
}

func (h *Handler) open(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.reply(c, http.StatusOK, s)
}

func (h *Handler) view(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CVIDKey, id)
	s, ok := h.Manager.Lookup(middleware.UserIDFromContext(c), id)
	if !ok {
		respond.Error(c, http.StatusNotFound, "session_not_open", "editor session not open", nil)
		return
	}
	s.touch(middleware.TokenExpiryFromContext(c))
	h.reply(c, http.StatusOK, s)
}

func (h *Handler) close(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CVIDKey, id)
	if err := h.Manager.Close(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		respond.Error(c, http.StatusBadGateway, "save_failed", "failed to save pending edits", nil)
		return
	}
	respond.NoContent(c)
}

func (h *Handler) setFields(c *gin.Context) {
	var req fieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Fields) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fields are required", nil)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := s.SetFields(req.Fields); err != nil {
		WriteError(c, err)
		return
	}
	h.reply(c, http.StatusOK, s)
}

func (h *Handler) replaceContent(c *gin.Context) {
	var content cvs.Content
	if !respond.Bind(c, &content) {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.ReplaceContent(content); err != nil {
		WriteError(c, err)
		return
	}
	h.reply(c, http.StatusOK, s)
}

func (h *Handler) addEntry(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	entryID, err := s.AddEntry(c.Param("section"))
	if err != nil {
		WriteError(c, err)
		return
	}
	resp := entryResponse{EntryID: entryID, editorResponse: toResponse(s)}
	c.Set(middleware.SaveStatusKey, resp.Status.State)
	respond.Created(c, resp)
}

func (h *Handler) removeEntry(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.RemoveEntry(c.Param("section"), c.Param("entryId")); err != nil {
		WriteError(c, err)
		return
	}
	h.reply(c, http.StatusOK, s)
}

func (h *Handler) moveEntry(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "index is required", nil)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.MoveEntry(c.Param("section"), c.Param("entryId"), *req.Index); err != nil {
		WriteError(c, err)
		return
	}
	h.reply(c, http.StatusOK, s)
}

func (h *Handler) refine(c *gin.Context) {
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Field) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "field is required", nil)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	text, err := s.Refine(c.Request.Context(), h.Refiner, req.Field)
	if err != nil {
		WriteError(c, err)
		return
	}
	resp := refineResponse{Field: req.Field, Text: text, editorResponse: toResponse(s)}
	c.Set(middleware.SaveStatusKey, resp.Status.State)
	respond.OK(c, resp)
}

func (h *Handler) flush(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Flush(c.Request.Context()); err != nil && !errors.Is(err, autosave.ErrInactive) {
		resp := toResponse(s)
		c.Set(middleware.SaveStatusKey, resp.Status.State)
		respond.Error(c, http.StatusBadGateway, "save_failed", "failed to save cv", resp.Status)
		return
	}
	h.reply(c, http.StatusOK, s)
}

// WriteError maps editor, refine and store errors to the error envelope.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownField), errors.Is(err, ErrUnknownSection), errors.Is(err, ErrNotText):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrEntryNotFound):
		respond.Error(c, http.StatusNotFound, "entry_not_found", "entry not found", nil)
	case errors.Is(err, ErrSessionClosed):
		respond.Error(c, http.StatusConflict, "session_closed", "editor session was closed", nil)
	case errors.Is(err, refine.ErrRefineFailed), errors.Is(err, llm.ErrNotConfigured):
		refine.WriteError(c, err)
	default:
		cvs.WriteError(c, err, "editor request failed")
	}
}
