package cvs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/server/respond"
)

// SessionHook lets open editor sessions react to writes made outside them.
type SessionHook interface {
	Discard(ownerID, id string)
}

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc      *Service
	Sessions SessionHook
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, sessions SessionHook) *Handler {
	return &Handler{Svc: svc, Sessions: sessions}
}

// RegisterRoutes attaches CV routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/cvs", h.list)
	rg.POST("/cvs", h.create)
	rg.POST("/cvs/open-latest", h.openLatest)
	rg.GET("/cvs/summary", h.summary)
	rg.GET("/cvs/:id", h.get)
	rg.PATCH("/cvs/:id", h.patch)
	rg.DELETE("/cvs/:id", h.delete)
	rg.POST("/cvs/:id/duplicate", h.duplicate)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		WriteError(c, err, "failed to list cvs")
		return
	}
	resp := make([]cvListItem, 0, len(list))
	for _, cv := range list {
		resp = append(resp, toListItem(cv))
	}
	respond.OK(c, resp)
}

func (h *Handler) create(c *gin.Context) {
	var req writeRequest
	if c.Request.ContentLength != 0 {
		if !respond.Bind(c, &req) {
			return
		}
	}
	title := ""
	if req.Title != nil {
		title = *req.Title
	}

	cv, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), title, req.Content)
	if err != nil {
		WriteError(c, err, "failed to create cv")
		return
	}
	c.Set(middleware.CVIDKey, cv.ID)
	respond.Created(c, toResponse(cv))
}

func (h *Handler) openLatest(c *gin.Context) {
	cv, created, err := h.Svc.OpenLatest(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		WriteError(c, err, "failed to open cv")
		return
	}
	c.Set(middleware.CVIDKey, cv.ID)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond.JSON(c, status, toResponse(cv))
}

func (h *Handler) summary(c *gin.Context) {
	sum, err := h.Svc.Summary(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		WriteError(c, err, "failed to summarize cvs")
		return
	}
	resp := summaryResponse{Count: sum.Count}
	if sum.LastEdited != nil {
		item := toListItem(*sum.LastEdited)
		resp.LastEdited = &item
	}
	respond.OK(c, resp)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CVIDKey, id)
	cv, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		WriteError(c, err, "failed to fetch cv")
		return
	}
	respond.OK(c, toResponse(cv))
}

func (h *Handler) patch(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CVIDKey, id)
	var req writeRequest
	if !respond.Bind(c, &req) {
		return
	}

	upd, err := h.Svc.CheckUpdate(id, Update{Title: req.Title, Content: req.Content})
	if err != nil {
		WriteError(c, err, "failed to update cv")
		return
	}
	ownerID := middleware.UserIDFromContext(c)
	// Discard waits for the session's in-flight write, so nothing it saves
	// lands after this update.
	if h.Sessions != nil {
		h.Sessions.Discard(ownerID, id)
	}
	cv, err := h.Svc.Update(c.Request.Context(), ownerID, id, upd)
	if err != nil {
		WriteError(c, err, "failed to update cv")
		return
	}
	respond.OK(c, toResponse(cv))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.CVIDKey, id)
	ownerID := middleware.UserIDFromContext(c)
	if h.Sessions != nil {
		h.Sessions.Discard(ownerID, id)
	}
	if err := h.Svc.Delete(c.Request.Context(), ownerID, id); err != nil {
		WriteError(c, err, "failed to delete cv")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) duplicate(c *gin.Context) {
	id := c.Param("id")
	cv, err := h.Svc.Duplicate(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		WriteError(c, err, "failed to duplicate cv")
		return
	}
	c.Set(middleware.CVIDKey, cv.ID)
	respond.Created(c, toResponse(cv))
}

// WriteError maps service errors to the error envelope.
func WriteError(c *gin.Context, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "invalid cv content", verr.Fields)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "cv not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrInvalidContent):
		respond.Error(c, http.StatusUnprocessableEntity, "invalid_content", "stored cv content is invalid", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
