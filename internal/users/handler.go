package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

type meResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	IsGuest     bool   `json:"isGuest"`
}

// me answers from the stored profile, falling back to the token claims for
// guests and users not yet recorded.
func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	resp := meResponse{
		ID:          userID,
		Email:       middleware.UserEmailFromContext(c),
		DisplayName: middleware.UserNameFromContext(c),
		PhotoURL:    middleware.UserPictureFromContext(c),
		IsGuest:     middleware.IsGuest(c),
	}
	if resp.IsGuest || h.Svc == nil {
		respond.OK(c, resp)
		return
	}

	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	default:
		resp.Email = user.Email
		if user.DisplayName != "" {
			resp.DisplayName = user.DisplayName
		}
		if user.PhotoURL != "" {
			resp.PhotoURL = user.PhotoURL
		}
	}
	respond.OK(c, resp)
}
