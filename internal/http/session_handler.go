package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/service"
	"go.uber.org/zap"
)

type SessionHandler struct {
	registry *service.Registry
}

func NewSessionHandler(registry *service.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// LoginRequestDTO is what the auth service hands over after a successful login.
type LoginRequestDTO struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Token   string `json:"token"`
	Address string `json:"address"`
}

type SessionResponseDTO struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// POST /api/v1/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ws, err := h.registry.Login(r.Context(), domain.Session{
		UserID:  req.UserID,
		Role:    domain.Role(req.Role),
		Token:   req.Token,
		Address: req.Address,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, SessionResponseDTO{
		SessionID: ws.Session.ID,
		UserID:    ws.Session.UserID,
		Role:      string(ws.Session.Role),
		CreatedAt: ws.Session.CreatedAt,
	})
}

// DELETE /api/v1/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())
	if ws == nil {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	if err := h.registry.Logout(r.Context(), ws.Session.ID); err != nil {
		logger.FromContext(r.Context(), nil).Error("logout failed", zap.Error(err))
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
