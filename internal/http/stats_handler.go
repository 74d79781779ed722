package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type StatsSource interface {
	Stats(ctx context.Context, sellerID string) (domain.SellerStats, error)
}

type StatsHandler struct {
	stats   StatsSource
	timeout time.Duration
}

func NewStatsHandler(stats StatsSource, timeout time.Duration) *StatsHandler {
	return &StatsHandler{stats: stats, timeout: timeout}
}

// GET /api/v1/sellers/{seller_id}/stats
// Sellers may only read their own dashboard.
func (h *StatsHandler) SellerStats(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())
	sellerID := chi.URLParam(r, "seller_id")
	if ws.Session.Role == domain.RoleCustomer || sellerID != ws.Session.UserID {
		respondError(w, r, http.StatusForbidden, "permission_denied", "stats are only visible to the seller")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.stats.Stats(ctx, sellerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, stats)
}
