package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ccak/internal/http/shared"
	"ccak/internal/platform/middleware"
	"ccak/internal/policy"
)

// Handler exposes the dashboard statistics endpoints.
type Handler struct {
	logger    *slog.Logger
	stats     *Service
	validator middleware.TokenValidator
}

func NewHandler(stats *Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, stats: stats, validator: validator}
}

// Register registers the dashboard routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Use(middleware.RequirePolicy(policy.ResourceDashboard, policy.ActionRead, h.logger))

		r.Get("/dashboard/stats/general", h.handleGeneral)
		r.Get("/dashboard/stats/money", h.handleMoney)
		r.Get("/dashboard/stats/member", h.handleMembers)
	})
}

func (h *Handler) handleGeneral(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.General(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleMoney(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Money(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Members(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}
