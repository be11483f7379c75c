package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ccak/internal/auth/service"
	"ccak/internal/http/shared"
	dErrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

// Service defines the login operations the handler needs.
type Service interface {
	LoginMember(ctx context.Context, email, password string) (*service.LoginResult, error)
	LoginAdministrator(ctx context.Context, email, password string) (*service.LoginResult, error)
}

// Handler handles the login endpoints.
type Handler struct {
	logger *slog.Logger
	auth   Service
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, auth: auth}
}

// Register registers the auth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/member/login", h.handleMemberLogin)
	r.Post("/auth/administrator/login", h.handleAdministratorLogin)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleMemberLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.auth.LoginMember)
}

func (h *Handler) handleAdministratorLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.auth.LoginAdministrator)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, loginFn func(ctx context.Context, email, password string) (*service.LoginResult, error)) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "email and password are required"))
		return
	}

	result, err := loginFn(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
