// Package handler exposes the member and administrator HTTP endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ccak/internal/http/shared"
	"ccak/internal/membership/models"
	"ccak/internal/membership/service"
	"ccak/internal/platform/middleware"
	"ccak/internal/policy"
	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

// MemberService defines the member operations the handler needs.
type MemberService interface {
	Register(ctx context.Context, input service.RegisterMemberInput) (*models.Member, error)
	Get(ctx context.Context, id domain.MemberID) (*models.Member, error)
	Update(ctx context.Context, id domain.MemberID, input service.UpdateMemberInput) (*models.Member, error)
	Delete(ctx context.Context, id domain.MemberID) error
	List(ctx context.Context) ([]*models.Member, error)
	Search(ctx context.Context, q models.MemberQuery) ([]*models.Member, error)
}

// AdministratorService defines the administrator operations the handler needs.
type AdministratorService interface {
	Create(ctx context.Context, input service.CreateAdministratorInput) (*models.Administrator, error)
	Get(ctx context.Context, id domain.AdministratorID) (*models.Administrator, error)
	List(ctx context.Context) ([]*models.Administrator, error)
	Update(ctx context.Context, id domain.AdministratorID, input service.UpdateAdministratorInput) (*models.Administrator, error)
	Delete(ctx context.Context, id domain.AdministratorID) error
}

// Handler handles member and administrator endpoints.
type Handler struct {
	logger    *slog.Logger
	members   MemberService
	admins    AdministratorService
	validator middleware.TokenValidator
}

// New creates a membership Handler.
func New(members MemberService, admins AdministratorService, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		members:   members,
		admins:    admins,
		validator: validator,
	}
}

// Register registers membership routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	// Member signup is the only public route in this group.
	r.Post("/member", h.handleRegisterMember)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Get("/member", h.handleListMembers)
		r.Get("/members/search", h.handleSearchMembers)
		r.Get("/member/{id}", h.handleGetMember)
		r.Put("/member/update/{id}", h.handleUpdateMember)
		r.Delete("/member/delete/{id}", h.handleDeleteMember)

		r.Route("/administrator", func(r chi.Router) {
			r.With(middleware.RequirePolicy(policy.ResourceAdministrator, policy.ActionRead, h.logger)).
				Get("/", h.handleListAdministrators)
			r.With(middleware.RequirePolicy(policy.ResourceAdministrator, policy.ActionRead, h.logger)).
				Get("/{id}", h.handleGetAdministrator)
			r.With(middleware.RequirePolicy(policy.ResourceAdministrator, policy.ActionCreate, h.logger)).
				Post("/", h.handleCreateAdministrator)
			r.With(middleware.RequirePolicy(policy.ResourceAdministrator, policy.ActionUpdate, h.logger)).
				Put("/update/{id}", h.handleUpdateAdministrator)
			r.With(middleware.RequirePolicy(policy.ResourceAdministrator, policy.ActionDelete, h.logger)).
				Delete("/delete/{id}", h.handleDeleteAdministrator)
		})
	})
}

type registerMemberRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Company     string `json:"company"`
	Designation string `json:"designation"`
	Password    string `json:"password"`
}

func (h *Handler) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	member, err := h.members.Register(ctx, service.RegisterMemberInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Company:     req.Company,
		Designation: req.Designation,
		Password:    req.Password,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "member registration failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := memberID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	member, err := h.members.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if members == nil {
		members = []*models.Member{}
	}
	shared.WriteJSON(w, http.StatusOK, members)
}

func (h *Handler) handleSearchMembers(w http.ResponseWriter, r *http.Request) {
	q := models.MemberQuery{
		Keyword:            r.URL.Query().Get("q"),
		SubscriptionStatus: models.SubscriptionStatus(r.URL.Query().Get("subscription_status")),
		RegistrationStatus: models.RegistrationStatus(r.URL.Query().Get("registration_status")),
		Page:               queryInt(r, "page", 1),
		Limit:              queryInt(r, "limit", 20),
	}
	members, err := h.members.Search(r.Context(), q)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if members == nil {
		members = []*models.Member{}
	}
	shared.WriteJSON(w, http.StatusOK, members)
}

type updateMemberRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Company     *string `json:"company"`
	Designation *string `json:"designation"`
	Password    *string `json:"password"`
}

func (h *Handler) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := memberID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// Members may only edit their own profile; administrators may edit anyone.
	actor := requestcontext.ActorFrom(ctx)
	if actor.Kind == requestcontext.ActorMember && actor.ID != int64(id) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "members may only update their own profile"))
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	member, err := h.members.Update(ctx, id, service.UpdateMemberInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Company:     req.Company,
		Designation: req.Designation,
		Password:    req.Password,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := memberID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := requestcontext.ActorFrom(ctx)
	if actor.Kind == requestcontext.ActorMember && actor.ID != int64(id) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "members may only delete their own account"))
		return
	}
	if err := h.members.Delete(ctx, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createAdministratorRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (h *Handler) handleCreateAdministrator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createAdministratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	admin, err := h.admins.Create(ctx, service.CreateAdministratorInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      policy.Role(req.Role),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "administrator creation failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, admin)
}

func (h *Handler) handleGetAdministrator(w http.ResponseWriter, r *http.Request) {
	id, err := administratorID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	admin, err := h.admins.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, admin)
}

func (h *Handler) handleListAdministrators(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if admins == nil {
		admins = []*models.Administrator{}
	}
	shared.WriteJSON(w, http.StatusOK, admins)
}

type updateAdministratorRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	Status    *string `json:"status"`
	Password  *string `json:"password"`
}

func (h *Handler) handleUpdateAdministrator(w http.ResponseWriter, r *http.Request) {
	id, err := administratorID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateAdministratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	input := service.UpdateAdministratorInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Status:    req.Status,
		Password:  req.Password,
	}
	if req.Role != nil {
		role := policy.Role(*req.Role)
		input.Role = &role
	}
	admin, err := h.admins.Update(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, admin)
}

func (h *Handler) handleDeleteAdministrator(w http.ResponseWriter, r *http.Request) {
	id, err := administratorID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.admins.Delete(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func memberID(r *http.Request) (domain.MemberID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid member id")
	}
	return domain.MemberID(id), nil
}

func administratorID(r *http.Request) (domain.AdministratorID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid administrator id")
	}
	return domain.AdministratorID(id), nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
