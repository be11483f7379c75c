package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ccak/internal/donation/models"
	"ccak/internal/donation/service"
	"ccak/internal/http/shared"
	"ccak/internal/platform/middleware"
	"ccak/internal/policy"
	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

// Service defines the donation operations the handler needs.
type Service interface {
	Create(ctx context.Context, input service.CreateDonationInput) (*models.Donation, error)
	Get(ctx context.Context, id domain.DonationID) (*models.Donation, error)
	Update(ctx context.Context, id domain.DonationID, input service.UpdateDonationInput) (*models.Donation, error)
	Delete(ctx context.Context, id domain.DonationID) error
	Search(ctx context.Context, q models.DonationQuery) ([]*models.Donation, error)
}

// Handler handles donation endpoints.
type Handler struct {
	logger    *slog.Logger
	donations Service
	validator middleware.TokenValidator
}

func New(donations Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, donations: donations, validator: validator}
}

// Register registers donation routes with the chi router. Creation is public
// (the donation form is unauthenticated); reads and deletes are finance-only.
func (h *Handler) Register(r chi.Router) {
	r.Post("/donation", h.handleCreate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.With(middleware.RequirePolicy(policy.ResourceDonation, policy.ActionRead, h.logger)).
			Get("/donation/{id}", h.handleGet)
		r.With(middleware.RequirePolicy(policy.ResourceDonation, policy.ActionRead, h.logger)).
			Post("/donations/search", h.handleSearch)
		r.Put("/donation/update/{id}", h.handleUpdate)
		r.With(middleware.RequirePolicy(policy.ResourceDonation, policy.ActionDelete, h.logger)).
			Delete("/donation/delete/{id}", h.handleDelete)
	})
}

type donationRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phone_number"`
	Company       string `json:"company"`
	Designation   string `json:"designation"`
	Amount        string `json:"amount"`
	InvoiceNumber string `json:"invoice_number"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req donationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid donation amount"))
		return
	}

	donation, err := h.donations.Create(ctx, service.CreateDonationInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
		Company:       req.Company,
		Designation:   req.Designation,
		Amount:        amount,
		InvoiceNumber: req.InvoiceNumber,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "donation creation failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, donation)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := donationID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	donation, err := h.donations.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, donation)
}

type updateDonationRequest struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Email         *string `json:"email"`
	PhoneNumber   *string `json:"phone_number"`
	Company       *string `json:"company"`
	Designation   *string `json:"designation"`
	Amount        *string `json:"amount"`
	InvoiceNumber *string `json:"invoice_number"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := donationID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	input := service.UpdateDonationInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
		Company:       req.Company,
		Designation:   req.Designation,
		InvoiceNumber: req.InvoiceNumber,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid donation amount"))
			return
		}
		input.Amount = &amount
	}
	donation, err := h.donations.Update(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, donation)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := donationID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.donations.Delete(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchDonationsRequest struct {
	Keyword string `json:"keyword"`
	Status  string `json:"status"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchDonationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	donations, err := h.donations.Search(r.Context(), models.DonationQuery{
		Keyword: req.Keyword,
		Status:  models.DonationStatus(req.Status),
		Page:    req.Page,
		Limit:   req.Limit,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if donations == nil {
		donations = []*models.Donation{}
	}
	shared.WriteJSON(w, http.StatusOK, donations)
}

func donationID(r *http.Request) (domain.DonationID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid donation id")
	}
	return domain.DonationID(id), nil
}
