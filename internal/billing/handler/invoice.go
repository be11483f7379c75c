// Package handler exposes the billing HTTP endpoints: invoices, payments, the
// mobile-money surface, and manual reconciliation.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ccak/internal/billing/models"
	"ccak/internal/billing/service"
	"ccak/internal/http/shared"
	"ccak/internal/platform/middleware"
	"ccak/internal/policy"
	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

// InvoiceService defines the invoice operations the handler needs.
type InvoiceService interface {
	Create(ctx context.Context, input service.CreateInvoiceInput) (*models.Invoice, error)
	Get(ctx context.Context, id domain.InvoiceID) (*models.Invoice, error)
	Update(ctx context.Context, id domain.InvoiceID, input service.UpdateInvoiceInput) (*models.Invoice, error)
	Delete(ctx context.Context, id domain.InvoiceID) error
	Search(ctx context.Context, q models.InvoiceQuery) ([]*models.Invoice, error)
}

// Reconciler re-derives invoice status and exposes read-only derived figures.
type Reconciler interface {
	Reconcile(ctx context.Context, invoiceNumber string) (*service.Result, error)
	Figures(ctx context.Context, inv *models.Invoice) (total, paid decimal.Decimal, err error)
}

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	logger     *slog.Logger
	invoices   InvoiceService
	reconciler Reconciler
	validator  middleware.TokenValidator
}

func NewInvoiceHandler(invoices InvoiceService, reconciler Reconciler, validator middleware.TokenValidator, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		logger:     logger,
		invoices:   invoices,
		reconciler: reconciler,
		validator:  validator,
	}
}

// Register registers invoice routes with the chi router.
func (h *InvoiceHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Post("/invoice", h.handleCreate)
		r.Get("/invoice/{id}", h.handleGet)
		r.Post("/invoices/search", h.handleSearch)
		r.Post("/invoice/reconcile/{number}", h.handleReconcile)
		r.With(middleware.RequirePolicy(policy.ResourceInvoice, policy.ActionUpdate, h.logger)).
			Put("/invoice/update/{id}", h.handleUpdate)
		r.With(middleware.RequirePolicy(policy.ResourceInvoice, policy.ActionDelete, h.logger)).
			Delete("/invoice/delete/{id}", h.handleDelete)
	})
}

// invoiceResponse decorates an invoice with its derived amounts, mirroring
// what clients always received alongside the stored fields.
type invoiceResponse struct {
	*models.Invoice
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Balance     decimal.Decimal `json:"balance"`
}

func (h *InvoiceHandler) respondInvoice(w http.ResponseWriter, r *http.Request, status int, inv *models.Invoice) {
	total, paid, err := h.reconciler.Figures(r.Context(), inv)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, status, invoiceResponse{
		Invoice:     inv,
		TotalAmount: total,
		PaidAmount:  paid,
		Balance:     total.Sub(paid),
	})
}

type lineItemRequest struct {
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type createInvoiceRequest struct {
	Description string            `json:"description"`
	Items       []lineItemRequest `json:"items"`
	MemberID    int64             `json:"member_id"`
	DonationID  int64             `json:"donation_id"`
	Customer    models.Customer   `json:"customer"`
}

func (h *InvoiceHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	items, err := parseLineItems(req.Items)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	inv, err := h.invoices.Create(ctx, service.CreateInvoiceInput{
		Description: req.Description,
		Items:       items,
		MemberID:    domain.MemberID(req.MemberID),
		DonationID:  domain.DonationID(req.DonationID),
		Customer:    req.Customer,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "invoice creation failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	h.respondInvoice(w, r, http.StatusCreated, inv)
}

func (h *InvoiceHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.respondInvoice(w, r, http.StatusOK, inv)
}

type updateInvoiceRequest struct {
	Description *string           `json:"description"`
	Items       []lineItemRequest `json:"items"`
	Status      *string           `json:"status"`
	Customer    *models.Customer  `json:"customer"`
}

func (h *InvoiceHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	input := service.UpdateInvoiceInput{
		Description: req.Description,
		Customer:    req.Customer,
	}
	if req.Items != nil {
		items, err := parseLineItems(req.Items)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		input.Items = items
	}
	if req.Status != nil {
		status := models.InvoiceStatus(*req.Status)
		input.Status = &status
	}
	inv, err := h.invoices.Update(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.respondInvoice(w, r, http.StatusOK, inv)
}

func (h *InvoiceHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.invoices.Delete(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchInvoicesRequest struct {
	InvoiceNumber string `json:"invoice_number"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Page          int    `json:"page"`
	Limit         int    `json:"limit"`
}

func (h *InvoiceHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchInvoicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	invoices, err := h.invoices.Search(r.Context(), models.InvoiceQuery{
		NumberContains: req.InvoiceNumber,
		Type:           models.InvoiceType(req.Type),
		Status:         models.InvoiceStatus(req.Status),
		Page:           req.Page,
		Limit:          req.Limit,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	responses := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		total, paid, err := h.reconciler.Figures(r.Context(), inv)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		responses = append(responses, invoiceResponse{
			Invoice:     inv,
			TotalAmount: total,
			PaidAmount:  paid,
			Balance:     total.Sub(paid),
		})
	}
	shared.WriteJSON(w, http.StatusOK, responses)
}

func (h *InvoiceHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invoice number is required"))
		return
	}
	result, err := h.reconciler.Reconcile(r.Context(), number)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func parseLineItems(reqs []lineItemRequest) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(reqs))
	for _, item := range reqs {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid unit price %q", item.UnitPrice)
		}
		items = append(items, models.LineItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}
	return items, nil
}

func invoiceID(r *http.Request) (domain.InvoiceID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid invoice id")
	}
	return domain.InvoiceID(id), nil
}
