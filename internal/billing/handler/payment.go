package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

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

// PaymentService defines the payment operations the handler needs.
type PaymentService interface {
	Create(ctx context.Context, input service.CreatePaymentInput) (*models.Payment, *service.Result, error)
	Get(ctx context.Context, id domain.PaymentID) (*models.Payment, error)
	Update(ctx context.Context, id domain.PaymentID, input service.UpdatePaymentInput) (*models.Payment, *service.Result, error)
	Delete(ctx context.Context, id domain.PaymentID) (*service.Result, error)
	Search(ctx context.Context, q models.PaymentQuery) ([]*models.Payment, error)
	ActivateMobileMoney(ctx context.Context, transactionID, invoiceNumber, email string) ([]*models.Payment, *service.Result, error)
	RecordMobileMoney(ctx context.Context, event service.MobileMoneyEvent) (*models.Payment, error)
}

// PaymentHandler handles payment endpoints including the mobile-money surface.
type PaymentHandler struct {
	logger    *slog.Logger
	payments  PaymentService
	validator middleware.TokenValidator
}

func NewPaymentHandler(payments PaymentService, validator middleware.TokenValidator, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{logger: logger, payments: payments, validator: validator}
}

// Register registers payment routes with the chi router. The gateway callback
// is unauthenticated by necessity; activation is called by the paying member's
// session, so it needs auth but no admin policy.
func (h *PaymentHandler) Register(r chi.Router) {
	r.Post("/payments/webhook/buygoods", h.handleMobileMoneyCallback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Post("/payments/mpesa/activate", h.handleActivate)

		r.With(middleware.RequirePolicy(policy.ResourcePayment, policy.ActionRead, h.logger)).
			Get("/payment/{id}", h.handleGet)
		r.With(middleware.RequirePolicy(policy.ResourcePayment, policy.ActionRead, h.logger)).
			Post("/payments/search", h.handleSearch)
		r.With(middleware.RequirePolicy(policy.ResourcePayment, policy.ActionCreate, h.logger)).
			Post("/payment", h.handleCreate)
		r.With(middleware.RequirePolicy(policy.ResourcePayment, policy.ActionUpdate, h.logger)).
			Put("/payment/update/{id}", h.handleUpdate)
		r.With(middleware.RequirePolicy(policy.ResourcePayment, policy.ActionDelete, h.logger)).
			Delete("/payment/delete/{id}", h.handleDelete)
	})
}

// paymentResponse pairs a payment with the reconciliation outcome it caused.
type paymentResponse struct {
	Payment *models.Payment `json:"payment"`
	Result  *service.Result `json:"reconciliation,omitempty"`
}

type paymentRequest struct {
	TransactionID string       `json:"transaction_id"`
	Method        string       `json:"method"`
	InvoiceNumber string       `json:"invoice_number"`
	Timestamp     string       `json:"timestamp"`
	Amount        string       `json:"amount"`
	PaidBy        models.Payer `json:"paid_by"`
}

func (h *PaymentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid payment amount"))
		return
	}

	payment, result, err := h.payments.Create(ctx, service.CreatePaymentInput{
		TransactionID: req.TransactionID,
		Method:        req.Method,
		InvoiceNumber: req.InvoiceNumber,
		Timestamp:     req.Timestamp,
		Amount:        amount,
		PaidBy:        req.PaidBy,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "payment creation failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, paymentResponse{Payment: payment, Result: result})
}

func (h *PaymentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := paymentID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	payment, err := h.payments.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, payment)
}

type updatePaymentRequest struct {
	TransactionID *string       `json:"transaction_id"`
	Method        *string       `json:"method"`
	InvoiceNumber *string       `json:"invoice_number"`
	Timestamp     *string       `json:"timestamp"`
	Amount        *string       `json:"amount"`
	PaidBy        *models.Payer `json:"paid_by"`
}

func (h *PaymentHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := paymentID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	input := service.UpdatePaymentInput{
		TransactionID: req.TransactionID,
		Method:        req.Method,
		InvoiceNumber: req.InvoiceNumber,
		Timestamp:     req.Timestamp,
		PaidBy:        req.PaidBy,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid payment amount"))
			return
		}
		input.Amount = &amount
	}
	payment, result, err := h.payments.Update(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, paymentResponse{Payment: payment, Result: result})
}

func (h *PaymentHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := paymentID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.payments.Delete(r.Context(), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchPaymentsRequest struct {
	Method  string `json:"method"`
	Keyword string `json:"keyword"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
}

func (h *PaymentHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchPaymentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	payments, err := h.payments.Search(r.Context(), models.PaymentQuery{
		Method:  req.Method,
		Keyword: req.Keyword,
		Page:    req.Page,
		Limit:   req.Limit,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	shared.WriteJSON(w, http.StatusOK, payments)
}

type activateRequest struct {
	TransactionID string `json:"transaction_id"`
	InvoiceNumber string `json:"invoice_number"`
	Email         string `json:"email"`
}

func (h *PaymentHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	payments, result, err := h.payments.ActivateMobileMoney(ctx, req.TransactionID, req.InvoiceNumber, req.Email)
	if err != nil {
		h.logger.WarnContext(ctx, "mobile money activation failed",
			"error", err.Error(),
			"transaction_id", req.TransactionID,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, struct {
		Payments []*models.Payment `json:"payments"`
		Result   *service.Result   `json:"reconciliation,omitempty"`
	}{Payments: payments, Result: result})
}

// mobileMoneyCallback mirrors the gateway's buygoods event payload shape.
type mobileMoneyCallback struct {
	Event struct {
		Resource struct {
			Reference        string          `json:"reference"`
			OriginationTime  string          `json:"origination_time"`
			Amount           decimal.Decimal `json:"amount"`
			SenderFirstName  string          `json:"sender_first_name"`
			SenderMiddleName string          `json:"sender_middle_name"`
			SenderLastName   string          `json:"sender_last_name"`
			SenderPhone      string          `json:"sender_phone_number"`
		} `json:"resource"`
	} `json:"event"`
}

func (h *PaymentHandler) handleMobileMoneyCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req mobileMoneyCallback
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid callback payload"))
		return
	}
	resource := req.Event.Resource
	name := strings.Join(strings.Fields(strings.Join([]string{
		resource.SenderFirstName, resource.SenderMiddleName, resource.SenderLastName,
	}, " ")), " ")

	if _, err := h.payments.RecordMobileMoney(ctx, service.MobileMoneyEvent{
		Reference:       resource.Reference,
		OriginationTime: resource.OriginationTime,
		Amount:          resource.Amount,
		SenderName:      name,
		SenderPhone:     resource.SenderPhone,
	}); err != nil {
		h.logger.WarnContext(ctx, "mobile money callback rejected",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Payment received successfully"})
}

func paymentID(r *http.Request) (domain.PaymentID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid payment id")
	}
	return domain.PaymentID(id), nil
}
