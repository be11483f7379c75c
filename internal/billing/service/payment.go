package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"ccak/internal/billing/metrics"
	"ccak/internal/billing/models"
	"ccak/pkg/domain"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/requestcontext"
)

// PaymentStore is the persistence surface the payment service needs.
type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id domain.PaymentID) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
	Delete(ctx context.Context, id domain.PaymentID) error
	ListByInvoiceNumber(ctx context.Context, number string) ([]*models.Payment, error)
	ListByTransactionID(ctx context.Context, transactionID string) ([]*models.Payment, error)
	Search(ctx context.Context, q models.PaymentQuery) ([]*models.Payment, error)
}

// InvoiceReconciler re-derives an invoice's status after payment changes.
type InvoiceReconciler interface {
	Reconcile(ctx context.Context, invoiceNumber string) (*Result, error)
}

// PaymentService records payments and keeps the linked invoices reconciled.
type PaymentService struct {
	store      PaymentStore
	reconciler InvoiceReconciler
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewPaymentService(store PaymentStore, reconciler InvoiceReconciler, m *metrics.Metrics, logger *slog.Logger) *PaymentService {
	return &PaymentService{store: store, reconciler: reconciler, metrics: m, logger: logger}
}

// CreatePaymentInput carries the fields for a new payment record.
type CreatePaymentInput struct {
	TransactionID string
	Method        string
	InvoiceNumber string
	Timestamp     string
	Amount        decimal.Decimal
	PaidBy        models.Payer
}

// Create records a payment and reconciles the linked invoice, if any. The
// reconcile result rides along so callers see the settlement effect of the
// payment they just recorded.
func (s *PaymentService) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, *Result, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.ActorFrom(ctx)

	payment := &models.Payment{
		TransactionID: input.TransactionID,
		Method:        input.Method,
		InvoiceNumber: input.InvoiceNumber,
		Timestamp:     input.Timestamp,
		Amount:        input.Amount,
		PaidBy:        input.PaidBy,
		CreatedAt:     now,
		LastUpdated:   now,
	}
	if actor.Kind == requestcontext.ActorAdministrator {
		payment.CreatedBy = domain.AdministratorID(actor.ID)
	}
	if err := payment.Validate(); err != nil {
		return nil, nil, err
	}

	if err := s.store.Create(ctx, payment); err != nil {
		return nil, nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to record payment")
	}
	s.metrics.IncrementPaymentsRecorded()
	s.logger.InfoContext(ctx, "payment recorded",
		"payment_id", payment.ID,
		"transaction_id", payment.TransactionID,
		"invoice_number", payment.InvoiceNumber,
		"amount", payment.Amount,
		"request_id", requestcontext.RequestID(ctx))

	result := s.reconcileLinked(ctx, payment.InvoiceNumber)
	return payment, result, nil
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id domain.PaymentID) (*models.Payment, error) {
	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "payment not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load payment")
	}
	return payment, nil
}

// UpdatePaymentInput carries the mutable payment fields.
type UpdatePaymentInput struct {
	TransactionID *string
	Method        *string
	InvoiceNumber *string
	Timestamp     *string
	Amount        *decimal.Decimal
	PaidBy        *models.Payer
}

// Update applies a partial update and reconciles the invoice(s) involved.
// When the payment moves between invoices both sides get re-derived status,
// though a paid invoice never reverts automatically.
func (s *PaymentService) Update(ctx context.Context, id domain.PaymentID, input UpdatePaymentInput) (*models.Payment, *Result, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	previousInvoice := payment.InvoiceNumber

	if input.TransactionID != nil {
		payment.TransactionID = *input.TransactionID
	}
	if input.Method != nil {
		payment.Method = *input.Method
	}
	if input.InvoiceNumber != nil {
		payment.InvoiceNumber = *input.InvoiceNumber
	}
	if input.Timestamp != nil {
		payment.Timestamp = *input.Timestamp
	}
	if input.Amount != nil {
		payment.Amount = *input.Amount
	}
	if input.PaidBy != nil {
		payment.PaidBy = *input.PaidBy
	}
	payment.LastUpdated = requestcontext.Now(ctx)

	if err := payment.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.store.Update(ctx, payment); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "payment not found")
		}
		return nil, nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update payment")
	}

	if previousInvoice != "" && previousInvoice != payment.InvoiceNumber {
		s.reconcileLinked(ctx, previousInvoice)
	}
	result := s.reconcileLinked(ctx, payment.InvoiceNumber)
	return payment, result, nil
}

// Delete removes a payment and reconciles the invoice it was linked to.
func (s *PaymentService) Delete(ctx context.Context, id domain.PaymentID) (*Result, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "payment not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete payment")
	}
	return s.reconcileLinked(ctx, payment.InvoiceNumber), nil
}

// Search returns payments matching the query.
func (s *PaymentService) Search(ctx context.Context, q models.PaymentQuery) ([]*models.Payment, error) {
	payments, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to search payments")
	}
	return payments, nil
}

// ActivateMobileMoney links payments recorded by the mobile-money webhook
// (matched by transaction id) to an invoice number and payer email, then
// reconciles the invoice. This is how asynchronous gateway payments become
// attributable to the invoice they settle.
func (s *PaymentService) ActivateMobileMoney(ctx context.Context, transactionID, invoiceNumber, email string) ([]*models.Payment, *Result, error) {
	if transactionID == "" || invoiceNumber == "" {
		return nil, nil, domainerrors.New(domainerrors.CodeBadRequest, "transaction_id and invoice_number are required")
	}

	payments, err := s.store.ListByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load payments")
	}
	if len(payments) == 0 {
		return nil, nil, domainerrors.Newf(domainerrors.CodeNotFound, "no payment with transaction id %s", transactionID)
	}

	now := requestcontext.Now(ctx)
	for _, payment := range payments {
		payment.InvoiceNumber = invoiceNumber
		if email != "" {
			payment.PaidBy.Email = email
		}
		payment.LastUpdated = now
		if err := s.store.Update(ctx, payment); err != nil {
			return nil, nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to link payment")
		}
	}
	s.logger.InfoContext(ctx, "mobile money payments activated",
		"transaction_id", transactionID,
		"invoice_number", invoiceNumber,
		"count", len(payments),
		"request_id", requestcontext.RequestID(ctx))

	result := s.reconcileLinked(ctx, invoiceNumber)
	return payments, result, nil
}

// MobileMoneyEvent is the subset of the gateway callback payload the service
// records.
type MobileMoneyEvent struct {
	Reference       string
	OriginationTime string
	Amount          decimal.Decimal
	SenderName      string
	SenderPhone     string
}

// RecordMobileMoney stores an incoming gateway payment. The invoice linkage is
// unknown at callback time and arrives later through ActivateMobileMoney, so
// no reconciliation runs here.
func (s *PaymentService) RecordMobileMoney(ctx context.Context, event MobileMoneyEvent) (*models.Payment, error) {
	if event.Reference == "" {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "transaction reference is required")
	}

	now := requestcontext.Now(ctx)
	payment := &models.Payment{
		TransactionID: event.Reference,
		Method:        "mpesa",
		Timestamp:     event.OriginationTime,
		Amount:        event.Amount,
		PaidBy: models.Payer{
			Name:        event.SenderName,
			PhoneNumber: event.SenderPhone,
		},
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, payment); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to record payment")
	}
	s.metrics.IncrementPaymentsRecorded()
	s.logger.InfoContext(ctx, "mobile money payment received",
		"transaction_id", payment.TransactionID,
		"amount", payment.Amount)
	return payment, nil
}

// reconcileLinked reruns reconciliation for a linked invoice. Reconciliation
// failures after a successful payment write are logged, not propagated: the
// payment record stands either way and the next run will converge.
func (s *PaymentService) reconcileLinked(ctx context.Context, invoiceNumber string) *Result {
	if invoiceNumber == "" {
		return nil
	}
	result, err := s.reconciler.Reconcile(ctx, invoiceNumber)
	if err != nil {
		s.logger.WarnContext(ctx, "reconcile after payment change failed",
			"error", err.Error(),
			"invoice_number", invoiceNumber,
			"request_id", requestcontext.RequestID(ctx))
		return nil
	}
	return result
}
