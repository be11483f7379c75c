package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ccak/internal/billing/models"
	"ccak/pkg/domain"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/requestcontext"
)

// InvoiceStore is the persistence surface the invoice service needs.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id domain.InvoiceID) (*models.Invoice, error)
	FindByNumber(ctx context.Context, number string) (*models.Invoice, error)
	Update(ctx context.Context, inv *models.Invoice) error
	Delete(ctx context.Context, id domain.InvoiceID) error
	CountCreatedOn(ctx context.Context, day time.Time) (int, error)
	Search(ctx context.Context, q models.InvoiceQuery) ([]*models.Invoice, error)
}

// numberAttempts bounds the retry loop when concurrent creation races on the
// same daily sequence slot.
const numberAttempts = 5

// InvoiceService manages invoice lifecycle apart from reconciliation.
type InvoiceService struct {
	store  InvoiceStore
	logger *slog.Logger
}

func NewInvoiceService(store InvoiceStore, logger *slog.Logger) *InvoiceService {
	return &InvoiceService{store: store, logger: logger}
}

// CreateInvoiceInput carries the fields for a new invoice.
type CreateInvoiceInput struct {
	Description string
	Items       []models.LineItem
	MemberID    domain.MemberID
	DonationID  domain.DonationID
	Customer    models.Customer
}

// Create stores a new unpaid invoice with a generated number. The number
// format is INV-{YYYYMMDD}-{NNN}: sequence = same-day invoice count + 1,
// zero-padded to three digits. The store's unique constraint catches two
// creations racing on the same slot; the loser recounts and retries.
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.ActorFrom(ctx)

	inv := &models.Invoice{
		Description: input.Description,
		Type:        models.TypeFromDescription(input.Description),
		Items:       input.Items,
		Status:      models.InvoiceUnpaid,
		MemberID:    input.MemberID,
		DonationID:  input.DonationID,
		Customer:    input.Customer,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if actor.Kind == requestcontext.ActorAdministrator {
		inv.CreatedBy = domain.AdministratorID(actor.ID)
	}

	for attempt := 0; attempt < numberAttempts; attempt++ {
		count, err := s.store.CountCreatedOn(ctx, now)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to count invoices")
		}
		inv.Number = fmt.Sprintf("INV-%s-%03d", now.UTC().Format("20060102"), count+1)

		if err := inv.Validate(); err != nil {
			return nil, err
		}
		err = s.store.Create(ctx, inv)
		if err == nil {
			s.logger.InfoContext(ctx, "invoice created",
				"invoice_number", inv.Number,
				"type", string(inv.Type),
				"request_id", requestcontext.RequestID(ctx))
			return inv, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create invoice")
		}
	}
	return nil, domainerrors.New(domainerrors.CodeConflict, "could not allocate a unique invoice number")
}

// Get returns an invoice by id.
func (s *InvoiceService) Get(ctx context.Context, id domain.InvoiceID) (*models.Invoice, error) {
	inv, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "invoice not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load invoice")
	}
	return inv, nil
}

// GetByNumber returns an invoice by its number.
func (s *InvoiceService) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	inv, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.Newf(domainerrors.CodeNotFound, "invoice %s not found", number)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load invoice")
	}
	return inv, nil
}

// UpdateInvoiceInput carries the mutable invoice fields. Status edits are
// explicit administrator actions; reconciliation owns the automatic path.
type UpdateInvoiceInput struct {
	Description *string
	Items       []models.LineItem
	Status      *models.InvoiceStatus
	Customer    *models.Customer
}

// Update applies a partial update. The invoice number is immutable.
func (s *InvoiceService) Update(ctx context.Context, id domain.InvoiceID, input UpdateInvoiceInput) (*models.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Description != nil {
		inv.Description = *input.Description
		inv.Type = models.TypeFromDescription(*input.Description)
	}
	if input.Items != nil {
		inv.Items = input.Items
	}
	if input.Status != nil {
		inv.Status = *input.Status
	}
	if input.Customer != nil {
		inv.Customer = *input.Customer
	}
	inv.LastUpdated = requestcontext.Now(ctx)

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, inv); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "invoice not found")
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, domainerrors.New(domainerrors.CodeBadRequest, "invoice number cannot be changed")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update invoice")
	}
	return inv, nil
}

// Delete removes an invoice.
func (s *InvoiceService) Delete(ctx context.Context, id domain.InvoiceID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "invoice not found")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete invoice")
	}
	s.logger.InfoContext(ctx, "invoice deleted",
		"invoice_id", id,
		"request_id", requestcontext.RequestID(ctx))
	return nil
}

// Search returns invoices matching the query.
func (s *InvoiceService) Search(ctx context.Context, q models.InvoiceQuery) ([]*models.Invoice, error) {
	invoices, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to search invoices")
	}
	return invoices, nil
}
