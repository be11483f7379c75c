// Package service implements donation management. Donation status is owned by
// the billing completion dispatcher; this service only records and serves
// donation data.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ccak/internal/donation/models"
	"ccak/pkg/domain"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/requestcontext"
)

// Store is the persistence surface the donation service needs.
type Store interface {
	Create(ctx context.Context, d *models.Donation) error
	FindByID(ctx context.Context, id domain.DonationID) (*models.Donation, error)
	FindByInvoiceNumber(ctx context.Context, number string) (*models.Donation, error)
	Update(ctx context.Context, d *models.Donation) error
	Delete(ctx context.Context, id domain.DonationID) error
	Search(ctx context.Context, q models.DonationQuery) ([]*models.Donation, error)
}

// Service manages donations.
type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateDonationInput carries the fields a donor submits.
type CreateDonationInput struct {
	FirstName     string
	LastName      string
	Email         string
	PhoneNumber   string
	Company       string
	Designation   string
	Amount        decimal.Decimal
	InvoiceNumber string
}

// Create records a new donation pledge in the unpaid state.
func (s *Service) Create(ctx context.Context, input CreateDonationInput) (*models.Donation, error) {
	now := requestcontext.Now(ctx)
	donation := &models.Donation{
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Email:         input.Email,
		PhoneNumber:   input.PhoneNumber,
		Company:       input.Company,
		Designation:   input.Designation,
		Amount:        input.Amount,
		InvoiceNumber: input.InvoiceNumber,
		Status:        models.DonationUnpaid,
		CreatedAt:     now,
		LastUpdated:   now,
	}
	if err := donation.Validate(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid donation")
	}
	if err := s.store.Create(ctx, donation); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create donation")
	}
	s.logger.InfoContext(ctx, "donation recorded",
		"donation_id", donation.ID,
		"amount", donation.Amount,
		"request_id", requestcontext.RequestID(ctx))
	return donation, nil
}

// Get returns a donation by id.
func (s *Service) Get(ctx context.Context, id domain.DonationID) (*models.Donation, error) {
	donation, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "donation not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load donation")
	}
	return donation, nil
}

// UpdateDonationInput carries the mutable donation fields. Status is absent on
// purpose: only MarkPaid moves it.
type UpdateDonationInput struct {
	FirstName     *string
	LastName      *string
	Email         *string
	PhoneNumber   *string
	Company       *string
	Designation   *string
	Amount        *decimal.Decimal
	InvoiceNumber *string
}

// Update applies a partial update to a donation record.
func (s *Service) Update(ctx context.Context, id domain.DonationID, input UpdateDonationInput) (*models.Donation, error) {
	donation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		donation.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		donation.LastName = *input.LastName
	}
	if input.Email != nil {
		donation.Email = *input.Email
	}
	if input.PhoneNumber != nil {
		donation.PhoneNumber = *input.PhoneNumber
	}
	if input.Company != nil {
		donation.Company = *input.Company
	}
	if input.Designation != nil {
		donation.Designation = *input.Designation
	}
	if input.Amount != nil {
		donation.Amount = *input.Amount
	}
	if input.InvoiceNumber != nil {
		donation.InvoiceNumber = *input.InvoiceNumber
	}
	donation.LastUpdated = requestcontext.Now(ctx)

	if err := donation.Validate(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid donation")
	}
	if err := s.store.Update(ctx, donation); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "donation not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update donation")
	}
	return donation, nil
}

// Delete removes a donation record.
func (s *Service) Delete(ctx context.Context, id domain.DonationID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "donation not found")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete donation")
	}
	return nil
}

// Search returns donations matching the query.
func (s *Service) Search(ctx context.Context, q models.DonationQuery) ([]*models.Donation, error) {
	donations, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to search donations")
	}
	return donations, nil
}

// MarkPaidByInvoice flips the donation linked to invoiceNumber to paid.
// Called by the billing completion dispatcher when a donation invoice settles.
// A donation that is already paid is a conflict, letting the dispatcher treat
// repeated completion as a no-op.
func (s *Service) MarkPaidByInvoice(ctx context.Context, invoiceNumber string, now time.Time) (*models.Donation, error) {
	donation, err := s.store.FindByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.Newf(domainerrors.CodeNotFound, "no donation linked to invoice %s", invoiceNumber)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load donation")
	}
	if donation.Status == models.DonationPaid {
		return nil, domainerrors.New(domainerrors.CodeConflict, "donation is already paid")
	}
	donation.MarkPaid(now)
	if err := s.store.Update(ctx, donation); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to mark donation paid")
	}
	s.logger.InfoContext(ctx, "donation marked paid",
		"donation_id", donation.ID,
		"invoice_number", invoiceNumber)
	return donation, nil
}
