package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"ccak/internal/billing/models"
	invoiceStore "ccak/internal/billing/store/invoice"
	paymentStore "ccak/internal/billing/store/payment"
	donationService "ccak/internal/donation/service"
	donationStore "ccak/internal/donation/store"
	membershipService "ccak/internal/membership/service"
	memberStore "ccak/internal/membership/store/member"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

type PaymentServiceSuite struct {
	suite.Suite
	invoices *invoiceStore.InMemory
	payments *paymentStore.InMemory
	notifier *stubNotifier
	service  *PaymentService
	ctx      context.Context
	now      time.Time
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.invoices = invoiceStore.NewInMemory()
	s.payments = paymentStore.NewInMemory()
	s.notifier = &stubNotifier{accept: true}

	memberSvc := membershipService.NewMemberService(memberStore.NewInMemory(), logger)
	donationSvc := donationService.New(donationStore.NewInMemory(), logger)
	completion := NewCompletionDispatcher(memberSvc, donationSvc, s.notifier, "finance@ccak.or.ke", nil, logger)
	reconciler := NewReconciler(s.invoices, s.payments, completion, nil, nil, nil, logger)
	s.service = NewPaymentService(s.payments, reconciler, nil, logger)

	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *PaymentServiceSuite) seedInvoice(number string, total int64) *models.Invoice {
	inv := &models.Invoice{
		Number:      number,
		Description: "Conference Ticket",
		Type:        models.TypeGeneric,
		Items: []models.LineItem{
			{Name: "Ticket", Quantity: 1, UnitPrice: decimal.NewFromInt(total)},
		},
		Status:      models.InvoiceUnpaid,
		CreatedAt:   s.now,
		LastUpdated: s.now,
	}
	s.Require().NoError(s.invoices.Create(s.ctx, inv))
	return inv
}

func (s *PaymentServiceSuite) TestCreate() {
	s.Run("recording a settling payment reconciles the invoice", func() {
		inv := s.seedInvoice("INV-20240601-001", 1000)

		payment, result, err := s.service.Create(s.ctx, CreatePaymentInput{
			TransactionID: "TX-1",
			Method:        "bank",
			InvoiceNumber: inv.Number,
			Amount:        decimal.NewFromInt(1000),
			PaidBy:        models.Payer{Name: "Grace Wanjiru"},
		})
		s.Require().NoError(err)
		s.NotZero(payment.ID)
		s.Require().NotNil(result)
		s.Equal(models.InvoicePaid, result.Status)
		s.True(result.CompletionFired)

		stored, err := s.invoices.FindByNumber(s.ctx, inv.Number)
		s.Require().NoError(err)
		s.True(stored.IsPaid())
	})

	s.Run("unlinked payment skips reconciliation", func() {
		payment, result, err := s.service.Create(s.ctx, CreatePaymentInput{
			TransactionID: "TX-2",
			Method:        "bank",
			Amount:        decimal.NewFromInt(500),
		})
		s.Require().NoError(err)
		s.NotZero(payment.ID)
		s.Nil(result)
	})

	s.Run("missing method is rejected", func() {
		_, _, err := s.service.Create(s.ctx, CreatePaymentInput{Amount: decimal.NewFromInt(100)})
		s.True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})

	s.Run("negative amount is rejected", func() {
		_, _, err := s.service.Create(s.ctx, CreatePaymentInput{
			Method: "bank",
			Amount: decimal.NewFromInt(-100),
		})
		s.True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})
}

func (s *PaymentServiceSuite) TestUpdateMovesPaymentBetweenInvoices() {
	first := s.seedInvoice("INV-20240601-001", 1000)
	second := s.seedInvoice("INV-20240601-002", 500)

	payment, _, err := s.service.Create(s.ctx, CreatePaymentInput{
		TransactionID: "TX-1",
		Method:        "bank",
		InvoiceNumber: first.Number,
		Amount:        decimal.NewFromInt(500),
	})
	s.Require().NoError(err)

	moved, result, err := s.service.Update(s.ctx, payment.ID, UpdatePaymentInput{
		InvoiceNumber: &second.Number,
	})
	s.Require().NoError(err)
	s.Equal(second.Number, moved.InvoiceNumber)
	s.Require().NotNil(result)
	s.Equal(models.InvoicePaid, result.Status)

	// The invoice the payment left stays unpaid with a full balance.
	storedFirst, err := s.invoices.FindByNumber(s.ctx, first.Number)
	s.Require().NoError(err)
	s.False(storedFirst.IsPaid())
}

func (s *PaymentServiceSuite) TestDeleteReconcilesLinkedInvoice() {
	inv := s.seedInvoice("INV-20240601-001", 1000)
	payment, _, err := s.service.Create(s.ctx, CreatePaymentInput{
		TransactionID: "TX-1",
		Method:        "bank",
		InvoiceNumber: inv.Number,
		Amount:        decimal.NewFromInt(400),
	})
	s.Require().NoError(err)

	result, err := s.service.Delete(s.ctx, payment.ID)
	s.Require().NoError(err)
	s.Require().NotNil(result)
	s.True(result.PaidAmount.IsZero())

	_, err = s.service.Get(s.ctx, payment.ID)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *PaymentServiceSuite) TestMobileMoneyFlow() {
	inv := s.seedInvoice("INV-20240601-001", 1000)

	s.Run("gateway callback records without reconciling", func() {
		payment, err := s.service.RecordMobileMoney(s.ctx, MobileMoneyEvent{
			Reference:       "MP-REF-1",
			OriginationTime: "2024-06-01 11:59:00",
			Amount:          decimal.NewFromInt(1000),
			SenderName:      "Grace Wanjiru",
			SenderPhone:     "+254700000000",
		})
		s.Require().NoError(err)
		s.Equal("mpesa", payment.Method)
		s.Empty(payment.InvoiceNumber)

		stored, err := s.invoices.FindByNumber(s.ctx, inv.Number)
		s.Require().NoError(err)
		s.False(stored.IsPaid())
	})

	s.Run("activation links by transaction id and reconciles", func() {
		linked, result, err := s.service.ActivateMobileMoney(s.ctx, "MP-REF-1", inv.Number, "grace@example.com")
		s.Require().NoError(err)
		s.Require().Len(linked, 1)
		s.Equal(inv.Number, linked[0].InvoiceNumber)
		s.Equal("grace@example.com", linked[0].PaidBy.Email)
		s.Require().NotNil(result)
		s.Equal(models.InvoicePaid, result.Status)
	})

	s.Run("activation requires both identifiers", func() {
		_, _, err := s.service.ActivateMobileMoney(s.ctx, "", inv.Number, "")
		s.True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})

	s.Run("unknown transaction id is not found", func() {
		_, _, err := s.service.ActivateMobileMoney(s.ctx, "MP-REF-404", inv.Number, "")
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})

	s.Run("missing reference is rejected", func() {
		_, err := s.service.RecordMobileMoney(s.ctx, MobileMoneyEvent{})
		s.True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})
}
