package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"ccak/internal/billing/models"
	invoiceStore "ccak/internal/billing/store/invoice"
	paymentStore "ccak/internal/billing/store/payment"
	donationModels "ccak/internal/donation/models"
	donationService "ccak/internal/donation/service"
	donationStore "ccak/internal/donation/store"
	membershipModels "ccak/internal/membership/models"
	membershipService "ccak/internal/membership/service"
	memberStore "ccak/internal/membership/store/member"
	"ccak/internal/notification"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

// =============================================================================
// Reconciler Test Suite
// =============================================================================
// Justification for unit tests: reconciliation carries the money-handling
// invariants (derived balance, exactly-once completion, duplicate payment
// handling) that E2E tests cannot race deterministically.

// stubNotifier records Dispatch calls synchronously so tests can assert on
// exactly which notifications a completion produced.
type stubNotifier struct {
	mu       sync.Mutex
	accept   bool
	messages []notification.Message
}

func (n *stubNotifier) Dispatch(ctx context.Context, msg notification.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.accept
}

func (n *stubNotifier) sent() []notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.Message, len(n.messages))
	copy(out, n.messages)
	return out
}

type ReconcilerSuite struct {
	suite.Suite
	invoices   *invoiceStore.InMemory
	payments   *paymentStore.InMemory
	members    *memberStore.InMemory
	donations  *donationStore.InMemory
	notifier   *stubNotifier
	reconciler *Reconciler
	ctx        context.Context
	now        time.Time
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.invoices = invoiceStore.NewInMemory()
	s.payments = paymentStore.NewInMemory()
	s.members = memberStore.NewInMemory()
	s.donations = donationStore.NewInMemory()
	s.notifier = &stubNotifier{accept: true}

	memberSvc := membershipService.NewMemberService(s.members, logger)
	donationSvc := donationService.New(s.donations, logger)
	completion := NewCompletionDispatcher(memberSvc, donationSvc, s.notifier, "finance@ccak.or.ke", nil, logger)
	s.reconciler = NewReconciler(s.invoices, s.payments, completion, nil, nil, nil, logger)

	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ReconcilerSuite) seedInvoice(number string, invType models.InvoiceType, items ...models.LineItem) *models.Invoice {
	inv := &models.Invoice{
		Number:      number,
		Description: "Annual Subscription",
		Type:        invType,
		Items:       items,
		Status:      models.InvoiceUnpaid,
		CreatedAt:   s.now,
		LastUpdated: s.now,
	}
	s.Require().NoError(s.invoices.Create(s.ctx, inv))
	return inv
}

func (s *ReconcilerSuite) seedPayment(invoiceNumber, transactionID string, amount int64) {
	s.Require().NoError(s.payments.Create(s.ctx, &models.Payment{
		TransactionID: transactionID,
		Method:        "mpesa",
		InvoiceNumber: invoiceNumber,
		Amount:        decimal.NewFromInt(amount),
		CreatedAt:     s.now,
	}))
}

func (s *ReconcilerSuite) seedMember() *membershipModels.Member {
	m := &membershipModels.Member{
		FirstName:          "Grace",
		LastName:           "Wanjiru",
		Email:              "grace@example.com",
		RegistrationStatus: membershipModels.Unregistered,
		SubscriptionStatus: membershipModels.SubscriptionInactive,
		Status:             "active",
		CreatedAt:          s.now,
	}
	s.Require().NoError(s.members.Create(s.ctx, m))
	return m
}

func item(name string, qty int64, unitPrice int64) models.LineItem {
	return models.LineItem{Name: name, Quantity: qty, UnitPrice: decimal.NewFromInt(unitPrice)}
}

// =============================================================================
// Balance Derivation
// =============================================================================

func (s *ReconcilerSuite) TestBalanceDerivation() {
	s.Run("partial payment leaves invoice unpaid with outstanding balance", func() {
		inv := s.seedInvoice("INV-20240601-001", models.TypeGeneric, item("Seat", 2, 500))
		s.seedPayment(inv.Number, "TX-1", 600)

		result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
		s.Require().NoError(err)

		s.True(result.TotalAmount.Equal(decimal.NewFromInt(1000)))
		s.True(result.PaidAmount.Equal(decimal.NewFromInt(600)))
		s.True(result.Balance.Equal(decimal.NewFromInt(400)))
		s.Equal(models.InvoiceUnpaid, result.Status)
		s.False(result.CompletionFired)

		stored, err := s.invoices.FindByNumber(s.ctx, inv.Number)
		s.Require().NoError(err)
		s.False(stored.IsPaid())
	})

	s.Run("balance is always total minus paid", func() {
		inv := s.seedInvoice("INV-20240601-002", models.TypeGeneric, item("Seat", 1, 1000))
		s.seedPayment(inv.Number, "TX-2", 250)
		s.seedPayment(inv.Number, "TX-3", 250)

		result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
		s.Require().NoError(err)
		s.True(result.Balance.Equal(result.TotalAmount.Sub(result.PaidAmount)))
	})

	s.Run("missing invoice is not found", func() {
		_, err := s.reconciler.Reconcile(s.ctx, "INV-00000000-404")
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})
}

func (s *ReconcilerSuite) TestFullPaymentMarksPaid() {
	inv := s.seedInvoice("INV-20240601-001", models.TypeGeneric, item("Seat", 2, 500))
	s.seedPayment(inv.Number, "TX-1", 600)
	s.seedPayment(inv.Number, "TX-2", 400)

	result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)

	s.Equal(models.InvoicePaid, result.Status)
	s.True(result.Balance.IsZero())
	s.True(result.CompletionFired)
	s.Empty(result.Notification)

	stored, err := s.invoices.FindByNumber(s.ctx, inv.Number)
	s.Require().NoError(err)
	s.True(stored.IsPaid())
	s.Require().NotNil(stored.CompletedAt)
	s.Equal(s.now, *stored.CompletedAt)
}

func (s *ReconcilerSuite) TestOverpayment() {
	inv := s.seedInvoice("INV-20240601-001", models.TypeGeneric, item("Seat", 1, 1000))
	s.seedPayment(inv.Number, "TX-1", 1200)

	result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)

	s.Equal(models.InvoicePaid, result.Status)
	s.True(result.Balance.Equal(decimal.NewFromInt(-200)))
}

// =============================================================================
// Exactly-Once Completion
// =============================================================================

func (s *ReconcilerSuite) TestCompletionFiresOnce() {
	member := s.seedMember()
	inv := s.seedInvoice("INV-20240601-001", models.TypeSubscription, item("Annual Subscription", 1, 1000))
	inv.MemberID = member.ID
	s.Require().NoError(s.invoices.Update(s.ctx, inv))
	s.seedPayment(inv.Number, "TX-1", 1000)

	first, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)
	s.True(first.CompletionFired)

	second, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)
	s.Equal(models.InvoicePaid, second.Status)
	s.False(second.CompletionFired)

	// One member notification plus one finance notification, despite two runs.
	s.Len(s.notifier.sent(), 2)

	got, err := s.members.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal(membershipModels.SubscriptionActive, got.SubscriptionStatus)
	s.Equal(s.now.AddDate(1, 0, 0), got.SubscriptionExpiry)
}

func (s *ReconcilerSuite) TestConcurrentReconcile() {
	member := s.seedMember()
	inv := s.seedInvoice("INV-20240601-001", models.TypeSubscription, item("Annual Subscription", 1, 1000))
	inv.MemberID = member.ID
	s.Require().NoError(s.invoices.Update(s.ctx, inv))
	s.seedPayment(inv.Number, "TX-1", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
			s.NoError(err)
			s.Equal(models.InvoicePaid, result.Status)
		}()
	}
	wg.Wait()

	// However the runs interleave, the completion action ran exactly once.
	s.Len(s.notifier.sent(), 2)
	got, err := s.members.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal(membershipModels.SubscriptionActive, got.SubscriptionStatus)
}

// =============================================================================
// Duplicate Payments
// =============================================================================

func (s *ReconcilerSuite) TestDuplicateTransactions() {
	s.Run("redelivered transaction is counted once", func() {
		inv := s.seedInvoice("INV-20240601-001", models.TypeGeneric, item("Seat", 1, 1000))
		s.seedPayment(inv.Number, "TX-1", 600)
		s.seedPayment(inv.Number, "TX-1", 600)

		result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
		s.Require().NoError(err)

		s.True(result.PaidAmount.Equal(decimal.NewFromInt(600)))
		s.Equal(models.InvoiceUnpaid, result.Status)
	})

	s.Run("payments without a transaction id are summed as-is", func() {
		inv := s.seedInvoice("INV-20240601-002", models.TypeGeneric, item("Seat", 1, 1000))
		s.seedPayment(inv.Number, "", 500)
		s.seedPayment(inv.Number, "", 500)

		result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
		s.Require().NoError(err)

		s.True(result.PaidAmount.Equal(decimal.NewFromInt(1000)))
		s.Equal(models.InvoicePaid, result.Status)
	})
}

// =============================================================================
// Completion Actions and Notifications
// =============================================================================

func (s *ReconcilerSuite) TestRegistrationSubscriptionCompletion() {
	member := s.seedMember()
	inv := s.seedInvoice("INV-20240601-001", models.TypeRegistrationSubscription,
		item("Member Registration", 1, 500), item("Annual Subscription", 1, 1000))
	inv.MemberID = member.ID
	s.Require().NoError(s.invoices.Update(s.ctx, inv))
	s.seedPayment(inv.Number, "TX-1", 1500)

	result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)
	s.True(result.CompletionFired)

	got, err := s.members.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal(membershipModels.Registered, got.RegistrationStatus)
	s.Equal(membershipModels.SubscriptionActive, got.SubscriptionStatus)

	sent := s.notifier.sent()
	s.Require().Len(sent, 2)
	s.Equal(member.Email, sent[0].Recipient)
	s.Equal(notification.TemplateRegistrationAnnualSubscription, sent[0].Template)
	s.Equal("finance@ccak.or.ke", sent[1].Recipient)
	s.Equal(notification.TemplatePaidInvoice, sent[1].Template)
}

func (s *ReconcilerSuite) TestDonationCompletion() {
	inv := s.seedInvoice("INV-20240601-001", models.TypeDonation, item("Donation", 1, 2500))
	donation := &donationModels.Donation{
		FirstName:     "Peter",
		Email:         "peter@example.com",
		Amount:        decimal.NewFromInt(2500),
		InvoiceNumber: inv.Number,
		Status:        donationModels.DonationUnpaid,
		CreatedAt:     s.now,
	}
	s.Require().NoError(s.donations.Create(s.ctx, donation))
	s.seedPayment(inv.Number, "TX-1", 2500)

	_, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)

	got, err := s.donations.FindByID(s.ctx, donation.ID)
	s.Require().NoError(err)
	s.Equal(donationModels.DonationPaid, got.Status)

	sent := s.notifier.sent()
	s.Require().Len(sent, 2)
	s.Equal(donation.Email, sent[0].Recipient)
	s.Equal(notification.TemplateDonationReceived, sent[0].Template)
}

func (s *ReconcilerSuite) TestNotificationFailureNeverBlocksPayment() {
	s.notifier.accept = false
	inv := s.seedInvoice("INV-20240601-001", models.TypeGeneric, item("Seat", 1, 1000))
	s.seedPayment(inv.Number, "TX-1", 1000)

	result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)

	// The state write committed; only the notification outcome is surfaced.
	s.True(result.CompletionFired)
	s.Equal("failed", result.Notification)

	stored, err := s.invoices.FindByNumber(s.ctx, inv.Number)
	s.Require().NoError(err)
	s.True(stored.IsPaid())
}

func (s *ReconcilerSuite) TestPaidInvoiceNeverReverts() {
	inv := s.seedInvoice("INV-20240601-001", models.TypeGeneric, item("Seat", 1, 1000))
	p := &models.Payment{
		TransactionID: "TX-1",
		Method:        "mpesa",
		InvoiceNumber: inv.Number,
		Amount:        decimal.NewFromInt(1000),
		CreatedAt:     s.now,
	}
	s.Require().NoError(s.payments.Create(s.ctx, p))

	_, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)

	// Deleting the payment drops the paid amount below the total; the status
	// stays paid, only the derived figures move.
	s.Require().NoError(s.payments.Delete(s.ctx, p.ID))
	result, err := s.reconciler.Reconcile(s.ctx, inv.Number)
	s.Require().NoError(err)
	s.Equal(models.InvoicePaid, result.Status)
	s.True(result.PaidAmount.IsZero())
	s.True(result.Balance.Equal(decimal.NewFromInt(1000)))
	s.False(result.CompletionFired)
}
