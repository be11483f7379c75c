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
	donationModels "ccak/internal/donation/models"
	donationService "ccak/internal/donation/service"
	donationStore "ccak/internal/donation/store"
	membershipModels "ccak/internal/membership/models"
	membershipService "ccak/internal/membership/service"
	memberStore "ccak/internal/membership/store/member"
	"ccak/internal/notification"
)

type CompletionDispatcherSuite struct {
	suite.Suite
	members    *memberStore.InMemory
	donations  *donationStore.InMemory
	notifier   *stubNotifier
	dispatcher *CompletionDispatcher
	ctx        context.Context
	now        time.Time
}

func TestCompletionDispatcherSuite(t *testing.T) {
	suite.Run(t, new(CompletionDispatcherSuite))
}

func (s *CompletionDispatcherSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.members = memberStore.NewInMemory()
	s.donations = donationStore.NewInMemory()
	s.notifier = &stubNotifier{accept: true}
	s.dispatcher = NewCompletionDispatcher(
		membershipService.NewMemberService(s.members, logger),
		donationService.New(s.donations, logger),
		s.notifier,
		"finance@ccak.or.ke",
		nil,
		logger,
	)
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
}

func (s *CompletionDispatcherSuite) paidInvoice(invType models.InvoiceType) *models.Invoice {
	completed := s.now
	return &models.Invoice{
		ID:          1,
		Number:      "INV-20240601-001",
		Type:        invType,
		Items:       []models.LineItem{{Name: "Item", Quantity: 1, UnitPrice: decimal.NewFromInt(1000)}},
		Status:      models.InvoicePaid,
		CompletedAt: &completed,
		Customer:    models.Customer{Name: "Grace Wanjiru"},
	}
}

func (s *CompletionDispatcherSuite) TestGenericInvoiceNotifiesFinanceOnly() {
	ok := s.dispatcher.Dispatch(s.ctx, s.paidInvoice(models.TypeGeneric), s.now)
	s.True(ok)

	sent := s.notifier.sent()
	s.Require().Len(sent, 1)
	s.Equal("finance@ccak.or.ke", sent[0].Recipient)
	s.Equal(notification.TemplatePaidInvoice, sent[0].Template)
	s.Equal("Invoice INV-20240601-001 has been paid", sent[0].Subject)
}

func (s *CompletionDispatcherSuite) TestSubscriptionWithoutMemberStillNotifiesFinance() {
	ok := s.dispatcher.Dispatch(s.ctx, s.paidInvoice(models.TypeSubscription), s.now)
	s.True(ok)
	s.Len(s.notifier.sent(), 1)
}

func (s *CompletionDispatcherSuite) TestReplayedSubscriptionIsIdempotent() {
	member := &membershipModels.Member{
		FirstName:          "Grace",
		Email:              "grace@example.com",
		RegistrationStatus: membershipModels.Registered,
		SubscriptionStatus: membershipModels.SubscriptionActive,
		SubscriptionExpiry: s.now.AddDate(1, 0, 0),
	}
	s.Require().NoError(s.members.Create(s.ctx, member))

	inv := s.paidInvoice(models.TypeSubscription)
	inv.MemberID = member.ID

	// The member is already active, so the activation is a replay: no member
	// email, finance still notified, reported as success.
	ok := s.dispatcher.Dispatch(s.ctx, inv, s.now)
	s.True(ok)
	s.Len(s.notifier.sent(), 1)

	got, err := s.members.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal(s.now.AddDate(1, 0, 0), got.SubscriptionExpiry)
}

func (s *CompletionDispatcherSuite) TestRegisteredLapsedMemberNotReactivated() {
	member := &membershipModels.Member{
		FirstName:          "Grace",
		Email:              "grace@example.com",
		RegistrationStatus: membershipModels.Registered,
		SubscriptionStatus: membershipModels.SubscriptionInactive,
	}
	s.Require().NoError(s.members.Create(s.ctx, member))

	inv := s.paidInvoice(models.TypeRegistrationSubscription)
	inv.MemberID = member.ID

	// The combined activation only applies to brand-new members. A lapsed
	// member renews through a subscription invoice, so this one is skipped:
	// no welcome email, no state change, finance still notified.
	ok := s.dispatcher.Dispatch(s.ctx, inv, s.now)
	s.True(ok)

	sent := s.notifier.sent()
	s.Require().Len(sent, 1)
	s.Equal("finance@ccak.or.ke", sent[0].Recipient)

	got, err := s.members.FindByID(s.ctx, member.ID)
	s.Require().NoError(err)
	s.Equal(membershipModels.SubscriptionInactive, got.SubscriptionStatus)
	s.Equal(membershipModels.Registered, got.RegistrationStatus)
}

func (s *CompletionDispatcherSuite) TestReplayedDonationIsIdempotent() {
	donation := &donationModels.Donation{
		FirstName:     "Peter",
		Email:         "peter@example.com",
		Amount:        decimal.NewFromInt(2500),
		InvoiceNumber: "INV-20240601-001",
		Status:        donationModels.DonationPaid,
	}
	s.Require().NoError(s.donations.Create(s.ctx, donation))

	ok := s.dispatcher.Dispatch(s.ctx, s.paidInvoice(models.TypeDonation), s.now)
	s.True(ok)
	s.Len(s.notifier.sent(), 1)
}

func (s *CompletionDispatcherSuite) TestFailedFinanceNotificationIsReported() {
	s.notifier.accept = false
	ok := s.dispatcher.Dispatch(s.ctx, s.paidInvoice(models.TypeGeneric), s.now)
	s.False(ok)
}
