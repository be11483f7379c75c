package dashboard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	billingModels "ccak/internal/billing/models"
	invoiceStore "ccak/internal/billing/store/invoice"
	donationModels "ccak/internal/donation/models"
	donationStore "ccak/internal/donation/store"
	membershipModels "ccak/internal/membership/models"
	adminStore "ccak/internal/membership/store/administrator"
	memberStore "ccak/internal/membership/store/member"
)

type DashboardSuite struct {
	suite.Suite
	invoices  *invoiceStore.InMemory
	donations *donationStore.InMemory
	members   *memberStore.InMemory
	admins    *adminStore.InMemory
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.invoices = invoiceStore.NewInMemory()
	s.donations = donationStore.NewInMemory()
	s.members = memberStore.NewInMemory()
	s.admins = adminStore.NewInMemory()
	s.service = New(s.invoices, s.donations, s.members, s.admins, logger)
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *DashboardSuite) seedInvoice(number string, status billingModels.InvoiceStatus, items ...billingModels.LineItem) {
	s.Require().NoError(s.invoices.Create(s.ctx, &billingModels.Invoice{
		Number:    number,
		Type:      billingModels.TypeGeneric,
		Items:     items,
		Status:    status,
		CreatedAt: s.now,
	}))
}

func (s *DashboardSuite) TestMoney() {
	s.seedInvoice("INV-20240601-001", billingModels.InvoicePaid,
		billingModels.LineItem{Name: "Annual Subscription", Quantity: 1, UnitPrice: decimal.NewFromInt(1000)},
		billingModels.LineItem{Name: "Registration Fee", Quantity: 1, UnitPrice: decimal.NewFromInt(500)})
	s.seedInvoice("INV-20240601-002", billingModels.InvoiceUnpaid,
		billingModels.LineItem{Name: "Conference Ticket", Quantity: 2, UnitPrice: decimal.NewFromInt(300)})
	s.Require().NoError(s.donations.Create(s.ctx, &donationModels.Donation{
		FirstName: "Peter",
		Email:     "peter@example.com",
		Amount:    decimal.NewFromInt(2500),
		Status:    donationModels.DonationPaid,
		CreatedAt: s.now,
	}))
	s.Require().NoError(s.donations.Create(s.ctx, &donationModels.Donation{
		FirstName: "Pending",
		Email:     "pending@example.com",
		Amount:    decimal.NewFromInt(999),
		Status:    donationModels.DonationUnpaid,
		CreatedAt: s.now,
	}))

	stats, err := s.service.Money(s.ctx)
	s.Require().NoError(err)

	s.True(stats.Completed.Equal(decimal.NewFromInt(1500)))
	s.True(stats.Pending.Equal(decimal.NewFromInt(600)))
	// Unpaid donations stay out of the donations figure.
	s.True(stats.Donations.Equal(decimal.NewFromInt(2500)))
	// Only the subscription line item of the paid invoice counts.
	s.True(stats.Subscriptions.Equal(decimal.NewFromInt(1000)))
}

func (s *DashboardSuite) TestMembers() {
	seed := []struct {
		email string
		sub   membershipModels.SubscriptionStatus
		reg   membershipModels.RegistrationStatus
	}{
		{"a@example.com", membershipModels.SubscriptionActive, membershipModels.Registered},
		{"b@example.com", membershipModels.SubscriptionInactive, membershipModels.Registered},
		{"c@example.com", membershipModels.SubscriptionInactive, membershipModels.Unregistered},
	}
	for _, m := range seed {
		s.Require().NoError(s.members.Create(s.ctx, &membershipModels.Member{
			FirstName:          "Member",
			Email:              m.email,
			SubscriptionStatus: m.sub,
			RegistrationStatus: m.reg,
			CreatedAt:          s.now,
		}))
	}

	stats, err := s.service.Members(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.Subscribed)
	s.Equal(2, stats.Unsubscribed)
	s.Equal(2, stats.Registered)
	s.Equal(1, stats.Unregistered)
}

func (s *DashboardSuite) TestGeneral() {
	s.Require().NoError(s.members.Create(s.ctx, &membershipModels.Member{
		FirstName: "Member",
		Email:     "a@example.com",
		CreatedAt: s.now,
	}))
	s.Require().NoError(s.admins.Create(s.ctx, &membershipModels.Administrator{
		Email:    "jane@ccak.or.ke",
		Username: "jane@ccak.or.ke",
		Role:     "admin",
		Status:   "active",
	}))

	stats, err := s.service.General(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.Members)
	s.Equal(1, stats.Administrators)
}
