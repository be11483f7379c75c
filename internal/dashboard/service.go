// Package dashboard aggregates reporting figures over the domain stores.
package dashboard

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	billingModels "ccak/internal/billing/models"
	donationModels "ccak/internal/donation/models"
	membershipModels "ccak/internal/membership/models"
	domainerrors "ccak/pkg/domain-errors"
)

// InvoiceLister loads invoices filtered by status.
type InvoiceLister interface {
	Search(ctx context.Context, q billingModels.InvoiceQuery) ([]*billingModels.Invoice, error)
}

// DonationTotaler sums donations by status.
type DonationTotaler interface {
	TotalAmount(ctx context.Context, status donationModels.DonationStatus) (donationModels.DonationTotals, error)
}

// MemberCounter tallies members per status pair.
type MemberCounter interface {
	CountBy(ctx context.Context, sub membershipModels.SubscriptionStatus, reg membershipModels.RegistrationStatus) (int, error)
}

// AdministratorCounter tallies administrator accounts.
type AdministratorCounter interface {
	Count(ctx context.Context) (int, error)
}

// Service computes dashboard statistics.
type Service struct {
	invoices  InvoiceLister
	donations DonationTotaler
	members   MemberCounter
	admins    AdministratorCounter
	logger    *slog.Logger
}

func New(invoices InvoiceLister, donations DonationTotaler, members MemberCounter, admins AdministratorCounter, logger *slog.Logger) *Service {
	return &Service{
		invoices:  invoices,
		donations: donations,
		members:   members,
		admins:    admins,
		logger:    logger,
	}
}

// MoneyStats summarizes invoice and donation money flows.
type MoneyStats struct {
	Completed     decimal.Decimal `json:"completed"`
	Pending       decimal.Decimal `json:"pending"`
	Donations     decimal.Decimal `json:"donations"`
	Subscriptions decimal.Decimal `json:"subscriptions"`
}

// Money sums paid and unpaid invoice totals, paid donations, and the
// subscription share of paid invoices (line items whose name mentions
// "subscription").
func (s *Service) Money(ctx context.Context) (*MoneyStats, error) {
	paid, err := s.invoices.Search(ctx, billingModels.InvoiceQuery{Status: billingModels.InvoicePaid})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load paid invoices")
	}
	unpaid, err := s.invoices.Search(ctx, billingModels.InvoiceQuery{Status: billingModels.InvoiceUnpaid})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load unpaid invoices")
	}
	donations, err := s.donations.TotalAmount(ctx, donationModels.DonationPaid)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to total donations")
	}

	stats := &MoneyStats{
		Completed:     sumInvoices(paid),
		Pending:       sumInvoices(unpaid),
		Donations:     donations.Amount,
		Subscriptions: sumSubscriptionItems(paid),
	}
	return stats, nil
}

// MemberStats tallies members by subscription and registration status.
type MemberStats struct {
	Subscribed   int `json:"subscribed"`
	Unsubscribed int `json:"unsubscribed"`
	Registered   int `json:"registered"`
	Unregistered int `json:"unregistered"`
}

func (s *Service) Members(ctx context.Context) (*MemberStats, error) {
	stats := &MemberStats{}
	counts := []struct {
		dst *int
		sub membershipModels.SubscriptionStatus
		reg membershipModels.RegistrationStatus
	}{
		{&stats.Subscribed, membershipModels.SubscriptionActive, ""},
		{&stats.Unsubscribed, membershipModels.SubscriptionInactive, ""},
		{&stats.Registered, "", membershipModels.Registered},
		{&stats.Unregistered, "", membershipModels.Unregistered},
	}
	for _, c := range counts {
		n, err := s.members.CountBy(ctx, c.sub, c.reg)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to count members")
		}
		*c.dst = n
	}
	return stats, nil
}

// GeneralStats tallies top-level entity counts.
type GeneralStats struct {
	Members        int `json:"members"`
	Administrators int `json:"administrators"`
}

func (s *Service) General(ctx context.Context) (*GeneralStats, error) {
	members, err := s.members.CountBy(ctx, "", "")
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to count members")
	}
	admins, err := s.admins.Count(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to count administrators")
	}
	return &GeneralStats{Members: members, Administrators: admins}, nil
}

func sumInvoices(invoices []*billingModels.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.TotalAmount())
	}
	return total
}

func sumSubscriptionItems(invoices []*billingModels.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		for _, item := range inv.Items {
			if strings.Contains(strings.ToLower(item.Name), "subscription") {
				total = total.Add(item.Amount())
			}
		}
	}
	return total
}
