package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceModelSuite struct {
	suite.Suite
}

func TestInvoiceModelSuite(t *testing.T) {
	suite.Run(t, new(InvoiceModelSuite))
}

func (s *InvoiceModelSuite) TestTypeFromDescription() {
	s.Run("annual subscription maps to subscription", func() {
		s.Equal(TypeSubscription, TypeFromDescription("Annual Subscription"))
	})

	s.Run("combined registration maps to registration_subscription", func() {
		s.Equal(TypeRegistrationSubscription, TypeFromDescription("Member Registration and Annual Subscription"))
	})

	s.Run("donation maps to donation", func() {
		s.Equal(TypeDonation, TypeFromDescription("Donation"))
	})

	s.Run("anything else maps to generic", func() {
		s.Equal(TypeGeneric, TypeFromDescription("Conference Ticket"))
		s.Equal(TypeGeneric, TypeFromDescription(""))
		// Matching is exact, not substring.
		s.Equal(TypeGeneric, TypeFromDescription("annual subscription"))
		s.Equal(TypeGeneric, TypeFromDescription("Donation Drive 2024"))
	})
}

func (s *InvoiceModelSuite) TestTotalAmount() {
	s.Run("sums quantity times unit price", func() {
		inv := &Invoice{
			Items: []LineItem{
				{Name: "Annual Subscription", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
				{Name: "Handbook", Quantity: 1, UnitPrice: decimal.RequireFromString("49.99")},
			},
		}
		s.True(inv.TotalAmount().Equal(decimal.RequireFromString("1049.99")))
	})

	s.Run("empty item list totals zero", func() {
		inv := &Invoice{}
		s.True(inv.TotalAmount().IsZero())
	})
}

func (s *InvoiceModelSuite) TestLineItemValidate() {
	s.Run("negative quantity rejected", func() {
		item := LineItem{Name: "x", Quantity: -1, UnitPrice: decimal.NewFromInt(10)}
		s.Error(item.Validate())
	})

	s.Run("negative unit price rejected", func() {
		item := LineItem{Name: "x", Quantity: 1, UnitPrice: decimal.NewFromInt(-10)}
		s.Error(item.Validate())
	})

	s.Run("zero values allowed", func() {
		item := LineItem{Name: "x"}
		s.NoError(item.Validate())
	})
}

func (s *InvoiceModelSuite) TestMarkPaid() {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	inv := &Invoice{Number: "INV-20240601-001", Status: InvoiceUnpaid}
	s.False(inv.CompletionDispatched())

	inv.MarkPaid(now)
	s.Equal(InvoicePaid, inv.Status)
	s.Require().NotNil(inv.CompletedAt)
	s.Equal(now, *inv.CompletedAt)

	// The completion marker is written once; re-marking never moves it.
	inv.MarkPaid(later)
	s.Equal(now, *inv.CompletedAt)
	s.Equal(later, inv.LastUpdated)
}
