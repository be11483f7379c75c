package models

import (
	"time"

	"github.com/shopspring/decimal"

	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
)

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
)

// InvoiceType is the explicit discriminator deciding which completion action
// runs when the invoice is fully paid. It is populated at creation time from
// the legacy free-text description, which is kept only as display metadata.
type InvoiceType string

const (
	TypeSubscription             InvoiceType = "subscription"
	TypeRegistrationSubscription InvoiceType = "registration_subscription"
	TypeDonation                 InvoiceType = "donation"
	TypeGeneric                  InvoiceType = "generic"
)

// Legacy description strings the portal frontend sends on invoice creation.
const (
	descSubscription             = "Annual Subscription"
	descRegistrationSubscription = "Member Registration and Annual Subscription"
	descDonation                 = "Donation"
)

// TypeFromDescription derives the typed discriminator from the legacy
// description text. Unknown descriptions map to TypeGeneric.
func TypeFromDescription(description string) InvoiceType {
	switch description {
	case descSubscription:
		return TypeSubscription
	case descRegistrationSubscription:
		return TypeRegistrationSubscription
	case descDonation:
		return TypeDonation
	default:
		return TypeGeneric
	}
}

// LineItem is a billed position on an invoice.
//
// Quantities are whole units; unit prices are decimal currency amounts. Both
// must be non-negative; validation rejects malformed items before any invoice
// state is touched.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Validate checks a single line item.
func (li LineItem) Validate() error {
	if li.Quantity < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "line item quantity must not be negative")
	}
	if li.UnitPrice.IsNegative() {
		return dErrors.New(dErrors.CodeBadRequest, "line item unit price must not be negative")
	}
	return nil
}

// Amount is quantity times unit price.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// Customer is the billed party snapshot stored on the invoice.
type Customer struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Company     string `json:"company,omitempty"`
}

// Invoice is the aggregate root for a billing record.
//
// Invariants:
//   - Number is unique and immutable after creation
//   - Status is unpaid or paid; paid never reverts automatically, only by an
//     explicit administrator edit
//   - CompletedAt is set exactly once, by the reconciliation run that first
//     observes the transition to paid; it gates completion dispatch
//   - TotalAmount/PaidAmount/Balance are derived, never persisted
//
// Payments reference invoices by Number as a plain string, not a foreign key:
// mobile-money callbacks can record a payment before the invoice it settles is
// known, and the linkage arrives later through payment activation.
type Invoice struct {
	ID          domain.InvoiceID       `json:"id"`
	Number      string                 `json:"invoice_number"`
	Description string                 `json:"description"`
	Type        InvoiceType            `json:"type"`
	Items       []LineItem             `json:"items"`
	Status      InvoiceStatus          `json:"status"`
	MemberID    domain.MemberID        `json:"member_id,omitempty"`
	DonationID  domain.DonationID      `json:"donation_id,omitempty"`
	Customer    Customer               `json:"customer"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	CreatedBy   domain.AdministratorID `json:"created_by,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Validate checks invoice construction invariants.
func (inv *Invoice) Validate() error {
	if inv.Number == "" {
		return dErrors.New(dErrors.CodeBadRequest, "invoice number is required")
	}
	if inv.Status != InvoiceUnpaid && inv.Status != InvoicePaid {
		return dErrors.Newf(dErrors.CodeBadRequest, "invalid invoice status %q", inv.Status)
	}
	for _, item := range inv.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TotalAmount sums quantity times unit price over all line items.
// An empty item list totals zero.
func (inv *Invoice) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(item.Amount())
	}
	return total
}

// IsPaid reports whether the invoice has been reconciled as fully paid.
func (inv *Invoice) IsPaid() bool { return inv.Status == InvoicePaid }

// CompletionDispatched reports whether a completion action already ran.
func (inv *Invoice) CompletionDispatched() bool { return inv.CompletedAt != nil }

// MarkPaid flips status to paid and records the completion marker. The caller
// must hold the store's per-invoice lock (Execute) for the exactly-once
// guarantee to hold.
func (inv *Invoice) MarkPaid(now time.Time) {
	inv.Status = InvoicePaid
	if inv.CompletedAt == nil {
		t := now
		inv.CompletedAt = &t
	}
	inv.LastUpdated = now
}

// InvoiceQuery filters invoice searches. Zero values mean "any".
type InvoiceQuery struct {
	NumberContains string
	Type           InvoiceType
	Status         InvoiceStatus
	Page           int
	Limit          int
}
