package models

import (
	"time"

	"github.com/shopspring/decimal"

	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
)

// DonationStatus tracks whether the pledged amount has been collected.
type DonationStatus string

const (
	DonationUnpaid DonationStatus = "unpaid"
	DonationPaid   DonationStatus = "paid"
)

// Donation is a pledged contribution. The linked invoice number ties it to the
// billing reconciliation flow; Status flips to paid when that invoice settles.
type Donation struct {
	ID            domain.DonationID `json:"id"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Email         string            `json:"email"`
	PhoneNumber   string            `json:"phone_number"`
	Company       string            `json:"company,omitempty"`
	Designation   string            `json:"designation,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	InvoiceNumber string            `json:"invoice_number,omitempty"`
	Status        DonationStatus    `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// Validate checks donation construction invariants.
func (d *Donation) Validate() error {
	if d.FirstName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "donor first name is required")
	}
	if d.Email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "donor email is required")
	}
	if d.Amount.IsNegative() {
		return dErrors.New(dErrors.CodeBadRequest, "donation amount must not be negative")
	}
	return nil
}

// MarkPaid flips the donation to paid.
func (d *Donation) MarkPaid(now time.Time) {
	d.Status = DonationPaid
	d.LastUpdated = now
}

// DonationTotals aggregates donation amounts for reporting.
type DonationTotals struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// DonationQuery filters donation searches. Zero values mean "any".
type DonationQuery struct {
	Keyword string
	Status  DonationStatus
	Page    int
	Limit   int
}
