package models

import (
	"time"

	"github.com/shopspring/decimal"

	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
)

// Payer is the contact snapshot recorded with a payment.
type Payer struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Payment is a settlement recorded against an invoice number.
//
// TransactionID is the de-duplication key: mobile-money webhooks redeliver on
// timeout, so the same transaction can be recorded more than once. Aggregation
// counts each transaction id once (oldest record wins).
//
// InvoiceNumber is a plain string key, not a foreign key. Asynchronous
// mobile-money payments arrive before the invoice is known; the linkage is
// patched in later via payment activation.
type Payment struct {
	ID            domain.PaymentID       `json:"id"`
	TransactionID string                 `json:"transaction_id"`
	Method        string                 `json:"method"`
	InvoiceNumber string                 `json:"invoice_number"`
	Timestamp     string                 `json:"timestamp,omitempty"`
	Amount        decimal.Decimal        `json:"amount"`
	PaidBy        Payer                  `json:"paid_by"`
	CreatedBy     domain.AdministratorID `json:"created_by,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	LastUpdated   time.Time              `json:"last_updated"`
}

// Validate checks payment construction invariants.
func (p *Payment) Validate() error {
	if p.Method == "" {
		return dErrors.New(dErrors.CodeBadRequest, "payment method is required")
	}
	if p.Amount.IsNegative() {
		return dErrors.New(dErrors.CodeBadRequest, "payment amount must not be negative")
	}
	return nil
}

// PaymentQuery filters payment searches. Keyword matches invoice number,
// transaction id, payer name, or payer phone number (case-insensitive,
// word-by-word, any match qualifies).
type PaymentQuery struct {
	Method  string
	Keyword string
	Page    int
	Limit   int
}
