// Package notification delivers templated emails triggered by domain events.
//
// The state write that triggers a notification always commits first; delivery
// is best-effort. A failed or slow mail transport must never block or roll
// back payment processing, so callers go through the Dispatcher, which hands
// messages to a background worker.
package notification

import "context"

// Template names map to the portal's rendered email templates.
const (
	TemplateAnnualSubscription             = "member_annual_subscription.html"
	TemplateRegistrationAnnualSubscription = "member_registration_annual_subscription.html"
	TemplateDonationReceived               = "donation_received.html"
	TemplatePaidInvoice                    = "paid_invoice.html"
)

// Message is a notification to one recipient.
type Message struct {
	Recipient string
	Subject   string
	Template  string
	Data      map[string]any
}

// Sender delivers a single message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
