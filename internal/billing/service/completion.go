package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ccak/internal/billing/metrics"
	"ccak/internal/billing/models"
	donationModels "ccak/internal/donation/models"
	membershipModels "ccak/internal/membership/models"
	"ccak/internal/notification"
	"ccak/pkg/domain"
	domainerrors "ccak/pkg/domain-errors"
)

// MemberActivator mutates membership state when a subscription invoice settles.
type MemberActivator interface {
	Subscribe(ctx context.Context, id domain.MemberID, now time.Time) (*membershipModels.Member, error)
	SubscribeAndActivate(ctx context.Context, id domain.MemberID, now time.Time) (*membershipModels.Member, error)
}

// DonationSettler flips the linked donation to paid.
type DonationSettler interface {
	MarkPaidByInvoice(ctx context.Context, invoiceNumber string, now time.Time) (*donationModels.Donation, error)
}

// Notifier enqueues a notification without blocking. The return reports
// whether the message was accepted for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, msg notification.Message) bool
}

// CompletionDispatcher runs the per-type completion action when an invoice
// first transitions to paid. The reconciler guarantees at most one Dispatch
// call per invoice; each action here is one state write plus best-effort
// notifications.
type CompletionDispatcher struct {
	members          MemberActivator
	donations        DonationSettler
	notifier         Notifier
	financeRecipient string
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

func NewCompletionDispatcher(
	members MemberActivator,
	donations DonationSettler,
	notifier Notifier,
	financeRecipient string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CompletionDispatcher {
	return &CompletionDispatcher{
		members:          members,
		donations:        donations,
		notifier:         notifier,
		financeRecipient: financeRecipient,
		metrics:          m,
		logger:           logger,
	}
}

// Dispatch runs the completion action for a just-paid invoice and reports
// whether every attempted notification was accepted for delivery. The invoice
// state write has already committed, so downstream failures are logged and
// counted, never propagated.
func (d *CompletionDispatcher) Dispatch(ctx context.Context, inv *models.Invoice, now time.Time) bool {
	notified := true
	switch inv.Type {
	case models.TypeSubscription:
		notified = d.subscribeMember(ctx, inv, now)
	case models.TypeRegistrationSubscription:
		notified = d.registerAndSubscribeMember(ctx, inv, now)
	case models.TypeDonation:
		notified = d.settleDonation(ctx, inv, now)
	case models.TypeGeneric:
		// No domain side effect; the finance notification below still fires.
	}

	// Every completion notifies the finance recipient, whatever the type.
	financeNotified := d.notifier.Dispatch(ctx, notification.Message{
		Recipient: d.financeRecipient,
		Subject:   fmt.Sprintf("Invoice %s has been paid", inv.Number),
		Template:  notification.TemplatePaidInvoice,
		Data: map[string]any{
			"invoice_number": inv.Number,
			"description":    inv.Description,
			"total_amount":   inv.TotalAmount().String(),
			"customer_name":  inv.Customer.Name,
		},
	})

	d.metrics.IncrementCompletions(string(inv.Type))
	d.logger.InfoContext(ctx, "completion dispatched",
		"invoice_number", inv.Number,
		"type", string(inv.Type),
	)
	return notified && financeNotified
}

func (d *CompletionDispatcher) subscribeMember(ctx context.Context, inv *models.Invoice, now time.Time) bool {
	if inv.MemberID.IsZero() {
		d.logger.WarnContext(ctx, "subscription invoice has no member", "invoice_number", inv.Number)
		return true
	}
	member, err := d.members.Subscribe(ctx, inv.MemberID, now)
	if err != nil {
		// Already-active is a replayed completion, not a failure.
		if domainerrors.HasCode(err, domainerrors.CodeConflict) {
			d.logger.InfoContext(ctx, "subscription already active, skipping",
				"invoice_number", inv.Number, "member_id", inv.MemberID)
			return true
		}
		d.logger.ErrorContext(ctx, "subscription activation failed",
			"error", err.Error(), "invoice_number", inv.Number, "member_id", inv.MemberID)
		return true
	}
	return d.notifier.Dispatch(ctx, notification.Message{
		Recipient: member.Email,
		Subject:   "Your annual subscription is active",
		Template:  notification.TemplateAnnualSubscription,
		Data: map[string]any{
			"first_name":          member.FirstName,
			"subscription_expiry": member.SubscriptionExpiry.Format("2 January 2006"),
			"invoice_number":      inv.Number,
		},
	})
}

func (d *CompletionDispatcher) registerAndSubscribeMember(ctx context.Context, inv *models.Invoice, now time.Time) bool {
	if inv.MemberID.IsZero() {
		d.logger.WarnContext(ctx, "registration invoice has no member", "invoice_number", inv.Number)
		return true
	}
	member, err := d.members.SubscribeAndActivate(ctx, inv.MemberID, now)
	if err != nil {
		if domainerrors.HasCode(err, domainerrors.CodeConflict) {
			d.logger.InfoContext(ctx, "member already registered or subscribed, skipping",
				"invoice_number", inv.Number, "member_id", inv.MemberID)
			return true
		}
		d.logger.ErrorContext(ctx, "member activation failed",
			"error", err.Error(), "invoice_number", inv.Number, "member_id", inv.MemberID)
		return true
	}
	return d.notifier.Dispatch(ctx, notification.Message{
		Recipient: member.Email,
		Subject:   "Welcome aboard - registration and subscription confirmed",
		Template:  notification.TemplateRegistrationAnnualSubscription,
		Data: map[string]any{
			"first_name":          member.FirstName,
			"subscription_expiry": member.SubscriptionExpiry.Format("2 January 2006"),
			"invoice_number":      inv.Number,
		},
	})
}

func (d *CompletionDispatcher) settleDonation(ctx context.Context, inv *models.Invoice, now time.Time) bool {
	donation, err := d.donations.MarkPaidByInvoice(ctx, inv.Number, now)
	if err != nil {
		if domainerrors.HasCode(err, domainerrors.CodeConflict) {
			d.logger.InfoContext(ctx, "donation already paid, skipping", "invoice_number", inv.Number)
			return true
		}
		d.logger.ErrorContext(ctx, "donation settlement failed",
			"error", err.Error(), "invoice_number", inv.Number)
		return true
	}
	return d.notifier.Dispatch(ctx, notification.Message{
		Recipient: donation.Email,
		Subject:   "Thank you for your donation",
		Template:  notification.TemplateDonationReceived,
		Data: map[string]any{
			"first_name":     donation.FirstName,
			"amount":         donation.Amount.String(),
			"invoice_number": inv.Number,
		},
	})
}
