package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"ccak/internal/billing/metrics"
	"ccak/internal/billing/models"
	"ccak/internal/platform/kafka"
	platformredis "ccak/internal/platform/redis"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/requestcontext"
)

// InvoiceReader loads invoices and applies atomic transitions.
type InvoiceReader interface {
	FindByNumber(ctx context.Context, number string) (*models.Invoice, error)
	Execute(ctx context.Context, number string, validate func(*models.Invoice) error, mutate func(*models.Invoice)) (*models.Invoice, error)
}

// PaymentLister returns the payments recorded against an invoice number,
// oldest first.
type PaymentLister interface {
	ListByInvoiceNumber(ctx context.Context, number string) ([]*models.Payment, error)
}

// Result is the outcome of one reconciliation run. Amounts are derived fresh
// from line items and payments; only Status (and the completion marker) are
// persisted.
type Result struct {
	InvoiceNumber   string               `json:"invoice_number"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	PaidAmount      decimal.Decimal      `json:"paid_amount"`
	Balance         decimal.Decimal      `json:"balance"`
	Status          models.InvoiceStatus `json:"status"`
	CompletionFired bool                 `json:"completion_fired"`
	// Notification is "failed" when a completion notification could not be
	// queued; delivery itself stays best-effort and asynchronous.
	Notification string `json:"notification,omitempty"`
}

// errAlreadyPaid aborts the Execute transition when another run won the race.
var errAlreadyPaid = errors.New("invoice already paid")

// Reconciler derives invoice balance and status from recorded payments and
// fires the completion action on the first transition to paid.
//
// Three layers keep completion exactly-once:
//   - singleflight collapses concurrent runs in one process,
//   - an optional Redis lock spaces out runs across instances,
//   - the store's Execute transition is the authoritative compare-and-swap;
//     the first two only shed duplicate work.
type Reconciler struct {
	invoices   InvoiceReader
	payments   PaymentLister
	completion *CompletionDispatcher
	events     *kafka.Publisher
	locks      *platformredis.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger

	group  singleflight.Group
	tracer trace.Tracer
}

func NewReconciler(
	invoices InvoiceReader,
	payments PaymentLister,
	completion *CompletionDispatcher,
	events *kafka.Publisher,
	locks *platformredis.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		invoices:   invoices,
		payments:   payments,
		completion: completion,
		events:     events,
		locks:      locks,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("ccak/billing"),
	}
}

// Reconcile recomputes totals and status for the invoice and returns the
// derived figures. Idempotent: rerunning against an unchanged invoice yields
// the same result and never re-fires the completion action.
func (r *Reconciler) Reconcile(ctx context.Context, invoiceNumber string) (*Result, error) {
	v, err, _ := r.group.Do(invoiceNumber, func() (any, error) {
		return r.reconcile(ctx, invoiceNumber)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (r *Reconciler) reconcile(ctx context.Context, invoiceNumber string) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "billing.reconcile",
		trace.WithAttributes(attribute.String("invoice.number", invoiceNumber)))
	defer span.End()

	started := time.Now()

	unlock := r.lock(ctx, invoiceNumber)
	defer unlock()

	inv, err := r.invoices.FindByNumber(ctx, invoiceNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.Newf(domainerrors.CodeNotFound, "invoice %s not found", invoiceNumber)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load invoice")
	}
	// Malformed line items abort before any state is touched.
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	paid, err := r.aggregatePayments(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}

	total := inv.TotalAmount()
	result := &Result{
		InvoiceNumber: invoiceNumber,
		TotalAmount:   total,
		PaidAmount:    paid,
		Balance:       total.Sub(paid),
		Status:        inv.Status,
	}

	// paid -> unpaid never happens here; only explicit edits revert status.
	if !inv.IsPaid() && paid.GreaterThanOrEqual(total) {
		now := requestcontext.Now(ctx)
		updated, err := r.invoices.Execute(ctx, invoiceNumber,
			func(current *models.Invoice) error {
				if current.IsPaid() {
					return errAlreadyPaid
				}
				return nil
			},
			func(current *models.Invoice) {
				current.MarkPaid(now)
			},
		)
		switch {
		case errors.Is(err, errAlreadyPaid):
			// A concurrent run won the transition; its completion stands.
			result.Status = models.InvoicePaid
		case err != nil:
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to mark invoice paid")
		default:
			result.Status = models.InvoicePaid
			result.CompletionFired = true
			if !r.completion.Dispatch(ctx, updated, now) {
				result.Notification = "failed"
			}
			r.publishPaid(ctx, updated, result)
		}
	}

	r.metrics.ObserveReconcile(string(result.Status), time.Since(started).Seconds())
	r.logger.InfoContext(ctx, "invoice reconciled",
		"invoice_number", invoiceNumber,
		"status", string(result.Status),
		"total", result.TotalAmount,
		"paid", result.PaidAmount,
		"completion_fired", result.CompletionFired,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// Figures computes the derived amounts for an invoice without touching any
// state. Reads decorate invoice responses with these; only Reconcile persists
// a status change.
func (r *Reconciler) Figures(ctx context.Context, inv *models.Invoice) (total, paid decimal.Decimal, err error) {
	paid, err = r.aggregatePayments(ctx, inv.Number)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return inv.TotalAmount(), paid, nil
}

// aggregatePayments sums payment amounts for the invoice, counting each
// transaction id once. Webhook redeliveries produce duplicate rows; the oldest
// record wins. Payments without a transaction id cannot be de-duplicated and
// are summed as-is.
func (r *Reconciler) aggregatePayments(ctx context.Context, invoiceNumber string) (decimal.Decimal, error) {
	payments, err := r.payments.ListByInvoiceNumber(ctx, invoiceNumber)
	if err != nil {
		return decimal.Zero, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load payments")
	}

	paid := decimal.Zero
	seen := make(map[string]struct{}, len(payments))
	for _, p := range payments {
		if p.TransactionID != "" {
			if _, dup := seen[p.TransactionID]; dup {
				r.metrics.IncrementDuplicateTransactions()
				r.logger.WarnContext(ctx, "duplicate transaction skipped",
					"invoice_number", invoiceNumber,
					"transaction_id", p.TransactionID,
				)
				continue
			}
			seen[p.TransactionID] = struct{}{}
		}
		paid = paid.Add(p.Amount)
	}
	return paid, nil
}

// lock takes a best-effort cross-instance lock on the invoice number. The
// store transition stays correct without it; the lock only reduces wasted
// duplicate runs, so failure to acquire never blocks reconciliation.
func (r *Reconciler) lock(ctx context.Context, invoiceNumber string) func() {
	if r.locks == nil {
		return func() {}
	}
	key := "reconcile:" + invoiceNumber
	ok, err := r.locks.SetNX(ctx, key, "1", 10*time.Second).Result()
	if err != nil || !ok {
		return func() {}
	}
	return func() {
		if err := r.locks.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			r.logger.WarnContext(ctx, "failed to release reconcile lock", "key", key, "error", err)
		}
	}
}

func (r *Reconciler) publishPaid(ctx context.Context, inv *models.Invoice, result *Result) {
	if r.events == nil {
		return
	}
	r.events.Publish(ctx, inv.Number, map[string]any{
		"event":          "invoice.paid",
		"invoice_number": inv.Number,
		"type":           string(inv.Type),
		"total_amount":   result.TotalAmount.String(),
		"paid_amount":    result.PaidAmount.String(),
		"completed_at":   inv.CompletedAt,
	})
}
