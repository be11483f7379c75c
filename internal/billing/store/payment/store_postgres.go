package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ccak/internal/billing/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/platform/tx"
)

const paymentColumns = `id, transaction_id, method, invoice_number, payment_timestamp,
	amount, payer_name, payer_email, payer_phone, created_by, created_at, last_updated`

// PostgresStore persists payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed payment store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Payment) error {
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO payments (transaction_id, method, invoice_number, payment_timestamp,
			amount, payer_name, payer_email, payer_phone, created_by, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`,
		p.TransactionID, p.Method, p.InvoiceNumber, p.Timestamp,
		p.Amount.String(), p.PaidBy.Name, p.PaidBy.Email, p.PaidBy.PhoneNumber,
		int64(p.CreatedBy), p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PaymentID) (*models.Payment, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, int64(id))
	return scanPayment(row)
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Payment) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE payments
		SET transaction_id = $2, method = $3, invoice_number = $4, payment_timestamp = $5,
			amount = $6, payer_name = $7, payer_email = $8, payer_phone = $9,
			last_updated = $10
		WHERE id = $1`,
		int64(p.ID), p.TransactionID, p.Method, p.InvoiceNumber, p.Timestamp,
		p.Amount.String(), p.PaidBy.Name, p.PaidBy.Email, p.PaidBy.PhoneNumber,
		p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.PaymentID) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`DELETE FROM payments WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) ListByInvoiceNumber(ctx context.Context, number string) ([]*models.Payment, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_number = $1 ORDER BY created_at, id`,
		number)
	if err != nil {
		return nil, fmt.Errorf("list payments by invoice number: %w", err)
	}
	return collectPayments(rows)
}

func (s *PostgresStore) ListByTransactionID(ctx context.Context, transactionID string) ([]*models.Payment, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1 ORDER BY created_at, id`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("list payments by transaction id: %w", err)
	}
	return collectPayments(rows)
}

func (s *PostgresStore) Search(ctx context.Context, q models.PaymentQuery) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`
	args := make([]any, 0, 4)

	if q.Method != "" {
		args = append(args, q.Method)
		query += fmt.Sprintf(" AND method = $%d", len(args))
	}
	if q.Keyword != "" {
		// Any keyword word matching any searchable field qualifies the row.
		args = append(args, keywordPattern(q.Keyword))
		n := len(args)
		query += fmt.Sprintf(` AND (invoice_number ILIKE ANY($%d) OR transaction_id ILIKE ANY($%d)
			OR payer_name ILIKE ANY($%d) OR payer_phone ILIKE ANY($%d))`, n, n, n, n)
	}
	query += " ORDER BY created_at DESC, id DESC"

	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (page-1)*q.Limit)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search payments: %w", err)
	}
	return collectPayments(rows)
}

func keywordPattern(keyword string) any {
	words := make([]string, 0, 4)
	for _, w := range strings.Fields(keyword) {
		words = append(words, "%"+w+"%")
	}
	return pq.Array(words)
}

func collectPayments(rows *sql.Rows) ([]*models.Payment, error) {
	defer rows.Close()
	payments := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (*models.Payment, error) {
	var (
		p         models.Payment
		amount    string
		createdBy int64
	)
	err := row.Scan(&p.ID, &p.TransactionID, &p.Method, &p.InvoiceNumber, &p.Timestamp,
		&amount, &p.PaidBy.Name, &p.PaidBy.Email, &p.PaidBy.PhoneNumber,
		&createdBy, &p.CreatedAt, &p.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse payment amount: %w", err)
	}
	p.CreatedBy = domain.AdministratorID(createdBy)
	return &p, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
