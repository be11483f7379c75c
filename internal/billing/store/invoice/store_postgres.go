package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ccak/internal/billing/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/platform/tx"
)

const invoiceColumns = `id, invoice_number, description, invoice_type, items, status,
	member_id, donation_id, customer, completed_at, created_by, created_at, last_updated`

// PostgresStore persists invoices in PostgreSQL. Line items and the customer
// snapshot live in JSONB columns; derived amounts are never stored.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed invoice store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, inv *models.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("marshal invoice items: %w", err)
	}
	customer, err := json.Marshal(inv.Customer)
	if err != nil {
		return fmt.Errorf("marshal invoice customer: %w", err)
	}

	q := tx.Resolve(ctx, s.db)
	err = q.QueryRowContext(ctx, `
		INSERT INTO invoices (invoice_number, description, invoice_type, items, status,
			member_id, donation_id, customer, created_by, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id`,
		inv.Number, inv.Description, string(inv.Type), items, string(inv.Status),
		int64(inv.MemberID), int64(inv.DonationID), customer, int64(inv.CreatedBy), inv.CreatedAt,
	).Scan(&inv.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.InvoiceID) (*models.Invoice, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, int64(id))
	return scanInvoice(row)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
	return scanInvoice(row)
}

func (s *PostgresStore) Update(ctx context.Context, inv *models.Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("marshal invoice items: %w", err)
	}
	customer, err := json.Marshal(inv.Customer)
	if err != nil {
		return fmt.Errorf("marshal invoice customer: %w", err)
	}

	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE invoices
		SET description = $2, invoice_type = $3, items = $4, status = $5,
			member_id = $6, donation_id = $7, customer = $8, completed_at = $9,
			last_updated = $10
		WHERE id = $1`,
		int64(inv.ID), inv.Description, string(inv.Type), items, string(inv.Status),
		int64(inv.MemberID), int64(inv.DonationID), customer, nullTime(inv.CompletedAt),
		inv.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.InvoiceID) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`DELETE FROM invoices WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return requireAffected(res)
}

// Execute atomically loads the invoice by number under a row lock, validates,
// mutates, and persists. FOR UPDATE serializes concurrent reconciliation runs
// against the same invoice across instances.
func (s *PostgresStore) Execute(
	ctx context.Context,
	number string,
	validate func(*models.Invoice) error,
	mutate func(*models.Invoice),
) (*models.Invoice, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin invoice tx: %w", err)
	}
	defer dbTx.Rollback()

	txCtx := tx.WithTx(ctx, dbTx)
	row := dbTx.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1 FOR UPDATE`, number)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}

	if err := validate(inv); err != nil {
		return nil, err
	}
	mutate(inv)

	if err := s.Update(txCtx, inv); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invoice tx: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) CountCreatedOn(ctx context.Context, day time.Time) (int, error) {
	var count int
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE (created_at AT TIME ZONE 'UTC')::date = $1::date`,
		day.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count invoices for day: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Search(ctx context.Context, q models.InvoiceQuery) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := make([]any, 0, 5)

	if q.NumberContains != "" {
		args = append(args, "%"+q.NumberContains+"%")
		query += fmt.Sprintf(" AND invoice_number LIKE $%d", len(args))
	}
	if q.Type != "" {
		args = append(args, string(q.Type))
		query += fmt.Sprintf(" AND invoice_type = $%d", len(args))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
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
		return nil, fmt.Errorf("search invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*models.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (*models.Invoice, error) {
	var (
		inv          models.Invoice
		invoiceType  string
		status       string
		items        []byte
		customer     []byte
		memberID     int64
		donationID   int64
		createdBy    int64
		completedAt  sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.Description, &invoiceType, &items, &status,
		&memberID, &donationID, &customer, &completedAt, &createdBy, &inv.CreatedAt, &inv.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}

	inv.Type = models.InvoiceType(invoiceType)
	inv.Status = models.InvoiceStatus(status)
	inv.MemberID = domain.MemberID(memberID)
	inv.DonationID = domain.DonationID(donationID)
	inv.CreatedBy = domain.AdministratorID(createdBy)
	if completedAt.Valid {
		t := completedAt.Time
		inv.CompletedAt = &t
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("unmarshal invoice items: %w", err)
	}
	if err := json.Unmarshal(customer, &inv.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal invoice customer: %w", err)
	}
	return &inv, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
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

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
