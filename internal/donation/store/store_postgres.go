package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ccak/internal/donation/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/platform/tx"
)

const donationColumns = `id, first_name, last_name, email, phone_number, company, designation, amount, invoice_number, status, created_at, last_updated`

// PostgresStore persists donations in the donations table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, d *models.Donation) error {
	q := tx.Resolve(ctx, s.db)

	err := q.QueryRowContext(ctx, `
		INSERT INTO donations (first_name, last_name, email, phone_number, company, designation, amount, invoice_number, status, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		d.FirstName, d.LastName, d.Email, d.PhoneNumber, d.Company, d.Designation,
		d.Amount.String(), d.InvoiceNumber, d.Status, d.CreatedAt, d.LastUpdated,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.DonationID) (*models.Donation, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)
	return scanDonation(row)
}

func (s *PostgresStore) FindByInvoiceNumber(ctx context.Context, number string) (*models.Donation, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+donationColumns+` FROM donations WHERE invoice_number = $1 ORDER BY id LIMIT 1`, number)
	return scanDonation(row)
}

func (s *PostgresStore) Update(ctx context.Context, d *models.Donation) error {
	q := tx.Resolve(ctx, s.db)

	res, err := q.ExecContext(ctx, `
		UPDATE donations
		SET first_name = $1, last_name = $2, email = $3, phone_number = $4,
		    company = $5, designation = $6, amount = $7, invoice_number = $8,
		    status = $9, last_updated = $10
		WHERE id = $11`,
		d.FirstName, d.LastName, d.Email, d.PhoneNumber,
		d.Company, d.Designation, d.Amount.String(), d.InvoiceNumber,
		d.Status, d.LastUpdated, d.ID)
	if err != nil {
		return fmt.Errorf("update donation: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.DonationID) error {
	q := tx.Resolve(ctx, s.db)

	res, err := q.ExecContext(ctx, `DELETE FROM donations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete donation: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Search(ctx context.Context, query models.DonationQuery) ([]*models.Donation, error) {
	q := tx.Resolve(ctx, s.db)

	var (
		where []string
		args  []any
	)
	if query.Status != "" {
		args = append(args, query.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if query.Keyword != "" {
		var patterns []string
		for _, word := range strings.Fields(query.Keyword) {
			patterns = append(patterns, "%"+word+"%")
		}
		args = append(args, pq.Array(patterns))
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE ANY($%d) OR last_name ILIKE ANY($%d) OR phone_number ILIKE ANY($%d) OR company ILIKE ANY($%d) OR invoice_number ILIKE ANY($%d))",
			n, n, n, n, n))
	}

	sqlQuery := `SELECT ` + donationColumns + ` FROM donations`
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY id DESC"
	if query.Limit > 0 {
		page := query.Page
		if page <= 0 {
			page = 1
		}
		args = append(args, query.Limit)
		sqlQuery += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (page-1)*query.Limit)
		sqlQuery += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search donations: %w", err)
	}
	defer rows.Close()

	var donations []*models.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

func (s *PostgresStore) TotalAmount(ctx context.Context, status models.DonationStatus) (models.DonationTotals, error) {
	q := tx.Resolve(ctx, s.db)

	sqlQuery := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM donations`
	var args []any
	if status != "" {
		sqlQuery += ` WHERE status = $1`
		args = append(args, status)
	}

	var (
		raw   string
		total models.DonationTotals
	)
	if err := q.QueryRowContext(ctx, sqlQuery, args...).Scan(&raw, &total.Count); err != nil {
		return models.DonationTotals{}, fmt.Errorf("total donations: %w", err)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return models.DonationTotals{}, fmt.Errorf("parse donation total %q: %w", raw, err)
	}
	total.Amount = amount
	return total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDonation(row scanner) (*models.Donation, error) {
	var (
		d      models.Donation
		amount string
	)
	err := row.Scan(
		&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.PhoneNumber,
		&d.Company, &d.Designation, &amount, &d.InvoiceNumber, &d.Status,
		&d.CreatedAt, &d.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan donation: %w", err)
	}
	d.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse donation amount %q: %w", amount, err)
	}
	return &d, nil
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
