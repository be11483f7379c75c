package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"ccak/internal/membership/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/platform/tx"
)

const memberColumns = `id, first_name, last_name, email, phone_number, company, designation,
	password_hash, registration_status, subscription_status, subscription_category,
	subscription_expiry, status, created_at, last_updated`

// PostgresStore persists members in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed member store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, m *models.Member) error {
	err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO members (first_name, last_name, email, phone_number, company, designation,
			password_hash, registration_status, subscription_status, subscription_category,
			subscription_expiry, status, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id`,
		m.FirstName, m.LastName, m.Email, m.PhoneNumber, m.Company, m.Designation,
		m.PasswordHash, string(m.RegistrationStatus), string(m.SubscriptionStatus),
		m.SubscriptionCategory, m.SubscriptionExpiry, m.Status, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.MemberID) (*models.Member, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, int64(id))
	return scanMember(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE lower(email) = lower($1)`, email)
	return scanMember(row)
}

func (s *PostgresStore) Update(ctx context.Context, m *models.Member) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, `
		UPDATE members
		SET first_name = $2, last_name = $3, email = $4, phone_number = $5, company = $6,
			designation = $7, password_hash = $8, registration_status = $9,
			subscription_status = $10, subscription_category = $11, subscription_expiry = $12,
			status = $13, last_updated = $14
		WHERE id = $1`,
		int64(m.ID), m.FirstName, m.LastName, m.Email, m.PhoneNumber, m.Company,
		m.Designation, m.PasswordHash, string(m.RegistrationStatus),
		string(m.SubscriptionStatus), m.SubscriptionCategory, m.SubscriptionExpiry,
		m.Status, m.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.MemberID) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`DELETE FROM members WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Member, error) {
	return s.Search(ctx, models.MemberQuery{})
}

func (s *PostgresStore) Search(ctx context.Context, q models.MemberQuery) ([]*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE 1=1`
	args := make([]any, 0, 5)

	if q.SubscriptionStatus != "" {
		args = append(args, string(q.SubscriptionStatus))
		query += fmt.Sprintf(" AND subscription_status = $%d", len(args))
	}
	if q.RegistrationStatus != "" {
		args = append(args, string(q.RegistrationStatus))
		query += fmt.Sprintf(" AND registration_status = $%d", len(args))
	}
	if q.Keyword != "" {
		args = append(args, keywordPatterns(q.Keyword))
		n := len(args)
		query += fmt.Sprintf(` AND (first_name ILIKE ANY($%d) OR last_name ILIKE ANY($%d)
			OR email ILIKE ANY($%d) OR company ILIKE ANY($%d) OR phone_number ILIKE ANY($%d))`,
			n, n, n, n, n)
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
		return nil, fmt.Errorf("search members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) CountBy(ctx context.Context, sub models.SubscriptionStatus, reg models.RegistrationStatus) (int, error) {
	query := `SELECT COUNT(*) FROM members WHERE 1=1`
	args := make([]any, 0, 2)
	if sub != "" {
		args = append(args, string(sub))
		query += fmt.Sprintf(" AND subscription_status = $%d", len(args))
	}
	if reg != "" {
		args = append(args, string(reg))
		query += fmt.Sprintf(" AND registration_status = $%d", len(args))
	}

	var count int
	if err := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*models.Member, error) {
	var (
		m            models.Member
		registration string
		subscription string
	)
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.PhoneNumber, &m.Company,
		&m.Designation, &m.PasswordHash, &registration, &subscription,
		&m.SubscriptionCategory, &m.SubscriptionExpiry, &m.Status, &m.CreatedAt, &m.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan member: %w", err)
	}
	m.RegistrationStatus = models.RegistrationStatus(registration)
	m.SubscriptionStatus = models.SubscriptionStatus(subscription)
	return &m, nil
}

func keywordPatterns(keyword string) any {
	words := make([]string, 0, 4)
	for _, w := range strings.Fields(keyword) {
		words = append(words, "%"+w+"%")
	}
	return pq.Array(words)
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
