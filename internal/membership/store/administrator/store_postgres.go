package administrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ccak/internal/membership/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/platform/tx"
)

const administratorColumns = `id, first_name, last_name, email, username, password_hash, role, status, created_by, created_at, last_updated`

// PostgresStore persists administrators in the administrators table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Administrator) error {
	q := tx.Resolve(ctx, s.db)

	err := q.QueryRowContext(ctx, `
		INSERT INTO administrators (first_name, last_name, email, username, password_hash, role, status, created_by, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		a.FirstName, a.LastName, a.Email, a.Username, a.PasswordHash,
		a.Role, a.Status, a.CreatedBy, a.CreatedAt, a.LastUpdated,
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert administrator: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AdministratorID) (*models.Administrator, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+administratorColumns+` FROM administrators WHERE id = $1`, id)
	return scanAdministrator(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Administrator, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx,
		`SELECT `+administratorColumns+` FROM administrators WHERE lower(email) = lower($1)`, email)
	return scanAdministrator(row)
}

func (s *PostgresStore) Update(ctx context.Context, a *models.Administrator) error {
	q := tx.Resolve(ctx, s.db)

	res, err := q.ExecContext(ctx, `
		UPDATE administrators
		SET first_name = $1, last_name = $2, email = $3, username = $4,
		    password_hash = $5, role = $6, status = $7, last_updated = $8
		WHERE id = $9`,
		a.FirstName, a.LastName, a.Email, a.Username,
		a.PasswordHash, a.Role, a.Status, a.LastUpdated, a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update administrator: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.AdministratorID) error {
	q := tx.Resolve(ctx, s.db)

	res, err := q.ExecContext(ctx, `DELETE FROM administrators WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete administrator: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Administrator, error) {
	q := tx.Resolve(ctx, s.db)

	rows, err := q.QueryContext(ctx,
		`SELECT `+administratorColumns+` FROM administrators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list administrators: %w", err)
	}
	defer rows.Close()

	var admins []*models.Administrator
	for rows.Next() {
		a, err := scanAdministrator(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	q := tx.Resolve(ctx, s.db)

	var n int
	if err := q.QueryRowContext(ctx, `SELECT count(*) FROM administrators`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count administrators: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAdministrator(row scanner) (*models.Administrator, error) {
	var a models.Administrator
	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Username,
		&a.PasswordHash, &a.Role, &a.Status, &a.CreatedBy,
		&a.CreatedAt, &a.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan administrator: %w", err)
	}
	return &a, nil
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
