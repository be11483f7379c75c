package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"ccak/internal/membership/models"
	"ccak/internal/policy"
	"ccak/pkg/domain"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/requestcontext"
)

// AdministratorStore is the persistence surface the administrator service needs.
type AdministratorStore interface {
	Create(ctx context.Context, a *models.Administrator) error
	FindByID(ctx context.Context, id domain.AdministratorID) (*models.Administrator, error)
	FindByEmail(ctx context.Context, email string) (*models.Administrator, error)
	Update(ctx context.Context, a *models.Administrator) error
	Delete(ctx context.Context, id domain.AdministratorID) error
	List(ctx context.Context) ([]*models.Administrator, error)
}

// AdministratorService manages back-office administrator accounts.
type AdministratorService struct {
	store  AdministratorStore
	logger *slog.Logger
}

func NewAdministratorService(store AdministratorStore, logger *slog.Logger) *AdministratorService {
	return &AdministratorService{store: store, logger: logger}
}

// CreateAdministratorInput carries the fields for a new administrator.
type CreateAdministratorInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      policy.Role
}

// Create provisions a new administrator account.
func (s *AdministratorService) Create(ctx context.Context, input CreateAdministratorInput) (*models.Administrator, error) {
	if input.Password == "" {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "password is required")
	}
	if !policy.ValidRole(input.Role) {
		return nil, domainerrors.Newf(domainerrors.CodeBadRequest, "unknown role %q", input.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to hash password")
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.ActorFrom(ctx)

	admin := &models.Administrator{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         string(input.Role),
		CreatedBy:    domain.AdministratorID(actor.ID),
		CreatedAt:    now,
		LastUpdated:  now,
	}
	admin.Normalize()
	if err := admin.Validate(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid administrator")
	}

	if err := s.store.Create(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domainerrors.New(domainerrors.CodeConflict, "an administrator with this email already exists")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create administrator")
	}

	s.logger.InfoContext(ctx, "administrator created",
		"administrator_id", admin.ID,
		"role", admin.Role,
		"created_by", admin.CreatedBy)
	return admin, nil
}

// Get returns an administrator by id.
func (s *AdministratorService) Get(ctx context.Context, id domain.AdministratorID) (*models.Administrator, error) {
	admin, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "administrator not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load administrator")
	}
	return admin, nil
}

// List returns every administrator account.
func (s *AdministratorService) List(ctx context.Context) ([]*models.Administrator, error) {
	admins, err := s.store.List(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list administrators")
	}
	return admins, nil
}

// UpdateAdministratorInput carries the mutable administrator fields.
type UpdateAdministratorInput struct {
	FirstName *string
	LastName  *string
	Role      *policy.Role
	Status    *string
	Password  *string
}

// Update applies a partial update to an administrator.
func (s *AdministratorService) Update(ctx context.Context, id domain.AdministratorID, input UpdateAdministratorInput) (*models.Administrator, error) {
	admin, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		admin.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		admin.LastName = *input.LastName
	}
	if input.Role != nil {
		if !policy.ValidRole(*input.Role) {
			return nil, domainerrors.Newf(domainerrors.CodeBadRequest, "unknown role %q", *input.Role)
		}
		admin.Role = string(*input.Role)
	}
	if input.Status != nil {
		admin.Status = *input.Status
	}
	if input.Password != nil {
		if *input.Password == "" {
			return nil, domainerrors.New(domainerrors.CodeBadRequest, "password must not be empty")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to hash password")
		}
		admin.PasswordHash = string(hash)
	}
	admin.LastUpdated = requestcontext.Now(ctx)

	if err := admin.Validate(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid administrator")
	}
	if err := s.store.Update(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "administrator not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update administrator")
	}
	return admin, nil
}

// Delete removes an administrator account. An administrator cannot delete
// their own account.
func (s *AdministratorService) Delete(ctx context.Context, id domain.AdministratorID) error {
	if actor := requestcontext.ActorFrom(ctx); actor.Kind == requestcontext.ActorAdministrator && actor.ID == int64(id) {
		return domainerrors.New(domainerrors.CodeConflict, "administrators cannot delete their own account")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "administrator not found")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete administrator")
	}
	s.logger.InfoContext(ctx, "administrator deleted", "administrator_id", id)
	return nil
}
