package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ccak/internal/membership/models"
	"ccak/pkg/domain"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/requestcontext"
)

// MemberStore is the persistence surface the member service needs.
type MemberStore interface {
	Create(ctx context.Context, m *models.Member) error
	FindByID(ctx context.Context, id domain.MemberID) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
	Update(ctx context.Context, m *models.Member) error
	Delete(ctx context.Context, id domain.MemberID) error
	List(ctx context.Context) ([]*models.Member, error)
	Search(ctx context.Context, q models.MemberQuery) ([]*models.Member, error)
}

// MemberService manages member accounts.
type MemberService struct {
	store  MemberStore
	logger *slog.Logger
}

func NewMemberService(store MemberStore, logger *slog.Logger) *MemberService {
	return &MemberService{store: store, logger: logger}
}

// RegisterMemberInput carries the fields a member signs up with.
type RegisterMemberInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Company     string
	Designation string
	Password    string
}

// Register creates a new member account with an inactive subscription.
func (s *MemberService) Register(ctx context.Context, input RegisterMemberInput) (*models.Member, error) {
	if input.Password == "" {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to hash password")
	}

	now := requestcontext.Now(ctx)
	member := &models.Member{
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		Email:              input.Email,
		PhoneNumber:        input.PhoneNumber,
		Company:            input.Company,
		Designation:        input.Designation,
		PasswordHash:       string(hash),
		RegistrationStatus: models.Unregistered,
		SubscriptionStatus: models.SubscriptionInactive,
		Status:             "active",
		CreatedAt:          now,
		LastUpdated:        now,
	}
	if err := member.Validate(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid member")
	}

	if err := s.store.Create(ctx, member); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domainerrors.New(domainerrors.CodeConflict, "a member with this email already exists")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create member")
	}

	s.logger.InfoContext(ctx, "member registered",
		"member_id", member.ID,
		"request_id", requestcontext.RequestID(ctx))
	return member, nil
}

// Get returns a member by id.
func (s *MemberService) Get(ctx context.Context, id domain.MemberID) (*models.Member, error) {
	member, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "member not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load member")
	}
	return member, nil
}

// GetByEmail returns a member by their email address.
func (s *MemberService) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	member, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "member not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load member")
	}
	return member, nil
}

// UpdateMemberInput carries the mutable profile fields.
type UpdateMemberInput struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Company     *string
	Designation *string
	Password    *string
}

// Update applies a partial profile update.
func (s *MemberService) Update(ctx context.Context, id domain.MemberID, input UpdateMemberInput) (*models.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		member.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		member.LastName = *input.LastName
	}
	if input.PhoneNumber != nil {
		member.PhoneNumber = *input.PhoneNumber
	}
	if input.Company != nil {
		member.Company = *input.Company
	}
	if input.Designation != nil {
		member.Designation = *input.Designation
	}
	if input.Password != nil {
		if *input.Password == "" {
			return nil, domainerrors.New(domainerrors.CodeBadRequest, "password must not be empty")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to hash password")
		}
		member.PasswordHash = string(hash)
	}
	member.LastUpdated = requestcontext.Now(ctx)

	if err := member.Validate(); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "invalid member")
	}
	if err := s.store.Update(ctx, member); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "member not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update member")
	}
	return member, nil
}

// Delete removes a member account.
func (s *MemberService) Delete(ctx context.Context, id domain.MemberID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "member not found")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete member")
	}
	s.logger.InfoContext(ctx, "member deleted",
		"member_id", id,
		"request_id", requestcontext.RequestID(ctx))
	return nil
}

// List returns every member, oldest first.
func (s *MemberService) List(ctx context.Context) ([]*models.Member, error) {
	members, err := s.store.List(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

// Search returns members matching the keyword across name, email, company and phone.
func (s *MemberService) Search(ctx context.Context, q models.MemberQuery) ([]*models.Member, error) {
	members, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to search members")
	}
	return members, nil
}

// Subscribe activates the member's annual subscription. It returns a conflict
// when the subscription is already active.
func (s *MemberService) Subscribe(ctx context.Context, id domain.MemberID, now time.Time) (*models.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.SubscriptionStatus == models.SubscriptionActive {
		return nil, domainerrors.New(domainerrors.CodeConflict, "subscription is already active")
	}
	member.ActivateSubscription(now)
	if err := s.store.Update(ctx, member); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to activate subscription")
	}
	s.logger.InfoContext(ctx, "subscription activated",
		"member_id", member.ID,
		"expiry", member.SubscriptionExpiry)
	return member, nil
}

// SubscribeAndActivate completes registration and activates the subscription
// in one step, for first-time members paying the combined invoice.
func (s *MemberService) SubscribeAndActivate(ctx context.Context, id domain.MemberID, now time.Time) (*models.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Only brand-new members take the combined path; anyone already
	// registered renews through Subscribe.
	if member.SubscriptionStatus != models.SubscriptionInactive ||
		member.RegistrationStatus != models.Unregistered {
		return nil, domainerrors.New(domainerrors.CodeConflict, "member is already registered or subscribed")
	}
	member.CompleteRegistration(now)
	member.ActivateSubscription(now)
	if err := s.store.Update(ctx, member); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to activate member")
	}
	s.logger.InfoContext(ctx, "member registered and subscribed",
		"member_id", member.ID,
		"expiry", member.SubscriptionExpiry)
	return member, nil
}
