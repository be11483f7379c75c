// Package service implements email+password login for members and
// administrators.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ccak/internal/auth/device"
	membershipModels "ccak/internal/membership/models"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/platform/sentinel"
	"ccak/pkg/requestcontext"
)

// MemberFinder loads members for credential checks.
type MemberFinder interface {
	FindByEmail(ctx context.Context, email string) (*membershipModels.Member, error)
}

// AdministratorFinder loads administrators for credential checks.
type AdministratorFinder interface {
	FindByEmail(ctx context.Context, email string) (*membershipModels.Administrator, error)
}

// TokenIssuer signs access tokens for authenticated actors.
type TokenIssuer interface {
	Issue(actor requestcontext.Actor, now time.Time) (string, error)
	TTL() time.Duration
}

// Service authenticates members and administrators.
type Service struct {
	members MemberFinder
	admins  AdministratorFinder
	tokens  TokenIssuer
	logger  *slog.Logger
}

func New(members MemberFinder, admins AdministratorFinder, tokens TokenIssuer, logger *slog.Logger) *Service {
	return &Service{members: members, admins: admins, tokens: tokens, logger: logger}
}

// LoginResult carries the issued token and its lifetime.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// errInvalidCredentials is deliberately identical for unknown email and wrong
// password so login responses do not reveal which accounts exist.
var errInvalidCredentials = domainerrors.New(domainerrors.CodeUnauthorized, "invalid email or password")

// LoginMember authenticates a member by email and password.
func (s *Service) LoginMember(ctx context.Context, email, password string) (*LoginResult, error) {
	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load member")
	}
	if bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}

	return s.issue(ctx, requestcontext.Actor{
		Kind:  requestcontext.ActorMember,
		ID:    int64(member.ID),
		Email: member.Email,
	})
}

// LoginAdministrator authenticates an administrator by email and password.
// Disabled accounts are rejected with the generic credential error.
func (s *Service) LoginAdministrator(ctx context.Context, email, password string) (*LoginResult, error) {
	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load administrator")
	}
	if admin.Status != "active" {
		return nil, errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}

	return s.issue(ctx, requestcontext.Actor{
		Kind:  requestcontext.ActorAdministrator,
		ID:    int64(admin.ID),
		Email: admin.Email,
		Role:  admin.Role,
	})
}

func (s *Service) issue(ctx context.Context, actor requestcontext.Actor) (*LoginResult, error) {
	now := requestcontext.Now(ctx)
	accessToken, err := s.tokens.Issue(actor, now)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to sign token")
	}

	s.logger.InfoContext(ctx, "login",
		"kind", string(actor.Kind),
		"actor_id", actor.ID,
		"device", device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)

	return &LoginResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   now.Add(s.tokens.TTL()),
	}, nil
}
