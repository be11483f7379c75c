package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"ccak/internal/auth/token"
	membershipModels "ccak/internal/membership/models"
	adminStore "ccak/internal/membership/store/administrator"
	memberStore "ccak/internal/membership/store/member"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

type AuthServiceSuite struct {
	suite.Suite
	members *memberStore.InMemory
	admins  *adminStore.InMemory
	tokens  *token.Service
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.members = memberStore.NewInMemory()
	s.admins = adminStore.NewInMemory()
	s.tokens = token.NewService("test-signing-key", "ccak", time.Hour)
	s.service = New(s.members, s.admins, s.tokens, logger)
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *AuthServiceSuite) hash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	s.Require().NoError(err)
	return string(h)
}

func (s *AuthServiceSuite) seedMember() *membershipModels.Member {
	m := &membershipModels.Member{
		FirstName:    "Grace",
		Email:        "grace@example.com",
		PasswordHash: s.hash("member-pass"),
		Status:       "active",
	}
	s.Require().NoError(s.members.Create(s.ctx, m))
	return m
}

func (s *AuthServiceSuite) seedAdministrator(status string) *membershipModels.Administrator {
	a := &membershipModels.Administrator{
		FirstName:    "Jane",
		Email:        "jane@ccak.or.ke",
		Username:     "jane@ccak.or.ke",
		PasswordHash: s.hash("admin-pass"),
		Role:         "finance-admin",
		Status:       status,
	}
	s.Require().NoError(s.admins.Create(s.ctx, a))
	return a
}

func (s *AuthServiceSuite) TestLoginMember() {
	member := s.seedMember()

	s.Run("valid credentials yield a bearer token", func() {
		result, err := s.service.LoginMember(s.ctx, member.Email, "member-pass")
		s.Require().NoError(err)
		s.Equal("Bearer", result.TokenType)
		s.Equal(s.now.Add(time.Hour), result.ExpiresAt)

		actor, err := s.tokens.ValidateToken(result.AccessToken)
		s.Require().NoError(err)
		s.Equal(requestcontext.ActorMember, actor.Kind)
		s.Equal(int64(member.ID), actor.ID)
		s.Empty(actor.Role)
	})

	s.Run("wrong password", func() {
		_, err := s.service.LoginMember(s.ctx, member.Email, "wrong")
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
	})

	s.Run("unknown email gets the same error as a wrong password", func() {
		_, wrongPass := s.service.LoginMember(s.ctx, member.Email, "wrong")
		_, unknown := s.service.LoginMember(s.ctx, "nobody@example.com", "whatever")
		s.Equal(wrongPass.Error(), unknown.Error())
	})
}

func (s *AuthServiceSuite) TestLoginAdministrator() {
	admin := s.seedAdministrator("active")

	s.Run("token carries the administrator role", func() {
		result, err := s.service.LoginAdministrator(s.ctx, admin.Email, "admin-pass")
		s.Require().NoError(err)

		actor, err := s.tokens.ValidateToken(result.AccessToken)
		s.Require().NoError(err)
		s.Equal(requestcontext.ActorAdministrator, actor.Kind)
		s.Equal("finance-admin", actor.Role)
	})

	s.Run("disabled accounts are rejected like bad credentials", func() {
		disabled := &membershipModels.Administrator{
			Email:        "old@ccak.or.ke",
			Username:     "old@ccak.or.ke",
			PasswordHash: s.hash("admin-pass"),
			Role:         "admin",
			Status:       "disabled",
		}
		s.Require().NoError(s.admins.Create(s.ctx, disabled))

		_, err := s.service.LoginAdministrator(s.ctx, disabled.Email, "admin-pass")
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
		s.Contains(err.Error(), "invalid email or password")
	})
}
