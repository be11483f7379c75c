package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	adminStore "ccak/internal/membership/store/administrator"
	"ccak/internal/policy"
	"ccak/pkg/domain"
	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

type AdministratorServiceSuite struct {
	suite.Suite
	store   *adminStore.InMemory
	service *AdministratorService
	ctx     context.Context
}

func TestAdministratorServiceSuite(t *testing.T) {
	suite.Run(t, new(AdministratorServiceSuite))
}

func (s *AdministratorServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = adminStore.NewInMemory()
	s.service = NewAdministratorService(s.store, logger)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	s.ctx = requestcontext.WithActor(ctx, requestcontext.Actor{
		Kind:  requestcontext.ActorAdministrator,
		ID:    99,
		Email: "root@ccak.or.ke",
		Role:  string(policy.RoleSuperAdmin),
	})
}

func (s *AdministratorServiceSuite) TestCreate() {
	s.Run("defaults username and records the creator", func() {
		admin, err := s.service.Create(s.ctx, CreateAdministratorInput{
			FirstName: "Jane",
			Email:     "jane@ccak.or.ke",
			Password:  "s3cret-pass",
			Role:      policy.RoleFinanceAdmin,
		})
		s.Require().NoError(err)
		s.Equal("jane@ccak.or.ke", admin.Username)
		s.Equal("active", admin.Status)
		s.Equal(domain.AdministratorID(99), admin.CreatedBy)
	})

	s.Run("unknown role is rejected", func() {
		_, err := s.service.Create(s.ctx, CreateAdministratorInput{
			Email:    "bob@ccak.or.ke",
			Password: "pass",
			Role:     policy.Role("intern"),
		})
		s.True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})

	s.Run("duplicate email conflicts", func() {
		_, err := s.service.Create(s.ctx, CreateAdministratorInput{
			Email:    "JANE@ccak.or.ke",
			Password: "pass",
			Role:     policy.RoleAdmin,
		})
		s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))
	})
}

func (s *AdministratorServiceSuite) TestUpdate() {
	admin, err := s.service.Create(s.ctx, CreateAdministratorInput{
		Email:    "jane@ccak.or.ke",
		Password: "pass",
		Role:     policy.RoleFinanceAdmin,
	})
	s.Require().NoError(err)

	role := policy.RoleAdmin
	updated, err := s.service.Update(s.ctx, admin.ID, UpdateAdministratorInput{Role: &role})
	s.Require().NoError(err)
	s.Equal(string(policy.RoleAdmin), updated.Role)

	s.Run("unknown role is rejected", func() {
		bad := policy.Role("intern")
		_, err := s.service.Update(s.ctx, admin.ID, UpdateAdministratorInput{Role: &bad})
		s.True(domainerrors.HasCode(err, domainerrors.CodeBadRequest))
	})
}

func (s *AdministratorServiceSuite) TestDelete() {
	admin, err := s.service.Create(s.ctx, CreateAdministratorInput{
		Email:    "jane@ccak.or.ke",
		Password: "pass",
		Role:     policy.RoleAdmin,
	})
	s.Require().NoError(err)

	s.Run("administrators cannot delete themselves", func() {
		self := requestcontext.WithActor(context.Background(), requestcontext.Actor{
			Kind: requestcontext.ActorAdministrator,
			ID:   int64(admin.ID),
		})
		err := s.service.Delete(self, admin.ID)
		s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))
	})

	s.Run("another administrator can", func() {
		s.NoError(s.service.Delete(s.ctx, admin.ID))
		_, err := s.service.Get(s.ctx, admin.ID)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})
}
