package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"ccak/internal/auth/service"
	"ccak/internal/auth/token"
	membershipModels "ccak/internal/membership/models"
	adminStore "ccak/internal/membership/store/administrator"
	memberStore "ccak/internal/membership/store/member"
)

type AuthHandlerSuite struct {
	suite.Suite
	router *chi.Mux
	tokens *token.Service
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	members := memberStore.NewInMemory()
	admins := adminStore.NewInMemory()
	s.tokens = token.NewService("test-signing-key", "ccak", time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("member-pass"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.Require().NoError(members.Create(context.Background(), &membershipModels.Member{
		FirstName:    "Grace",
		Email:        "grace@example.com",
		PasswordHash: string(hash),
		Status:       "active",
	}))

	hash, err = bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.Require().NoError(admins.Create(context.Background(), &membershipModels.Administrator{
		Email:        "jane@ccak.or.ke",
		Username:     "jane@ccak.or.ke",
		PasswordHash: string(hash),
		Role:         "finance-admin",
		Status:       "active",
	}))

	s.router = chi.NewRouter()
	New(service.New(members, admins, s.tokens, logger), logger).Register(s.router)
}

func (s *AuthHandlerSuite) login(path, email, password string) *httptest.ResponseRecorder {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *AuthHandlerSuite) TestMemberLogin() {
	s.Run("valid credentials", func() {
		rec := s.login("/auth/member/login", "grace@example.com", "member-pass")
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("Bearer", resp.TokenType)

		actor, err := s.tokens.ValidateToken(resp.AccessToken)
		s.Require().NoError(err)
		s.Equal("grace@example.com", actor.Email)
	})

	s.Run("wrong password", func() {
		rec := s.login("/auth/member/login", "grace@example.com", "wrong")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("missing fields", func() {
		rec := s.login("/auth/member/login", "grace@example.com", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *AuthHandlerSuite) TestAdministratorLogin() {
	rec := s.login("/auth/administrator/login", "jane@ccak.or.ke", "admin-pass")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	actor, err := s.tokens.ValidateToken(resp.AccessToken)
	s.Require().NoError(err)
	s.Equal("finance-admin", actor.Role)

	s.Run("member credentials do not work on the administrator endpoint", func() {
		rec := s.login("/auth/administrator/login", "grace@example.com", "member-pass")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}
