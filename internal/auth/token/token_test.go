package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	domainerrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

type TokenServiceSuite struct {
	suite.Suite
	service *Service
	now     time.Time
}

func TestTokenServiceSuite(t *testing.T) {
	suite.Run(t, new(TokenServiceSuite))
}

func (s *TokenServiceSuite) SetupTest() {
	s.service = NewService("test-signing-key", "ccak", time.Hour)
	s.now = time.Now()
}

func (s *TokenServiceSuite) TestRoundTrip() {
	actor := requestcontext.Actor{
		Kind:  requestcontext.ActorAdministrator,
		ID:    42,
		Email: "jane@ccak.or.ke",
		Role:  "finance-admin",
	}

	signed, err := s.service.Issue(actor, s.now)
	s.Require().NoError(err)

	got, err := s.service.ValidateToken(signed)
	s.Require().NoError(err)
	s.Equal(actor, got)
}

func (s *TokenServiceSuite) TestMemberTokenCarriesNoRole() {
	actor := requestcontext.Actor{
		Kind:  requestcontext.ActorMember,
		ID:    7,
		Email: "grace@example.com",
	}

	signed, err := s.service.Issue(actor, s.now)
	s.Require().NoError(err)

	got, err := s.service.ValidateToken(signed)
	s.Require().NoError(err)
	s.Equal(requestcontext.ActorMember, got.Kind)
	s.Empty(got.Role)
}

func (s *TokenServiceSuite) TestValidateToken() {
	s.Run("expired token", func() {
		signed, err := s.service.Issue(requestcontext.Actor{
			Kind: requestcontext.ActorMember,
			ID:   1,
		}, s.now.Add(-2*time.Hour))
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(signed)
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
		s.Contains(err.Error(), "expired")
	})

	s.Run("wrong signing key", func() {
		other := NewService("other-key", "ccak", time.Hour)
		signed, err := other.Issue(requestcontext.Actor{
			Kind: requestcontext.ActorMember,
			ID:   1,
		}, s.now)
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(signed)
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
	})

	s.Run("garbage token", func() {
		_, err := s.service.ValidateToken("not-a-token")
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
	})

	s.Run("unknown actor kind", func() {
		signed, err := s.service.Issue(requestcontext.Actor{
			Kind: requestcontext.ActorKind("robot"),
			ID:   1,
		}, s.now)
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(signed)
		s.True(domainerrors.HasCode(err, domainerrors.CodeUnauthorized))
	})
}
