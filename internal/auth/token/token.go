// Package token issues and validates the HS256 access tokens used by both
// member and administrator logins.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "ccak/pkg/domain-errors"
	"ccak/pkg/requestcontext"
)

// Claims are the JWT claims carried by access tokens. Kind distinguishes
// member tokens from administrator tokens; Role is set for administrators only.
type Claims struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewService(signingKey string, issuer string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs an access token for the given actor.
func (s *Service) Issue(actor requestcontext.Actor, now time.Time) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Kind:  string(actor.Kind),
		Email: actor.Email,
		Role:  actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token and returns the actor it encodes.
// Satisfies middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (requestcontext.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}

	kind := requestcontext.ActorKind(claims.Kind)
	if kind != requestcontext.ActorMember && kind != requestcontext.ActorAdministrator {
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token kind")
	}

	return requestcontext.Actor{
		Kind:  kind,
		ID:    id,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
