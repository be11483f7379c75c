package models

import (
	"time"

	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
)

// Administrator is a back-office account. Role decides what the policy table
// allows; see internal/policy.
type Administrator struct {
	ID           domain.AdministratorID `json:"id"`
	FirstName    string                 `json:"first_name"`
	LastName     string                 `json:"last_name"`
	Email        string                 `json:"email"`
	Username     string                 `json:"username"`
	PasswordHash string                 `json:"-"`
	Role         string                 `json:"role"`
	Status       string                 `json:"status"`
	CreatedBy    domain.AdministratorID `json:"created_by,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	LastUpdated  time.Time              `json:"last_updated"`
}

// Validate checks administrator construction invariants. The username falls
// back to the email, matching how accounts were provisioned historically.
func (a *Administrator) Validate() error {
	if a.Email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "administrator email is required")
	}
	if a.Role == "" {
		return dErrors.New(dErrors.CodeBadRequest, "administrator role is required")
	}
	return nil
}

// Normalize fills defaulted fields before persistence.
func (a *Administrator) Normalize() {
	if a.Username == "" {
		a.Username = a.Email
	}
	if a.Status == "" {
		a.Status = "active"
	}
}
