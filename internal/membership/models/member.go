package models

import (
	"time"

	"ccak/pkg/domain"
	dErrors "ccak/pkg/domain-errors"
)

// SubscriptionStatus tracks whether a member's annual subscription is current.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// RegistrationStatus tracks whether a member completed registration.
type RegistrationStatus string

const (
	Registered   RegistrationStatus = "registered"
	Unregistered RegistrationStatus = "unregistered"
)

// Member is a portal member account.
//
// Invariants:
//   - Email is unique and is the login identifier
//   - SubscriptionStatus and RegistrationStatus are mutated only by the
//     billing completion dispatcher (paid invoice) or an explicit
//     administrator edit, never by the member
type Member struct {
	ID                   domain.MemberID    `json:"id"`
	FirstName            string             `json:"first_name"`
	LastName             string             `json:"last_name"`
	Email                string             `json:"email"`
	PhoneNumber          string             `json:"phone_number"`
	Company              string             `json:"company,omitempty"`
	Designation          string             `json:"designation,omitempty"`
	PasswordHash         string             `json:"-"`
	RegistrationStatus   RegistrationStatus `json:"registration_status"`
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status"`
	SubscriptionCategory string             `json:"subscription_category,omitempty"`
	SubscriptionExpiry   time.Time          `json:"subscription_expiry"`
	Status               string             `json:"status"`
	CreatedAt            time.Time          `json:"created_at"`
	LastUpdated          time.Time          `json:"last_updated"`
}

// Validate checks member construction invariants.
func (m *Member) Validate() error {
	if m.Email == "" {
		return dErrors.New(dErrors.CodeBadRequest, "member email is required")
	}
	if m.FirstName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "member first name is required")
	}
	return nil
}

// ActivateSubscription flips the subscription to active and extends the
// expiry one year from now.
func (m *Member) ActivateSubscription(now time.Time) {
	m.SubscriptionStatus = SubscriptionActive
	m.SubscriptionExpiry = now.AddDate(1, 0, 0)
	m.LastUpdated = now
}

// CompleteRegistration marks the member as registered.
func (m *Member) CompleteRegistration(now time.Time) {
	m.RegistrationStatus = Registered
	m.LastUpdated = now
}

// MemberQuery filters member searches. Zero values mean "any".
type MemberQuery struct {
	Keyword            string
	SubscriptionStatus SubscriptionStatus
	RegistrationStatus RegistrationStatus
	Page               int
	Limit              int
}
