package domain

import (
	"fmt"
	"net/mail"
	"time"
)

// UserRole represents the role of an application user.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// AuthUser is the application's view of the signed-in principal. It is owned
// by the backend profile API; the lifecycle controller only ever holds a
// cached copy of it.
type AuthUser struct {
	ID                     string    `json:"id" validate:"required"`
	Email                  string    `json:"email" validate:"required,email"`
	Name                   string    `json:"name"`
	AvatarURL              string    `json:"image"`
	Role                   UserRole  `json:"role" validate:"required,user_role"`
	IsActive               bool      `json:"isActive"`
	ProfessionalRole       string    `json:"professionalRole"`
	HasCompletedOnboarding bool      `json:"hasCompletedOnboarding"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Validate checks the structural invariants of a user record.
func (u *AuthUser) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}

	if u.Email == "" {
		return fmt.Errorf("email is required")
	}

	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}

	if u.Role != UserRoleUser && u.Role != UserRoleAdmin {
		return fmt.Errorf("invalid role: %s", u.Role)
	}

	return nil
}

// IsAdmin returns true if the user has the admin role.
func (u *AuthUser) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Authenticated reports whether a user record counts as an authenticated
// principal. A user counts as authenticated only when present and active.
func Authenticated(u *AuthUser) bool {
	return u != nil && u.IsActive
}
