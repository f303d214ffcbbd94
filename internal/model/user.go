// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// Role is the account type of a user on the job-matching platform.
//
// Only two values ever reach the store. The web client still sends the
// legacy label "recruiter" in places, so every entry path runs role input
// through NormalizeRole first.
type Role string

const (
	RoleStudent  Role = "student"
	RoleEmployer Role = "employer"

	// legacyRecruiter is the old UI label for an employer account.
	legacyRecruiter = "recruiter"
)

// NormalizeRole maps raw role input onto a Role.
// It reports false when the input is neither a known role nor the legacy label.
func NormalizeRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleStudent):
		return RoleStudent, true
	case string(RoleEmployer), legacyRecruiter:
		return RoleEmployer, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the two storable roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleEmployer
}

// User is the canonical identity record. A real-world person maps to exactly
// one User no matter which login path they came through.
//
// Optional fields use the empty string as "absent" rather than *string.
// The store layer turns "" into SQL NULL (or an omitted field) on the way in.
//
// GoogleID and ExternalID are alternate identity keys. Once set they are never
// cleared or reassigned. Picture is write-once: the first non-empty value sticks.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId,omitempty"` // Supabase user id
	GoogleID   string    `json:"googleId,omitempty"`   // Google "sub" claim
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Password   string    `json:"-"` // bcrypt hash, reserved for credentialed login
	Picture    string    `json:"picture,omitempty"`
	Role       Role      `json:"role"`
	CompanyID  string    `json:"companyId,omitempty"` // set by the employer-profile flow
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PublicUserView is the shape of a user handed back to API callers.
// It deliberately has no password field.
type PublicUserView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	CompanyID string `json:"companyId,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

// Public returns the caller-facing view of u.
func (u *User) Public() PublicUserView {
	return PublicUserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		Picture:   u.Picture,
	}
}
