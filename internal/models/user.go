package models

import "time"

// UserRole represents the registered account type. Staff is an orthogonal
// flag rather than a role so policy checks stay flat predicates.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleTeacher UserRole = "TEACHER"
)

// TrustState is the moderation status of a user. Only teachers go through
// review; students are approved at registration.
type TrustState string

const (
	TrustPending  TrustState = "PENDING"
	TrustApproved TrustState = "APPROVED"
	TrustRejected TrustState = "REJECTED"
)

// User represents an account stored in the users table. Accounts are never
// hard-deleted; blocking and trust transitions are the only moderation paths.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	Role         UserRole   `db:"role" json:"role"`
	Trust        TrustState `db:"trust" json:"trust"`
	Staff        bool       `db:"staff" json:"staff"`
	Blocked      bool       `db:"blocked" json:"blocked"`
	BlockReason  *string    `db:"block_reason" json:"block_reason,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile is the public projection of a user.
type Profile struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Role        UserRole   `json:"role"`
	Trust       TrustState `json:"trust"`
	CreatedAt   time.Time  `json:"joined_at"`
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Trust:       u.Trust,
		CreatedAt:   u.CreatedAt,
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
