package domain

import (
	"errors"
	"time"
)

const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleFinance    = "finance"
	RoleDriver     = "driver"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

// User models an authenticated actor in the system. Every user belongs to
// exactly one tenant; the tenant id travels in the JWT claims, never in a
// long-lived service instance.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	TenantID     string    `json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
