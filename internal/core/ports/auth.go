package ports

import (
	"context"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// AuthRepository defines the interface for user authentication persistence.
type AuthRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}

// AuthService handles registration and login.
type AuthService interface {
	Register(ctx context.Context, username, password, email, role, tenantID string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}
