package ports

import (
	"context"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

// RegisterInput carries the fields accepted at account registration.
type RegisterInput struct {
	Email    string
	Password string
	Username string
	FullName string
}

// AuthService defines registration and credential verification.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	// Login verifies credentials and returns a signed API token alongside
	// the user. Session cookie issuance is the transport layer's concern.
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	UserByID(ctx context.Context, id string) (*domain.User, error)
}
