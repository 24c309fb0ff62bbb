package handler

import (
	"github.com/taxentia/taxentia-api/internal/core/domain"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Username string `json:"username" validate:"required,min=3"`
	FullName string `json:"full_name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token,omitempty"`
	User  *domain.User `json:"user,omitempty"`
}

// meResponse is the /auth/me payload: the profile, with queries_used filled
// from the quota store, plus the tier's daily allowance (0 = unlimited).
type meResponse struct {
	User       *domain.User `json:"user"`
	DailyLimit int          `json:"daily_limit"`
}
