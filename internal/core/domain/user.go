package domain

import (
	"errors"
	"time"
)

// Subscription tiers. The tier decides the daily research-query allowance.
const (
	TierTrial        = "trial"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

var ErrUserExists = errors.New("user already exists")
var ErrUserNotFound = errors.New("user not found")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrQuotaExceeded = errors.New("daily query quota exceeded")

// User models an authenticated actor in the system.
type User struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Email        string    `json:"email" bson:"email"`
	Username     string    `json:"username" bson:"username"`
	FullName     string    `json:"full_name,omitempty" bson:"full_name,omitempty"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Tier         string    `json:"tier" bson:"tier"`
	QueriesUsed  int       `json:"queries_used" bson:"queries_used"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// DailyQueryLimit returns the number of research queries a tier may submit
// per calendar day. Zero means unlimited.
func DailyQueryLimit(tier string) int {
	switch tier {
	case TierProfessional:
		return 200
	case TierEnterprise:
		return 0
	default: // trial or unknown
		return 10
	}
}
