package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// WithTx returns a copy of the service whose user writes run on tx, so
	// callers can create accounts inside their own transactions.
	WithTx(tx *gorm.DB) Service

	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	// MarkEmailVerified stamps email_verified_at on an account whose address
	// was proven out of band. Safe to call for already-verified accounts.
	MarkEmailVerified(ctx context.Context, userID snowflake.ID) error
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	// StartSession issues a session for an already-verified identity, e.g.
	// right after an invitation signup.
	StartSession(ctx context.Context, userID snowflake.ID, userAgent, ipAddress string) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id snowflake.ID) (*User, error)
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	// EmailVerified marks the account verified at creation time. Set when
	// the address was proven out of band, e.g. by holding a mailed
	// invitation token.
	EmailVerified bool
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	Session   *SessionView
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
	UserID    snowflake.ID
}
