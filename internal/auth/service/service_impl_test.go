package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustcove/trustcove/internal/auth/domain"
	authrepo "github.com/trustcove/trustcove/internal/auth/repository"
	"github.com/trustcove/trustcove/internal/clock"
	"github.com/trustcove/trustcove/internal/config"
	dbpkg "github.com/trustcove/trustcove/pkg/db"
	"go.uber.org/zap"
)

func newService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.User{}, &domain.Session{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	userRepo, sessionRepo := authrepo.New(conn)
	return New(zap.NewNop(), userRepo, sessionRepo, node, clk, &config.MembershipPolicyHolder{}), clk
}

func TestCreateUser(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:       "  Alice@Example.COM ",
		Password:    "a-long-enough-password",
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.Nil(t, user.EmailVerifiedAt)
	require.NotNil(t, user.PasswordHash)
	assert.NotContains(t, *user.PasswordHash, "a-long-enough-password")

	verified, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:         "bob@example.com",
		Password:      "a-long-enough-password",
		EmailVerified: true,
	})
	require.NoError(t, err)
	require.NotNil(t, verified.EmailVerifiedAt)
	assert.Equal(t, clk.Now(), verified.EmailVerifiedAt.UTC())
	// Display name falls back to the mailbox when none is given.
	assert.Equal(t, "bob", verified.DisplayName)
}

func TestMarkEmailVerified(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		Email:    "carol@example.com",
		Password: "a-long-enough-password",
	})
	require.NoError(t, err)
	require.Nil(t, user.EmailVerifiedAt)

	clk.Advance(time.Minute)
	require.NoError(t, svc.MarkEmailVerified(ctx, user.ID))

	stored, err := svc.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EmailVerifiedAt)
	assert.WithinDuration(t, clk.Now(), *stored.EmailVerifiedAt, time.Second)

	assert.ErrorIs(t, svc.MarkEmailVerified(ctx, user.ID+1), domain.ErrUserNotFound)
}

func TestCreateUserRejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "not-an-email", Password: "a-long-enough-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "short@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "ALICE@example.com", Password: "another-long-password"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.UserID)
	assert.NotEmpty(t, result.RawToken)

	session, err := svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "wrong-password-entirely"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// Unknown accounts fail the same way as wrong passwords.
	_, err = svc.Login(ctx, domain.LoginRequest{Email: "ghost@example.com", Password: "a-long-enough-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestSessionExpiry(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)

	clk.Advance(7*24*time.Hour + time.Minute)

	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestLogout(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.RawToken))

	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)

	_, err = svc.Authenticate(ctx, "garbage-token")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}
