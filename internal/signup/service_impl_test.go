package signup

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	authrepo "github.com/trustcove/trustcove/internal/auth/repository"
	authservice "github.com/trustcove/trustcove/internal/auth/service"
	"github.com/trustcove/trustcove/internal/clock"
	"github.com/trustcove/trustcove/internal/config"
	orgdomain "github.com/trustcove/trustcove/internal/organization/domain"
	orgrepo "github.com/trustcove/trustcove/internal/organization/repository"
	orgservice "github.com/trustcove/trustcove/internal/organization/service"
	"github.com/trustcove/trustcove/internal/signup/domain"
	dbpkg "github.com/trustcove/trustcove/pkg/db"
	"go.uber.org/zap"
)

type allowAll struct{}

func (allowAll) Require(context.Context, snowflake.ID, snowflake.ID, string, string) error {
	return nil
}

func newService(t *testing.T) (domain.Service, authdomain.Service, orgdomain.Repository) {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.Membership{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	userRepo, sessionRepo := authrepo.New(conn)
	authsvc := authservice.New(zap.NewNop(), userRepo, sessionRepo, node, clk, &config.MembershipPolicyHolder{})

	repo := orgrepo.NewRepository(conn)
	orgsvc := orgservice.NewService(zap.NewNop(), conn, repo, authsvc, allowAll{}, nil, node, clk)

	return NewService(authsvc, orgsvc), authsvc, repo
}

func TestSignup(t *testing.T) {
	svc, authsvc, repo := newService(t)
	ctx := context.Background()

	result, err := svc.Signup(ctx, domain.Request{
		OrgName:     "Acme",
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "a-long-enough-password",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RawToken)
	require.NotEmpty(t, result.OrgID)

	// The caller lands logged in.
	session, err := authsvc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, result.UserID, session.UserID.String())

	// The new account owns its personal organization.
	orgID, err := snowflake.ParseString(result.OrgID)
	require.NoError(t, err)
	member, err := repo.FindMembership(ctx, orgID, session.UserID)
	require.NoError(t, err)
	assert.Equal(t, orgdomain.RoleOwner, member.Role)
}

func TestSignupOrgNameFallback(t *testing.T) {
	svc, _, repo := newService(t)
	ctx := context.Background()

	result, err := svc.Signup(ctx, domain.Request{
		Email:    "solo@example.com",
		Password: "a-long-enough-password",
	})
	require.NoError(t, err)

	orgID, err := snowflake.ParseString(result.OrgID)
	require.NoError(t, err)
	org, err := repo.GetOrganization(ctx, orgID)
	require.NoError(t, err)
	// Falls back to the mailbox when neither org nor display name is given.
	assert.Equal(t, "solo", org.Name)
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, domain.Request{Email: "", Password: "a-long-enough-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Signup(ctx, domain.Request{Email: "alice@example.com", Password: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, domain.Request{Email: "alice@example.com", Password: "a-long-enough-password"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, domain.Request{Email: "alice@example.com", Password: "another-long-password"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}
