package service

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
	"github.com/trustcove/trustcove/internal/organization/domain"
	orgrepo "github.com/trustcove/trustcove/internal/organization/repository"
	dbpkg "github.com/trustcove/trustcove/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capsStub struct{ err error }

func (c capsStub) Require(context.Context, snowflake.ID, snowflake.ID, string, string) error {
	return c.err
}

type fixture struct {
	db    *gorm.DB
	clk   *clock.FakeClock
	node  *snowflake.Node
	users authdomain.Service
	repo  domain.Repository
	svc   domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&domain.Organization{},
		&domain.Membership{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	userRepo, sessionRepo := authrepo.New(conn)
	users := authservice.New(zap.NewNop(), userRepo, sessionRepo, node, clk, &config.MembershipPolicyHolder{})

	repo := orgrepo.NewRepository(conn)
	svc := NewService(zap.NewNop(), conn, repo, users, capsStub{}, nil, node, clk)

	return &fixture{db: conn, clk: clk, node: node, users: users, repo: repo, svc: svc}
}

func (f *fixture) createUser(t *testing.T, email string) *authdomain.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    email,
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	return user
}

func TestCreateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	org, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme GRC"})
	require.NoError(t, err)
	assert.Equal(t, "Acme GRC", org.Name)
	assert.Contains(t, org.Slug, "acme-grc-")

	// The creator gets an OWNER membership in the same transaction.
	orgID, err := snowflake.ParseString(org.ID)
	require.NoError(t, err)
	member, err := f.repo.FindMembership(ctx, orgID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, member.Role)
}

func TestCreateOrganizationValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), 0, domain.CreateOrganizationRequest{Name: "X"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	owner := f.createUser(t, "founder@example.com")
	_, err = f.svc.Create(context.Background(), owner.ID, domain.CreateOrganizationRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestSameNameGetsDistinctSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	first, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Slug, second.Slug)
}

func TestListByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	bystander := f.createUser(t, "bystander@example.com")

	_, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Umbrella"})
	require.NoError(t, err)

	orgs, err := f.svc.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, orgs, 2)
	assert.Equal(t, domain.RoleOwner, orgs[0].Role)

	orgs, err = f.svc.ListByUser(ctx, bystander.ID)
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	org, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	joiner := f.createUser(t, "joiner@example.com")
	member, err := f.svc.AddMember(ctx, owner.ID, org.ID, domain.AddMemberRequest{
		Email: "Joiner@Example.com",
		Role:  "ADMIN",
	})
	require.NoError(t, err)
	assert.Equal(t, joiner.ID.String(), member.UserID)
	assert.Equal(t, domain.RoleAdmin, member.Role)

	// Second attach for the same user hits the unique constraint.
	_, err = f.svc.AddMember(ctx, owner.ID, org.ID, domain.AddMemberRequest{
		Email: "joiner@example.com",
		Role:  "MEMBER",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
}

func TestAddMemberUnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	org, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	// Direct add requires an existing account; strangers get invited instead.
	_, err = f.svc.AddMember(ctx, owner.ID, org.ID, domain.AddMemberRequest{
		Email: "stranger@example.com",
		Role:  "MEMBER",
	})
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)
}

func TestUpdateMemberRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	org, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	f.createUser(t, "joiner@example.com")
	member, err := f.svc.AddMember(ctx, owner.ID, org.ID, domain.AddMemberRequest{Email: "joiner@example.com", Role: "MEMBER"})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateMemberRole(ctx, owner.ID, org.ID, member.MembershipID, "ADMIN"))

	members, err := f.svc.ListMembers(ctx, owner.ID, org.ID)
	require.NoError(t, err)
	byID := make(map[string]domain.Role, len(members))
	for _, m := range members {
		byID[m.MembershipID] = m.Role
	}
	assert.Equal(t, domain.RoleAdmin, byID[member.MembershipID])
}

func TestLastOwnerCannotBeDemoted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	org, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	members, err := f.svc.ListMembers(ctx, owner.ID, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	ownerMembership := members[0].MembershipID

	err = f.svc.UpdateMemberRole(ctx, owner.ID, org.ID, ownerMembership, "MEMBER")
	assert.ErrorIs(t, err, domain.ErrLastOwner)

	err = f.svc.RemoveMember(ctx, owner.ID, org.ID, ownerMembership)
	assert.ErrorIs(t, err, domain.ErrLastOwner)

	// With a second owner in place both operations go through.
	f.createUser(t, "cofounder@example.com")
	_, err = f.svc.AddMember(ctx, owner.ID, org.ID, domain.AddMemberRequest{Email: "cofounder@example.com", Role: "OWNER"})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateMemberRole(ctx, owner.ID, org.ID, ownerMembership, "MEMBER"))
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	org, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	joiner := f.createUser(t, "joiner@example.com")
	member, err := f.svc.AddMember(ctx, owner.ID, org.ID, domain.AddMemberRequest{Email: "joiner@example.com", Role: "MEMBER"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveMember(ctx, owner.ID, org.ID, member.MembershipID))

	orgID, err := snowflake.ParseString(org.ID)
	require.NoError(t, err)
	_, err = f.repo.FindMembership(ctx, orgID, joiner.ID)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)

	// Removing again reports the membership gone.
	err = f.svc.RemoveMember(ctx, owner.ID, org.ID, member.MembershipID)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}

func TestCapabilityGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createUser(t, "founder@example.com")
	org, err := f.svc.Create(ctx, owner.ID, domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	denied := NewService(zap.NewNop(), f.db, f.repo, f.users, capsStub{err: domain.ErrForbidden}, nil, f.node, f.clk)

	_, err = denied.GetByID(ctx, owner.ID, org.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = denied.ListMembers(ctx, owner.ID, org.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = denied.AddMember(ctx, owner.ID, org.ID, domain.AddMemberRequest{Email: "x@example.com", Role: "MEMBER"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	err = denied.UpdateMemberRole(ctx, owner.ID, org.ID, "1", "MEMBER")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	err = denied.RemoveMember(ctx, owner.ID, org.ID, "1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
