package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orgdomain "github.com/trustcove/trustcove/internal/organization/domain"
	dbpkg "github.com/trustcove/trustcove/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	caps  orgdomain.CapabilityChecker
	orgID snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&orgdomain.Membership{}))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	svc := NewService(Params{DB: conn, Log: zap.NewNop(), Enforcer: enforcer})

	return &fixture{
		db:    conn,
		node:  node,
		caps:  NewCapabilityChecker(svc),
		orgID: node.Generate(),
	}
}

func (f *fixture) addMembership(t *testing.T, role orgdomain.Role) snowflake.ID {
	t.Helper()
	userID := f.node.Generate()
	require.NoError(t, f.db.Create(&orgdomain.Membership{
		ID:        f.node.Generate(),
		OrgID:     f.orgID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}).Error)
	return userID
}

func TestRoleCapabilities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.addMembership(t, orgdomain.RoleOwner)
	admin := f.addMembership(t, orgdomain.RoleAdmin)
	member := f.addMembership(t, orgdomain.RoleMember)

	cases := []struct {
		name    string
		userID  snowflake.ID
		object  string
		action  string
		allowed bool
	}{
		{"owner manages members", owner, orgdomain.ObjectMember, orgdomain.ActionMemberManage, true},
		{"owner manages invitations", owner, orgdomain.ObjectInvitation, orgdomain.ActionInvitationManage, true},
		{"owner reads audit log", owner, ObjectAuditLog, ActionAuditLogView, true},
		{"admin manages members", admin, orgdomain.ObjectMember, orgdomain.ActionMemberManage, true},
		{"admin manages invitations", admin, orgdomain.ObjectInvitation, orgdomain.ActionInvitationManage, true},
		{"member views org", member, orgdomain.ObjectOrganization, orgdomain.ActionOrganizationView, true},
		{"member views roster", member, orgdomain.ObjectMember, orgdomain.ActionMemberView, true},
		{"member cannot manage members", member, orgdomain.ObjectMember, orgdomain.ActionMemberManage, false},
		{"member cannot invite", member, orgdomain.ObjectInvitation, orgdomain.ActionInvitationManage, false},
		{"member cannot read audit log", member, ObjectAuditLog, ActionAuditLogView, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.caps.Require(ctx, tc.userID, f.orgID, tc.object, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, orgdomain.ErrForbidden)
			}
		})
	}
}

func TestNonMemberIsForbidden(t *testing.T) {
	f := newFixture(t)

	outsider := f.node.Generate()
	err := f.caps.Require(context.Background(), outsider, f.orgID, orgdomain.ObjectOrganization, orgdomain.ActionOrganizationView)
	assert.ErrorIs(t, err, orgdomain.ErrForbidden)

	err = f.caps.Require(context.Background(), 0, f.orgID, orgdomain.ObjectOrganization, orgdomain.ActionOrganizationView)
	assert.ErrorIs(t, err, orgdomain.ErrForbidden)
}

func TestRoleChangeTakesEffectImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := f.addMembership(t, orgdomain.RoleAdmin)
	require.NoError(t, f.caps.Require(ctx, userID, f.orgID, orgdomain.ObjectMember, orgdomain.ActionMemberManage))

	// Demote straight in the table; the next check must see it.
	require.NoError(t, f.db.Model(&orgdomain.Membership{}).
		Where("org_id = ? AND user_id = ?", f.orgID, userID).
		Update("role", orgdomain.RoleMember).Error)

	err := f.caps.Require(ctx, userID, f.orgID, orgdomain.ObjectMember, orgdomain.ActionMemberManage)
	assert.ErrorIs(t, err, orgdomain.ErrForbidden)

	// Removal cuts access entirely.
	require.NoError(t, f.db.
		Where("org_id = ? AND user_id = ?", f.orgID, userID).
		Delete(&orgdomain.Membership{}).Error)

	err = f.caps.Require(ctx, userID, f.orgID, orgdomain.ObjectMember, orgdomain.ActionMemberView)
	assert.ErrorIs(t, err, orgdomain.ErrForbidden)
}
