package seed

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	"github.com/trustcove/trustcove/internal/auth/password"
	organizationdomain "github.com/trustcove/trustcove/internal/organization/domain"
	dbpkg "github.com/trustcove/trustcove/pkg/db"
	"gorm.io/gorm"
)

func newDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&organizationdomain.Organization{},
		&organizationdomain.Membership{},
	))
	node, err := snowflake.NewNode(6)
	require.NoError(t, err)
	return conn, node
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	conn, node := newDB(t)
	cfg := BootstrapConfig{AdminEmail: "Admin@Example.com", AdminPassword: "bootstrap-secret"}

	require.NoError(t, EnsureBootstrapAdmin(conn, node, cfg))

	var org organizationdomain.Organization
	require.NoError(t, conn.First(&org, "slug = ?", "main").Error)

	var user authdomain.User
	require.NoError(t, conn.First(&user, "email = ?", "admin@example.com").Error)
	require.NotNil(t, user.PasswordHash)
	assert.True(t, password.Verify("bootstrap-secret", *user.PasswordHash))
	assert.NotNil(t, user.EmailVerifiedAt)

	var member organizationdomain.Membership
	require.NoError(t, conn.First(&member, "org_id = ? AND user_id = ?", org.ID, user.ID).Error)
	assert.Equal(t, organizationdomain.RoleOwner, member.Role)

	// Rerunning must not duplicate anything.
	require.NoError(t, EnsureBootstrapAdmin(conn, node, cfg))

	var orgCount, userCount, memberCount int64
	conn.Model(&organizationdomain.Organization{}).Count(&orgCount)
	conn.Model(&authdomain.User{}).Count(&userCount)
	conn.Model(&organizationdomain.Membership{}).Count(&memberCount)
	assert.EqualValues(t, 1, orgCount)
	assert.EqualValues(t, 1, userCount)
	assert.EqualValues(t, 1, memberCount)
}

func TestEnsureBootstrapAdminWithoutPassword(t *testing.T) {
	conn, node := newDB(t)

	// No credential configured: only the default org is guaranteed.
	require.NoError(t, EnsureBootstrapAdmin(conn, node, BootstrapConfig{AdminEmail: "admin@example.com"}))

	var org organizationdomain.Organization
	require.NoError(t, conn.First(&org, "slug = ?", "main").Error)

	var userCount int64
	conn.Model(&authdomain.User{}).Count(&userCount)
	assert.EqualValues(t, 0, userCount)
}
