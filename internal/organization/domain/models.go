// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role is the closed set of membership roles, ordered by privilege.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// ParseRole validates a raw role value against the closed enum.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", ErrInvalidRole
	}
}

// Organization represents a tenant. All domain records hang off one.
type Organization struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Slug      string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Membership binds a user to an organization with a role. The unique index
// on (org_id, user_id) is what makes the acceptance upsert race-safe.
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:2" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "organization_members" }

// Invitation is a time-boxed, single-use offer to join an organization,
// identified by an unguessable token. Accepting it is terminal.
type Invitation struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvitedBy  snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	Email      string       `gorm:"type:text;not null" json:"email"`
	Role       Role         `gorm:"type:text;not null" json:"role"`
	Token      string       `gorm:"type:text;not null;uniqueIndex:ux_org_invitations_token" json:"-"`
	ExpiresAt  time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	AcceptedAt *time.Time   `gorm:"column:accepted_at" json:"accepted_at"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "organization_invitations" }

// IsExpired reports whether the invitation window has passed. Expiry is
// evaluated lazily on access; there is no background sweep.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsPending reports whether the invitation can still be accepted.
func (i Invitation) IsPending(now time.Time) bool {
	return i.AcceptedAt == nil && !i.IsExpired(now)
}
