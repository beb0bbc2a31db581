package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	Role      Role
	CreatedAt time.Time
}

type MemberListItem struct {
	MembershipID snowflake.ID
	UserID       snowflake.ID
	Email        string
	DisplayName  string
	Role         Role
	CreatedAt    time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error)

	CreateMembership(ctx context.Context, member Membership) error
	// FirstOrCreateMembership inserts the membership unless one already
	// exists for (org, user); the existing row wins and is returned.
	FirstOrCreateMembership(ctx context.Context, member Membership) (*Membership, bool, error)
	FindMembership(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (*Membership, error)
	GetMembership(ctx context.Context, orgID snowflake.ID, membershipID snowflake.ID) (*Membership, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberListItem, error)
	UpdateMembershipRole(ctx context.Context, membershipID snowflake.ID, role Role) error
	DeleteMembership(ctx context.Context, membershipID snowflake.ID) error

	CreateInvitation(ctx context.Context, invitation Invitation) error
	// GetInvitationByTokenForUpdate locks the invitation row for the
	// duration of the surrounding transaction.
	GetInvitationByTokenForUpdate(ctx context.Context, token string) (*Invitation, error)
	GetPendingInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	GetInvitation(ctx context.Context, orgID snowflake.ID, invitationID snowflake.ID) (*Invitation, error)
	ListPendingInvitations(ctx context.Context, orgID snowflake.ID, now time.Time) ([]Invitation, error)
	MarkInvitationAccepted(ctx context.Context, invitationID snowflake.ID, acceptedAt time.Time) error
	DeleteInvitation(ctx context.Context, invitationID snowflake.ID) error
}
