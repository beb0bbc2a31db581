package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Authorization objects and actions used by the membership lifecycle.
const (
	ObjectOrganization = "organization"
	ObjectMember       = "member"
	ObjectInvitation   = "invitation"

	ActionOrganizationView = "organization.view"
	ActionMemberView       = "member.view"
	ActionMemberManage     = "member.manage"
	ActionInvitationView   = "invitation.view"
	ActionInvitationManage = "invitation.manage"
)

// CapabilityChecker answers whether a user may perform an action inside an
// organization. Kept as an injected predicate so the rule stays pluggable
// and testable in isolation.
type CapabilityChecker interface {
	Require(ctx context.Context, userID snowflake.ID, orgID snowflake.ID, object string, action string) error
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, userID snowflake.ID, orgID string) (*OrganizationResponse, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)

	ListMembers(ctx context.Context, actorID snowflake.ID, orgID string) ([]MemberResponse, error)
	AddMember(ctx context.Context, actorID snowflake.ID, orgID string, req AddMemberRequest) (*MemberResponse, error)
	UpdateMemberRole(ctx context.Context, actorID snowflake.ID, orgID string, membershipID string, role string) error
	RemoveMember(ctx context.Context, actorID snowflake.ID, orgID string, membershipID string) error
}

type CreateOrganizationRequest struct {
	Name string
}

type AddMemberRequest struct {
	Email string
	Role  string
}

type OrganizationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	MembershipID string    `json:"membership_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
