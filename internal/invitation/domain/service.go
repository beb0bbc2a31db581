// Package domain defines the invitation lifecycle contract: creating
// time-boxed invitations, resolving a token to a next step, and the atomic
// acceptance that turns an invitation into a membership.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	orgdomain "github.com/trustcove/trustcove/internal/organization/domain"
)

var (
	// ErrNotFound covers unknown tokens and already-accepted invitations
	// alike, so a caller cannot probe which of the two it was.
	ErrNotFound = errors.New("invitation not found")
	// ErrExpired is distinct from ErrNotFound: the token was real but its
	// window has passed, and the caller should ask for a fresh invite.
	ErrExpired       = errors.New("invitation expired")
	ErrEmailMismatch = errors.New("invitation was issued to a different email")
)

// Resolution outcomes tell an unauthenticated or authenticated caller what
// to do next with a pending invitation.
const (
	OutcomeSignupRequired = "signup_required"
	OutcomeLoginRequired  = "login_required"
	OutcomeAcceptAsSelf   = "accept_as_self"
)

type CreateRequest struct {
	Email string
	Role  string
}

// SignupRequest carries everything needed to create an account from an
// invitation. The email is taken from the invitation, never the caller.
type SignupRequest struct {
	Token       string
	Password    string
	DisplayName string
	UserAgent   string
	IPAddress   string
}

type InvitationResponse struct {
	ID         string         `json:"id"`
	OrgID      string         `json:"org_id"`
	Email      string         `json:"email"`
	Role       orgdomain.Role `json:"role"`
	Token      string         `json:"token,omitempty"`
	ExpiresAt  time.Time      `json:"expires_at"`
	AcceptedAt *time.Time     `json:"accepted_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Resolution describes a pending invitation to whoever holds the token,
// without exposing anything beyond what the landing page needs.
type Resolution struct {
	Outcome          string         `json:"outcome"`
	OrganizationName string         `json:"organization_name"`
	Email            string         `json:"email"`
	Role             orgdomain.Role `json:"role"`
	ExpiresAt        time.Time      `json:"expires_at"`
}

// AcceptResult reports the membership an acceptance resolved to, whether it
// was created by this call or already existed.
type AcceptResult struct {
	OrgID        string         `json:"org_id"`
	MembershipID string         `json:"membership_id"`
	Role         orgdomain.Role `json:"role"`
	Created      bool           `json:"created"`
}

// SignupResult bundles the new account, its membership, and a live session.
type SignupResult struct {
	User       *authdomain.User
	Membership *AcceptResult
	Login      *authdomain.LoginResult
}

type Service interface {
	// Create issues an invitation for an organization. actorID must hold
	// the invitation.manage capability in that organization.
	Create(ctx context.Context, actorID snowflake.ID, orgID string, req CreateRequest) (*InvitationResponse, error)
	ListPending(ctx context.Context, actorID snowflake.ID, orgID string) ([]InvitationResponse, error)
	Revoke(ctx context.Context, actorID snowflake.ID, orgID string, invitationID string) error

	// Resolve inspects a token for display. viewer is nil when the caller
	// is unauthenticated.
	Resolve(ctx context.Context, token string, viewer *authdomain.User) (*Resolution, error)
	// Accept atomically marks the invitation accepted and grants the
	// membership. Re-accepting by the same user is a no-op.
	Accept(ctx context.Context, token string, user *authdomain.User) (*AcceptResult, error)
	// SignupAndAccept creates a verified account for the invited email,
	// accepts the invitation, and starts a session.
	SignupAndAccept(ctx context.Context, req SignupRequest) (*SignupResult, error)
}
