package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/trustcove/trustcove/internal/audit/domain"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	"github.com/trustcove/trustcove/internal/clock"
	"github.com/trustcove/trustcove/internal/config"
	"github.com/trustcove/trustcove/internal/invitation/domain"
	orgdomain "github.com/trustcove/trustcove/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tokenBytes sizes the invitation token at 256 bits of entropy, the same
// as session tokens.
const tokenBytes = 32

type service struct {
	log      *zap.Logger
	db       *gorm.DB
	repo     orgdomain.Repository
	users    authdomain.Service
	caps     orgdomain.CapabilityChecker
	auditSvc auditdomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
	policy   *config.MembershipPolicyHolder
}

func NewService(
	log *zap.Logger,
	db *gorm.DB,
	repo orgdomain.Repository,
	users authdomain.Service,
	caps orgdomain.CapabilityChecker,
	auditSvc auditdomain.Service,
	genID *snowflake.Node,
	clk clock.Clock,
	policy *config.MembershipPolicyHolder,
) domain.Service {
	return &service{
		log:      log.Named("invitation.service"),
		db:       db,
		repo:     repo,
		users:    users,
		caps:     caps,
		auditSvc: auditSvc,
		genID:    genID,
		clock:    clk,
		policy:   policy,
	}
}

func (s *service) Create(ctx context.Context, actorID snowflake.ID, orgID string, req domain.CreateRequest) (*domain.InvitationResponse, error) {
	id, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	if err := s.caps.Require(ctx, actorID, id, orgdomain.ObjectInvitation, orgdomain.ActionInvitationManage); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, orgdomain.ErrInvalidEmail
	}

	role, err := orgdomain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	// An address that already belongs to a member has nothing to accept.
	if existing, err := s.users.FindUserByEmail(ctx, email); err == nil {
		isMember, err := s.repo.IsMember(ctx, id, existing.ID)
		if err != nil {
			return nil, err
		}
		if isMember {
			return nil, orgdomain.ErrAlreadyMember
		}
	} else if !errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, err
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	invitation := orgdomain.Invitation{
		ID:        s.genID.Generate(),
		OrgID:     id,
		InvitedBy: actorID,
		Email:     email,
		Role:      role,
		Token:     token,
		ExpiresAt: now.Add(s.policy.Current().InviteTTL()),
		CreatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, "invitation.created", invitation.ID, map[string]any{
		"org_id": id.String(),
		"email":  email,
		"role":   string(role),
	})

	// The raw token is surfaced exactly once, on creation.
	return &domain.InvitationResponse{
		ID:        invitation.ID.String(),
		OrgID:     id.String(),
		Email:     email,
		Role:      role,
		Token:     token,
		ExpiresAt: invitation.ExpiresAt,
		CreatedAt: invitation.CreatedAt,
	}, nil
}

func (s *service) ListPending(ctx context.Context, actorID snowflake.ID, orgID string) ([]domain.InvitationResponse, error) {
	id, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	if err := s.caps.Require(ctx, actorID, id, orgdomain.ObjectInvitation, orgdomain.ActionInvitationView); err != nil {
		return nil, err
	}

	invitations, err := s.repo.ListPendingInvitations(ctx, id, s.clock.Now())
	if err != nil {
		return nil, err
	}

	resp := make([]domain.InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		resp = append(resp, domain.InvitationResponse{
			ID:        inv.ID.String(),
			OrgID:     inv.OrgID.String(),
			Email:     inv.Email,
			Role:      inv.Role,
			ExpiresAt: inv.ExpiresAt,
			CreatedAt: inv.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) Revoke(ctx context.Context, actorID snowflake.ID, orgID string, invitationID string) error {
	id, err := parseOrgID(orgID)
	if err != nil {
		return err
	}

	if err := s.caps.Require(ctx, actorID, id, orgdomain.ObjectInvitation, orgdomain.ActionInvitationManage); err != nil {
		return err
	}

	invID, err := snowflake.ParseString(strings.TrimSpace(invitationID))
	if err != nil {
		return domain.ErrNotFound
	}

	invitation, err := s.repo.GetInvitation(ctx, id, invID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	// Accepted invitations are already consumed; there is nothing left to
	// revoke and the row is kept as the acceptance record.
	if invitation.AcceptedAt != nil {
		return domain.ErrNotFound
	}

	if err := s.repo.DeleteInvitation(ctx, invitation.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		return err
	}

	s.recordAudit(ctx, actorID, "invitation.revoked", invitation.ID, map[string]any{
		"org_id": id.String(),
		"email":  invitation.Email,
	})

	return nil
}

func (s *service) Resolve(ctx context.Context, token string, viewer *authdomain.User) (*domain.Resolution, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrNotFound
	}

	invitation, err := s.repo.GetPendingInvitationByToken(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if invitation.IsExpired(s.clock.Now()) {
		return nil, domain.ErrExpired
	}

	org, err := s.repo.GetOrganization(ctx, invitation.OrgID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.resolutionOutcome(ctx, invitation, viewer)
	if err != nil {
		return nil, err
	}

	return &domain.Resolution{
		Outcome:          outcome,
		OrganizationName: org.Name,
		Email:            invitation.Email,
		Role:             invitation.Role,
		ExpiresAt:        invitation.ExpiresAt,
	}, nil
}

func (s *service) resolutionOutcome(ctx context.Context, invitation *orgdomain.Invitation, viewer *authdomain.User) (string, error) {
	if viewer != nil && strings.EqualFold(viewer.Email, invitation.Email) {
		return domain.OutcomeAcceptAsSelf, nil
	}

	_, err := s.users.FindUserByEmail(ctx, invitation.Email)
	if errors.Is(err, authdomain.ErrUserNotFound) {
		return domain.OutcomeSignupRequired, nil
	}
	if err != nil {
		return "", err
	}
	return domain.OutcomeLoginRequired, nil
}

func (s *service) Accept(ctx context.Context, token string, user *authdomain.User) (*domain.AcceptResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrNotFound
	}
	if user == nil {
		return nil, orgdomain.ErrInvalidUser
	}

	var out acceptOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.acceptLocked(ctx, s.repo.WithTx(tx), token, user, &out); err != nil {
			return err
		}
		// Completing the token round-trip proves control of the mailbox,
		// same as a signup through it would.
		if out.accepted && user.EmailVerifiedAt == nil {
			return s.users.WithTx(tx).MarkEmailVerified(ctx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finishAccept(ctx, user, &out)

	return &out.result, nil
}

type acceptOutcome struct {
	result       domain.AcceptResult
	invitationID snowflake.ID
	orgID        snowflake.ID
	accepted     bool
}

// acceptLocked consumes the invitation inside the caller's transaction. The
// repository must be bound to that transaction; the row lock taken here is
// what makes the first accept win.
func (s *service) acceptLocked(ctx context.Context, repo orgdomain.Repository, token string, user *authdomain.User, out *acceptOutcome) error {
	invitation, err := repo.GetInvitationByTokenForUpdate(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	if !strings.EqualFold(user.Email, invitation.Email) {
		return domain.ErrEmailMismatch
	}

	now := s.clock.Now()

	// Terminal state: a consumed invitation stays consumed. If this
	// user is the one who consumed it, report their membership; for
	// anyone else the token behaves like an unknown one.
	if invitation.AcceptedAt != nil {
		member, err := repo.FindMembership(ctx, invitation.OrgID, user.ID)
		if errors.Is(err, orgdomain.ErrMembershipNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		out.result = domain.AcceptResult{
			OrgID:        invitation.OrgID.String(),
			MembershipID: member.ID.String(),
			Role:         member.Role,
			Created:      false,
		}
		return nil
	}

	if invitation.IsExpired(now) {
		return domain.ErrExpired
	}

	member, created, err := repo.FirstOrCreateMembership(ctx, orgdomain.Membership{
		ID:        s.genID.Generate(),
		OrgID:     invitation.OrgID,
		UserID:    user.ID,
		Role:      invitation.Role,
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	if err := repo.MarkInvitationAccepted(ctx, invitation.ID, now); err != nil {
		return err
	}

	out.invitationID = invitation.ID
	out.orgID = invitation.OrgID
	out.accepted = true
	out.result = domain.AcceptResult{
		OrgID:        invitation.OrgID.String(),
		MembershipID: member.ID.String(),
		Role:         member.Role,
		Created:      created,
	}
	return nil
}

func (s *service) finishAccept(ctx context.Context, user *authdomain.User, out *acceptOutcome) {
	if !out.accepted {
		return
	}
	s.recordAudit(ctx, user.ID, "invitation.accepted", out.invitationID, map[string]any{
		"org_id":  out.orgID.String(),
		"user_id": user.ID.String(),
		"role":    string(out.result.Role),
	})
	s.log.Info("invitation accepted",
		zap.String("org_id", out.result.OrgID),
		zap.String("user_id", user.ID.String()),
		zap.Bool("membership_created", out.result.Created),
	)
}

func (s *service) SignupAndAccept(ctx context.Context, req domain.SignupRequest) (*domain.SignupResult, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, domain.ErrNotFound
	}

	// Account creation and the accept share one transaction: either the
	// user exists with their membership, or neither does.
	var (
		user *authdomain.User
		out  acceptOutcome
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invitation, err := repo.GetPendingInvitationByToken(ctx, token)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if invitation.IsExpired(s.clock.Now()) {
			return domain.ErrExpired
		}

		// Holding the token proves control of the invited mailbox, so the
		// account starts out verified. The email always comes from the
		// invitation, never from the request body.
		user, err = s.users.WithTx(tx).CreateUser(ctx, authdomain.CreateUserRequest{
			Email:         invitation.Email,
			Password:      req.Password,
			DisplayName:   req.DisplayName,
			EmailVerified: true,
		})
		if err != nil {
			return err
		}

		return s.acceptLocked(ctx, repo, token, user, &out)
	})
	if err != nil {
		return nil, err
	}

	s.finishAccept(ctx, user, &out)

	login, err := s.users.StartSession(ctx, user.ID, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, err
	}

	return &domain.SignupResult{
		User:       user,
		Membership: &out.result,
		Login:      login,
	}, nil
}

func (s *service) recordAudit(ctx context.Context, actorID snowflake.ID, action string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actor := actorID.String()
	target := targetID.String()
	if err := s.auditSvc.AuditLog(ctx, nil, "user", &actor, action, "organization_invitation", &target, metadata); err != nil {
		s.log.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func parseOrgID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, orgdomain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, orgdomain.ErrInvalidOrganization
	}
	return id, nil
}

func newInviteToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
