package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/trustcove/trustcove/internal/audit/domain"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	"github.com/trustcove/trustcove/internal/clock"
	"github.com/trustcove/trustcove/internal/organization/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	log      *zap.Logger
	db       *gorm.DB
	repo     domain.Repository
	users    authdomain.Service
	caps     domain.CapabilityChecker
	auditSvc auditdomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
}

func NewService(
	log *zap.Logger,
	db *gorm.DB,
	repo domain.Repository,
	users authdomain.Service,
	caps domain.CapabilityChecker,
	auditSvc auditdomain.Service,
	genID *snowflake.Node,
	clk clock.Clock,
) domain.Service {
	return &service{
		log:      log.Named("organization.service"),
		db:       db,
		repo:     repo,
		users:    users,
		caps:     caps,
		auditSvc: auditSvc,
		genID:    genID,
		clock:    clk,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:        orgID,
		Name:      name,
		Slug:      uniqueSlug(name, orgID),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		member := domain.Membership{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		}

		return repo.CreateMembership(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", orgID.String()),
		zap.String("owner_user_id", userID.String()),
	)

	return &domain.OrganizationResponse{
		ID:   orgID.String(),
		Name: org.Name,
		Slug: org.Slug,
	}, nil
}

func (s *service) GetByID(ctx context.Context, userID snowflake.ID, orgID string) (*domain.OrganizationResponse, error) {
	id, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	if err := s.caps.Require(ctx, userID, id, domain.ObjectOrganization, domain.ActionOrganizationView); err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:   org.ID.String(),
		Name: org.Name,
		Slug: org.Slug,
	}, nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) ListMembers(ctx context.Context, actorID snowflake.ID, orgID string) ([]domain.MemberResponse, error) {
	id, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	if err := s.caps.Require(ctx, actorID, id, domain.ObjectMember, domain.ActionMemberView); err != nil {
		return nil, err
	}

	items, err := s.repo.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.MemberResponse{
			MembershipID: item.MembershipID.String(),
			UserID:       item.UserID.String(),
			Email:        item.Email,
			DisplayName:  item.DisplayName,
			Role:         item.Role,
			CreatedAt:    item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) AddMember(ctx context.Context, actorID snowflake.ID, orgID string, req domain.AddMemberRequest) (*domain.MemberResponse, error) {
	id, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	if err := s.caps.Require(ctx, actorID, id, domain.ObjectMember, domain.ActionMemberManage); err != nil {
		return nil, err
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	member := domain.Membership{
		ID:        s.genID.Generate(),
		OrgID:     id,
		UserID:    user.ID,
		Role:      role,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateMembership(ctx, member); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, "member.added", member.ID, map[string]any{
		"user_id": user.ID.String(),
		"role":    string(role),
	})

	return &domain.MemberResponse{
		MembershipID: member.ID.String(),
		UserID:       user.ID.String(),
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         role,
		CreatedAt:    member.CreatedAt,
	}, nil
}

func (s *service) UpdateMemberRole(ctx context.Context, actorID snowflake.ID, orgID string, membershipID string, roleName string) error {
	id, err := parseOrgID(orgID)
	if err != nil {
		return err
	}

	if err := s.caps.Require(ctx, actorID, id, domain.ObjectMember, domain.ActionMemberManage); err != nil {
		return err
	}

	role, err := domain.ParseRole(roleName)
	if err != nil {
		return err
	}

	memberID, err := snowflake.ParseString(strings.TrimSpace(membershipID))
	if err != nil {
		return domain.ErrMembershipNotFound
	}

	member, err := s.repo.GetMembership(ctx, id, memberID)
	if err != nil {
		return err
	}

	if member.Role == domain.RoleOwner && role != domain.RoleOwner {
		if err := s.ensureAnotherOwner(ctx, id, member.ID); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateMembershipRole(ctx, member.ID, role); err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "member.role_updated", member.ID, map[string]any{
		"user_id": member.UserID.String(),
		"from":    string(member.Role),
		"to":      string(role),
	})

	return nil
}

func (s *service) RemoveMember(ctx context.Context, actorID snowflake.ID, orgID string, membershipID string) error {
	id, err := parseOrgID(orgID)
	if err != nil {
		return err
	}

	if err := s.caps.Require(ctx, actorID, id, domain.ObjectMember, domain.ActionMemberManage); err != nil {
		return err
	}

	memberID, err := snowflake.ParseString(strings.TrimSpace(membershipID))
	if err != nil {
		return domain.ErrMembershipNotFound
	}

	member, err := s.repo.GetMembership(ctx, id, memberID)
	if err != nil {
		return err
	}

	if member.Role == domain.RoleOwner {
		if err := s.ensureAnotherOwner(ctx, id, member.ID); err != nil {
			return err
		}
	}

	if err := s.repo.DeleteMembership(ctx, member.ID); err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "member.removed", member.ID, map[string]any{
		"user_id": member.UserID.String(),
		"role":    string(member.Role),
	})

	return nil
}

// ensureAnotherOwner rejects demoting or removing the last owner so an
// organization can never end up with nobody able to manage it.
func (s *service) ensureAnotherOwner(ctx context.Context, orgID snowflake.ID, excludeMembershipID snowflake.ID) error {
	members, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.Role == domain.RoleOwner && m.MembershipID != excludeMembershipID {
			return nil
		}
	}
	return domain.ErrLastOwner
}

func (s *service) recordAudit(ctx context.Context, actorID snowflake.ID, action string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actor := actorID.String()
	target := targetID.String()
	if err := s.auditSvc.AuditLog(ctx, nil, "user", &actor, action, "organization_member", &target, metadata); err != nil {
		s.log.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func parseOrgID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, domain.ErrInvalidOrganization
	}
	return id, nil
}

// uniqueSlug suffixes the name slug with a fragment of the snowflake so two
// organizations with the same name do not collide on the slug index.
func uniqueSlug(name string, id snowflake.ID) string {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}
	return base + "-" + strings.ToLower(id.Base36())
}
