package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trustcove/trustcove/internal/organization/domain"
	dbpkg "github.com/trustcove/trustcove/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateMembership(ctx context.Context, member domain.Membership) error {
	err := r.db.WithContext(ctx).Create(&member).Error
	if dbpkg.IsDuplicateKeyErr(err) {
		return domain.ErrAlreadyMember
	}
	return err
}

func (r *repository) FirstOrCreateMembership(ctx context.Context, member domain.Membership) (*domain.Membership, bool, error) {
	existing, err := r.FindMembership(ctx, member.OrgID, member.UserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrMembershipNotFound) {
		return nil, false, err
	}

	if err := r.db.WithContext(ctx).Create(&member).Error; err != nil {
		// A concurrent accept may have inserted the row between the read
		// and the write; the unique constraint turns that into a reread.
		if dbpkg.IsDuplicateKeyErr(err) {
			existing, rereadErr := r.FindMembership(ctx, member.OrgID, member.UserID)
			if rereadErr != nil {
				return nil, false, rereadErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return &member, true, nil
}

func (r *repository) FindMembership(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (*domain.Membership, error) {
	var member domain.Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) GetMembership(ctx context.Context, orgID snowflake.ID, membershipID snowflake.ID) (*domain.Membership, error) {
	var member domain.Membership
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", membershipID, orgID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberListItem, error) {
	var items []domain.MemberListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.id AS membership_id, m.user_id, u.email, u.display_name, m.role, m.created_at
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ?
		 ORDER BY m.created_at ASC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateMembershipRole(ctx context.Context, membershipID snowflake.ID, role domain.Role) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("id = ?", membershipID).
		Update("role", role)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

func (r *repository) DeleteMembership(ctx context.Context, membershipID snowflake.ID) error {
	tx := r.db.WithContext(ctx).Delete(&domain.Membership{}, "id = ?", membershipID)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

func (r *repository) CreateInvitation(ctx context.Context, invitation domain.Invitation) error {
	return r.db.WithContext(ctx).Create(&invitation).Error
}

func (r *repository) GetInvitationByTokenForUpdate(ctx context.Context, token string) (*domain.Invitation, error) {
	tx := r.db.WithContext(ctx)
	if dbpkg.SupportsRowLocking(tx) {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var invitation domain.Invitation
	err := tx.Where("token = ?", token).First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) GetPendingInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).
		Where("token = ? AND accepted_at IS NULL", token).
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) GetInvitation(ctx context.Context, orgID snowflake.ID, invitationID snowflake.ID) (*domain.Invitation, error) {
	var invitation domain.Invitation
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", invitationID, orgID).
		First(&invitation).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) ListPendingInvitations(ctx context.Context, orgID snowflake.ID, now time.Time) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND accepted_at IS NULL AND expires_at > ?", orgID, now).
		Order("created_at ASC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repository) MarkInvitationAccepted(ctx context.Context, invitationID snowflake.ID, acceptedAt time.Time) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id = ? AND accepted_at IS NULL", invitationID).
		Update("accepted_at", acceptedAt)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) DeleteInvitation(ctx context.Context, invitationID snowflake.ID) error {
	tx := r.db.WithContext(ctx).Delete(&domain.Invitation{}, "id = ?", invitationID)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
