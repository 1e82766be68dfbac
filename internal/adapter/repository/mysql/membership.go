package mysql

import (
	"context"
	"errors"

	"peerlend/internal/domain/membership"

	"gorm.io/gorm"
)

var _ membership.Authorizer = (*MembershipRepository)(nil)

// MembershipRepository reads the community_members table. It never caches:
// every RoleOf is a fresh query.
type MembershipRepository struct{ db *gorm.DB }

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) RoleOf(ctx context.Context, communityID, userID string) (membership.Role, error) {
	var m membership.Member
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return membership.RoleNone, nil
	}
	if err != nil {
		return membership.RoleNone, err
	}
	return m.Role, nil
}

// Upsert sets the role of a user in a community. Used by seeding and tests;
// the community service owns this table in production.
func (r *MembershipRepository) Upsert(ctx context.Context, communityID, userID string, role membership.Role) error {
	m := membership.Member{CommunityID: communityID, UserID: userID, Role: role}
	return r.db.WithContext(ctx).
		Where(membership.Member{CommunityID: communityID, UserID: userID}).
		Assign(membership.Member{Role: role}).
		FirstOrCreate(&m).Error
}
