package stores

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"brokerdesk/models"
)

type InteractionStore struct {
	db *gorm.DB
}

func NewInteractionStore(db *gorm.DB) *InteractionStore {
	return &InteractionStore{db: db}
}

func (s *InteractionStore) Create(ctx context.Context, interaction *models.Interaction) error {
	interaction.Normalize()
	if err := interaction.Validate(); err != nil {
		return err
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(interaction).Error, "create interaction")
}

// ListByMember returns a member's interactions, most recent first.
func (s *InteractionStore) ListByMember(ctx context.Context, memberID string) ([]models.Interaction, error) {
	interactions := []models.Interaction{}
	err := s.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("occurred_at DESC").
		Find(&interactions).Error
	return interactions, errors.Wrap(err, "list interactions")
}

// IDsByMembers groups interaction ids by member for the given members.
func (s *InteractionStore) IDsByMembers(ctx context.Context, memberIDs []string) (map[string][]string, error) {
	var rows []struct {
		ID       string
		MemberID string
	}
	err := s.db.WithContext(ctx).Model(&models.Interaction{}).
		Select("id", "member_id").
		Where("member_id IN ?", memberIDs).
		Order("occurred_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list interaction ids")
	}
	out := make(map[string][]string, len(memberIDs))
	for _, row := range rows {
		out[row.MemberID] = append(out[row.MemberID], row.ID)
	}
	return out, nil
}

// DeleteByMember removes every interaction of a member and returns how many
// were removed.
func (s *InteractionStore) DeleteByMember(ctx context.Context, memberID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("member_id = ?", memberID).Delete(&models.Interaction{})
	return result.RowsAffected, errors.Wrap(result.Error, "delete interactions")
}

// RepointMember moves every interaction of oldID to newID and returns how
// many were moved.
func (s *InteractionStore) RepointMember(ctx context.Context, oldID, newID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("member_id = ?", oldID).
		Update("member_id", newID)
	return result.RowsAffected, errors.Wrap(result.Error, "repoint interactions")
}

// CountByMember counts the interactions referencing memberID.
func (s *InteractionStore) CountByMember(ctx context.Context, memberID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("member_id = ?", memberID).
		Count(&count).Error
	return count, errors.Wrap(err, "count interactions")
}

// Orphans returns interactions whose member does not exist.
func (s *InteractionStore) Orphans(ctx context.Context) ([]models.Interaction, error) {
	var orphans []models.Interaction
	err := s.db.WithContext(ctx).
		Where("member_id NOT IN (?)", s.db.Model(&models.Member{}).Select("id")).
		Find(&orphans).Error
	return orphans, errors.Wrap(err, "list orphan interactions")
}
