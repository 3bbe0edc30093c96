package stores

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brokerdesk/apperror"
	"brokerdesk/models"
)

const memberNotFound = "Member not found"

type MemberStore struct {
	db *gorm.DB
}

func NewMemberStore(db *gorm.DB) *MemberStore {
	return &MemberStore{db: db}
}

// Create validates and inserts a member. The email must not belong to any
// other member.
func (s *MemberStore) Create(ctx context.Context, member *models.Member) error {
	return s.CreateReplacement(ctx, member, "")
}

// CreateReplacement inserts a member that is about to replace replacedID,
// so the replaced member's email does not count as taken.
func (s *MemberStore) CreateReplacement(ctx context.Context, member *models.Member, replacedID string) error {
	member.Normalize()
	if err := member.Validate(); err != nil {
		return err
	}

	var exclude []string
	if replacedID != "" {
		exclude = append(exclude, replacedID)
	}
	taken, err := s.EmailTaken(ctx, member.Email, exclude...)
	if err != nil {
		return err
	}
	if taken {
		return duplicateEmail(member.Email)
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Conflict("Member already exists")
		}
		return errors.Wrap(err, "create member")
	}
	if member.Interactions == nil {
		member.Interactions = []string{}
	}
	return nil
}

func duplicateEmail(email string) error {
	return apperror.Conflict(fmt.Sprintf("Member with email %s already exists", email))
}

// EmailTaken reports whether a member other than those in excludeIDs uses
// email. The comparison ignores letter case.
func (s *MemberStore) EmailTaken(ctx context.Context, email string, excludeIDs ...string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check member email")
	}
	return count > 0, nil
}

// FindByID loads a member of either type.
func (s *MemberStore) FindByID(ctx context.Context, id string) (*models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&member).Error; err != nil {
		return nil, notFoundOr(err, memberNotFound, "find member")
	}
	if err := s.attachInteractions(ctx, []*models.Member{&member}); err != nil {
		return nil, err
	}
	return &member, nil
}

// FindByIDAndType loads a member only if it has memberType.
func (s *MemberStore) FindByIDAndType(ctx context.Context, id string, memberType models.MemberType) (*models.Member, error) {
	member, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if member.MemberType != memberType {
		return nil, apperror.NotFound(memberNotFound)
	}
	return member, nil
}

// Save writes every column of an existing member. A member that no longer
// exists is not recreated.
func (s *MemberStore) Save(ctx context.Context, member *models.Member) error {
	member.Normalize()
	if err := member.Validate(); err != nil {
		return err
	}

	taken, err := s.EmailTaken(ctx, member.Email, member.ID)
	if err != nil {
		return err
	}
	if taken {
		return duplicateEmail(member.Email)
	}

	result := s.db.WithContext(ctx).Model(member).
		Select("*").
		Omit("Firm", "CreatedAt").
		Updates(member)
	if result.Error != nil {
		return errors.Wrap(result.Error, "save member")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound(memberNotFound)
	}
	return nil
}

// Delete removes the member record. Deleting a member that is already gone
// is a NotFound.
func (s *MemberStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Member{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "delete member")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound(memberNotFound)
	}
	return nil
}

// ListByType returns members of one type, newest first, with their firm
// loaded, and the total number of such members.
func (s *MemberStore) ListByType(ctx context.Context, memberType models.MemberType, page Page) ([]*models.Member, int64, error) {
	total, err := s.CountByType(ctx, memberType)
	if err != nil {
		return nil, 0, err
	}

	var members []*models.Member
	err = s.db.WithContext(ctx).
		Preload("Firm").
		Where("member_type = ?", memberType).
		Order("created_at DESC").
		Scopes(paginate(page)).
		Find(&members).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list members")
	}
	if err := s.attachInteractions(ctx, members); err != nil {
		return nil, 0, err
	}

	firms := make([]*models.Firm, 0, len(members))
	for _, m := range members {
		if m.Firm != nil {
			firms = append(firms, m.Firm)
		}
	}
	if err := NewFirmStore(s.db).attachMembers(ctx, firms); err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (s *MemberStore) CountByType(ctx context.Context, memberType models.MemberType) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("member_type = ?", memberType).
		Count(&total).Error
	return total, errors.Wrap(err, "count members")
}

// ListByFirm returns every member whose current firm is firmID.
func (s *MemberStore) ListByFirm(ctx context.Context, firmID string) ([]*models.Member, error) {
	var members []*models.Member
	err := s.db.WithContext(ctx).
		Where("firm_id = ?", firmID).
		Order("created_at DESC").
		Find(&members).Error
	if err != nil {
		return nil, errors.Wrap(err, "list firm members")
	}
	if err := s.attachInteractions(ctx, members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListAll returns every member without derived fields.
func (s *MemberStore) ListAll(ctx context.Context) ([]*models.Member, error) {
	var members []*models.Member
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&members).Error; err != nil {
		return nil, errors.Wrap(err, "list members")
	}
	return members, nil
}

func (s *MemberStore) attachInteractions(ctx context.Context, members []*models.Member) error {
	if len(members) == 0 {
		return nil
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	byMember, err := NewInteractionStore(s.db).IDsByMembers(ctx, ids)
	if err != nil {
		return err
	}
	for _, m := range members {
		m.Interactions = byMember[m.ID]
		if m.Interactions == nil {
			m.Interactions = []string{}
		}
	}
	return nil
}
