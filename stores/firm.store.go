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

// FirmFilter narrows FindAll. Zero fields do not filter.
type FirmFilter struct {
	FirmType models.FirmType
	IsActive *bool
	Search   string
}

type FirmStore struct {
	db *gorm.DB
}

func NewFirmStore(db *gorm.DB) *FirmStore {
	return &FirmStore{db: db}
}

// Create validates and inserts a firm. The name must be unique.
func (s *FirmStore) Create(ctx context.Context, firm *models.Firm) error {
	firm.Normalize()
	if err := firm.Validate(); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Firm{}).Where("name = ?", firm.Name).Count(&count).Error; err != nil {
		return errors.Wrap(err, "check firm name")
	}
	if count > 0 {
		return duplicateFirm(firm.Name)
	}

	if err := db.Omit(clause.Associations).Create(firm).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return duplicateFirm(firm.Name)
		}
		return errors.Wrap(err, "create firm")
	}
	firm.Members = []string{}
	return nil
}

func duplicateFirm(name string) error {
	return apperror.Conflict(fmt.Sprintf("Firm with name %s already exists", name))
}

// FindByID loads a firm with its member set.
func (s *FirmStore) FindByID(ctx context.Context, id string) (*models.Firm, error) {
	var firm models.Firm
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&firm).Error; err != nil {
		return nil, notFoundOr(err, "Firm not found", "find firm")
	}
	ids, err := s.MemberIDs(ctx, firm.ID)
	if err != nil {
		return nil, err
	}
	firm.Members = ids
	return &firm, nil
}

// Exists reports whether a firm with id is stored.
func (s *FirmStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Firm{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "check firm")
	}
	return count > 0, nil
}

// FindAll returns the firms matching filter, newest first, plus the total
// number of matches ignoring the page window.
func (s *FirmStore) FindAll(ctx context.Context, filter FirmFilter, page Page) ([]models.Firm, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Firm{})
	if filter.FirmType != "" {
		query = query.Where("firm_type = ?", filter.FirmType)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count firms")
	}

	var firms []models.Firm
	if err := query.Order("created_at DESC").Scopes(paginate(page)).Find(&firms).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list firms")
	}
	refs := make([]*models.Firm, len(firms))
	for i := range firms {
		refs[i] = &firms[i]
	}
	if err := s.attachMembers(ctx, refs); err != nil {
		return nil, 0, err
	}
	return firms, total, nil
}

// AllIDs returns the id of every stored firm.
func (s *FirmStore) AllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Firm{}).Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "list firm ids")
	}
	return ids, nil
}

// AddMemberLink adds memberID to the firm's member set. Adding an id that is
// already present is a no-op.
func (s *FirmStore) AddMemberLink(ctx context.Context, firmID, memberID string) error {
	link := models.FirmMember{FirmID: firmID, MemberID: memberID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
	return errors.Wrap(err, "add firm member link")
}

// RemoveMemberLink removes memberID from the firm's member set. Removing an
// absent id is a no-op.
func (s *FirmStore) RemoveMemberLink(ctx context.Context, firmID, memberID string) error {
	err := s.db.WithContext(ctx).
		Where("firm_id = ? AND member_id = ?", firmID, memberID).
		Delete(&models.FirmMember{}).Error
	return errors.Wrap(err, "remove firm member link")
}

// MemberIDs returns the firm's member set.
func (s *FirmStore) MemberIDs(ctx context.Context, firmID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&models.FirmMember{}).
		Where("firm_id = ?", firmID).
		Order("created_at ASC").
		Pluck("member_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "list firm members")
	}
	return ids, nil
}

// Links returns every firm/member link.
func (s *FirmStore) Links(ctx context.Context) ([]models.FirmMember, error) {
	var links []models.FirmMember
	if err := s.db.WithContext(ctx).Order("firm_id, member_id").Find(&links).Error; err != nil {
		return nil, errors.Wrap(err, "list firm member links")
	}
	return links, nil
}

// ReplaceMemberLinks swaps the whole link table for links in one
// transaction.
func (s *FirmStore) ReplaceMemberLinks(ctx context.Context, links []models.FirmMember) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.FirmMember{}).Error; err != nil {
			return errors.Wrap(err, "clear firm member links")
		}
		if len(links) == 0 {
			return nil
		}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(links, 200).Error
		return errors.Wrap(err, "rebuild firm member links")
	})
}

// attachMembers fills the member set of each firm. The same firm may appear
// more than once.
func (s *FirmStore) attachMembers(ctx context.Context, firms []*models.Firm) error {
	if len(firms) == 0 {
		return nil
	}
	byID := make(map[string][]*models.Firm, len(firms))
	ids := make([]string, 0, len(firms))
	for _, firm := range firms {
		if _, seen := byID[firm.ID]; !seen {
			ids = append(ids, firm.ID)
		}
		byID[firm.ID] = append(byID[firm.ID], firm)
		firm.Members = []string{}
	}

	var links []models.FirmMember
	err := s.db.WithContext(ctx).
		Where("firm_id IN ?", ids).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return errors.Wrap(err, "list firm members")
	}

	for _, link := range links {
		for _, firm := range byID[link.FirmID] {
			firm.Members = append(firm.Members, link.MemberID)
		}
	}
	return nil
}
