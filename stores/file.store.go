package stores

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"brokerdesk/apperror"
	"brokerdesk/models"
)

const fileNotFound = "File not found"

type FileStore struct {
	db *gorm.DB
}

func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

// Save inserts the file or overwrites it when the id already exists.
func (s *FileStore) Save(ctx context.Context, file *models.File) error {
	return errors.Wrap(s.db.WithContext(ctx).Save(file).Error, "save file")
}

func (s *FileStore) FindByID(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, notFoundOr(err, fileNotFound, "find file")
	}
	return &file, nil
}

// Delete removes a file record, failing with NotFound when it is absent.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.DeleteIfExists(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound(fileNotFound)
	}
	return nil
}

// DeleteIfExists removes a file record and reports whether one was there.
func (s *FileStore) DeleteIfExists(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.File{})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "delete file")
	}
	return result.RowsAffected > 0, nil
}

// RepointMember makes fileID belong to memberID and reports whether the file
// exists.
func (s *FileStore) RepointMember(ctx context.Context, fileID, memberID string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ?", fileID).
		Update("member_id", memberID)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "repoint file")
	}
	return result.RowsAffected > 0, nil
}

// Orphans returns member-owned files whose member does not exist.
func (s *FileStore) Orphans(ctx context.Context) ([]models.File, error) {
	var orphans []models.File
	err := s.db.WithContext(ctx).
		Where("member_id IS NOT NULL AND member_id NOT IN (?)", s.db.Model(&models.Member{}).Select("id")).
		Find(&orphans).Error
	return orphans, errors.Wrap(err, "list orphan files")
}
