package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// File is an uploaded document such as a member's business card or a
// firm's fund factsheet. Its lifecycle follows the entity referencing it.
type File struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	FirmID      string            `gorm:"type:varchar(36);index" json:"firmId"`
	MemberID    *string           `gorm:"type:varchar(36);index" json:"member,omitempty"`
	FileName    string            `gorm:"type:varchar(255)" json:"fileName"`
	ContentType string            `gorm:"type:varchar(127)" json:"contentType"`
	Size        int64             `json:"size"`
	Path        string            `gorm:"type:varchar(512)" json:"path"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func (File) TableName() string {
	return "files"
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = NewID()
	}
	return nil
}
