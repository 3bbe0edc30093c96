package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Interaction is a logged touchpoint with a member. FirmID is the member's
// firm when the interaction happened and is not changed by a move.
type Interaction struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	MemberID   string         `gorm:"type:varchar(36);not null;index" json:"member" validate:"required"`
	FirmID     string         `gorm:"type:varchar(36);index" json:"firm"`
	Subject    string         `gorm:"type:varchar(255);not null" json:"subject" validate:"required"`
	Notes      string         `gorm:"type:text" json:"notes,omitempty"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	OccurredAt time.Time      `gorm:"index" json:"occurredAt"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (Interaction) TableName() string {
	return "interactions"
}

func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = NewID()
	}
	return nil
}

func (i *Interaction) Normalize() {
	i.Subject = strings.TrimSpace(i.Subject)
	i.Notes = strings.TrimSpace(i.Notes)
}

func (i *Interaction) Validate() error {
	return validateStruct(i)
}

// InteractionInput is the create payload for an interaction.
type InteractionInput struct {
	Subject    string         `json:"subject"`
	Notes      string         `json:"notes"`
	Payload    datatypes.JSON `json:"payload"`
	OccurredAt *string        `json:"occurredAt"`
}
