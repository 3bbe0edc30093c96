package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"brokerdesk/apperror"
)

type FirmType string

const (
	FirmTypeBroker   FirmType = "broker"
	FirmTypeInvestor FirmType = "investor"
)

// ParseFirmType accepts the firm discriminator in any letter case.
func ParseFirmType(s string) (FirmType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(FirmTypeBroker):
		return FirmTypeBroker, nil
	case string(FirmTypeInvestor):
		return FirmTypeInvestor, nil
	default:
		return "", apperror.Validation("Invalid firm type")
	}
}

type LocationType string

const (
	LocationDomestic LocationType = "Domestic"
	LocationForeign  LocationType = "Foreign"
)

// BrokerFirm holds the fields only broker firms carry.
type BrokerFirm struct {
	Sectors   []string `json:"sectors" validate:"required,min=1"`
	Coverages []string `json:"coverages"`
}

// InvestorFirm holds the fields only investor firms carry.
type InvestorFirm struct {
	Sectors        []string `json:"sectors" validate:"required,min=1"`
	RegionSectors  []string `json:"regionSectors" validate:"required,min=1"`
	RegionFocus    []string `json:"regionFocus" validate:"required,min=1"`
	FundSize       FundSize `json:"fundSize"`
	FundFactsheets []string `json:"fundFactsheets"`
}

// Firm is an organization tracked in the CRM. Exactly one of Broker and
// Investor is set, matching FirmType.
type Firm struct {
	ID           string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	FirmType     FirmType      `gorm:"type:varchar(20);not null;index" json:"firmType" validate:"required,oneof=broker investor"`
	Name         string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"name" validate:"required"`
	LocationType LocationType  `gorm:"type:varchar(20);not null" json:"locationType" validate:"required,oneof=Domestic Foreign"`
	Address      *Address      `gorm:"serializer:json" json:"address,omitempty"`
	Comment      string        `gorm:"type:text" json:"comment,omitempty"`
	CreatedBy    string        `gorm:"type:varchar(64);not null" json:"createdBy" validate:"required"`
	IsActive     bool          `gorm:"default:true" json:"isActive"`
	Broker       *BrokerFirm   `gorm:"serializer:json" json:"broker,omitempty"`
	Investor     *InvestorFirm `gorm:"serializer:json" json:"investor,omitempty"`

	// Members is read from the firm_members link table.
	Members []string `gorm:"-" json:"members"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Firm) TableName() string {
	return "firms"
}

func (f *Firm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = NewID()
	}
	return nil
}

// Normalize trims text fields and shapes the variant payload to FirmType.
func (f *Firm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Comment = strings.TrimSpace(f.Comment)
	f.CreatedBy = strings.TrimSpace(f.CreatedBy)
	f.Address.Normalize()

	switch f.FirmType {
	case FirmTypeBroker:
		f.Investor = nil
		if f.Broker == nil {
			f.Broker = &BrokerFirm{}
		}
		f.Broker.Sectors = trimAll(f.Broker.Sectors)
	case FirmTypeInvestor:
		f.Broker = nil
		if f.Investor == nil {
			f.Investor = &InvestorFirm{}
		}
		f.Investor.Sectors = trimAll(f.Investor.Sectors)
		f.Investor.RegionSectors = trimAll(f.Investor.RegionSectors)
		f.Investor.RegionFocus = trimAll(f.Investor.RegionFocus)
	}
}

func (f *Firm) Validate() error {
	return validateStruct(f)
}

// Sectors returns the sector list of whichever variant is set.
func (f *Firm) Sectors() []string {
	switch {
	case f.Broker != nil:
		return f.Broker.Sectors
	case f.Investor != nil:
		return f.Investor.Sectors
	}
	return nil
}

// FirmMember is one entry of a firm's member set. The composite key gives
// set semantics to link and unlink.
type FirmMember struct {
	FirmID    string    `gorm:"type:varchar(36);primaryKey" json:"firmId"`
	MemberID  string    `gorm:"type:varchar(36);primaryKey;index" json:"memberId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (FirmMember) TableName() string {
	return "firm_members"
}

// FirmInput is the create payload for a firm. Variant fields that do not
// apply to FirmType are ignored.
type FirmInput struct {
	FirmType       string    `json:"firmType"`
	Name           string    `json:"name"`
	LocationType   string    `json:"locationType"`
	Address        *Address  `json:"address"`
	Comment        string    `json:"comment"`
	Sectors        []string  `json:"sectors"`
	Coverages      []string  `json:"coverages"`
	RegionSectors  []string  `json:"regionSectors"`
	RegionFocus    []string  `json:"regionFocus"`
	FundSize       *FundSize `json:"fundSize"`
	FundFactsheets []string  `json:"fundFactsheets"`
}

// ToFirm builds an unsaved firm from the input.
func (in *FirmInput) ToFirm(createdBy string) (*Firm, error) {
	firmType, err := ParseFirmType(in.FirmType)
	if err != nil {
		return nil, err
	}
	firm := &Firm{
		FirmType:     firmType,
		Name:         in.Name,
		LocationType: LocationType(strings.TrimSpace(in.LocationType)),
		Address:      in.Address,
		Comment:      in.Comment,
		CreatedBy:    createdBy,
		IsActive:     true,
	}
	switch firmType {
	case FirmTypeBroker:
		firm.Broker = &BrokerFirm{
			Sectors:   in.Sectors,
			Coverages: in.Coverages,
		}
	case FirmTypeInvestor:
		investor := &InvestorFirm{
			Sectors:        in.Sectors,
			RegionSectors:  in.RegionSectors,
			RegionFocus:    in.RegionFocus,
			FundFactsheets: in.FundFactsheets,
		}
		if in.FundSize != nil {
			investor.FundSize = *in.FundSize
		}
		firm.Investor = investor
	}
	return firm, nil
}
