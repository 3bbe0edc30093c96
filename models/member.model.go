package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"brokerdesk/apperror"
)

type MemberType string

const (
	MemberTypeBroker   MemberType = "BrokerMember"
	MemberTypeInvestor MemberType = "InvestorMember"
)

// ParseMemberType accepts both the short listing form ("broker") and the
// stored discriminator ("BrokerMember"), in any letter case.
func ParseMemberType(s string) (MemberType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "broker", "brokermember":
		return MemberTypeBroker, nil
	case "investor", "investormember":
		return MemberTypeInvestor, nil
	default:
		return "", apperror.Validation("Invalid member type")
	}
}

// FirmHistoryEntry records one firm a member has belonged to.
type FirmHistoryEntry struct {
	Firm          string    `json:"firm"`
	DateOfJoining time.Time `json:"dateOfJoining"`
}

// BrokerPerson holds the fields only broker members carry.
type BrokerPerson struct {
	Sectors []string `json:"sectors" validate:"required,min=1"`
}

// InvestorPerson holds the fields only investor members carry.
type InvestorPerson struct {
	Sectors            []string   `json:"sectors" validate:"required,min=1"`
	FundSize           FundSize   `json:"fundSize"`
	RegionFocus        []string   `json:"regionFocus" validate:"required,min=1"`
	IsExistingInvestor bool       `json:"isExistingInvestor"`
	HoldingSize        *float64   `json:"holdingSize,omitempty" validate:"required_if=IsExistingInvestor true"`
	LastHoldingDate    *time.Time `json:"lastHoldingDate,omitempty" validate:"required_if=IsExistingInvestor true"`
}

// Member is a person representing a firm. Exactly one of Broker and
// Investor is set, matching MemberType. The variant never changes in place;
// moving a member to another firm replaces the record.
type Member struct {
	ID           string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	MemberType   MemberType   `gorm:"type:varchar(20);not null;index" json:"memberType" validate:"required,oneof=BrokerMember InvestorMember"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Email        string       `gorm:"type:varchar(255);not null;index" json:"email" validate:"required,email"`
	Designation  string       `gorm:"type:varchar(255);not null" json:"designation" validate:"required"`
	MobileNumber *PhoneNumber `gorm:"serializer:json" json:"mobileNumber,omitempty"`
	OfficeNumber *PhoneNumber `gorm:"serializer:json" json:"officeNumber,omitempty"`
	Address      *Address     `gorm:"serializer:json" json:"address,omitempty"`
	BusinessCard *string      `gorm:"type:varchar(36)" json:"businessCard,omitempty"`
	Comment      string       `gorm:"type:text" json:"comment,omitempty"`
	IsGift       bool         `gorm:"not null;default:false" json:"isGift"`

	FirmID      string                                `gorm:"type:varchar(36);not null;index" json:"firm" validate:"required"`
	Firm        *Firm                                 `gorm:"foreignKey:FirmID" json:"firmDetails,omitempty" validate:"-"`
	FirmHistory datatypes.JSONSlice[FirmHistoryEntry] `json:"firmHistory"`

	Broker   *BrokerPerson   `gorm:"serializer:json" json:"broker,omitempty"`
	Investor *InvestorPerson `gorm:"serializer:json" json:"investor,omitempty"`

	// Interactions is derived from interactions.member_id on read.
	Interactions []string `gorm:"-" json:"interactions"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Member) TableName() string {
	return "members"
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

// Normalize trims text fields and shapes the variant payload to MemberType.
func (m *Member) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Designation = strings.TrimSpace(m.Designation)
	m.Comment = strings.TrimSpace(m.Comment)
	m.MobileNumber.Normalize()
	m.OfficeNumber.Normalize()
	m.Address.Normalize()

	switch m.MemberType {
	case MemberTypeBroker:
		m.Investor = nil
		if m.Broker == nil {
			m.Broker = &BrokerPerson{}
		}
		m.Broker.Sectors = trimAll(m.Broker.Sectors)
	case MemberTypeInvestor:
		m.Broker = nil
		if m.Investor == nil {
			m.Investor = &InvestorPerson{}
		}
		m.Investor.Sectors = trimAll(m.Investor.Sectors)
		m.Investor.RegionFocus = trimAll(m.Investor.RegionFocus)
	}
}

func (m *Member) Validate() error {
	return validateStruct(m)
}

// Sectors returns the sector list of whichever variant is set.
func (m *Member) Sectors() []string {
	switch {
	case m.Broker != nil:
		return m.Broker.Sectors
	case m.Investor != nil:
		return m.Investor.Sectors
	}
	return nil
}

// Retype copies the member under the target variant. The copy has no id,
// keeps the firm history, business card and interactions of the source, and
// carries sectors across variants since both variants have them.
func (m *Member) Retype(target MemberType) *Member {
	out := &Member{
		MemberType:   target,
		Name:         m.Name,
		Email:        m.Email,
		Designation:  m.Designation,
		MobileNumber: clonePhone(m.MobileNumber),
		OfficeNumber: clonePhone(m.OfficeNumber),
		Address:      cloneAddress(m.Address),
		BusinessCard: cloneString(m.BusinessCard),
		Comment:      m.Comment,
		IsGift:       m.IsGift,
		FirmID:       m.FirmID,
		FirmHistory:  append(datatypes.JSONSlice[FirmHistoryEntry]{}, m.FirmHistory...),
		Interactions: append([]string(nil), m.Interactions...),
		CreatedAt:    m.CreatedAt,
	}

	sectors := append([]string(nil), m.Sectors()...)
	switch target {
	case MemberTypeBroker:
		out.Broker = &BrokerPerson{Sectors: sectors}
	case MemberTypeInvestor:
		if m.Investor != nil {
			investor := *m.Investor
			investor.Sectors = sectors
			investor.RegionFocus = append([]string(nil), m.Investor.RegionFocus...)
			out.Investor = &investor
		} else {
			out.Investor = &InvestorPerson{Sectors: sectors}
		}
	}
	return out
}

func clonePhone(p *PhoneNumber) *PhoneNumber {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func cloneAddress(a *Address) *Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
