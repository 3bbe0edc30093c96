package models

import (
	"strings"
	"time"

	"github.com/jinzhu/now"

	"brokerdesk/apperror"
)

// MemberInput carries member fields from a create, update or move request.
// A nil field was not supplied and leaves the member untouched. Variant
// fields that the member's type does not have are ignored.
type MemberInput struct {
	Name         *string      `json:"name"`
	Email        *string      `json:"email"`
	Designation  *string      `json:"designation"`
	MobileNumber *PhoneNumber `json:"mobileNumber"`
	OfficeNumber *PhoneNumber `json:"officeNumber"`
	Address      *Address     `json:"address"`
	Comment      *string      `json:"comment"`
	IsGift       *bool        `json:"isGift"`

	Sectors            []string  `json:"sectors"`
	FundSize           *FundSize `json:"fundSize"`
	RegionFocus        []string  `json:"regionFocus"`
	IsExistingInvestor *bool     `json:"isExistingInvestor"`
	HoldingSize        *float64  `json:"holdingSize"`
	LastHoldingDate    *string   `json:"lastHoldingDate"`
}

// ApplyTo copies the supplied fields onto m.
func (in *MemberInput) ApplyTo(m *Member) error {
	if in.Name != nil {
		m.Name = *in.Name
	}
	if in.Email != nil {
		m.Email = *in.Email
	}
	if in.Designation != nil {
		m.Designation = *in.Designation
	}
	if in.MobileNumber != nil {
		m.MobileNumber = clonePhone(in.MobileNumber)
	}
	if in.OfficeNumber != nil {
		m.OfficeNumber = clonePhone(in.OfficeNumber)
	}
	if in.Address != nil {
		m.Address = cloneAddress(in.Address)
	}
	if in.Comment != nil {
		m.Comment = *in.Comment
	}
	if in.IsGift != nil {
		m.IsGift = *in.IsGift
	}

	switch m.MemberType {
	case MemberTypeBroker:
		if m.Broker == nil {
			m.Broker = &BrokerPerson{}
		}
		if in.Sectors != nil {
			m.Broker.Sectors = append([]string(nil), in.Sectors...)
		}
	case MemberTypeInvestor:
		if m.Investor == nil {
			m.Investor = &InvestorPerson{}
		}
		investor := m.Investor
		if in.Sectors != nil {
			investor.Sectors = append([]string(nil), in.Sectors...)
		}
		if in.RegionFocus != nil {
			investor.RegionFocus = append([]string(nil), in.RegionFocus...)
		}
		if in.FundSize != nil {
			investor.FundSize = *in.FundSize
		}
		if in.IsExistingInvestor != nil {
			investor.IsExistingInvestor = *in.IsExistingInvestor
		}
		if in.HoldingSize != nil {
			investor.HoldingSize = in.HoldingSize
		}
		if in.LastHoldingDate != nil {
			date, err := ParseDate("lastHoldingDate", *in.LastHoldingDate)
			if err != nil {
				return err
			}
			investor.LastHoldingDate = &date
		}
	}
	return nil
}

// ParseDate accepts RFC 3339 timestamps and the looser layouts understood
// by jinzhu/now, such as "2024-03-01" or "2024-03-01 10:30". field names the
// input in the validation error.
func ParseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := now.Parse(s)
	if err != nil || s == "" {
		return time.Time{}, apperror.ValidationFields("Please enter a valid date", map[string]string{
			field: "Please enter a valid date",
		})
	}
	return t, nil
}
