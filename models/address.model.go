package models

import "strings"

// Address is a postal address embedded in firms and members.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

func (a *Address) Normalize() {
	if a == nil {
		return
	}
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Country = strings.TrimSpace(a.Country)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
}

// PhoneNumber is an ISO 3166-1 alpha-2 country code plus a phone number.
type PhoneNumber struct {
	DialCode string `json:"dialCode,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	Number   string `json:"number,omitempty" validate:"omitempty,phone"`
}

func (p *PhoneNumber) Normalize() {
	if p == nil {
		return
	}
	p.DialCode = strings.ToUpper(strings.TrimSpace(p.DialCode))
	p.Number = strings.TrimSpace(p.Number)
}

// FundSize is shared by investor firms and investor members.
type FundSize struct {
	GlobalExposure *float64 `json:"globalExposure,omitempty"`
	IndianExposure *float64 `json:"indianExposure" validate:"required"`
}
