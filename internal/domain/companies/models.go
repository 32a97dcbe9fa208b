package companies

import (
	"time"

	"wipetrace/internal/domain/enums"
)

type Company struct {
	ID                     string                `json:"id"`
	Name                   string                `json:"name"`
	Website                string                `json:"website,omitempty"`
	Email                  string                `json:"email,omitempty"`
	ContactEmail           string                `json:"contactEmail,omitempty"`
	PrivacyEmail           string                `json:"privacyEmail,omitempty"`
	DPOEmail               string                `json:"dpoEmail,omitempty"`
	Category               enums.CompanyCategory `json:"category"`
	Description            string                `json:"description,omitempty"`
	SupportedJurisdictions []enums.Jurisdiction  `json:"supportedJurisdictions"`
	Difficulty             enums.Difficulty      `json:"difficulty"`
	AvgResponseTime        int                   `json:"avgResponseTime"`
	SuccessRate            float64               `json:"successRate"`
	IsActive               bool                  `json:"isActive"`
	IsVerified             bool                  `json:"isVerified"`
	CreatedAt              time.Time             `json:"createdAt"`
	UpdatedAt              time.Time             `json:"updatedAt"`
}

func (c Company) Supports(j enums.Jurisdiction) bool {
	for _, s := range c.SupportedJurisdictions {
		if s == j {
			return true
		}
	}
	return false
}

// Recipient is the address deletion letters go to: the privacy inbox, then
// the general contact, then the listed email. Empty when none is known.
func (c Company) Recipient() string {
	for _, addr := range []string{c.PrivacyEmail, c.ContactEmail, c.Email} {
		if addr != "" {
			return addr
		}
	}
	return ""
}

// Filter narrows a directory listing. Nil fields are not applied, so
// IsActive=false selects inactive companies while nil selects both.
type Filter struct {
	Category     *enums.CompanyCategory
	Jurisdiction *enums.Jurisdiction
	Difficulty   *enums.Difficulty
	IsActive     *bool
	IsVerified   *bool
	Search       string
}

type Statistics struct {
	Total          int            `json:"total"`
	Active         int            `json:"active"`
	Verified       int            `json:"verified"`
	ByCategory     map[string]int `json:"byCategory"`
	ByJurisdiction map[string]int `json:"byJurisdiction"`
	ByDifficulty   map[string]int `json:"byDifficulty"`
}

// Outcomes counts a company's closed deletion requests.
type Outcomes struct {
	Completed int
	Failed    int
	Rejected  int
}
