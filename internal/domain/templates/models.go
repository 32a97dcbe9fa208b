package templates

import (
	"time"

	"wipetrace/internal/domain/enums"
)

// Template is a stored letter. CompanyID is empty for jurisdiction defaults.
type Template struct {
	ID           string             `json:"id"`
	CompanyID    string             `json:"companyId,omitempty"`
	Jurisdiction enums.Jurisdiction `json:"jurisdiction"`
	TemplateType enums.TemplateType `json:"templateType"`
	Subject      string             `json:"subject"`
	Body         string             `json:"body"`
	PlainText    string             `json:"plainText,omitempty"`
	IsDefault    bool               `json:"isDefault"`
	IsActive     bool               `json:"isActive"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func (t Template) Content() Content {
	return Content{Subject: t.Subject, Body: t.Body, PlainText: t.PlainText}
}

type Source string

const (
	SourceCompany Source = "company"
	SourceDefault Source = "default"
	SourceBuiltin Source = "builtin"
)

// Resolved is the outcome of template resolution. ID is empty for built-ins.
type Resolved struct {
	ID      string  `json:"templateId,omitempty"`
	Source  Source  `json:"source"`
	Content Content `json:"content"`
}

type UpsertInput struct {
	CompanyID    string
	Jurisdiction enums.Jurisdiction
	TemplateType enums.TemplateType
	Subject      string
	Body         string
	PlainText    string
	IsDefault    bool
}

type Filter struct {
	Jurisdiction *enums.Jurisdiction
	TemplateType *enums.TemplateType
	CompanyID    *string
	IsActive     *bool
}
