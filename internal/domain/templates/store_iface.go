package templates

import (
	"context"

	"wipetrace/internal/domain/enums"
)

type StoreAPI interface {
	FindCompanyTemplate(ctx context.Context, companyID string, j enums.Jurisdiction, tt enums.TemplateType) (Template, error)
	FindDefaultTemplate(ctx context.Context, j enums.Jurisdiction, tt enums.TemplateType) (Template, error)
	UpsertTemplate(ctx context.Context, in UpsertInput) (Template, error)
	DeactivateTemplate(ctx context.Context, id string) error
	ListTemplates(ctx context.Context, filter Filter) ([]Template, error)
}
