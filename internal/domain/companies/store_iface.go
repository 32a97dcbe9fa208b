package companies

import "context"

type StoreAPI interface {
	GetCompany(ctx context.Context, id string) (Company, error)
	ListCompanies(ctx context.Context, filter Filter, limit, offset int) ([]Company, int, error)
	SearchCompanies(ctx context.Context, query string, limit int) ([]Company, error)
	CompanyStatistics(ctx context.Context) (Statistics, error)
	OutcomeCounts(ctx context.Context, id string) (Outcomes, error)
	SetSuccessRate(ctx context.Context, id string, rate float64) error
}
