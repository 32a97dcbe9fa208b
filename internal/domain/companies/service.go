package companies

import (
	"context"
	"math"

	"go.uber.org/zap"
)

type Service struct {
	store StoreAPI
	log   *zap.Logger
}

func NewService(store StoreAPI, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

func (s *Service) Get(ctx context.Context, id string) (Company, error) {
	return s.store.GetCompany(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Company, int, error) {
	return s.store.ListCompanies(ctx, filter, limit, offset)
}

func (s *Service) Search(ctx context.Context, query string, limit int) ([]Company, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.store.SearchCompanies(ctx, query, limit)
}

func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return s.store.CompanyStatistics(ctx)
}

// RefreshSuccessRate recomputes the company's success rate from its closed
// requests. A company without closed requests keeps its current rate.
func (s *Service) RefreshSuccessRate(ctx context.Context, id string) error {
	outcomes, err := s.store.OutcomeCounts(ctx, id)
	if err != nil {
		return err
	}
	rate, ok := SuccessRate(outcomes)
	if !ok {
		return nil
	}
	if err := s.store.SetSuccessRate(ctx, id, rate); err != nil {
		return err
	}
	s.log.Debug("company success rate refreshed", zap.String("company_id", id), zap.Float64("success_rate", rate))
	return nil
}

// SuccessRate is completed / (completed+failed+rejected) as a percentage
// rounded to two decimals. ok is false when nothing has closed yet.
func SuccessRate(o Outcomes) (float64, bool) {
	closed := o.Completed + o.Failed + o.Rejected
	if closed == 0 {
		return 0, false
	}
	rate := float64(o.Completed) / float64(closed) * 100
	return math.Round(rate*100) / 100, true
}
