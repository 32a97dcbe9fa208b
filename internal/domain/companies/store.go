package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wipetrace/internal/domain/enums"
)

const companyColumns = `id, name, COALESCE(website, ''), COALESCE(email, ''), COALESCE(contact_email, ''),
    COALESCE(privacy_email, ''), COALESCE(dpo_email, ''), category, COALESCE(description, ''),
    supported_jurisdictions, difficulty, avg_response_time, success_rate::float8,
    is_active, is_verified, created_at, updated_at`

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetCompany(ctx context.Context, id string) (Company, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE id = $1", id)
	return scanCompany(row)
}

func (s *Store) ListCompanies(ctx context.Context, filter Filter, limit, offset int) ([]Company, int, error) {
	where, args := buildFilter(filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM companies"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + companyColumns + " FROM companies" + where +
		fmt.Sprintf(" ORDER BY name ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := collectCompanies(rows)
	return out, total, err
}

func (s *Store) SearchCompanies(ctx context.Context, query string, limit int) ([]Company, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.DB.Query(ctx, `
    SELECT `+companyColumns+`
    FROM companies
    WHERE is_active = true
      AND (lower(name) LIKE $1 OR lower(COALESCE(description, '')) LIKE $1 OR lower(COALESCE(website, '')) LIKE $1)
    ORDER BY success_rate DESC, name ASC
    LIMIT $2
  `, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCompanies(rows)
}

func (s *Store) CompanyStatistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{
		ByCategory:     map[string]int{},
		ByJurisdiction: map[string]int{},
		ByDifficulty:   map[string]int{},
	}
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1),
           COUNT(1) FILTER (WHERE is_active),
           COUNT(1) FILTER (WHERE is_verified)
    FROM companies
  `).Scan(&stats.Total, &stats.Active, &stats.Verified); err != nil {
		return Statistics{}, err
	}

	groups := []struct {
		query string
		into  map[string]int
	}{
		{`SELECT category, COUNT(1) FROM companies WHERE is_active GROUP BY category`, stats.ByCategory},
		{`SELECT j, COUNT(1) FROM companies, unnest(supported_jurisdictions) AS j WHERE is_active GROUP BY j`, stats.ByJurisdiction},
		{`SELECT difficulty, COUNT(1) FROM companies WHERE is_active GROUP BY difficulty`, stats.ByDifficulty},
	}
	for _, g := range groups {
		if err := s.countInto(ctx, g.query, g.into); err != nil {
			return Statistics{}, err
		}
	}
	return stats, nil
}

func (s *Store) countInto(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

func (s *Store) OutcomeCounts(ctx context.Context, id string) (Outcomes, error) {
	var out Outcomes
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FILTER (WHERE status = 'COMPLETED'),
           COUNT(1) FILTER (WHERE status = 'FAILED'),
           COUNT(1) FILTER (WHERE status = 'REJECTED')
    FROM deletion_requests
    WHERE company_id = $1
  `, id).Scan(&out.Completed, &out.Failed, &out.Rejected)
	return out, err
}

func (s *Store) SetSuccessRate(ctx context.Context, id string, rate float64) error {
	tag, err := s.DB.Exec(ctx, `UPDATE companies SET success_rate = $2, updated_at = now() WHERE id = $1`, id, rate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildFilter(filter Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Category != nil {
		add("category = $%d", *filter.Category)
	}
	if filter.Jurisdiction != nil {
		add("$%d = ANY(supported_jurisdictions)", string(*filter.Jurisdiction))
	}
	if filter.Difficulty != nil {
		add("difficulty = $%d", *filter.Difficulty)
	}
	if filter.IsActive != nil {
		add("is_active = $%d", *filter.IsActive)
	}
	if filter.IsVerified != nil {
		add("is_verified = $%d", *filter.IsVerified)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		add("(lower(name) LIKE $%[1]d OR lower(COALESCE(description, '')) LIKE $%[1]d)", "%"+strings.ToLower(q)+"%")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func collectCompanies(rows pgx.Rows) ([]Company, error) {
	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	var jurisdictions []string
	err := row.Scan(&c.ID, &c.Name, &c.Website, &c.Email, &c.ContactEmail,
		&c.PrivacyEmail, &c.DPOEmail, &c.Category, &c.Description,
		&jurisdictions, &c.Difficulty, &c.AvgResponseTime, &c.SuccessRate,
		&c.IsActive, &c.IsVerified, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	if err != nil {
		return Company{}, err
	}
	c.SupportedJurisdictions = make([]enums.Jurisdiction, len(jurisdictions))
	for i, j := range jurisdictions {
		c.SupportedJurisdictions[i] = enums.Jurisdiction(j)
	}
	return c, nil
}
