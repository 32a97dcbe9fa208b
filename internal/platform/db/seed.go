package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"wipetrace/internal/domain/enums"
)

type TemplateSeeder interface {
	SeedDefaults(ctx context.Context) (int, error)
}

type seedCompany struct {
	name          string
	website       string
	privacyEmail  string
	category      enums.CompanyCategory
	jurisdictions []enums.Jurisdiction
	difficulty    enums.Difficulty
	avgResponse   int
}

// starterCompanies is the directory a fresh install starts with. Existing
// rows with the same name are left alone.
var starterCompanies = []seedCompany{
	{"Acxiom", "https://www.acxiom.com", "privacy@acxiom.com", enums.CategoryDataBroker, []enums.Jurisdiction{enums.CCPA, enums.GDPR}, enums.DifficultyMedium, 30},
	{"Spokeo", "https://www.spokeo.com", "privacy@spokeo.com", enums.CategoryPeopleSearch, []enums.Jurisdiction{enums.CCPA}, enums.DifficultyEasy, 14},
	{"Whitepages", "https://www.whitepages.com", "privacy@whitepages.com", enums.CategoryPeopleSearch, []enums.Jurisdiction{enums.CCPA}, enums.DifficultyEasy, 10},
	{"Experian", "https://www.experian.com", "dataprotection@experian.com", enums.CategoryCreditBureau, []enums.Jurisdiction{enums.CCPA, enums.GDPR, enums.LGPD}, enums.DifficultyHard, 45},
	{"Oracle Advertising", "https://www.oracle.com/advertising", "privacy_ww@oracle.com", enums.CategoryAdvertising, []enums.Jurisdiction{enums.CCPA, enums.GDPR, enums.PIPEDA}, enums.DifficultyHard, 45},
}

// Seed writes the built-in default templates and the starter company
// directory. It is safe to run on every start.
func Seed(ctx context.Context, pool *pgxpool.Pool, templates TemplateSeeder, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	n, err := templates.SeedDefaults(ctx)
	if err != nil {
		return err
	}
	added := 0
	for _, c := range starterCompanies {
		jurisdictions := make([]string, len(c.jurisdictions))
		for i, j := range c.jurisdictions {
			jurisdictions[i] = string(j)
		}
		tag, err := pool.Exec(ctx, `
    INSERT INTO companies (name, website, privacy_email, category, supported_jurisdictions, difficulty, avg_response_time, is_active, is_verified)
    VALUES ($1,$2,$3,$4,$5,$6,$7,true,true)
    ON CONFLICT (name) DO NOTHING
  `, c.name, c.website, c.privacyEmail, string(c.category), jurisdictions, string(c.difficulty), c.avgResponse)
		if err != nil {
			return err
		}
		added += int(tag.RowsAffected())
	}
	log.Info("seed complete", zap.Int("templates", n), zap.Int("companies_added", added))
	return nil
}
